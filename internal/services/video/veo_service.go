// Package video implements the video generation capability on Google Veo.
package video

import (
	"context"
	"crypto/sha256"
	"encoding/base64"
	"encoding/hex"
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"strings"

	"github.com/ternarybob/arbor"
	"github.com/ternarybob/trendreel/internal/common"
	"github.com/ternarybob/trendreel/internal/interfaces"
	"google.golang.org/genai"
)

// operationsAPI is the subset of the genai client used for rendering.
type operationsAPI interface {
	GenerateVideos(ctx context.Context, model, prompt string, config *genai.GenerateVideosConfig) (*genai.GenerateVideosOperation, error)
	GetVideosOperation(ctx context.Context, operation *genai.GenerateVideosOperation) (*genai.GenerateVideosOperation, error)
}

// genaiOperations adapts *genai.Client to operationsAPI.
type genaiOperations struct {
	client *genai.Client
}

func (g genaiOperations) GenerateVideos(ctx context.Context, model, prompt string, config *genai.GenerateVideosConfig) (*genai.GenerateVideosOperation, error) {
	return g.client.Models.GenerateVideos(ctx, model, prompt, nil, config)
}

func (g genaiOperations) GetVideosOperation(ctx context.Context, operation *genai.GenerateVideosOperation) (*genai.GenerateVideosOperation, error) {
	return g.client.Operations.GetVideosOperation(ctx, operation, nil)
}

// VeoService submits and polls Veo long-running render operations. The render
// job handle is the operation name.
type VeoService struct {
	ops    operationsAPI
	config common.VideoConfig
	logger arbor.ILogger
}

var _ interfaces.VideoGenerator = (*VeoService)(nil)

// NewVeoService creates a Veo service with its own Gemini API client.
func NewVeoService(ctx context.Context, gemini common.GeminiConfig, config common.VideoConfig, logger arbor.ILogger) (*VeoService, error) {
	apiKey, err := common.ResolveAPIKey("gemini_api_key", gemini.APIKey)
	if err != nil {
		return nil, fmt.Errorf("failed to resolve Gemini API key: %w", err)
	}

	client, err := genai.NewClient(ctx, &genai.ClientConfig{
		APIKey:  apiKey,
		Backend: genai.BackendGeminiAPI,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create Gemini client: %w", err)
	}

	return newVeoService(genaiOperations{client: client}, config, logger), nil
}

func newVeoService(ops operationsAPI, config common.VideoConfig, logger arbor.ILogger) *VeoService {
	return &VeoService{ops: ops, config: config, logger: logger}
}

// SubmitRender starts a render operation.
func (s *VeoService) SubmitRender(ctx context.Context, prompt, aspectRatio, resolution string) (interfaces.RenderJob, error) {
	config := &genai.GenerateVideosConfig{
		NumberOfVideos: 1,
		AspectRatio:    aspectRatio,
		Resolution:     resolution,
	}

	op, err := s.ops.GenerateVideos(ctx, s.config.Model, prompt, config)
	if err != nil {
		return interfaces.RenderJob{}, fmt.Errorf("submit render to %s: %w", s.config.Model, err)
	}
	if op == nil || op.Name == "" {
		return interfaces.RenderJob{}, fmt.Errorf("submit render to %s: no operation name returned", s.config.Model)
	}

	s.logger.Debug().
		Str("operation", op.Name).
		Str("model", s.config.Model).
		Msg("Render operation started")

	return interfaces.RenderJob{ID: op.Name}, nil
}

// PollRender checks a render operation once.
func (s *VeoService) PollRender(ctx context.Context, job interfaces.RenderJob) (interfaces.RenderStatus, error) {
	op, err := s.ops.GetVideosOperation(ctx, &genai.GenerateVideosOperation{Name: job.ID})
	if err != nil {
		return interfaces.RenderStatus{}, fmt.Errorf("poll render %s: %w", job.ID, err)
	}
	if op == nil || !op.Done {
		return interfaces.RenderStatus{}, nil
	}

	if len(op.Error) > 0 {
		return interfaces.RenderStatus{}, fmt.Errorf("render %s failed: %v", job.ID, operationMessage(op.Error))
	}

	if op.Response == nil || len(op.Response.GeneratedVideos) == 0 || op.Response.GeneratedVideos[0].Video == nil {
		if op.Response != nil && op.Response.RAIMediaFilteredCount > 0 {
			return interfaces.RenderStatus{}, fmt.Errorf("render %s was filtered: %s",
				job.ID, strings.Join(op.Response.RAIMediaFilteredReasons, "; "))
		}
		return interfaces.RenderStatus{}, fmt.Errorf("render %s completed without a video", job.ID)
	}

	video := op.Response.GeneratedVideos[0].Video
	mimeType := video.MIMEType
	if mimeType == "" {
		mimeType = "video/mp4"
	}

	locator := video.URI
	if len(video.VideoBytes) > 0 {
		locator, err = s.storeBytes(mimeType, video.VideoBytes)
		if err != nil {
			return interfaces.RenderStatus{}, fmt.Errorf("render %s: %w", job.ID, err)
		}
	}

	return interfaces.RenderStatus{Done: true, Locator: locator, MIMEType: mimeType}, nil
}

// storeBytes writes inline video bytes to the output directory and returns a
// file:// locator. Without an output directory the bytes are embedded in a
// data URI.
func (s *VeoService) storeBytes(mimeType string, data []byte) (string, error) {
	if s.config.OutputDir == "" {
		return "data:" + mimeType + ";base64," + base64.StdEncoding.EncodeToString(data), nil
	}

	if err := os.MkdirAll(s.config.OutputDir, 0o755); err != nil {
		return "", fmt.Errorf("create video output dir: %w", err)
	}
	sum := sha256.Sum256(data)
	path, err := filepath.Abs(filepath.Join(s.config.OutputDir, hex.EncodeToString(sum[:8])+videoExtension(mimeType)))
	if err != nil {
		return "", fmt.Errorf("resolve video path: %w", err)
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return "", fmt.Errorf("write video: %w", err)
	}

	s.logger.Debug().
		Str("path", path).
		Int("bytes", len(data)).
		Msg("Rendered video written")

	return (&url.URL{Scheme: "file", Path: filepath.ToSlash(path)}).String(), nil
}

func videoExtension(mimeType string) string {
	switch mimeType {
	case "video/webm":
		return ".webm"
	case "video/quicktime":
		return ".mov"
	default:
		return ".mp4"
	}
}

func operationMessage(opErr map[string]any) string {
	if msg, ok := opErr["message"].(string); ok && msg != "" {
		return msg
	}
	return fmt.Sprintf("%v", opErr)
}
