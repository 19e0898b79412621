package youtube

import (
	"context"
	"encoding/base64"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"os"
	"path/filepath"
	"strings"
)

// geminiFilesHost serves generated videos; downloads need the API key.
const geminiFilesHost = "generativelanguage.googleapis.com"

// openLocator returns the bytes behind a video locator: an embedded data URI,
// a file:// path or an http(s) URL.
func openLocator(ctx context.Context, client *http.Client, locator, geminiAPIKey string) (io.ReadCloser, error) {
	if strings.HasPrefix(locator, "data:") {
		data, err := decodeDataURI(locator)
		if err != nil {
			return nil, err
		}
		return io.NopCloser(strings.NewReader(string(data))), nil
	}

	u, err := url.Parse(locator)
	if err == nil && u.Scheme == "file" {
		f, err := os.Open(filepath.FromSlash(u.Path))
		if err != nil {
			return nil, fmt.Errorf("open rendered video: %w", err)
		}
		return f, nil
	}
	if err != nil || (u.Scheme != "http" && u.Scheme != "https") {
		return nil, fmt.Errorf("unsupported video locator %q", truncateLocator(locator))
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, locator, nil)
	if err != nil {
		return nil, fmt.Errorf("video download request: %w", err)
	}
	if u.Host == geminiFilesHost && geminiAPIKey != "" {
		req.Header.Set("x-goog-api-key", geminiAPIKey)
	}

	resp, err := client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("video download: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		resp.Body.Close()
		return nil, fmt.Errorf("video download: unexpected status %d", resp.StatusCode)
	}
	return resp.Body, nil
}

// decodeDataURI decodes "data:<mime>;base64,<payload>".
func decodeDataURI(locator string) ([]byte, error) {
	header, payload, ok := strings.Cut(strings.TrimPrefix(locator, "data:"), ",")
	if !ok {
		return nil, fmt.Errorf("malformed data URI")
	}
	if !strings.HasSuffix(header, ";base64") {
		return nil, fmt.Errorf("data URI is not base64 encoded")
	}
	data, err := base64.StdEncoding.DecodeString(payload)
	if err != nil {
		return nil, fmt.Errorf("malformed data URI payload: %w", err)
	}
	if len(data) == 0 {
		return nil, fmt.Errorf("data URI is empty")
	}
	return data, nil
}

func truncateLocator(s string) string {
	if len(s) > 64 {
		return s[:64] + "..."
	}
	return s
}
