// Package youtube implements trend acquisition and publishing on the YouTube
// Data API.
package youtube

import (
	"context"
	"fmt"
	"time"

	"github.com/ternarybob/trendreel/internal/common"
	"github.com/ternarybob/trendreel/internal/models"
	"golang.org/x/oauth2"
	"golang.org/x/oauth2/google"
	"google.golang.org/api/option"
	"google.golang.org/api/youtube/v3"
)

// oauthConfig builds the OAuth client configuration for uploads. The token
// exchange itself is left to golang.org/x/oauth2.
func oauthConfig(cfg common.YouTubeConfig) (*oauth2.Config, error) {
	if cfg.ClientID == "" || cfg.ClientSecret == "" {
		return nil, fmt.Errorf("youtube client_id and client_secret are required for publishing")
	}
	return &oauth2.Config{
		ClientID:     cfg.ClientID,
		ClientSecret: cfg.ClientSecret,
		Endpoint:     google.Endpoint,
		Scopes:       []string{youtube.YoutubeUploadScope, youtube.YoutubeScope},
	}, nil
}

// uploadService creates a Data API client authorised by the channel's refresh
// token.
func uploadService(ctx context.Context, cfg common.YouTubeConfig, creds models.ChannelCredentials) (*youtube.Service, error) {
	if creds.RefreshToken == "" {
		return nil, fmt.Errorf("channel has no youtube refresh token")
	}

	conf, err := oauthConfig(cfg)
	if err != nil {
		return nil, err
	}

	// Expired on purpose so the first request refreshes it
	token := &oauth2.Token{
		RefreshToken: creds.RefreshToken,
		Expiry:       time.Now().Add(-time.Hour),
	}

	svc, err := youtube.NewService(ctx, option.WithTokenSource(conf.TokenSource(ctx, token)))
	if err != nil {
		return nil, fmt.Errorf("youtube service: %w", err)
	}
	return svc, nil
}
