package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/ternarybob/arbor"
	"github.com/ternarybob/trendreel/internal/app"
	"github.com/ternarybob/trendreel/internal/common"
	"github.com/ternarybob/trendreel/internal/handlers"
)

// runOnce runs the pipeline for one channel, prints the result as JSON and
// returns the process exit code.
func runOnce(config *common.Config, logger arbor.ILogger, channelID string, forceMock bool) int {
	application, err := app.New(config, logger)
	if err != nil {
		logger.Error().Err(err).Msg("Failed to initialize application")
		return 1
	}
	defer application.Close()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	result, err := application.RunService.RunChannel(ctx, channelID, forceMock)
	if err != nil {
		logger.Error().Err(err).Str("channel_id", channelID).Msg("Run could not start")
		return 1
	}

	out, err := json.MarshalIndent(handlers.NewRunResponse(result), "", "  ")
	if err != nil {
		logger.Error().Err(err).Msg("Failed to encode run result")
		return 1
	}
	fmt.Println(string(out))

	if !result.Success {
		return 2
	}
	return 0
}
