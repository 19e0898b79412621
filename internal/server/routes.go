package server

import (
	"net/http"
)

// setupRoutes configures all HTTP routes
func (s *Server) setupRoutes() *http.ServeMux {
	mux := http.NewServeMux()
	runs := s.app.RunHandler
	channels := s.app.ChannelHandler

	// API routes - Runs
	mux.HandleFunc("/api/run", runs.RunHandler) // POST - run the pipeline once
	mux.Handle("/api/runs/", resource{
		prefix: "/api/runs/",
		item:   methods{http.MethodGet: runs.GetRunHandler},
		actions: map[string]methods{
			"resume": {http.MethodPost: runs.ResumeHandler},
		},
	})

	// API routes - Channels
	mux.Handle("/api/channels", methods{
		http.MethodGet:  channels.ListHandler,
		http.MethodPost: channels.CreateHandler,
	})
	mux.Handle("/api/channels/", resource{
		prefix: "/api/channels/",
		item: methods{
			http.MethodGet:    channels.GetHandler,
			http.MethodPut:    channels.UpdateHandler,
			http.MethodDelete: channels.DeleteHandler,
		},
		actions: map[string]methods{
			"runs": {http.MethodGet: runs.ChannelRunsHandler},
		},
	})

	// API routes - Scheduler
	mux.HandleFunc("/api/scheduler", s.app.SchedulerHandler.StatusHandler)
	mux.HandleFunc("/api/scheduler/tick", s.app.SchedulerHandler.TickHandler)

	// API routes - System
	mux.HandleFunc("/api/status", s.app.StatusHandler.GetStatusHandler)
	mux.HandleFunc("/api/version", s.app.APIHandler.VersionHandler)
	mux.HandleFunc("/api/health", s.app.APIHandler.HealthHandler)

	// 404 handler for unmatched routes
	mux.HandleFunc("/", s.app.APIHandler.NotFoundHandler)

	return mux
}
