package api

import (
	"net/http"
	"time"

	"household/internal/core"
)

// Version is stamped at build time with -ldflags "-X household/internal/api.Version=...".
var Version = "development"

type HealthResponse struct {
	Status          string         `json:"status"`
	Message         string         `json:"message"`
	Timestamp       core.Timestamp `json:"timestamp"`
	Version         string         `json:"version"`
	ApplicationName string         `json:"applicationName,omitempty"`
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, HealthResponse{
		Status:    "UP",
		Message:   "Household Manager Backend is running",
		Timestamp: core.Timestamp{Time: time.Now()},
		Version:   Version,
	})
}

func (s *Server) handleStatus(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, HealthResponse{
		Status:          "UP",
		Message:         "Application is healthy and ready to serve requests",
		Timestamp:       core.Timestamp{Time: time.Now()},
		Version:         Version,
		ApplicationName: "Household Manager Backend",
	})
}
