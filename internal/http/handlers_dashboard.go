package http

import (
	"context"
	"net/http"

	"household/internal/dashboard"
)

type dashboardView struct {
	Title   string
	Nav     string
	Summary dashboard.Summary
}

func (s *Server) loadDashboard(ctx context.Context) dashboardView {
	ctx, cancel := context.WithTimeout(ctx, backendTimeout)
	defer cancel()
	return dashboardView{
		Title:   "Dashboard",
		Nav:     "dashboard",
		Summary: s.dashboard.Load(ctx),
	}
}

// handleDashboard renders the main dashboard page
func (s *Server) handleDashboard(w http.ResponseWriter, r *http.Request) {
	s.render(w, r, http.StatusOK, "dashboard_page", s.loadDashboard(r.Context()))
}

// handleDashboardSummary returns the meter cards partial, refreshed after new readings.
func (s *Server) handleDashboardSummary(w http.ResponseWriter, r *http.Request) {
	s.render(w, r, http.StatusOK, "dashboard_summary", s.loadDashboard(r.Context()))
}
