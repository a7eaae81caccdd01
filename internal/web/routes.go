package web

import (
	"github.com/go-chi/chi/v5"
	"github.com/kozaktomas/lost-found/internal/web/handlers"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

func (s *Server) setupRoutes() {
	b := s.backend
	reportsHandler := handlers.NewReportsHandler(b.Lost, b.Found, s.extractor, s.matcher, s.log)
	adminHandler := handlers.NewAdminHandler(b.Lost, b.Found, b.Stats, s.log)
	matchesHandler := handlers.NewMatchesHandler(b.Matches, s.matcher, s.log)

	s.router.Route("/api/v1", func(r chi.Router) {
		r.Get("/health", handlers.HealthCheck)
		r.Method("GET", "/metrics", promhttp.Handler())

		// Reports
		r.Post("/lost", reportsHandler.CreateLost)
		r.Get("/lost", reportsHandler.ListLost)
		r.Get("/lost/{id}", reportsHandler.GetLost)
		r.Put("/lost/{id}", reportsHandler.UpdateLost)
		r.Delete("/lost/{id}", reportsHandler.DeleteLost)

		r.Post("/found", reportsHandler.CreateFound)
		r.Get("/found", reportsHandler.ListFound)
		r.Get("/found/{id}", reportsHandler.GetFound)
		r.Put("/found/{id}", reportsHandler.UpdateFound)
		r.Delete("/found/{id}", reportsHandler.DeleteFound)
		r.Get("/found/{id}/candidates", reportsHandler.Candidates)

		// Admin
		r.Put("/admin/approve/{type}/{id}", adminHandler.Approve)
		r.Put("/admin/reject/{type}/{id}", adminHandler.Reject)
		r.Get("/admin/stats", adminHandler.Stats)
		r.Get("/admin/reports", adminHandler.Reports)

		// Matching
		r.Post("/match/run", matchesHandler.Run)
		r.Get("/match/results", matchesHandler.List)
		r.Get("/match/{id}", matchesHandler.Get)
		r.Put("/match/{id}", matchesHandler.Update)
		r.Delete("/match/{id}", matchesHandler.Delete)
	})
}
