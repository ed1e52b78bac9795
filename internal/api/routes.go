package api

func (s *Server) registerRoutes() {
	s.router.HandleFunc("POST /api/query", s.handleQuery)
	s.router.HandleFunc("GET /api/stats", s.handleStats)
	s.router.HandleFunc("GET /api/share", s.handleShare)
	s.router.HandleFunc("GET /healthz", s.handleHealth)

	if s.opts.Metrics != nil {
		s.router.Handle("GET "+s.opts.MetricsPath, s.opts.Metrics)
	}
}
