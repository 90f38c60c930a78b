package http_api

// routes sets up the routes for the HTTP server.
func (s *HTTPServer) routes() {
	api := s.router.Group("/api/paywall")

	api.GET("/all", s.listAllPaywalls)
	api.POST("/create", s.createPaywall)
	api.GET("/list", s.listPaywallsByCreator)
	api.GET("/inbox", s.inbox)
	api.GET("/my-submissions", s.mySubmissions)
	api.GET("/submit", s.listAllSubmissions)
	api.POST("/submit", s.submitMessage)
	api.POST("/moderate", s.moderate)
}
