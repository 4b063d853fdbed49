package server

import (
	"net/http"
)

// setupRoutes configures all HTTP routes
func (s *Server) setupRoutes() *http.ServeMux {
	mux := http.NewServeMux()

	// WebSocket route (authentication happens in the first frame)
	mux.HandleFunc("/ws", s.app.ChatWSHandler.HandleWebSocket)

	// Scraper callback (validated against the pending job record)
	mux.HandleFunc("/api/scrape/update", s.app.ScrapeHandler.UpdateHandler)

	// API routes - Chat (REST fallback)
	mux.HandleFunc("/api/chat", s.app.ChatHandler.MessageHandler)
	mux.HandleFunc("/api/chat/link", s.app.ChatHandler.LinkHandler)

	// API routes - Conversation history
	mux.HandleFunc("/api/conversation", s.app.ConversationHandler.ConversationHandler)
	mux.HandleFunc("/api/conversations/", s.app.ConversationHandler.ByUserHandler)

	// API routes - Products
	mux.HandleFunc("/api/products", s.app.ProductHandler.ListHandler)
	mux.HandleFunc("/api/products/embedding/search", s.app.ProductHandler.SearchHandler)
	mux.HandleFunc("/api/products/", s.app.ProductHandler.ProductRoutes) // /{id}, /{id}/regenerate, /{id}/chat, /{id}/errors, /errors

	// API routes - Jobs
	mux.HandleFunc("/api/jobs", s.app.JobHandler.JobsHandler)
	mux.HandleFunc("/api/jobs/", s.app.JobHandler.JobRoutes)

	// API routes - System
	mux.HandleFunc("/health", s.app.StatusHandler.HealthHandler)
	mux.HandleFunc("/api/version", s.app.StatusHandler.VersionHandler)
	mux.HandleFunc("/api/status", s.app.StatusHandler.StatusHandler)

	return mux
}
