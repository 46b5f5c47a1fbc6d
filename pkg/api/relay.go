package api

import "net/http"

func (s *Server) handleRelayProducer(w http.ResponseWriter, r *http.Request) {
	hostname := r.PathValue("hostname")
	s.relay.ServeProducer(w, r, hostname)
}

func (s *Server) handleRelayViewer(w http.ResponseWriter, r *http.Request) {
	hostname := r.PathValue("hostname")
	s.relay.ServeConsumer(w, r, hostname)
}
