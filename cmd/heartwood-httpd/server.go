package main

import (
	"encoding/json"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/sirupsen/logrus"

	hwcrypto "github.com/nodeforge/heartwood/crypto"
	"github.com/nodeforge/heartwood/identity"
	"github.com/nodeforge/heartwood/sigrefs"
	"github.com/nodeforge/heartwood/storage"
)

// Server exposes read-only identity and sigrefs data over HTTP. Handler
// business logic beyond JSON projection is out of the core's scope
// (spec.md Non-goals); this only translates storage.ReadRepository lookups
// into responses.
type Server struct {
	router *chi.Mux
	repo   storage.ReadRepository
	log    logrus.FieldLogger
}

// NewServer builds the router for repo.
func NewServer(repo storage.ReadRepository, log logrus.FieldLogger) *Server {
	s := &Server{router: chi.NewRouter(), repo: repo, log: log}
	s.router.Use(middleware.Logger, middleware.Recoverer)
	s.routes()
	return s
}

func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) { s.router.ServeHTTP(w, r) }

func (s *Server) routes() {
	s.router.Get("/identity/canonical", s.handleCanonicalIdentity)
	s.router.Get("/identity/{peer}", s.handleIdentity)
	s.router.Get("/sigrefs/{peer}", s.handleSigrefs)
}

func (s *Server) handleCanonicalIdentity(w http.ResponseWriter, r *http.Request) {
	at, err := identity.Canonical(s.repo)
	if err != nil {
		http.Error(w, err.Error(), http.StatusNotFound)
		return
	}
	writeJSON(w, at.Doc)
}

func (s *Server) handleIdentity(w http.ResponseWriter, r *http.Request) {
	peer, err := parsePeer(chi.URLParam(r, "peer"))
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	at, err := identity.Load(peer, s.repo)
	if err != nil {
		http.Error(w, err.Error(), http.StatusNotFound)
		return
	}
	writeJSON(w, at.Doc)
}

func (s *Server) handleSigrefs(w http.ResponseWriter, r *http.Request) {
	peer, err := parsePeer(chi.URLParam(r, "peer"))
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	sr, err := sigrefs.Load(peer, s.repo)
	if err != nil {
		http.Error(w, err.Error(), http.StatusNotFound)
		return
	}
	writeJSON(w, sr)
}

func parsePeer(s string) (hwcrypto.PublicKey, error) {
	return hwcrypto.PublicKeyFromHex(s)
}

func writeJSON(w http.ResponseWriter, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	enc := json.NewEncoder(w)
	_ = enc.Encode(v)
}
