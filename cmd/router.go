package main

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"slackmirror/api"
)

func SetupRouter(s *api.Server) http.Handler {
	r := chi.NewRouter()

	r.Get("/health", s.HandleHealthCheck)

	r.Post("/sync", s.HandleStartSync)
	r.Get("/api/job/{jobID}", s.HandleJobStatus)

	r.Get("/channels", s.HandleListChannels)
	r.Get("/browse", s.HandleBrowse)
	r.Get("/channel/{channelID}", s.HandleChannelMessages)
	r.Get("/search", s.HandleSearch)

	return r
}
