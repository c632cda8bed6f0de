package api

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	log15 "github.com/inconshreveable/log15/v3"
	"gorm.io/gorm"

	"slackmirror/db"
	"slackmirror/slack"
	"slackmirror/syncer"
)

const browsePerPage = 100

// Server carries the handlers' dependencies: the Slack client for live
// channel listing, the syncer to launch jobs, and the progress registry
// the job endpoint polls.
type Server struct {
	client          *slack.Client
	syncer          *syncer.Syncer
	progress        syncer.ProgressStore
	channelTypes    string
	defaultSelector []string
	log             log15.Logger
}

func NewServer(client *slack.Client, s *syncer.Syncer, progress syncer.ProgressStore, channelTypes string, defaultSelector []string) *Server {
	return &Server{
		client:          client,
		syncer:          s,
		progress:        progress,
		channelTypes:    channelTypes,
		defaultSelector: defaultSelector,
		log:             log15.New("module", "api"),
	}
}

func (s *Server) HandleHealthCheck(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// HandleStartSync launches one sync worker and returns its job id. The
// worker is detached from the request; callers follow it via the job
// endpoint.
func (s *Server) HandleStartSync(w http.ResponseWriter, r *http.Request) {
	var req syncRequest
	if r.Body != nil && r.ContentLength != 0 {
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			writeJSON(w, http.StatusBadRequest, errorResponse{Error: "invalid request body"})
			return
		}
	}
	selector := req.Channels
	if len(selector) == 0 {
		selector = s.defaultSelector
	}

	jobID := uuid.NewString()
	// register the job before the worker starts so an immediate poll
	// never sees "unknown"
	if err := s.progress.Set(r.Context(), jobID, syncer.Progress{
		Phase:    syncer.PhaseStarting,
		Messages: map[string]int{},
	}); err != nil {
		s.log.Error("registering job failed", "job", jobID, "err", err)
		writeJSON(w, http.StatusInternalServerError, errorResponse{Error: "could not register sync job"})
		return
	}

	go func() {
		// detached from the request lifecycle on purpose
		if err := s.syncer.Run(context.Background(), jobID, selector); err != nil {
			s.log.Error("sync worker failed", "job", jobID, "err", err)
		}
	}()

	s.log.Info("sync started", "job", jobID, "selector", selector)
	writeJSON(w, http.StatusAccepted, syncResponse{JobID: jobID})
}

// HandleJobStatus returns the current progress snapshot. Unknown ids get
// phase "unknown" rather than a 404 so pollers can treat it uniformly; a
// registry outage is a 500, not "unknown".
func (s *Server) HandleJobStatus(w http.ResponseWriter, r *http.Request) {
	jobID := chi.URLParam(r, "jobID")
	p, ok, err := s.progress.Get(r.Context(), jobID)
	if err != nil {
		s.log.Error("reading job progress failed", "job", jobID, "err", err)
		writeJSON(w, http.StatusInternalServerError, errorResponse{Error: "progress registry unavailable"})
		return
	}
	if !ok {
		writeJSON(w, http.StatusOK, syncer.Progress{Phase: syncer.PhaseUnknown})
		return
	}
	writeJSON(w, http.StatusOK, p)
}

// HandleListChannels lists the workspace's channels straight from Slack,
// flagging the ones already present in the mirror.
func (s *Server) HandleListChannels(w http.ResponseWriter, r *http.Request) {
	mirrored, err := db.ChannelIDs()
	if err != nil {
		s.log.Error("loading mirrored channel ids failed", "err", err)
		writeJSON(w, http.StatusInternalServerError, errorResponse{Error: "database unavailable"})
		return
	}

	var entries []channelEntry
	err = s.client.ListChannels(r.Context(), s.channelTypes, func(channels []slack.Conversation) error {
		for _, c := range channels {
			entries = append(entries, channelEntry{
				ID:        c.ID,
				Name:      c.Name,
				IsPrivate: c.IsPrivate,
				Mirrored:  mirrored[c.ID],
			})
		}
		return nil
	})
	if err != nil {
		s.log.Error("listing channels failed", "err", err)
		writeJSON(w, http.StatusBadGateway, errorResponse{Error: err.Error()})
		return
	}
	writeJSON(w, http.StatusOK, entries)
}

// HandleBrowse lists the mirrored channels.
func (s *Server) HandleBrowse(w http.ResponseWriter, r *http.Request) {
	channels, err := db.ListChannels()
	if err != nil {
		s.log.Error("browsing channels failed", "err", err)
		writeJSON(w, http.StatusInternalServerError, errorResponse{Error: "database unavailable"})
		return
	}
	out := make([]browseChannel, 0, len(channels))
	for _, c := range channels {
		out = append(out, browseChannel{ID: c.ID, Name: c.Name, IsPrivate: c.IsPrivate, Created: c.Created})
	}
	writeJSON(w, http.StatusOK, out)
}

// HandleChannelMessages pages through one mirrored channel's messages.
func (s *Server) HandleChannelMessages(w http.ResponseWriter, r *http.Request) {
	channelID := chi.URLParam(r, "channelID")
	ch, err := db.GetChannel(channelID)
	if errors.Is(err, gorm.ErrRecordNotFound) {
		writeJSON(w, http.StatusNotFound, errorResponse{Error: "channel not mirrored"})
		return
	}
	if err != nil {
		s.log.Error("loading channel failed", "channel", channelID, "err", err)
		writeJSON(w, http.StatusInternalServerError, errorResponse{Error: "database unavailable"})
		return
	}

	page := pageParam(r)
	msgs, total, err := db.MessagesForChannel(channelID, page, browsePerPage)
	if err != nil {
		s.log.Error("loading messages failed", "channel", channelID, "err", err)
		writeJSON(w, http.StatusInternalServerError, errorResponse{Error: "database unavailable"})
		return
	}
	entries, err := toMessageEntries(msgs)
	if err != nil {
		s.log.Error("loading message context failed", "channel", channelID, "err", err)
		writeJSON(w, http.StatusInternalServerError, errorResponse{Error: "database unavailable"})
		return
	}

	writeJSON(w, http.StatusOK, messagePage{
		Channel:  &browseChannel{ID: ch.ID, Name: ch.Name, IsPrivate: ch.IsPrivate, Created: ch.Created},
		Page:     page,
		PerPage:  browsePerPage,
		Total:    total,
		Messages: entries,
	})
}

// HandleSearch matches mirrored message text case-insensitively.
func (s *Server) HandleSearch(w http.ResponseWriter, r *http.Request) {
	term := r.URL.Query().Get("q")
	if term == "" {
		writeJSON(w, http.StatusBadRequest, errorResponse{Error: "missing query parameter q"})
		return
	}

	page := pageParam(r)
	msgs, total, err := db.SearchMessages(term, page, browsePerPage)
	if err != nil {
		s.log.Error("search failed", "q", term, "err", err)
		writeJSON(w, http.StatusInternalServerError, errorResponse{Error: "database unavailable"})
		return
	}
	entries, err := toMessageEntries(msgs)
	if err != nil {
		s.log.Error("loading message context failed", "q", term, "err", err)
		writeJSON(w, http.StatusInternalServerError, errorResponse{Error: "database unavailable"})
		return
	}

	writeJSON(w, http.StatusOK, messagePage{
		Query:    term,
		Page:     page,
		PerPage:  browsePerPage,
		Total:    total,
		Messages: entries,
	})
}

func pageParam(r *http.Request) int {
	page, err := strconv.Atoi(r.URL.Query().Get("page"))
	if err != nil || page < 1 {
		return 1
	}
	return page
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
