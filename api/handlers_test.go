package api

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"slackmirror/db"
	"slackmirror/slack"
	"slackmirror/syncer"
)

type nopStore struct{}

func (nopStore) SaveUsers([]db.User) error { return nil }

func (nopStore) SaveChannel(db.Channel) error { return nil }

func (nopStore) SaveMessages([]db.Message, []db.Reaction) error { return nil }

// emptyWorkspace answers every Web API method with an empty result so a
// sync started through the handler finishes immediately.
func emptyWorkspace(t *testing.T) *httptest.Server {
	t.Helper()
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(map[string]any{
			"ok":                true,
			"members":           []any{},
			"channels":          []any{},
			"messages":          []any{},
			"response_metadata": map[string]string{"next_cursor": ""},
		})
	}))
	t.Cleanup(ts.Close)
	return ts
}

func newTestServer(t *testing.T) (*Server, syncer.ProgressStore) {
	t.Helper()
	fake := emptyWorkspace(t)
	client := slack.NewClient("xoxb-test", slack.Options{
		BaseURL:  fake.URL,
		RetryMin: time.Millisecond,
	})
	progress := syncer.NewMemoryStore()
	s := syncer.New(client, nopStore{}, progress, syncer.Options{
		ChannelTypes: "public_channel,private_channel",
	})
	return NewServer(client, s, progress, "public_channel,private_channel", []string{"*"}), progress
}

func router(s *Server) http.Handler {
	r := chi.NewRouter()
	r.Get("/health", s.HandleHealthCheck)
	r.Post("/sync", s.HandleStartSync)
	r.Get("/api/job/{jobID}", s.HandleJobStatus)
	r.Get("/channel/{channelID}", s.HandleChannelMessages)
	return r
}

func TestHealth(t *testing.T) {
	s, _ := newTestServer(t)
	rec := httptest.NewRecorder()
	router(s).ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/health", nil))
	if rec.Code != http.StatusOK {
		t.Errorf("status = %d", rec.Code)
	}
}

// failingProgress simulates a progress registry that cannot be read, as
// when the Redis backing it is down.
type failingProgress struct{}

func (failingProgress) Set(context.Context, string, syncer.Progress) error { return nil }

func (failingProgress) Get(context.Context, string) (syncer.Progress, bool, error) {
	return syncer.Progress{}, false, errors.New("connection refused")
}

func TestJobStatusRegistryOutage(t *testing.T) {
	fake := emptyWorkspace(t)
	client := slack.NewClient("xoxb-test", slack.Options{
		BaseURL:  fake.URL,
		RetryMin: time.Millisecond,
	})
	sy := syncer.New(client, nopStore{}, failingProgress{}, syncer.Options{
		ChannelTypes: "public_channel,private_channel",
	})
	s := NewServer(client, sy, failingProgress{}, "public_channel,private_channel", []string{"*"})

	rec := httptest.NewRecorder()
	router(s).ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/job/some-job", nil))

	// a registry outage must not read as an unknown job
	if rec.Code != http.StatusInternalServerError {
		t.Fatalf("status = %d, want 500", rec.Code)
	}
	var resp errorResponse
	if err := json.NewDecoder(rec.Body).Decode(&resp); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if resp.Error != "progress registry unavailable" {
		t.Errorf("error = %q", resp.Error)
	}
}

func TestChannelMessagesDatabaseOutage(t *testing.T) {
	// a lazy connection to a dead address: Open succeeds, the first query
	// fails with a transport error rather than a not-found
	gdb, err := gorm.Open(postgres.Open("host=127.0.0.1 port=1 user=mirror dbname=mirror sslmode=disable"), &gorm.Config{
		DisableAutomaticPing: true,
		Logger:               logger.Default.LogMode(logger.Silent),
	})
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	prev := db.DB
	db.DB = gdb
	t.Cleanup(func() { db.DB = prev })

	s, _ := newTestServer(t)
	rec := httptest.NewRecorder()
	router(s).ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/channel/C123", nil))

	if rec.Code != http.StatusInternalServerError {
		t.Fatalf("status = %d, want 500", rec.Code)
	}
	var resp errorResponse
	if err := json.NewDecoder(rec.Body).Decode(&resp); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if resp.Error == "channel not mirrored" {
		t.Error("database outage reported as a missing channel")
	}
}

func TestJobStatusUnknown(t *testing.T) {
	s, _ := newTestServer(t)
	rec := httptest.NewRecorder()
	router(s).ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/job/no-such-job", nil))

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}
	var p syncer.Progress
	if err := json.NewDecoder(rec.Body).Decode(&p); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if p.Phase != syncer.PhaseUnknown {
		t.Errorf("phase = %q, want %q", p.Phase, syncer.PhaseUnknown)
	}
}

func TestStartSyncReturnsTrackableJob(t *testing.T) {
	s, progress := newTestServer(t)
	h := router(s)

	rec := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPost, "/sync", strings.NewReader(`{"channels":["*"]}`))
	req.Header.Set("Content-Type", "application/json")
	h.ServeHTTP(rec, req)

	if rec.Code != http.StatusAccepted {
		t.Fatalf("status = %d", rec.Code)
	}
	var resp struct {
		JobID string `json:"job_id"`
	}
	if err := json.NewDecoder(rec.Body).Decode(&resp); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if resp.JobID == "" {
		t.Fatal("empty job id")
	}

	// the job is registered before the worker starts, so it must never
	// read as unknown
	if p, ok, _ := progress.Get(context.Background(), resp.JobID); !ok {
		t.Fatal("job not registered")
	} else if p.Phase == syncer.PhaseUnknown {
		t.Errorf("phase = %q", p.Phase)
	}

	// the empty workspace drains immediately; wait for the detached
	// worker to reach a terminal phase
	deadline := time.After(2 * time.Second)
	for {
		p, _, _ := progress.Get(context.Background(), resp.JobID)
		if p.Phase == syncer.PhaseDone {
			break
		}
		if p.Phase == syncer.PhaseError {
			t.Fatalf("sync failed: %s", p.Error)
		}
		select {
		case <-deadline:
			t.Fatalf("sync never finished, phase %q", p.Phase)
		case <-time.After(5 * time.Millisecond):
		}
	}
}

func TestStartSyncRejectsBadBody(t *testing.T) {
	s, _ := newTestServer(t)
	rec := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPost, "/sync", strings.NewReader("{not json"))
	router(s).ServeHTTP(rec, req)
	if rec.Code != http.StatusBadRequest {
		t.Errorf("status = %d", rec.Code)
	}
}
