// Package dash exposes a small read-only HTTP API for operators: job
// definitions joined with live timer state, plus the forum watcher cursor.
package dash

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"guildbot/internal/notify"
	"guildbot/pkg/logx"
)

// Source is what the dashboard reads. Implemented by internal/storage.
type Source interface {
	ListAll(ctx context.Context) ([]notify.Job, error)
	ForumCursor(ctx context.Context, source string) (int64, error)
}

type Server struct {
	addr  string
	store Source
	reg   *notify.Registry
	log   logx.Logger

	srv     *http.Server
	started time.Time
}

func New(addr string, store Source, reg *notify.Registry, log logx.Logger) *Server {
	return &Server{addr: addr, store: store, reg: reg, log: log}
}

type jobView struct {
	ID        string `json:"id"`
	RoleID    string `json:"role_id"`
	ChannelID string `json:"channel_id"`
	Spec      string `json:"spec"`
	TZ        string `json:"tz"`
	CreatedBy string `json:"created_by"`
	Running   bool   `json:"running"`
}

func (s *Server) Start() {
	s.started = time.Now()

	r := chi.NewRouter()
	r.Get("/api/health", s.handleHealth)
	r.Get("/api/jobs", s.handleJobs)
	r.Get("/api/forum", s.handleForum)

	s.srv = &http.Server{
		Addr:         s.addr,
		Handler:      r,
		ReadTimeout:  5 * time.Second,
		WriteTimeout: 10 * time.Second,
	}
	go func() {
		s.log.Info("dashboard listening", logx.String("addr", s.addr))
		if err := s.srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			s.log.Error("dashboard server failed", logx.Err(err))
		}
	}()
}

func (s *Server) Stop(ctx context.Context) error {
	if s.srv == nil {
		return nil
	}
	return s.srv.Shutdown(ctx)
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"status":    "ok",
		"uptime":    time.Since(s.started).Round(time.Second).String(),
		"timers":    len(s.reg.Snapshot()),
		"timestamp": time.Now().UTC().Format(time.RFC3339),
	})
}

func (s *Server) handleJobs(w http.ResponseWriter, r *http.Request) {
	jobs, err := s.store.ListAll(r.Context())
	if err != nil {
		s.log.Error("dashboard job listing failed", logx.Err(err))
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "storage unavailable"})
		return
	}
	out := make([]jobView, 0, len(jobs))
	for _, j := range jobs {
		out = append(out, jobView{
			ID:        j.ID,
			RoleID:    j.RoleID,
			ChannelID: j.ChannelID,
			Spec:      j.Spec,
			TZ:        j.TZ,
			CreatedBy: j.CreatedBy,
			Running:   s.reg.Running(j.ID),
		})
	}
	writeJSON(w, http.StatusOK, out)
}

func (s *Server) handleForum(w http.ResponseWriter, r *http.Request) {
	source := r.URL.Query().Get("source")
	if source == "" {
		source = "main"
	}
	last, err := s.store.ForumCursor(r.Context(), source)
	if err != nil {
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "storage unavailable"})
		return
	}
	writeJSON(w, http.StatusOK, map[string]int64{"last_id": last})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
