// Package api exposes play events and flushes over HTTP for hosts that are not
// linked against the module.
package api

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/httprate"
	"github.com/goccy/go-json"
	"github.com/mmcdole/playtally/internal/dispatch"
	"github.com/mmcdole/playtally/internal/domain"
	"github.com/mmcdole/playtally/internal/ledger"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// player records plays (consumer-defined interface)
type player interface {
	Play(ctx context.Context, itemID string) (int, error)
	Flush(ctx context.Context) dispatch.Report
}

// entries reads the ledger (consumer-defined interface)
type entries interface {
	Entry(itemID string) (domain.PlaybackEntry, bool)
	Search(pattern string) []domain.PlaybackEntry
}

// EntryResponse is the JSON form of a ledger entry
type EntryResponse struct {
	ItemID        string `json:"itemId"`
	Count         int    `json:"count"`
	LastEventTime int64  `json:"lastEventTime"`
	Synced        bool   `json:"synced"`
}

// FlushResponse is the JSON form of a flush report
type FlushResponse struct {
	PassID     string            `json:"passId"`
	Attempted  int               `json:"attempted"`
	Synced     []string          `json:"synced"`
	Superseded []string          `json:"superseded"`
	Failed     map[string]string `json:"failed"`
	Duration   string            `json:"duration"`
}

type errorResponse struct {
	Error string `json:"error"`
}

// Handler serves the playtally API
type Handler struct {
	player  player
	entries entries
	logger  *slog.Logger
}

// NewHandler creates the API router
func NewHandler(p player, e entries, logger *slog.Logger) http.Handler {
	if logger == nil {
		logger = slog.Default()
	}
	h := &Handler{player: p, entries: e, logger: logger}

	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.Recoverer)
	r.Use(middleware.Timeout(30 * time.Second))

	r.Get("/healthz", h.health)
	r.Handle("/metrics", promhttp.Handler())

	r.Route("/v1", func(r chi.Router) {
		r.Use(httprate.LimitByIP(600, time.Minute))

		r.Get("/plays", h.listPlays)
		r.Get("/plays/{itemID}", h.getPlay)
		r.Post("/plays/{itemID}", h.recordPlay)
		r.Post("/flush", h.flush)
	})
	return r
}

func (h *Handler) health(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (h *Handler) listPlays(w http.ResponseWriter, r *http.Request) {
	list := h.entries.Search(r.URL.Query().Get("q"))
	out := make([]EntryResponse, 0, len(list))
	for _, e := range list {
		out = append(out, toEntryResponse(e))
	}
	writeJSON(w, http.StatusOK, out)
}

func (h *Handler) getPlay(w http.ResponseWriter, r *http.Request) {
	itemID := chi.URLParam(r, "itemID")
	e, ok := h.entries.Entry(itemID)
	if !ok {
		writeJSON(w, http.StatusNotFound, errorResponse{Error: "item not tracked"})
		return
	}
	writeJSON(w, http.StatusOK, toEntryResponse(e))
}

func (h *Handler) recordPlay(w http.ResponseWriter, r *http.Request) {
	itemID := chi.URLParam(r, "itemID")
	if _, err := h.player.Play(r.Context(), itemID); err != nil {
		status := http.StatusServiceUnavailable
		if errors.Is(err, ledger.ErrEmptyItemID) {
			status = http.StatusBadRequest
		} else {
			h.logger.Warn("play rejected", "item", itemID, "error", err)
		}
		writeJSON(w, status, errorResponse{Error: err.Error()})
		return
	}

	e, _ := h.entries.Entry(itemID)
	writeJSON(w, http.StatusOK, toEntryResponse(e))
}

func (h *Handler) flush(w http.ResponseWriter, r *http.Request) {
	report := h.player.Flush(r.Context())

	resp := FlushResponse{
		PassID:     report.PassID,
		Attempted:  report.Attempted,
		Synced:     report.Synced,
		Superseded: report.Superseded,
		Failed:     make(map[string]string, len(report.Failed)),
		Duration:   report.Duration.String(),
	}
	if resp.Synced == nil {
		resp.Synced = []string{}
	}
	if resp.Superseded == nil {
		resp.Superseded = []string{}
	}
	for id, err := range report.Failed {
		resp.Failed[id] = err.Error()
	}
	h.logger.Debug("flush requested", "pass", report.PassID, "attempted", report.Attempted, "superseded", len(report.Superseded), "failed", len(report.Failed))
	writeJSON(w, http.StatusOK, resp)
}

func toEntryResponse(e domain.PlaybackEntry) EntryResponse {
	return EntryResponse{
		ItemID:        e.ItemID,
		Count:         e.Count,
		LastEventTime: e.LastEventTime,
		Synced:        e.Synced,
	}
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
