package analytics

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
)

// SnapshotReader loads the last persisted stats, or nil when none exist.
type SnapshotReader interface {
	LatestSnapshot(ctx context.Context) (*AggregatedStats, error)
}

type Handler struct {
	aggregator *Aggregator
	snapshots  SnapshotReader
	logger     *slog.Logger
}

// NewHandler serves live stats from aggregator. snapshots may be nil.
func NewHandler(aggregator *Aggregator, snapshots SnapshotReader) *Handler {
	return &Handler{
		aggregator: aggregator,
		snapshots:  snapshots,
		logger:     slog.Default().With("component", "analytics-handler"),
	}
}

func (h *Handler) Stats(w http.ResponseWriter, r *http.Request) {
	h.writeJSON(w, http.StatusOK, h.aggregator.Stats())
}

func (h *Handler) Snapshot(w http.ResponseWriter, r *http.Request) {
	if h.snapshots == nil {
		h.writeJSON(w, http.StatusServiceUnavailable, map[string]string{"error": "analytics persistence is disabled"})
		return
	}
	stats, err := h.snapshots.LatestSnapshot(r.Context())
	if err != nil {
		h.logger.Error("loading analytics snapshot failed", "error", err)
		h.writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "loading snapshot failed"})
		return
	}
	if stats == nil {
		h.writeJSON(w, http.StatusNotFound, map[string]string{"error": "no snapshot recorded yet"})
		return
	}
	h.writeJSON(w, http.StatusOK, stats)
}

func (h *Handler) writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(data); err != nil {
		h.logger.Error("failed to write analytics response", "error", err)
	}
}
