package analytics

import (
	"context"
	"time"

	"github.com/Adithya-Monish-Kumar-K/BCI-Research-Navigator/internal/indexer"
	"github.com/Adithya-Monish-Kumar-K/BCI-Research-Navigator/internal/indexer/index"
)

// Reloader is the part of *indexer.Engine that rebuilds the index.
type Reloader interface {
	Current() *index.Index
	Reload(ctx context.Context, src indexer.DocumentSource) (*index.Index, error)
}

// RebuildTracker reports every reload through a Tracker, tagged with what
// triggered it.
type RebuildTracker struct {
	Reloader
	tracker Tracker
	trigger string
}

// TrackRebuilds wraps engine. A nil tracker disables reporting.
func TrackRebuilds(engine Reloader, tracker Tracker, trigger string) *RebuildTracker {
	return &RebuildTracker{Reloader: engine, tracker: tracker, trigger: trigger}
}

func (r *RebuildTracker) Reload(ctx context.Context, src indexer.DocumentSource) (*index.Index, error) {
	start := time.Now()
	ix, err := r.Reloader.Reload(ctx, src)
	if r.tracker == nil {
		return ix, err
	}
	event := RebuildEvent{
		Type:      EventRebuild,
		Trigger:   r.trigger,
		Status:    "success",
		LatencyMs: time.Since(start).Milliseconds(),
		Timestamp: time.Now().UTC(),
	}
	if err != nil {
		event.Status = "failed"
		event.Error = err.Error()
		event.Generation = r.Current().Generation()
	} else {
		event.Generation = ix.Generation()
		event.Documents = ix.Len()
		event.Terms = ix.VocabularySize()
	}
	r.tracker.Track(event)
	return ix, err
}
