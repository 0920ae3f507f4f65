// Package analytics tracks how the navigator is used: which queries are
// asked, which come back empty, how long they take and how index rebuilds
// fare. Events flow from the search handler through a Collector to Kafka
// and are folded into running totals by the Aggregator.
package analytics

import (
	"encoding/json"
	"fmt"
	"strings"
	"time"
)

type EventType string

const (
	EventSearch  EventType = "search"
	EventRelated EventType = "related"
	EventRebuild EventType = "rebuild"
)

// Event is anything the collector can publish.
type Event interface {
	Kind() EventType
}

type SearchEvent struct {
	Type       EventType `json:"type"`
	Query      string    `json:"query"`
	Terms      []string  `json:"terms"`
	Filter     string    `json:"filter,omitempty"`
	Generation string    `json:"generation"`
	TotalHits  int       `json:"total_hits"`
	Returned   int       `json:"returned"`
	LatencyMs  int64     `json:"latency_ms"`
	CacheHit   bool      `json:"cache_hit"`
	Timestamp  time.Time `json:"timestamp"`
	RequestID  string    `json:"request_id,omitempty"`
}

func (e SearchEvent) Kind() EventType {
	if e.Type == "" {
		return EventSearch
	}
	return e.Type
}

type RebuildEvent struct {
	Type       EventType `json:"type"`
	Trigger    string    `json:"trigger"`
	Status     string    `json:"status"`
	Generation string    `json:"generation,omitempty"`
	Documents  int       `json:"documents"`
	Terms      int       `json:"terms"`
	LatencyMs  int64     `json:"latency_ms"`
	Error      string    `json:"error,omitempty"`
	Timestamp  time.Time `json:"timestamp"`
}

func (e RebuildEvent) Kind() EventType { return EventRebuild }

// DecodeEvent turns a published payload back into a typed event.
func DecodeEvent(data []byte) (Event, error) {
	var probe struct {
		Type EventType `json:"type"`
	}
	if err := json.Unmarshal(data, &probe); err != nil {
		return nil, fmt.Errorf("decoding event type: %w", err)
	}
	switch probe.Type {
	case EventSearch, EventRelated:
		var e SearchEvent
		if err := json.Unmarshal(data, &e); err != nil {
			return nil, fmt.Errorf("decoding search event: %w", err)
		}
		return e, nil
	case EventRebuild:
		var e RebuildEvent
		if err := json.Unmarshal(data, &e); err != nil {
			return nil, fmt.Errorf("decoding rebuild event: %w", err)
		}
		return e, nil
	default:
		return nil, fmt.Errorf("unknown event type %q", probe.Type)
	}
}

// normalizeQuery collapses whitespace so "a  b" and "a b" count together.
// Case is kept: AND and NOT are operators in boolean mode.
func normalizeQuery(q string) string {
	return strings.Join(strings.Fields(q), " ")
}
