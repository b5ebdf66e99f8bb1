package model

import (
	"errors"
	"strings"
	"time"
)

// EventType classifies a discrete piece of evidence about a tool.
type EventType string

const (
	EventFunding     EventType = "funding"
	EventLaunch      EventType = "launch"
	EventArticle     EventType = "article"
	EventBenchmark   EventType = "benchmark"
	EventPartnership EventType = "partnership"
	EventIncident    EventType = "incident"
)

// EventTypes lists every known type in a stable order.
var EventTypes = []EventType{EventFunding, EventLaunch, EventArticle, EventBenchmark, EventPartnership, EventIncident}

// Known reports whether t is a recognised event type.
func (t EventType) Known() bool {
	for _, k := range EventTypes {
		if t == k {
			return true
		}
	}
	return false
}

// Event is one dated piece of evidence. RawImportance is signed: incidents
// usually carry a negative value.
type Event struct {
	ID            string    `json:"id" yaml:"id"`
	ToolID        string    `json:"tool_id" yaml:"tool_id"`
	Type          EventType `json:"type" yaml:"type"`
	RawImportance float64   `json:"raw_importance" yaml:"raw_importance"`
	Timestamp     time.Time `json:"timestamp" yaml:"timestamp"`
	Title         string    `json:"title,omitempty" yaml:"title"`
}

// Validation errors for events.
var (
	ErrEventToolID    = errors.New("event: missing tool_id")
	ErrEventType      = errors.New("event: unknown type")
	ErrEventTimestamp = errors.New("event: missing timestamp")
)

// Validate checks the fields the decay calculator depends on.
func (e *Event) Validate() error {
	switch {
	case strings.TrimSpace(e.ToolID) == "":
		return ErrEventToolID
	case !e.Type.Known():
		return ErrEventType
	case e.Timestamp.IsZero():
		return ErrEventTimestamp
	}
	return nil
}
