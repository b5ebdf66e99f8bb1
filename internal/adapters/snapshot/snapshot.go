// Package snapshot loads tool metrics and events from YAML files. It stands
// in for the upstream collector that owns the metrics.
package snapshot

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/cespare/xxhash/v2"
	"github.com/okian/toolrank/internal/domain/model"
	"go.yaml.in/yaml/v3"
)

// ErrInvalidSnapshot wraps every decode or validation failure.
var ErrInvalidSnapshot = errors.New("invalid snapshot")

// File is the on-disk layout.
type File struct {
	Tools  []model.ToolMetrics `yaml:"tools"`
	Events []model.Event       `yaml:"events"`
}

// Source supplies the current snapshot.
type Source interface {
	Load(ctx context.Context) (*File, error)
}

// FileSource reads a YAML file on every Load so edits are picked up at the
// next period close.
type FileSource struct {
	Path string
}

// Load implements Source.
func (s FileSource) Load(ctx context.Context) (*File, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	f, err := os.Open(s.Path)
	if err != nil {
		return nil, fmt.Errorf("open snapshot: %w", err)
	}
	defer f.Close()
	return Decode(f)
}

// Static is a Source over an in-memory file.
type Static struct {
	File *File
}

// Load implements Source.
func (s Static) Load(context.Context) (*File, error) {
	if s.File == nil {
		return &File{}, nil
	}
	return s.File, nil
}

// Decode parses and validates a snapshot. Unknown keys are rejected so a
// misspelt signal does not silently score zero.
func Decode(r io.Reader) (*File, error) {
	dec := yaml.NewDecoder(r)
	dec.KnownFields(true)
	var f File
	if err := dec.Decode(&f); err != nil && !errors.Is(err, io.EOF) {
		return nil, fmt.Errorf("%w: %v", ErrInvalidSnapshot, err)
	}
	f.AssignEventIDs()
	if err := f.Validate(); err != nil {
		return nil, err
	}
	return &f, nil
}

// Validate checks identities; metric values are left to the data-quality
// audit.
func (f *File) Validate() error {
	seen := make(map[string]bool, len(f.Tools))
	for i, t := range f.Tools {
		id := strings.TrimSpace(t.ID)
		if id == "" {
			return fmt.Errorf("%w: tool %d has no id", ErrInvalidSnapshot, i)
		}
		if seen[id] {
			return fmt.Errorf("%w: duplicate tool id %q", ErrInvalidSnapshot, id)
		}
		seen[id] = true
	}
	for i := range f.Events {
		if err := f.Events[i].Validate(); err != nil {
			return fmt.Errorf("%w: event %d (%s): %v", ErrInvalidSnapshot, i, f.Events[i].ID, err)
		}
	}
	return nil
}

// AssignEventIDs gives every event without an id its EventID. Reordering the
// file keeps the ids, so a re-close does not log an event twice.
func (f *File) AssignEventIDs() {
	for i := range f.Events {
		if strings.TrimSpace(f.Events[i].ID) == "" {
			f.Events[i].ID = EventID(f.Events[i])
		}
	}
}

// EventID derives a stable id from an event's content. Two events with the
// same tool, type, timestamp, importance and title share an id and are
// logged once.
func EventID(e model.Event) string {
	d := xxhash.New()
	for _, part := range []string{
		e.ToolID,
		string(e.Type),
		e.Timestamp.UTC().Format(time.RFC3339Nano),
		strconv.FormatFloat(e.RawImportance, 'g', -1, 64),
		e.Title,
	} {
		_, _ = d.WriteString(part)
		_, _ = d.Write([]byte{0})
	}
	return "seed-" + strconv.FormatUint(d.Sum64(), 16)
}
