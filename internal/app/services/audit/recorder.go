package audit

import (
	"context"
	"encoding/json"
	"os"
	"sync"
	"time"

	"github.com/openpledge/sponsorships/internal/app/domain/audit"
	"github.com/openpledge/sponsorships/internal/app/storage"
	"github.com/openpledge/sponsorships/pkg/logger"
)

// Sink receives every recorded entry in addition to the primary store.
type Sink interface {
	Write(entry audit.Entry) error
}

// Recorder appends change entries to the audit store and any attached sink.
// Recording is best-effort: the audit log is an observer of state changes,
// never a reason to fail them, so errors are logged and swallowed.
type Recorder struct {
	store storage.AuditStore
	sink  Sink
	log   *logger.Logger
}

// NewRecorder creates a recorder writing to the given store.
func NewRecorder(store storage.AuditStore, log *logger.Logger) *Recorder {
	if log == nil {
		log = logger.NewDefault("audit")
	}
	return &Recorder{store: store, log: log}
}

// WithSink attaches an additional sink, e.g. a JSONL file.
func (r *Recorder) WithSink(sink Sink) *Recorder {
	r.sink = sink
	return r
}

// Record appends one change entry.
func (r *Recorder) Record(ctx context.Context, description, actor, oldValue, newValue string) {
	entry := audit.Entry{
		Description: description,
		Actor:       actor,
		OldValue:    oldValue,
		NewValue:    newValue,
		Timestamp:   time.Now().UTC(),
	}

	stored, err := r.store.AppendChange(ctx, entry)
	if err != nil {
		r.log.WithError(err).WithField("description", description).Warn("append audit entry")
		stored = entry
	}

	if r.sink != nil {
		if err := r.sink.Write(stored); err != nil {
			r.log.WithError(err).Warn("write audit entry to sink")
		}
	}
}

// List returns the most recent entries, newest first when backed by SQL.
func (r *Recorder) List(ctx context.Context, limit int) ([]audit.Entry, error) {
	return r.store.ListChanges(ctx, limit)
}

// FileSink appends audit entries as JSONL.
type FileSink struct {
	mu   sync.Mutex
	file *os.File
}

// NewFileSink opens (or creates) the JSONL file at path. An empty path yields
// a nil sink, which callers may pass around safely.
func NewFileSink(path string) (*FileSink, error) {
	if path == "" {
		return nil, nil
	}
	f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o640)
	if err != nil {
		return nil, err
	}
	return &FileSink{file: f}, nil
}

func (s *FileSink) Write(entry audit.Entry) error {
	if s == nil || s.file == nil {
		return nil
	}
	b, err := json.Marshal(entry)
	if err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	_, err = s.file.Write(append(b, '\n'))
	return err
}

// Close releases the underlying file.
func (s *FileSink) Close() error {
	if s == nil || s.file == nil {
		return nil
	}
	return s.file.Close()
}
