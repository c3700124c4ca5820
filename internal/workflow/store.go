// Package workflow holds the session-wide state shared by the intake and query
// controllers, and the task handles that serialize backend calls.
package workflow

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"localrag/internal/domain"
)

// LatePolicy decides what happens to a backend response that arrives after
// its task was invalidated by navigation.
type LatePolicy int

const (
	// DiscardLate cancels the call on invalidation and drops its outcome.
	DiscardLate LatePolicy = iota
	// ApplyLate lets the call finish and applies its outcome to whatever
	// state is current when it lands.
	ApplyLate
)

func (p LatePolicy) String() string {
	if p == ApplyLate {
		return "apply"
	}
	return "discard"
}

// ParseLatePolicy maps the config value to a policy. Empty means apply.
func ParseLatePolicy(s string) (LatePolicy, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "discard":
		return DiscardLate, nil
	case "", "apply":
		return ApplyLate, nil
	default:
		return ApplyLate, fmt.Errorf("unknown late response policy %q", s)
	}
}

// Store is the shared workflow state. All methods must be called from the
// single event thread; backend I/O never touches the store directly.
type Store struct {
	err     string
	busy    bool
	columns []domain.TabularFile
	query   string
	result  string

	policy   LatePolicy
	base     context.Context
	seq      uint64
	inflight *Task
	log      *slog.Logger
}

// NewStore creates an empty store.
func NewStore(policy LatePolicy, logger *slog.Logger) *Store {
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	return &Store{policy: policy, base: context.Background(), log: logger}
}

// Policy returns the late response policy.
func (s *Store) Policy() LatePolicy { return s.policy }

// Err returns the message currently displayed, or "".
func (s *Store) Err() string { return s.err }

// Busy reports whether a backend call is in flight.
func (s *Store) Busy() bool { return s.busy }

// Columns returns the last known column listing of tabular uploads.
func (s *Store) Columns() []domain.TabularFile { return s.columns }

// Query returns the query text being edited.
func (s *Store) Query() string { return s.query }

// Result returns the last answer.
func (s *Store) Result() string { return s.result }

// Fail displays msg, replacing any previous message.
func (s *Store) Fail(msg string) {
	s.err = msg
}

// ClearError removes the displayed message.
func (s *Store) ClearError() { s.err = "" }

// SetColumns records the column listing returned by an upload.
func (s *Store) SetColumns(cols []domain.TabularFile) { s.columns = cols }

// SetQuery replaces the query text.
func (s *Store) SetQuery(q string) { s.query = q }

// SetResult replaces the displayed answer.
func (s *Store) SetResult(r string) { s.result = r }

// ClearResult removes the displayed answer.
func (s *Store) ClearResult() { s.result = "" }

// ResetQueryState clears the query text and the answer.
func (s *Store) ResetQueryState() {
	s.query = ""
	s.result = ""
}

// InFlight returns the kind of the running task, if any.
func (s *Store) InFlight() (string, bool) {
	if s.inflight == nil {
		return "", false
	}
	return s.inflight.Kind, true
}

// Begin admits a new backend call. It fails while another call is in flight.
// On success the store is busy, the displayed error is cleared and the
// returned task carries the context the call must use.
func (s *Store) Begin(kind string) (*Task, bool) {
	if s.busy {
		s.log.Debug("call rejected while busy", "kind", kind)
		return nil, false
	}
	s.seq++
	ctx, cancel := context.WithCancel(s.base)
	t := &Task{ID: s.seq, Kind: kind, ctx: ctx, cancel: cancel}
	s.inflight = t
	s.busy = true
	s.err = ""
	s.log.Debug("call started", "kind", kind, "task", t.ID)
	return t, true
}

// Settle is called when t's call returns. It reports whether the outcome may
// be applied; a task that was invalidated in the meantime is stale.
func (s *Store) Settle(t *Task) bool {
	if t == nil || s.inflight != t {
		if t != nil {
			s.log.Debug("discarding stale response", "kind", t.Kind, "task", t.ID)
		}
		return false
	}
	t.cancel()
	s.inflight = nil
	s.busy = false
	s.log.Debug("call settled", "kind", t.Kind, "task", t.ID)
	return true
}

// Invalidate detaches the running task on navigation away. Under DiscardLate
// the call is cancelled and busy is released; under ApplyLate nothing changes
// and the late outcome lands when it arrives.
func (s *Store) Invalidate() {
	t := s.inflight
	if t == nil {
		return
	}
	if s.policy == ApplyLate {
		s.log.Debug("leaving call running", "kind", t.Kind, "task", t.ID)
		return
	}
	t.cancel()
	s.inflight = nil
	s.busy = false
	s.log.Debug("call invalidated", "kind", t.Kind, "task", t.ID)
}

// Close cancels any running call. Used on program exit.
func (s *Store) Close() {
	if s.inflight != nil {
		s.inflight.cancel()
	}
}
