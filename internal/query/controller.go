// Package query submits questions against the built index and keeps the most
// recent answer.
package query

import (
	"context"
	"log/slog"

	"localrag/internal/domain"
	"localrag/internal/logging"
	"localrag/internal/workflow"
)

// Messages shown to the user.
const (
	MsgEmptyQuery  = "Enter your query"
	MsgQueryFailed = "Error: Couldn't fetch results"
)

// DefaultSubmitKey is the key that submits the query text.
const DefaultSubmitKey = "enter"

// Port is the subset of the backend used for queries.
type Port interface {
	Query(ctx context.Context, q string) (domain.Answer, error)
}

// Navigator returns the user to the intake screen.
type Navigator interface {
	Back()
}

// Phase is a state of the query state machine.
type Phase int

const (
	PhaseEmpty Phase = iota
	PhaseSubmitting
	PhaseAnswered
	PhaseError
)

func (p Phase) String() string {
	switch p {
	case PhaseSubmitting:
		return "submitting"
	case PhaseAnswered:
		return "answered"
	case PhaseError:
		return "error"
	default:
		return "empty"
	}
}

// Options tune a Controller.
type Options struct {
	SubmitKey string
	Logger    *slog.Logger
}

// Controller owns query submission and the display of a single answer.
type Controller struct {
	store     *workflow.Store
	port      Port
	nav       Navigator
	submitKey string
	log       *slog.Logger
}

// New creates a query controller.
func New(store *workflow.Store, port Port, nav Navigator, opts Options) *Controller {
	key := opts.SubmitKey
	if key == "" {
		key = DefaultSubmitKey
	}
	return &Controller{
		store:     store,
		port:      port,
		nav:       nav,
		submitKey: key,
		log:       logging.OrDiscard(opts.Logger),
	}
}

// SubmitKey returns the key that submits.
func (c *Controller) SubmitKey() string { return c.submitKey }

// Phase derives the current phase from the shared store.
func (c *Controller) Phase() Phase {
	if kind, ok := c.store.InFlight(); ok && kind == "query" {
		return PhaseSubmitting
	}
	if c.store.Err() != "" {
		return PhaseError
	}
	if c.store.Result() != "" {
		return PhaseAnswered
	}
	return PhaseEmpty
}

// SetQuery replaces the query text. Typing clears a stale error.
func (c *Controller) SetQuery(text string) {
	c.store.SetQuery(text)
	if text != "" {
		c.store.ClearError()
	}
}

// Submit sends the query text as typed. It returns nil when no call was
// issued: while busy, or when the text is empty. Whitespace is left for the
// backend to judge.
func (c *Controller) Submit() workflow.Cmd {
	if c.store.Busy() {
		return nil
	}
	c.store.ClearError()
	q := c.store.Query()
	if q == "" {
		c.store.Fail(MsgEmptyQuery)
		return nil
	}
	c.store.ClearResult()
	task, ok := c.store.Begin("query")
	if !ok {
		return nil
	}
	c.log.Info("submitting query", "chars", len(q))
	return func() workflow.Commit {
		ans, err := c.port.Query(task.Context(), q)
		return func() workflow.Cmd {
			if !c.store.Settle(task) {
				return nil
			}
			if err != nil {
				c.log.Warn("query failed", "error", err)
				c.store.Fail(MsgQueryFailed)
				return nil
			}
			c.store.SetResult(ans.Message)
			c.store.SetQuery("")
			return nil
		}
	}
}

// HandleKey submits when key is the configured submit key.
func (c *Controller) HandleKey(key string) workflow.Cmd {
	if key != c.submitKey {
		return nil
	}
	return c.Submit()
}

// GoBack clears the query screen and returns to intake. It is never blocked
// by a call in flight; the call's task is invalidated instead.
func (c *Controller) GoBack() {
	c.store.Invalidate()
	c.store.ResetQueryState()
	c.store.ClearError()
	c.nav.Back()
}
