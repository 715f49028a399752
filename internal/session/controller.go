// Package session owns the optimize request lifecycle: the two input
// collections, the single in-flight call and the state every view renders from.
package session

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/piwi3910/slabcut-remote/internal/metrics"
	"github.com/piwi3910/slabcut-remote/internal/model"
	"github.com/piwi3910/slabcut-remote/internal/solver"
)

// ErrPending is returned by Submit while a request is already in flight.
var ErrPending = errors.New("an optimization request is already pending")

// Phase is the lifecycle position of a session.
type Phase int

const (
	PhaseEditing Phase = iota
	PhasePending
	PhaseSuccess
	PhaseFailed
)

func (p Phase) String() string {
	switch p {
	case PhasePending:
		return "pending"
	case PhaseSuccess:
		return "success"
	case PhaseFailed:
		return "failed"
	default:
		return "editing"
	}
}

// State is a snapshot of the session. Result and Request are set only in
// PhaseSuccess; Message only in PhaseFailed.
type State struct {
	Phase   Phase
	Result  *model.OptimizationResult
	Request *model.OptimizationRequest // the request that produced Result
	Message string
}

// Optimizer performs the outbound optimization call.
type Optimizer interface {
	Optimize(ctx context.Context, req model.OptimizationRequest) (model.OptimizationResult, error)
}

// Option customises a Controller.
type Option func(*Controller)

// WithLogger sets the logger used for transition logs.
func WithLogger(l zerolog.Logger) Option {
	return func(c *Controller) { c.log = l }
}

// WithMetrics records submit outcomes on m.
func WithMetrics(m *metrics.Metrics) Option {
	return func(c *Controller) { c.metrics = m }
}

// WithListener registers fn to be called with the new state after every
// transition. It runs on the goroutine that caused the transition, without
// the controller lock held.
func WithListener(fn func(State)) Option {
	return func(c *Controller) { c.listener = fn }
}

// Controller is the request orchestrator. Stock and Pieces belong to the
// caller's editing goroutine; the session state is safe for concurrent use.
type Controller struct {
	Stock  *model.Collection[model.StockUnit]
	Pieces *model.Collection[model.CutPiece]

	optimizer Optimizer
	log       zerolog.Logger
	metrics   *metrics.Metrics
	listener  func(State)

	mu    sync.Mutex
	state State
}

// New creates a controller in PhaseEditing with one blank row per collection.
func New(optimizer Optimizer, opts ...Option) *Controller {
	c := &Controller{
		Stock:     model.NewStockCollection(),
		Pieces:    model.NewPieceCollection(),
		optimizer: optimizer,
		log:       log.Logger.With().Str("component", "session").Logger(),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// State returns a snapshot of the current session state.
func (c *Controller) State() State {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state
}

// Pending reports whether a request is in flight.
func (c *Controller) Pending() bool {
	return c.State().Phase == PhasePending
}

// SubmitCurrent submits the controller's own collections. Call it from the
// goroutine that edits them; it blocks until the request settles.
func (c *Controller) SubmitCurrent(ctx context.Context) (State, error) {
	return c.Submit(ctx, c.Stock.Rows(), c.Pieces.Rows())
}

// Submit validates the rows, sends one optimization request and blocks until
// it settles. It returns ErrPending, with no state change, while another
// submit is in flight. Every other outcome, including a validation failure,
// is reported through the returned State.
func (c *Controller) Submit(ctx context.Context, inventory []model.StockUnit, pieces []model.CutPiece) (State, error) {
	c.mu.Lock()
	if c.state.Phase == PhasePending {
		c.mu.Unlock()
		c.metrics.RecordSubmit(metrics.OutcomeBusy)
		c.log.Debug().Msg("submit ignored, request pending")
		return State{}, ErrPending
	}

	req, err := model.BuildRequest(inventory, pieces)
	if err != nil {
		st := c.transition(State{Phase: PhaseFailed, Message: solver.Classify(err)})
		c.mu.Unlock()
		c.metrics.RecordSubmit(metrics.OutcomeRejected)
		c.log.Info().Str("reason", st.Message).Msg("submit rejected")
		c.notify(st)
		return st, nil
	}

	pending := c.transition(State{Phase: PhasePending})
	c.mu.Unlock()
	c.notify(pending)

	c.metrics.ObserveRequestSize(req.TotalPieces())
	c.log.Info().
		Int("pieces", len(req.Pieces)).
		Int("instances", req.TotalPieces()).
		Int("stock", len(req.Inventory)).
		Msg("optimization submitted")

	start := time.Now()
	result, err := c.optimizer.Optimize(ctx, req)

	var settled State
	if err != nil {
		settled = State{Phase: PhaseFailed, Message: solver.Classify(err)}
		c.metrics.RecordSubmit(metrics.OutcomeFailed)
		c.log.Warn().Err(err).Str("message", settled.Message).Dur("duration", time.Since(start)).Msg("optimization failed")
	} else {
		settled = State{Phase: PhaseSuccess, Result: &result, Request: &req}
		c.metrics.RecordSubmit(metrics.OutcomeSuccess)
		c.log.Info().
			Int("slabs_used", result.SlabUsed).
			Int("unfit", result.UnfitCount()).
			Int("layouts", len(result.Images)).
			Dur("duration", time.Since(start)).
			Msg("optimization succeeded")
	}

	c.mu.Lock()
	settled = c.transition(settled)
	c.mu.Unlock()
	c.notify(settled)
	return settled, nil
}

// Clear drops the last result or error and returns to PhaseEditing. It does
// nothing while a request is pending and reports whether it cleared.
func (c *Controller) Clear() bool {
	c.mu.Lock()
	if c.state.Phase == PhasePending {
		c.mu.Unlock()
		return false
	}
	st := c.transition(State{Phase: PhaseEditing})
	c.mu.Unlock()
	c.notify(st)
	return true
}

// transition must be called with mu held.
func (c *Controller) transition(next State) State {
	c.log.Debug().Str("from", c.state.Phase.String()).Str("to", next.Phase.String()).Msg("session transition")
	c.state = next
	return next
}

func (c *Controller) notify(st State) {
	if c.listener != nil {
		c.listener(st)
	}
}
