package session

import (
	"context"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/piwi3910/slabcut-remote/internal/metrics"
	"github.com/piwi3910/slabcut-remote/internal/model"
	"github.com/piwi3910/slabcut-remote/internal/solver"
)

// blockingOptimizer holds every call until release is closed.
type blockingOptimizer struct {
	calls   atomic.Int32
	started chan model.OptimizationRequest
	release chan struct{}
	result  model.OptimizationResult
	err     error
}

func newBlockingOptimizer() *blockingOptimizer {
	return &blockingOptimizer{
		started: make(chan model.OptimizationRequest, 4),
		release: make(chan struct{}),
	}
}

func (b *blockingOptimizer) Optimize(ctx context.Context, req model.OptimizationRequest) (model.OptimizationResult, error) {
	b.calls.Add(1)
	b.started <- req
	<-b.release
	return b.result, b.err
}

// funcOptimizer adapts a function to Optimizer.
type funcOptimizer func(context.Context, model.OptimizationRequest) (model.OptimizationResult, error)

func (f funcOptimizer) Optimize(ctx context.Context, req model.OptimizationRequest) (model.OptimizationResult, error) {
	return f(ctx, req)
}

func validInputs() ([]model.StockUnit, []model.CutPiece) {
	inv := []model.StockUnit{{ID: "S1", Width: model.NumberField(50), Length: model.NumberField(50)}}
	pieces := []model.CutPiece{{ID: "P1", Width: model.NumberField(10), Length: model.NumberField(10), Quantity: model.NumberField(2)}}
	return inv, pieces
}

func newController(opt Optimizer, opts ...Option) *Controller {
	return New(opt, append([]Option{WithLogger(zerolog.Nop())}, opts...)...)
}

func TestNewControllerStartsEditing(t *testing.T) {
	c := newController(nil)
	assert.Equal(t, PhaseEditing, c.State().Phase)
	assert.Equal(t, 1, c.Stock.Len())
	assert.Equal(t, 1, c.Pieces.Len())
}

func TestSubmitSuccessAllFit(t *testing.T) {
	opt := funcOptimizer(func(_ context.Context, req model.OptimizationRequest) (model.OptimizationResult, error) {
		return model.OptimizationResult{SlabUsed: 1, UnfittedPieceID: []string{}, Images: []string{"ref1"}}, nil
	})
	c := newController(opt)
	inv, pieces := validInputs()

	st, err := c.Submit(context.Background(), inv, pieces)
	require.NoError(t, err)
	require.Equal(t, PhaseSuccess, st.Phase)
	require.NotNil(t, st.Result)
	assert.True(t, st.Result.AllFit())
	assert.Equal(t, 1, st.Result.SlabUsed)
	require.NotNil(t, st.Request)
	assert.Equal(t, 2, st.Request.TotalPieces())
	assert.Equal(t, st, c.State())
}

func TestSubmitValidationFailureMakesNoCall(t *testing.T) {
	var calls atomic.Int32
	opt := funcOptimizer(func(context.Context, model.OptimizationRequest) (model.OptimizationResult, error) {
		calls.Add(1)
		return model.OptimizationResult{}, nil
	})
	m := metrics.New()
	c := newController(opt, WithMetrics(m))
	_, pieces := validInputs()

	st, err := c.Submit(context.Background(), []model.StockUnit{model.NewStockUnit("S1")}, pieces)
	require.NoError(t, err)
	assert.Equal(t, PhaseFailed, st.Phase)
	assert.Equal(t, model.MsgNeedValidSlab, st.Message)
	assert.Nil(t, st.Result)
	assert.Equal(t, int32(0), calls.Load())
	assert.Equal(t, 1.0, testutil.ToFloat64(m.SubmitsTotal.WithLabelValues(metrics.OutcomeRejected)))

	inv, _ := validInputs()
	st, _ = c.Submit(context.Background(), inv, nil)
	assert.Equal(t, model.MsgNeedValidPiece, st.Message)
	assert.Equal(t, int32(0), calls.Load())
}

func TestSubmitWhilePendingIsRejected(t *testing.T) {
	opt := newBlockingOptimizer()
	c := newController(opt)
	inv, pieces := validInputs()

	done := make(chan State, 1)
	go func() {
		st, _ := c.Submit(context.Background(), inv, pieces)
		done <- st
	}()
	first := <-opt.started
	require.Equal(t, PhasePending, c.State().Phase)

	otherInv := []model.StockUnit{{ID: "S9", Width: model.NumberField(1), Length: model.NumberField(1)}}
	_, err := c.Submit(context.Background(), otherInv, pieces)
	assert.ErrorIs(t, err, ErrPending)
	assert.Equal(t, PhasePending, c.State().Phase)
	assert.Equal(t, int32(1), opt.calls.Load())
	assert.Equal(t, "S1", first.Inventory[0].ID)

	opt.result = model.OptimizationResult{SlabUsed: 1, Images: []string{"r"}}
	close(opt.release)
	st := <-done
	assert.Equal(t, PhaseSuccess, st.Phase)
	assert.Equal(t, "S1", st.Request.Inventory[0].ID)
	assert.Equal(t, int32(1), opt.calls.Load())
}

func TestClearWhilePendingKeepsPending(t *testing.T) {
	opt := newBlockingOptimizer()
	c := newController(opt)
	inv, pieces := validInputs()

	done := make(chan struct{})
	go func() {
		_, _ = c.Submit(context.Background(), inv, pieces)
		close(done)
	}()
	<-opt.started

	assert.False(t, c.Clear())
	assert.Equal(t, PhasePending, c.State().Phase)

	close(opt.release)
	<-done
	assert.True(t, c.Clear())
	assert.Equal(t, PhaseEditing, c.State().Phase)
	assert.Nil(t, c.State().Result)
}

func TestSubmitDiscardsStaleResult(t *testing.T) {
	opt := newBlockingOptimizer()
	opt.result = model.OptimizationResult{SlabUsed: 3, Images: []string{"a"}}
	close(opt.release)
	c := newController(opt)
	inv, pieces := validInputs()

	st, _ := c.Submit(context.Background(), inv, pieces)
	<-opt.started
	require.Equal(t, PhaseSuccess, st.Phase)

	var seen []State
	var mu sync.Mutex
	c.listener = func(s State) {
		mu.Lock()
		seen = append(seen, s)
		mu.Unlock()
	}
	opt.err = errors.New("network down")
	st, _ = c.Submit(context.Background(), inv, pieces)
	<-opt.started

	assert.Equal(t, PhaseFailed, st.Phase)
	assert.Equal(t, "network down", st.Message)
	assert.Nil(t, st.Result)
	require.Len(t, seen, 2)
	assert.Equal(t, PhasePending, seen[0].Phase)
	assert.Nil(t, seen[0].Result)
}

func TestFailureThenRetry(t *testing.T) {
	var fail atomic.Bool
	fail.Store(true)
	opt := funcOptimizer(func(context.Context, model.OptimizationRequest) (model.OptimizationResult, error) {
		if fail.Load() {
			return model.OptimizationResult{}, &solver.HTTPError{StatusCode: 500, Body: []byte(`{"error":"busy"}`)}
		}
		return model.OptimizationResult{SlabUsed: 1, Images: []string{"x"}}, nil
	})
	c := newController(opt)
	inv, pieces := validInputs()

	st, _ := c.Submit(context.Background(), inv, pieces)
	assert.Equal(t, PhaseFailed, st.Phase)
	assert.Equal(t, "busy", st.Message)

	fail.Store(false)
	st, _ = c.Submit(context.Background(), inv, pieces)
	assert.Equal(t, PhaseSuccess, st.Phase)
}

func TestListenerSeesEveryTransition(t *testing.T) {
	opt := funcOptimizer(func(context.Context, model.OptimizationRequest) (model.OptimizationResult, error) {
		return model.OptimizationResult{}, nil
	})
	var phases []Phase
	c := newController(opt, WithListener(func(s State) { phases = append(phases, s.Phase) }))
	inv, pieces := validInputs()

	_, _ = c.Submit(context.Background(), inv, pieces)
	c.Clear()
	_, _ = c.Submit(context.Background(), nil, nil)

	assert.Equal(t, []Phase{PhasePending, PhaseSuccess, PhaseEditing, PhaseFailed}, phases)
}

func TestSubmitCurrentUsesCollections(t *testing.T) {
	var got model.OptimizationRequest
	opt := funcOptimizer(func(_ context.Context, req model.OptimizationRequest) (model.OptimizationResult, error) {
		got = req
		return model.OptimizationResult{}, nil
	})
	c := newController(opt)
	require.NoError(t, c.Stock.Update(0, model.FieldWidth, "2440"))
	require.NoError(t, c.Stock.Update(0, model.FieldLength, "1220"))
	c.Stock.Add() // blank row is dropped
	require.NoError(t, c.Pieces.Update(0, model.FieldWidth, "600"))
	require.NoError(t, c.Pieces.Update(0, model.FieldLength, "400"))
	require.NoError(t, c.Pieces.Update(0, model.FieldQuantity, "3"))

	st, err := c.SubmitCurrent(context.Background())
	require.NoError(t, err)
	assert.Equal(t, PhaseSuccess, st.Phase)
	assert.Equal(t, []model.StockSpec{{ID: "S1", Width: 2440, Length: 1220}}, got.Inventory)
	assert.Equal(t, []model.PieceSpec{{ID: "P1", Width: 600, Length: 400, Quantity: 3}}, got.Pieces)
}

func TestPhaseString(t *testing.T) {
	assert.Equal(t, "editing", PhaseEditing.String())
	assert.Equal(t, "pending", PhasePending.String())
	assert.Equal(t, "success", PhaseSuccess.String())
	assert.Equal(t, "failed", PhaseFailed.String())
}

// ─── Against a live HTTP service ───────────────────────────

func TestEndToEndAllFit(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = io.WriteString(w, `{"slabUsed":1,"unfittedPieceId":[],"image":["ref1"]}`)
	}))
	defer srv.Close()

	client, err := solver.New(solver.Config{Endpoint: srv.URL + "/optimize"}, solver.WithLogger(zerolog.Nop()))
	require.NoError(t, err)
	c := newController(client)
	inv, pieces := validInputs()

	st, err := c.Submit(context.Background(), inv, pieces)
	require.NoError(t, err)
	require.Equal(t, PhaseSuccess, st.Phase)
	assert.True(t, st.Result.AllFit())
	assert.Equal(t, []string{"ref1"}, st.Result.Images)
}

func TestEndToEndServerError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
		_, _ = io.WriteString(w, `{"message":"solver crashed"}`)
	}))
	defer srv.Close()

	client, err := solver.New(solver.Config{Endpoint: srv.URL}, solver.WithLogger(zerolog.Nop()))
	require.NoError(t, err)
	c := newController(client)
	inv, pieces := validInputs()

	st, _ := c.Submit(context.Background(), inv, pieces)
	assert.Equal(t, PhaseFailed, st.Phase)
	assert.Contains(t, st.Message, "solver crashed")
	assert.Nil(t, st.Result)
}

func TestEndToEndMalformedBody(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = io.WriteString(w, `<html>oops</html>`)
	}))
	defer srv.Close()

	client, err := solver.New(solver.Config{Endpoint: srv.URL}, solver.WithLogger(zerolog.Nop()))
	require.NoError(t, err)
	c := newController(client)
	inv, pieces := validInputs()

	st, _ := c.Submit(context.Background(), inv, pieces)
	assert.Equal(t, PhaseFailed, st.Phase)
	assert.Contains(t, st.Message, "malformed response")
}

func TestEndToEndUnreachable(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	url := srv.URL
	srv.Close()

	client, err := solver.New(solver.Config{Endpoint: url, Timeout: 2 * time.Second}, solver.WithLogger(zerolog.Nop()))
	require.NoError(t, err)
	c := newController(client)
	inv, pieces := validInputs()

	st, _ := c.Submit(context.Background(), inv, pieces)
	assert.Equal(t, PhaseFailed, st.Phase)
	assert.NotEmpty(t, st.Message)

	// retry-ready
	assert.True(t, c.Clear())
}
