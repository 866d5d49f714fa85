package order

import (
	"context"
	"time"

	"go.uber.org/zap"
)

// ProcessHook is a registered callback invoked around state transitions. It
// injects business validation without coupling the engine to specific rules.
//
// OnTransitionStart returns an empty string to allow the transition or a
// non-empty veto reason to abort it. OnTransitionEnd runs after the state
// change has been committed; its errors are logged, never propagated.
type ProcessHook interface {
	Name() string
	OnTransitionStart(ctx context.Context, o *Order, from, to State) string
	OnTransitionEnd(ctx context.Context, o *Order, from, to State) error
}

// BaseHook is a no-op ProcessHook for embedding.
type BaseHook struct{}

func (BaseHook) OnTransitionStart(context.Context, *Order, State, State) string { return "" }
func (BaseHook) OnTransitionEnd(context.Context, *Order, State, State) error    { return nil }

// ProcessEngine guards and executes order state transitions. Hooks run in
// registration order; the first veto aborts the transition with the hook's
// reason. The engine never partially applies a transition.
type ProcessEngine struct {
	graph  *StateGraph
	hooks  []ProcessHook
	ledger *Ledger
	lg     *zap.Logger

	now func() time.Time
}

// NewProcessEngine creates a ProcessEngine over the given state graph. The
// hook list is fixed at construction time; the engine does not discover or
// load hooks.
func NewProcessEngine(graph *StateGraph, ledger *Ledger, hooks []ProcessHook, lg *zap.Logger) *ProcessEngine {
	return &ProcessEngine{
		graph:  graph,
		hooks:  hooks,
		ledger: ledger,
		lg:     lg.Named("engine"),
		now:    time.Now,
	}
}

// Transition moves the order to the target state.
//
// A request for an order already in the target state is an idempotent no-op
// success: no hooks run and no history record is appended. An undeclared
// edge fails with IllegalTransitionError; a hook veto fails with
// TransitionVetoedError. Neither corrupts the order.
func (e *ProcessEngine) Transition(ctx context.Context, o *Order, target State, actor string) error {
	from := o.State
	if from == target {
		return nil
	}
	if !e.graph.Allowed(from, target) {
		return &IllegalTransitionError{From: from, To: target}
	}
	// Leaving Modifying is only legal back to where the detour started,
	// even when the graph declares other edges out of it.
	if from == StateModifying && target != StateCancelled && target != o.ResumeState {
		return &IllegalTransitionError{From: from, To: target}
	}

	// All start hooks run before any state is touched, in registration
	// order, stopping at the first veto.
	for _, h := range e.hooks {
		if reason := h.OnTransitionStart(ctx, o, from, target); reason != "" {
			return &TransitionVetoedError{Hook: h.Name(), Reason: reason}
		}
	}

	switch target {
	case StateModifying:
		o.ResumeState = from
	default:
		if from == StateModifying {
			o.ResumeState = ""
		}
	}

	o.State = target
	o.record(ModificationRecord{
		Kind:      ModStateTransition,
		Before:    string(from),
		After:     string(target),
		Actor:     actor,
		Timestamp: e.now(),
	})
	o.raise(StateTransitioned{OrderID: o.ID, From: from, To: target, Actor: actor})

	// Totals are finalized on the committed state, so hooks observing the
	// end of the transition see them fresh.
	if e.ledger != nil {
		if err := e.ledger.Recompute(ctx, o); err != nil {
			e.lg.Error("recompute after transition",
				zap.String("order_id", o.ID),
				zap.String("to", string(target)),
				zap.Error(err))
		}
	}

	// End hooks are best-effort side effects. A failing hook must not roll
	// back an already-committed transition.
	for _, h := range e.hooks {
		if err := h.OnTransitionEnd(ctx, o, from, target); err != nil {
			e.lg.Warn("transition end hook failed",
				zap.String("hook", h.Name()),
				zap.String("order_id", o.ID),
				zap.String("from", string(from)),
				zap.String("to", string(target)),
				zap.Error(err))
		}
	}
	return nil
}

// FulfillmentReadyHook blocks entry into the shipped states while any order
// line is unassigned to a shipping line.
type FulfillmentReadyHook struct {
	BaseHook
}

func (FulfillmentReadyHook) Name() string { return "fulfillment-ready" }

func (FulfillmentReadyHook) OnTransitionStart(_ context.Context, o *Order, _, to State) string {
	if to != StatePartiallyShipped && to != StateShipped {
		return ""
	}
	if !o.FulfillmentReady() {
		return "order has lines without a shipping assignment"
	}
	return ""
}

// NonEmptyOrderHook blocks leaving AddingItems with an empty order.
type NonEmptyOrderHook struct {
	BaseHook
}

func (NonEmptyOrderHook) Name() string { return "non-empty-order" }

func (NonEmptyOrderHook) OnTransitionStart(_ context.Context, o *Order, from, to State) string {
	if from == StateAddingItems && to == StateArrangingPayment && len(o.Lines) == 0 {
		return "order has no lines"
	}
	return ""
}
