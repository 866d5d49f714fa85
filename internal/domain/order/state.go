package order

// State is an order lifecycle state.
type State string

const (
	StateAddingItems        State = "AddingItems"
	StateArrangingPayment   State = "ArrangingPayment"
	StatePaymentAuthorized  State = "PaymentAuthorized"
	StatePaymentSettled     State = "PaymentSettled"
	StatePartiallyShipped   State = "PartiallyShipped"
	StateShipped            State = "Shipped"
	StatePartiallyDelivered State = "PartiallyDelivered"
	StateDelivered          State = "Delivered"
	StateModifying          State = "Modifying"
	StateCancelled          State = "Cancelled"
)

// Terminal reports whether the state admits no further transitions.
func (s State) Terminal() bool {
	return s == StateDelivered || s == StateCancelled
}

// Edge is one legal (from, to) pair in the state graph.
type Edge struct {
	From State
	To   State
}

// StateGraph is the set of legal transitions. The edge set is configuration
// data: downstream deployments extend the default graph before constructing
// the engine rather than patching a hard-coded table.
type StateGraph struct {
	edges map[Edge]struct{}
}

// NewStateGraph builds a graph from the given edges.
func NewStateGraph(edges ...Edge) *StateGraph {
	g := &StateGraph{edges: make(map[Edge]struct{}, len(edges))}
	for _, e := range edges {
		g.edges[e] = struct{}{}
	}
	return g
}

// Add declares an additional legal edge.
func (g *StateGraph) Add(from, to State) *StateGraph {
	g.edges[Edge{From: from, To: to}] = struct{}{}
	return g
}

// Allowed reports whether from -> to is a declared legal edge.
func (g *StateGraph) Allowed(from, to State) bool {
	_, ok := g.edges[Edge{From: from, To: to}]
	return ok
}

// DefaultStateGraph returns the representative order lifecycle: the forward
// fulfillment path, Cancelled reachable from every non-terminal state, and
// the re-entrant Modifying detour for settled orders.
func DefaultStateGraph() *StateGraph {
	forward := []State{
		StateAddingItems,
		StateArrangingPayment,
		StatePaymentAuthorized,
		StatePaymentSettled,
		StatePartiallyShipped,
		StateShipped,
		StatePartiallyDelivered,
		StateDelivered,
	}

	g := NewStateGraph()
	for i := 0; i < len(forward)-1; i++ {
		g.Add(forward[i], forward[i+1])
	}
	// Authorization may settle directly, skipping partial shipment steps.
	g.Add(StateArrangingPayment, StatePaymentSettled)
	g.Add(StatePaymentSettled, StateShipped)
	g.Add(StatePartiallyShipped, StatePartiallyDelivered)
	g.Add(StateShipped, StateDelivered)

	for _, s := range forward[:len(forward)-1] {
		g.Add(s, StateCancelled)
	}
	g.Add(StateModifying, StateCancelled)

	for _, s := range []State{StatePaymentSettled, StatePartiallyShipped, StateShipped} {
		g.Add(s, StateModifying)
		g.Add(StateModifying, s)
	}
	return g
}
