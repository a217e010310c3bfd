package events

// StrategyEvent is emitted when the planner chooses a placement strategy.
// Action can be "attempt", "failure", or "greedy_fallback".
type StrategyEvent struct {
	CustomerOrderID string
	Strategy        string
	Action          string
	Err             error
}
