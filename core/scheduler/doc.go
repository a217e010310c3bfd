// Package scheduler turns pending customer orders into queued dispatch
// orders. It runs bounded rolling passes over the order book, splitting each
// remainder into batches and placing them through the dispatch planner
// against the speculative tail state of the queue. Orders that stay
// unplaceable after the last pass are surfaced as CONFLICT markers.
package scheduler
