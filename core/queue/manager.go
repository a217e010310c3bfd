// Package queue maintains the ordered list of pending dispatch orders and the
// chain of speculative resource states derived from the committed one. Every
// mutation rebuilds the chain by replaying the queue in order, so each queued
// order always sees the state left behind by its predecessors.
package queue

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/oilroute/dispatch/core/events"
	"github.com/oilroute/dispatch/core/logger"
	"github.com/oilroute/dispatch/core/model"
	"github.com/oilroute/dispatch/core/queue/logging"
	"github.com/oilroute/dispatch/core/state"
	"github.com/oilroute/dispatch/internal/eventbus"
)

var (
	ErrDuplicateOrder     = errors.New("order id already queued")
	ErrUnknownOrder       = errors.New("order not found in queue")
	ErrPositionOutOfRange = errors.New("insert position out of range")
	ErrNotHead            = errors.New("order is not at the head of the queue")
	ErrEmptyQueue         = errors.New("queue is empty")
)

// DefaultFlowRate is the pipeline throughput assumed when no segment data is
// available, in cubic meters per hour.
const DefaultFlowRate = 500.0

// minTransferDuration keeps degenerate volumes from producing zero-length
// schedule slots.
const minTransferDuration = time.Minute

// Manager owns the dispatch queue for one network. All methods are safe for
// concurrent use.
type Manager struct {
	mu       sync.Mutex
	real     *state.ResourceState
	queue    []model.DispatchOrder
	registry map[string]model.DispatchOrder
	virtual  map[string]*state.ResourceState
	chain    []*state.ResourceState
	rate     float64
	bus      eventbus.EventBus
	store    logging.Store
	log      logger.Logger
	now      func() time.Time
}

// NewManager creates a queue manager over the committed state. The bus and
// store may be nil; mutations are then applied silently.
func NewManager(real *state.ResourceState, rate float64, bus eventbus.EventBus, store logging.Store, log logger.Logger) (*Manager, error) {
	if real == nil {
		return nil, errors.New("queue: real state is required")
	}
	if log == nil {
		return nil, errors.New("queue: logger is required")
	}
	if rate <= 0 {
		rate = DefaultFlowRate
	}
	if store == nil {
		store = logging.NopStore{}
	}
	return &Manager{
		real:     real,
		registry: make(map[string]model.DispatchOrder),
		virtual:  make(map[string]*state.ResourceState),
		rate:     rate,
		bus:      bus,
		store:    store,
		log:      log,
		now:      time.Now,
	}, nil
}

// SetClock overrides the time source, for tests.
func (m *Manager) SetClock(now func() time.Time) {
	m.mu.Lock()
	m.now = now
	m.mu.Unlock()
}

// NewOrderID returns a fresh dispatch order identifier.
func NewOrderID(now time.Time) string {
	suffix := strings.ReplaceAll(uuid.NewString(), "-", "")[:8]
	return fmt.Sprintf("DISPATCH_%d_%s", now.Unix(), suffix)
}

// EstimateDuration returns the transfer duration for the volume at the
// manager's flow rate, adjusted for the grade's viscosity.
func (m *Manager) EstimateDuration(volume float64, oil model.OilType) time.Duration {
	return estimateDuration(volume, m.rate, oil)
}

func estimateDuration(volume, rate float64, oil model.OilType) time.Duration {
	if volume <= 0 || rate <= 0 {
		return minTransferDuration
	}
	hours := volume / (rate * oil.FlowModifier())
	d := time.Duration(hours * float64(time.Hour))
	if d < minTransferDuration {
		d = minTransferDuration
	}
	return d
}

// Bootstrap seeds an empty queue from previously persisted orders. Orders are
// sorted by start time with priority breaking ties (highest first), and each
// missing or overlapping window is re-anchored behind its predecessor with the
// duration preserved.
func (m *Manager) Bootstrap(orders []model.DispatchOrder) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if len(m.queue) > 0 {
		return errors.New("queue: bootstrap requires an empty queue")
	}
	now := m.now()
	seen := make(map[string]bool, len(orders))
	queue := make([]model.DispatchOrder, 0, len(orders))
	for _, o := range orders {
		o = o.Clone()
		if o.ID == "" {
			o.ID = NewOrderID(now)
		}
		if seen[o.ID] {
			return fmt.Errorf("order %q: %w", o.ID, ErrDuplicateOrder)
		}
		seen[o.ID] = true
		if o.CreatedAt.IsZero() {
			o.CreatedAt = now
		}
		o.Status = model.StatusScheduled
		queue = append(queue, o)
	}
	sort.SliceStable(queue, func(i, j int) bool {
		if queue[i].Start.Equal(queue[j].Start) {
			return queue[i].Priority > queue[j].Priority
		}
		return queue[i].Start.Before(queue[j].Start)
	})
	t := now
	for i := range queue {
		dur := queue[i].End.Sub(queue[i].Start)
		if dur <= 0 {
			dur = estimateDuration(queue[i].Volume, m.rate, queue[i].OilType)
		}
		if queue[i].Start.IsZero() || queue[i].Start.Before(t) {
			queue[i].Start = t
		}
		queue[i].End = queue[i].Start.Add(dur)
		t = queue[i].End
	}
	m.queue = queue
	m.recomputeLocked()
	if len(m.queue) > 0 {
		m.record(logging.ActionBootstrap, m.queue[0], fmt.Sprintf("%d orders restored", len(m.queue)))
	}
	m.log.Infof("queue bootstrapped with %d orders", len(m.queue))
	return nil
}

// Add appends the order to the tail of the queue. A missing id is generated,
// a window that is zero or would overlap the current tail is anchored behind
// it (a start already past the tail is kept), and the virtual state chain is
// rebuilt. The scheduled copy of the order is returned.
func (m *Manager) Add(order model.DispatchOrder) (model.DispatchOrder, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.insertLocked(order, len(m.queue))
}

// InsertAt places the order at the given queue position. Position 0 preempts
// the current head; out-of-range positions are clamped to [0, len].
func (m *Manager) InsertAt(order model.DispatchOrder, pos int) (model.DispatchOrder, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if pos < 0 {
		pos = 0
	}
	if pos > len(m.queue) {
		pos = len(m.queue)
	}
	return m.insertLocked(order, pos)
}

// InsertBefore places the order immediately before the referenced order.
func (m *Manager) InsertBefore(order model.DispatchOrder, refID string) (model.DispatchOrder, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	idx := m.indexLocked(refID)
	if idx < 0 {
		return model.DispatchOrder{}, fmt.Errorf("reference %q: %w", refID, ErrUnknownOrder)
	}
	return m.insertLocked(order, idx)
}

// InsertAfter places the order immediately after the referenced order.
func (m *Manager) InsertAfter(order model.DispatchOrder, refID string) (model.DispatchOrder, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	idx := m.indexLocked(refID)
	if idx < 0 {
		return model.DispatchOrder{}, fmt.Errorf("reference %q: %w", refID, ErrUnknownOrder)
	}
	return m.insertLocked(order, idx+1)
}

func (m *Manager) insertLocked(order model.DispatchOrder, pos int) (model.DispatchOrder, error) {
	now := m.now()
	if order.ID == "" {
		order.ID = NewOrderID(now)
	}
	if _, dup := m.registry[order.ID]; dup {
		return model.DispatchOrder{}, fmt.Errorf("order %q: %w", order.ID, ErrDuplicateOrder)
	}
	if order.CreatedAt.IsZero() {
		order.CreatedAt = now
	}
	order.Status = model.StatusScheduled

	dur := order.End.Sub(order.Start)
	if dur <= 0 {
		dur = estimateDuration(order.Volume, m.rate, order.OilType)
	}
	// The anchor only repairs overlaps with the predecessor: an order whose
	// own start lies past the anchor keeps it, so planned windows are never
	// pulled earlier than computed.
	start := m.anchorLocked(pos, now)
	if order.Start.After(start) {
		start = order.Start
	}
	order.Start = start
	order.End = start.Add(dur)

	m.queue = append(m.queue, model.DispatchOrder{})
	copy(m.queue[pos+1:], m.queue[pos:])
	m.queue[pos] = order

	// Orders behind the insertion point keep their windows; Validate or
	// RescheduleFromNow surfaces and repairs any resulting overlap.
	m.recomputeLocked()
	queued := m.queue[pos].Clone()

	m.publish(events.OrderQueuedEvent{Order: queued, Position: pos})
	action := logging.ActionAdd
	if pos != len(m.queue)-1 {
		action = logging.ActionInsert
	}
	m.record(action, queued, "")
	m.log.Infof("order %s queued at position %d (%s -> %s, %.1f m3)",
		queued.ID, pos, queued.SourceTankID, queued.TargetTankID, queued.Volume)
	return queued, nil
}

// anchorLocked returns the start time for an order entering at pos: the head
// slot starts no earlier than the displaced head did, every other slot starts
// when its predecessor ends.
func (m *Manager) anchorLocked(pos int, now time.Time) time.Time {
	if pos == 0 {
		if len(m.queue) > 0 && m.queue[0].Start.After(now) {
			return m.queue[0].Start
		}
		return now
	}
	return m.queue[pos-1].End
}

// Remove drops the order from the queue without committing it.
func (m *Manager) Remove(id string) error {
	return m.remove(id, false)
}

// Cancel drops the order and marks it cancelled in the removal event and the
// mutation log.
func (m *Manager) Cancel(id string) error {
	return m.remove(id, true)
}

func (m *Manager) remove(id string, cancelled bool) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	idx := m.indexLocked(id)
	if idx < 0 {
		return fmt.Errorf("order %q: %w", id, ErrUnknownOrder)
	}
	order := m.queue[idx]
	m.queue = append(m.queue[:idx], m.queue[idx+1:]...)
	if cancelled {
		order.Status = model.StatusCancelled
	}
	m.recomputeLocked()

	m.publish(events.OrderRemovedEvent{Order: order.Clone(), Cancelled: cancelled})
	action := logging.ActionRemove
	if cancelled {
		action = logging.ActionCancel
	}
	m.record(action, order, "")
	m.log.Infof("order %s removed from queue (cancelled=%v)", order.ID, cancelled)
	return nil
}

// Move repositions a queued order, re-anchoring its time window at the new
// slot.
func (m *Manager) Move(id string, pos int) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	idx := m.indexLocked(id)
	if idx < 0 {
		return fmt.Errorf("order %q: %w", id, ErrUnknownOrder)
	}
	if pos < 0 || pos >= len(m.queue) {
		return fmt.Errorf("position %d with %d queued: %w", pos, len(m.queue), ErrPositionOutOfRange)
	}
	if pos == idx {
		return nil
	}
	order := m.queue[idx]
	m.queue = append(m.queue[:idx], m.queue[idx+1:]...)

	dur := order.End.Sub(order.Start)
	order.Start = m.anchorLocked(pos, m.now())
	order.End = order.Start.Add(dur)

	m.queue = append(m.queue, model.DispatchOrder{})
	copy(m.queue[pos+1:], m.queue[pos:])
	m.queue[pos] = order
	m.recomputeLocked()

	m.record(logging.ActionMove, order, fmt.Sprintf("from %d to %d", idx, pos))
	m.log.Debugf("order %s moved from position %d to %d", order.ID, idx, pos)
	return nil
}

// Complete commits the head order into the real state. Completing any other
// order is rejected; the queue executes strictly front to back.
func (m *Manager) Complete(id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if len(m.queue) == 0 {
		return ErrEmptyQueue
	}
	if m.queue[0].ID != id {
		return fmt.Errorf("order %q behind %q: %w", id, m.queue[0].ID, ErrNotHead)
	}
	order := m.queue[0]
	next, err := m.real.Apply(order)
	if err != nil {
		order.Status = model.StatusConflict
		m.queue[0] = order
		m.registry[order.ID] = order
		m.record(logging.ActionConflict, order, err.Error())
		return fmt.Errorf("commit order %q: %w", id, err)
	}
	m.real = next
	order.Status = model.StatusCompleted
	m.queue = m.queue[1:]
	m.recomputeLocked()

	m.publish(events.OrderCompletedEvent{Order: order.Clone()})
	m.record(logging.ActionComplete, order, "")
	m.log.Infof("order %s completed, %d remaining", order.ID, len(m.queue))
	return nil
}

// RescheduleFromNow re-anchors the whole queue sequentially starting at the
// current time, preserving each order's duration.
func (m *Manager) RescheduleFromNow() {
	m.mu.Lock()
	defer m.mu.Unlock()
	t := m.now()
	for i := range m.queue {
		dur := m.queue[i].End.Sub(m.queue[i].Start)
		if dur <= 0 {
			dur = estimateDuration(m.queue[i].Volume, m.rate, m.queue[i].OilType)
		}
		m.queue[i].Start = t
		m.queue[i].End = t.Add(dur)
		t = m.queue[i].End
	}
	m.recomputeLocked()
	if len(m.queue) > 0 {
		m.record(logging.ActionReschedule, m.queue[0], fmt.Sprintf("%d orders re-anchored", len(m.queue)))
	}
	m.log.Infof("queue rescheduled from now, %d orders", len(m.queue))
}

// ValidationIssue describes one invariant violation found by Validate.
type ValidationIssue struct {
	OrderID string
	Reason  string
}

// Validate checks queue invariants: unique ids, well-formed time windows,
// no overlap with the predecessor, and no expired non-terminal orders.
func (m *Manager) Validate() []ValidationIssue {
	m.mu.Lock()
	defer m.mu.Unlock()
	now := m.now()
	var issues []ValidationIssue
	seen := make(map[string]bool, len(m.queue))
	for i, o := range m.queue {
		if seen[o.ID] {
			issues = append(issues, ValidationIssue{OrderID: o.ID, Reason: "duplicate order id"})
		}
		seen[o.ID] = true
		if o.Start.IsZero() {
			issues = append(issues, ValidationIssue{OrderID: o.ID, Reason: "missing start time"})
		}
		if !o.End.After(o.Start) {
			issues = append(issues, ValidationIssue{OrderID: o.ID, Reason: "end not after start"})
		}
		if i > 0 && o.Start.Before(m.queue[i-1].End) {
			issues = append(issues, ValidationIssue{
				OrderID: o.ID,
				Reason:  fmt.Sprintf("overlaps predecessor %s", m.queue[i-1].ID),
			})
		}
		if o.End.Before(now) && !o.Status.Terminal() {
			issues = append(issues, ValidationIssue{OrderID: o.ID, Reason: "time window expired"})
		}
	}
	return issues
}

// ConflictPair is a couple of queued orders with overlapping time windows.
type ConflictPair struct {
	First  model.DispatchOrder
	Second model.DispatchOrder
}

// ConflictingOrders returns every pair of queued orders whose windows overlap.
func (m *Manager) ConflictingOrders() []ConflictPair {
	m.mu.Lock()
	defer m.mu.Unlock()
	var pairs []ConflictPair
	for i := 0; i < len(m.queue); i++ {
		for j := i + 1; j < len(m.queue); j++ {
			a, b := m.queue[i], m.queue[j]
			if a.Start.Before(b.End) && b.Start.Before(a.End) {
				pairs = append(pairs, ConflictPair{First: a.Clone(), Second: b.Clone()})
			}
		}
	}
	return pairs
}

// NextOrder returns the queue head without removing it.
func (m *Manager) NextOrder() (model.DispatchOrder, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if len(m.queue) == 0 {
		return model.DispatchOrder{}, false
	}
	return m.queue[0].Clone(), true
}

// Orders returns a copy of the queue in execution order.
func (m *Manager) Orders() []model.DispatchOrder {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]model.DispatchOrder, len(m.queue))
	for i, o := range m.queue {
		out[i] = o.Clone()
	}
	return out
}

// OrdersBySite returns every queued order for the site, sorted by start
// time. History including completed and cancelled orders is served by the
// mutation log store.
func (m *Manager) OrdersBySite(siteID string) []model.DispatchOrder {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.filterRegistryLocked(func(o model.DispatchOrder) bool { return o.SiteID == siteID })
}

// OrdersByStatus returns every queued order with the status, sorted by start
// time.
func (m *Manager) OrdersByStatus(status model.OrderStatus) []model.DispatchOrder {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.filterRegistryLocked(func(o model.DispatchOrder) bool { return o.Status == status })
}

func (m *Manager) filterRegistryLocked(keep func(model.DispatchOrder) bool) []model.DispatchOrder {
	var out []model.DispatchOrder
	for _, o := range m.registry {
		if keep(o) {
			out = append(out, o.Clone())
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Start.Equal(out[j].Start) {
			return out[i].ID < out[j].ID
		}
		return out[i].Start.Before(out[j].Start)
	})
	return out
}

// Order looks up a registered order by id.
func (m *Manager) Order(id string) (model.DispatchOrder, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	o, ok := m.registry[id]
	if !ok {
		return model.DispatchOrder{}, false
	}
	return o.Clone(), true
}

// RealState returns a copy of the committed state.
func (m *Manager) RealState() *state.ResourceState {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.real.Clone()
}

// VirtualState returns the speculative state reached after the given queued
// order executes.
func (m *Manager) VirtualState(orderID string) (*state.ResourceState, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	s, ok := m.virtual[orderID]
	if !ok {
		return nil, false
	}
	return s.Clone(), true
}

// TailState returns the state after the entire queue executes. With an empty
// queue this is the committed state.
func (m *Manager) TailState() *state.ResourceState {
	m.mu.Lock()
	defer m.mu.Unlock()
	if len(m.chain) == 0 {
		return m.real.Clone()
	}
	return m.chain[len(m.chain)-1].Clone()
}

// StateChain returns copies of the speculative states in queue order.
func (m *Manager) StateChain() []*state.ResourceState {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]*state.ResourceState, len(m.chain))
	for i, s := range m.chain {
		out[i] = s.Clone()
	}
	return out
}

// Len returns the number of queued orders.
func (m *Manager) Len() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.queue)
}

func (m *Manager) indexLocked(id string) int {
	for i, o := range m.queue {
		if o.ID == id {
			return i
		}
	}
	return -1
}

// recomputeLocked replays the whole queue against the committed state. An
// order the current state cannot absorb is flagged CONFLICT and skipped; its
// virtual state is the one its predecessor left behind, so orders further back
// are evaluated as if it never ran. The registry is rebuilt alongside, so its
// keys always equal the set of queued ids; terminal history lives in the
// mutation log.
func (m *Manager) recomputeLocked() {
	m.chain = m.chain[:0]
	m.virtual = make(map[string]*state.ResourceState, len(m.queue))
	m.registry = make(map[string]model.DispatchOrder, len(m.queue))
	cur := m.real
	for i := range m.queue {
		next, err := cur.Apply(m.queue[i])
		if err != nil {
			if m.queue[i].Status != model.StatusConflict {
				m.queue[i].Status = model.StatusConflict
				m.record(logging.ActionConflict, m.queue[i], err.Error())
				m.log.Warnf("order %s flagged as conflict: %v", m.queue[i].ID, err)
			}
			recordConflict()
		} else {
			if m.queue[i].Status == model.StatusConflict {
				m.queue[i].Status = model.StatusScheduled
			}
			cur = next
		}
		m.virtual[m.queue[i].ID] = cur
		m.chain = append(m.chain, cur)
		m.registry[m.queue[i].ID] = m.queue[i]
	}
	setQueueDepth(len(m.queue))
	m.publish(events.QueueRecalculatedEvent{QueueLen: len(m.queue)})
}

func (m *Manager) publish(e eventbus.Event) {
	if m.bus != nil {
		m.bus.Publish(e)
	}
}

func (m *Manager) record(action string, order model.DispatchOrder, detail string) {
	rec := logging.Record{
		Timestamp: m.now(),
		Action:    action,
		OrderID:   order.ID,
		Order:     order,
		QueueLen:  len(m.queue),
		Detail:    detail,
	}
	if err := m.store.Append(context.Background(), rec); err != nil {
		m.log.Errorf("append queue log: %v", err)
	}
	recordMutation(action)
}
