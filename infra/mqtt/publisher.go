package mqtt

import (
	"fmt"
	"sync"
	"time"

	"github.com/oilroute/dispatch/core/model"
	coremqtt "github.com/oilroute/dispatch/core/mqtt"
)

// Client mirrors the core mqtt.Client interface.
type Client = coremqtt.Client

// MockPublisher is a simple publisher used in tests.
type MockPublisher struct {
	Messages   map[string]model.DispatchOrder
	FailSites  map[string]bool
	AckResults map[string]bool
	mu         sync.Mutex
}

// NewMockPublisher creates a new MockPublisher.
func NewMockPublisher() *MockPublisher {
	return &MockPublisher{
		Messages:   make(map[string]model.DispatchOrder),
		FailSites:  make(map[string]bool),
		AckResults: make(map[string]bool),
	}
}

// SendDispatch records the instruction or returns an error if configured to fail.
func (m *MockPublisher) SendDispatch(order model.DispatchOrder) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.FailSites[order.SiteID] {
		return "", fmt.Errorf("publish failed")
	}
	m.Messages[order.ID] = order
	commandID := fmt.Sprintf("cmd-%s", order.ID)
	m.AckResults[commandID] = true
	return commandID, nil
}

// WaitForAck simulates an immediate acknowledgment based on the stored result.
func (m *MockPublisher) WaitForAck(commandID string, timeout time.Duration) (bool, error) {
	m.mu.Lock()
	ok, exists := m.AckResults[commandID]
	m.mu.Unlock()
	if !exists {
		return false, fmt.Errorf("unknown command")
	}
	return ok, nil
}
