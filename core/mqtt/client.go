package mqtt

import (
	"time"

	"github.com/oilroute/dispatch/core/model"
)

// Client represents an MQTT client capable of sending dispatch instructions
// to site field controllers and waiting for their acknowledgments.
type Client interface {
	// SendDispatch publishes the transfer instruction on the site topic and
	// returns the command identifier used to track the acknowledgment.
	SendDispatch(order model.DispatchOrder) (commandID string, err error)

	// WaitForAck waits for an acknowledgment for the provided command
	// identifier or until the timeout expires.
	WaitForAck(commandID string, timeout time.Duration) (bool, error)
}
