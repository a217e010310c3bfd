package factory

import (
	"fmt"

	"github.com/oilroute/dispatch/connectors"
	"github.com/oilroute/dispatch/connectors/clients/orderbook"
)

const (
	IDOrderBook = "orderbook"
)

var (
	errUnknownClient = "unknown connector id: %s"
)

func NewOrderBookClient(id string) (connectors.OrderBookClient, error) {
	switch id {
	case IDOrderBook:
		return &orderbook.Client{}, nil
	default:
		return nil, fmt.Errorf(errUnknownClient, id)
	}
}
