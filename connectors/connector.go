package connectors

import (
	"github.com/oilroute/dispatch/auth"
	"github.com/oilroute/dispatch/core/model"
)

// OrderBookClient fetches customer orders from an external order book.
type OrderBookClient interface {
	Fetch(authClient *auth.ClientCred, opts ...Option) (OrderBookResponse, error)
}

type OrderBookResponse interface {
	Orders() ([]model.CustomerOrder, error)
}

// Option configures a client before a fetch. Options are client specific
// and return an error when applied to a client they do not support.
type Option func(OrderBookClient) error

const ErrIncompatibleOption = "option %s is not supported by client %s"
