package orderbook

import (
	"fmt"
	"time"

	"github.com/oilroute/dispatch/connectors"
)

func WithStartDate(startDate time.Time) connectors.Option {
	return func(c connectors.OrderBookClient) error {
		if ob, ok := c.(*Client); ok {
			ob.startDate = startDate
			return nil
		}
		return fmt.Errorf(connectors.ErrIncompatibleOption, "WithStartDate", "orderbook")
	}
}

func WithEndDate(endDate time.Time) connectors.Option {
	return func(c connectors.OrderBookClient) error {
		if ob, ok := c.(*Client); ok {
			ob.endDate = endDate
			return nil
		}
		return fmt.Errorf(connectors.ErrIncompatibleOption, "WithEndDate", "orderbook")
	}
}

// WithBaseURL overrides the order book endpoint. The URL must contain two
// %s verbs for the start and end dates.
func WithBaseURL(url string) connectors.Option {
	return func(c connectors.OrderBookClient) error {
		if ob, ok := c.(*Client); ok {
			ob.baseURL = url
			return nil
		}
		return fmt.Errorf(connectors.ErrIncompatibleOption, "WithBaseURL", "orderbook")
	}
}
