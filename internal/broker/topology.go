package broker

import (
	"fmt"
	"strings"
)

// Topology names the exchange, queue and binding declared at connect.
// The exchange is a durable topic exchange and the queue is durable.
type Topology struct {
	Exchange   string
	Queue      string
	RoutingKey string
}

func (t Topology) Validate() error {
	if strings.TrimSpace(t.Exchange) == "" {
		return fmt.Errorf("exchange is required")
	}
	if strings.TrimSpace(t.Queue) == "" {
		return fmt.Errorf("queue is required")
	}
	if strings.TrimSpace(t.RoutingKey) == "" {
		return fmt.Errorf("routing key is required")
	}
	return nil
}
