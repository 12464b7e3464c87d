package adapter

import (
	"context"
	"io"
)

// Delivery describes one staged file handed to the destination.
type Delivery struct {
	ChatID   int64
	Filename string
	Size     int64
	Content  io.Reader
	Caption  string
}

// MediaDeliveryAdapter is the destination send capability.
type MediaDeliveryAdapter interface {
	// Deliver sends one file and returns the destination's message/delivery id.
	Deliver(ctx context.Context, d Delivery) (string, error)
}
