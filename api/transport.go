// Package api defines the public contracts implemented by shmslab.
package api

import "context"

// Transport moves opaque messages between processes.
type Transport interface {
	// Send blocks until data is on the transport or ctx is done.
	Send(ctx context.Context, data []byte) error
	// Receive blocks until a message is available or ctx is done.
	Receive(ctx context.Context) ([]byte, error)
	Close() error
}
