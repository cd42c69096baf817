package hub

import (
	"context"
	"encoding/json"
	"log"
	"sync/atomic"
	"time"

	"github.com/soar/padmux/internal/control"
)

const fullSyncInterval = 5 * time.Second

// StatusSource is what the broadcaster reports on.
type StatusSource interface {
	Status() control.Status
	Subscribe() (<-chan struct{}, func())
}

// Broadcaster sends the status to every client after each change and
// periodically.
type Broadcaster struct {
	hub    *Hub
	source StatusSource
	seq    atomic.Int64
}

func NewBroadcaster(h *Hub, source StatusSource) *Broadcaster {
	return &Broadcaster{hub: h, source: source}
}

// Run starts the broadcaster loop until ctx is done. Should be run in a
// goroutine.
func (b *Broadcaster) Run(ctx context.Context) {
	changes, cancel := b.source.Subscribe()
	defer cancel()
	ticker := time.NewTicker(fullSyncInterval)
	defer ticker.Stop()

	for {
		select {
		case <-changes:
			b.broadcast()
		case <-ticker.C:
			if b.hub.Len() > 0 {
				b.broadcast()
			}
		case <-ctx.Done():
			return
		}
	}
}

// SendInitialState sends the current status to a newly connected client.
func (b *Broadcaster) SendInitialState(c *Client) {
	if data, ok := b.encode(); ok {
		b.hub.Send(c, data)
	}
}

func (b *Broadcaster) broadcast() {
	if data, ok := b.encode(); ok {
		b.hub.Broadcast(data)
	}
}

func (b *Broadcaster) encode() ([]byte, bool) {
	st := b.source.Status()
	data, err := json.Marshal(NewStatusMessage(b.seq.Add(1), &st))
	if err != nil {
		log.Printf("Error marshaling status: %v", err)
		return nil, false
	}
	return data, true
}
