package stream

import (
	"context"
	"fmt"
	"sync"

	"github.com/gbacskai/docflow4-sub002/internal/pkg/logger"
)

// channelBus is the single-process bus used when no Redis address is
// configured. Delivery order matches publish order; a full buffer blocks the
// publisher rather than dropping events.
type channelBus struct {
	log    *logger.Logger
	events chan ChangeEvent

	mu      sync.Mutex
	started bool
	closed  bool
	done    chan struct{}
}

func NewChannelBus(log *logger.Logger, buffer int) Bus {
	if buffer <= 0 {
		buffer = 256
	}
	return &channelBus{
		log:    log.With("service", "ChannelBus"),
		events: make(chan ChangeEvent, buffer),
		done:   make(chan struct{}),
	}
}

func (b *channelBus) Publish(ctx context.Context, event ChangeEvent) error {
	b.mu.Lock()
	closed := b.closed
	b.mu.Unlock()
	if closed {
		return fmt.Errorf("channel bus closed")
	}

	select {
	case b.events <- event:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	case <-b.done:
		return fmt.Errorf("channel bus closed")
	}
}

func (b *channelBus) StartForwarder(ctx context.Context, onEvent func(event ChangeEvent)) error {
	if onEvent == nil {
		return fmt.Errorf("onEvent callback required")
	}

	b.mu.Lock()
	if b.started {
		b.mu.Unlock()
		return fmt.Errorf("forwarder already started")
	}
	b.started = true
	b.mu.Unlock()

	go func() {
		for {
			select {
			case ev := <-b.events:
				onEvent(ev)
			case <-ctx.Done():
				return
			case <-b.done:
				// Drain what is already buffered before stopping.
				for {
					select {
					case ev := <-b.events:
						onEvent(ev)
					default:
						return
					}
				}
			}
		}
	}()
	return nil
}

func (b *channelBus) Close() error {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.closed {
		return nil
	}
	b.closed = true
	close(b.done)
	return nil
}
