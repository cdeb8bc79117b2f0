package registry

import (
	"context"
	"sync"
)

// Publisher is the transport that carries payloads to live connections.
// The in-memory implementation serves single-process deployments and tests;
// the redis implementation crosses process boundaries.
type Publisher interface {
	// Publish delivers a payload to one connection's stream.
	Publish(ctx context.Context, channelName string, payload []byte) error
}

// Subscriber receives payloads for one connection.
type Subscriber interface {
	// Messages returns the stream of published payloads. The channel is
	// closed when the subscriber is closed.
	Messages() <-chan []byte

	// Close tears the subscription down. Idempotent.
	Close() error
}

// MemoryPublisher routes payloads to in-process subscribers over buffered
// channels. Sends are non-blocking: a slow consumer's messages are dropped
// rather than stalling the publish path.
type MemoryPublisher struct {
	mu         sync.RWMutex
	subs       map[string]*memorySubscriber
	bufferSize int
	closed     bool
}

// NewMemoryPublisher creates an in-process publisher. A minimum buffer size
// of 16 is enforced so bursts of a few events never drop.
func NewMemoryPublisher(bufferSize int) *MemoryPublisher {
	return &MemoryPublisher{
		subs:       make(map[string]*memorySubscriber),
		bufferSize: max(bufferSize, 16),
	}
}

// Subscribe creates the receiving end for one connection's channel name.
// A second subscription for the same name replaces the first. The context
// is accepted for interface parity with cross-process publishers; the
// in-memory subscription lives until Close.
func (p *MemoryPublisher) Subscribe(_ context.Context, channelName string) Subscriber {
	p.mu.Lock()
	defer p.mu.Unlock()

	sub := &memorySubscriber{ch: make(chan []byte, p.bufferSize)}
	sub.release = func() { p.unsubscribe(channelName, sub) }
	if p.closed {
		_ = sub.Close()
		return sub
	}

	if prev, ok := p.subs[channelName]; ok {
		_ = prev.Close()
	}
	p.subs[channelName] = sub
	return sub
}

// Publish delivers the payload to the subscriber for channelName, if any.
// No subscriber is not an error: the connection may live in another process.
func (p *MemoryPublisher) Publish(ctx context.Context, channelName string, payload []byte) error {
	p.mu.RLock()
	defer p.mu.RUnlock()

	if p.closed {
		return ErrPublisherClosed
	}
	if sub, ok := p.subs[channelName]; ok {
		sub.send(payload)
	}
	return nil
}

// Close shuts down the publisher and all subscribers.
func (p *MemoryPublisher) Close() error {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.closed {
		return nil
	}
	p.closed = true
	for _, sub := range p.subs {
		_ = sub.Close()
	}
	clear(p.subs)
	return nil
}

// unsubscribe removes the mapping only if it still points at sub, so closing
// a replaced subscriber never evicts its successor.
func (p *MemoryPublisher) unsubscribe(channelName string, sub *memorySubscriber) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if current, ok := p.subs[channelName]; ok && current == sub {
		delete(p.subs, channelName)
	}
}

type memorySubscriber struct {
	ch      chan []byte
	mu      sync.Mutex
	closed  bool
	release func()
}

func (s *memorySubscriber) Messages() <-chan []byte {
	return s.ch
}

func (s *memorySubscriber) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.closed {
		s.closed = true
		close(s.ch)
		if s.release != nil {
			go s.release()
		}
	}
	return nil
}

func (s *memorySubscriber) send(payload []byte) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return false
	}
	select {
	case s.ch <- payload:
		return true
	default:
		return false
	}
}
