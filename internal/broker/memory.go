package broker

import (
	"context"
	"sync"
)

// Memory is an in-process broker for single-instance deployments.
type Memory struct {
	mu     sync.Mutex
	nextID int
	subs   map[int]chan Event
	closed bool
}

func NewMemory() *Memory {
	return &Memory{subs: make(map[int]chan Event)}
}

func (b *Memory) Publish(_ context.Context, ev Event) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	for _, ch := range b.subs {
		offer(ch, ev)
	}
	return nil
}

func (b *Memory) Subscribe(ctx context.Context) (<-chan Event, func(), error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	ch := make(chan Event, 1)
	if b.closed {
		close(ch)
		return ch, func() {}, nil
	}

	id := b.nextID
	b.nextID++
	b.subs[id] = ch

	done := make(chan struct{})
	var once sync.Once
	cancel := func() {
		once.Do(func() {
			close(done)
			b.mu.Lock()
			defer b.mu.Unlock()
			if sub, ok := b.subs[id]; ok {
				delete(b.subs, id)
				close(sub)
			}
		})
	}

	go func() {
		select {
		case <-ctx.Done():
			cancel()
		case <-done:
		}
	}()

	return ch, cancel, nil
}

// Subscribers reports how many subscribers are registered.
func (b *Memory) Subscribers() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.subs)
}

func (b *Memory) Close() error {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.closed = true
	for id, ch := range b.subs {
		delete(b.subs, id)
		close(ch)
	}
	return nil
}
