package mocks

import (
	"context"
	"sync"

	"github.com/stretchr/testify/mock"

	"github.com/segyhp/lead-intake/internal/broker"
	"github.com/segyhp/lead-intake/internal/notifier"
)

type MockBroker struct {
	mock.Mock
}

func (m *MockBroker) Publish(ctx context.Context, ev broker.Event) error {
	args := m.Called(ctx, ev)
	return args.Error(0)
}

func (m *MockBroker) Subscribe(ctx context.Context) (<-chan broker.Event, func(), error) {
	args := m.Called(ctx)
	if args.Get(0) == nil {
		return nil, nil, args.Error(2)
	}
	return args.Get(0).(<-chan broker.Event), args.Get(1).(func()), args.Error(2)
}

func (m *MockBroker) Close() error {
	args := m.Called()
	return args.Error(0)
}

// CountingKicker counts dispatcher kicks.
type CountingKicker struct {
	mu    sync.Mutex
	kicks int
}

func (k *CountingKicker) Kick() {
	k.mu.Lock()
	defer k.mu.Unlock()
	k.kicks++
}

func (k *CountingKicker) Kicks() int {
	k.mu.Lock()
	defer k.mu.Unlock()
	return k.kicks
}

type MockMailer struct {
	mock.Mock
}

func (m *MockMailer) Send(ctx context.Context, msg notifier.Message) error {
	args := m.Called(ctx, msg)
	return args.Error(0)
}

// Sent returns the messages passed to Send, in call order.
func (m *MockMailer) Sent() []notifier.Message {
	var out []notifier.Message
	for _, call := range m.Calls {
		if call.Method == "Send" {
			out = append(out, call.Arguments.Get(1).(notifier.Message))
		}
	}
	return out
}
