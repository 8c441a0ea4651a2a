package broker

import (
	"errors"
	"sync"
)

var ErrNoSubscribers = errors.New("no subscribers")

type subscriber[T any] struct {
	ch     chan T
	mu     sync.Mutex
	queue  []T
	notify chan struct{}
	quit   chan struct{}
}

func newSubscriber[T any](size int) *subscriber[T] {
	s := &subscriber[T]{
		ch:     make(chan T, size),
		notify: make(chan struct{}, 1),
		quit:   make(chan struct{}),
	}
	go s.pump()
	return s
}

func (s *subscriber[T]) push(t T) {
	s.mu.Lock()
	s.queue = append(s.queue, t)
	s.mu.Unlock()
	select {
	case s.notify <- struct{}{}:
	default:
	}
}

func (s *subscriber[T]) pop() (T, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var zero T
	if len(s.queue) == 0 {
		return zero, false
	}
	t := s.queue[0]
	s.queue[0] = zero
	s.queue = s.queue[1:]
	return t, true
}

// pump moves queued messages to the subscriber channel, in publish order, until quit.
func (s *subscriber[T]) pump() {
	defer close(s.ch)
	for {
		t, ok := s.pop()
		if !ok {
			select {
			case <-s.notify:
				continue
			case <-s.quit:
				return
			}
		}
		select {
		case s.ch <- t:
		case <-s.quit:
			return
		}
	}
}

// Broker implements a simple fan-out message broker. Each subscriber receives messages in publish
// order through its own unbounded queue, so Publish never blocks on a slow subscriber.
type Broker[T any] struct {
	mu          sync.Mutex
	subscribers map[string]*subscriber[T]
}

func NewBroker[T any]() *Broker[T] {
	return &Broker[T]{
		subscribers: make(map[string]*subscriber[T]),
	}
}

// Subscribe registers a new subscriber with the given name and channel buffer size.
// It returns a receive-only channel that will receive published messages. Subscribing again with
// the same name replaces (and closes) the previous channel.
func (b *Broker[T]) Subscribe(name string, size int) <-chan T {
	b.mu.Lock()
	defer b.mu.Unlock()

	if s, ok := b.subscribers[name]; ok {
		close(s.quit)
	}
	s := newSubscriber[T](size)
	b.subscribers[name] = s
	return s.ch
}

// Unsubscribe removes the named subscriber and closes its channel. Undelivered messages are dropped.
func (b *Broker[T]) Unsubscribe(name string) {
	b.mu.Lock()
	defer b.mu.Unlock()

	if s, ok := b.subscribers[name]; ok {
		close(s.quit)
		delete(b.subscribers, name)
	}
}

// Publish queues a message to all registered subscribers.
func (b *Broker[T]) Publish(t T) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	if len(b.subscribers) == 0 {
		return ErrNoSubscribers
	}

	for _, s := range b.subscribers {
		s.push(t)
	}

	return nil
}

// Close closes all subscriber channels, signaling that no more messages will be published.
func (b *Broker[T]) Close() {
	b.mu.Lock()
	defer b.mu.Unlock()

	for _, s := range b.subscribers {
		close(s.quit)
	}

	b.subscribers = make(map[string]*subscriber[T])
}
