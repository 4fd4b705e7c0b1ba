package events

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
)

var (
	ErrBusClosed    = errors.New("events: bus closed")
	ErrWaitTimeout  = errors.New("events: waiter timed out")
	ErrWaitCanceled = errors.New("events: waiter canceled")
)

type Predicate func(Event) bool

// Emitter is the publishing half of a Bus. Components take an Emitter so
// tests can capture what they publish.
type Emitter interface {
	Emit(evt Event) error
}

// Discard drops every event.
var Discard Emitter = discard{}

type discard struct{}

func (discard) Emit(Event) error { return nil }

type waiter struct {
	pred Predicate
	ch   chan Event
}

type subscriber struct {
	ch      chan Event
	filter  Predicate
	dropped *atomic.Uint64
}

type Subscription struct {
	C       <-chan Event
	cancel  func()
	once    sync.Once
	dropped *atomic.Uint64
}

func (s *Subscription) Cancel() {
	if s == nil {
		return
	}

	s.once.Do(func() {
		if s.cancel != nil {
			s.cancel()
		}
	})
}

// Dropped reports how many events were discarded because C was full.
func (s *Subscription) Dropped() uint64 {
	if s == nil || s.dropped == nil {
		return 0
	}

	return s.dropped.Load()
}

type Bus struct {
	mu      sync.Mutex
	closed  bool
	nextID  uint64
	subs    map[uint64]subscriber
	waiters map[uint64]*waiter
}

func NewBus() *Bus {
	return &Bus{
		subs:    make(map[uint64]subscriber),
		waiters: make(map[uint64]*waiter),
	}
}

// Subscribe registers a buffered subscriber. A nil filter receives every
// event. Emit never blocks on a slow subscriber; overflow is counted and dropped.
func (b *Bus) Subscribe(buffer int, filter Predicate) (*Subscription, error) {
	if buffer <= 0 {
		buffer = 1
	}

	b.mu.Lock()
	defer b.mu.Unlock()

	if b.closed {
		return nil, ErrBusClosed
	}

	id := b.nextID
	b.nextID++

	s := subscriber{
		ch:      make(chan Event, buffer),
		filter:  filter,
		dropped: new(atomic.Uint64),
	}
	b.subs[id] = s

	sub := &Subscription{C: s.ch, dropped: s.dropped}
	sub.cancel = func() {
		b.mu.Lock()
		defer b.mu.Unlock()

		stored, ok := b.subs[id]
		if !ok {
			return
		}

		delete(b.subs, id)
		close(stored.ch)
	}

	return sub, nil
}

func (b *Bus) Emit(evt Event) error {
	if evt == nil {
		return nil
	}

	b.mu.Lock()
	defer b.mu.Unlock()

	if b.closed {
		return ErrBusClosed
	}

	for _, s := range b.subs {
		if s.filter != nil && !s.filter(evt) {
			continue
		}

		select {
		case s.ch <- evt:
		default:
			s.dropped.Add(1)
		}
	}

	for id, w := range b.waiters {
		if w.pred != nil && !w.pred(evt) {
			continue
		}

		delete(b.waiters, id)
		w.ch <- evt
		close(w.ch)
	}

	return nil
}

func (b *Bus) WaitFor(ctx context.Context, pred Predicate) (Event, error) {
	if ctx == nil {
		ctx = context.Background()
	}

	w := &waiter{
		pred: pred,
		ch:   make(chan Event, 1),
	}

	b.mu.Lock()
	if b.closed {
		b.mu.Unlock()
		return nil, ErrBusClosed
	}

	id := b.nextID
	b.nextID++
	b.waiters[id] = w
	b.mu.Unlock()

	select {
	case evt, ok := <-w.ch:
		if ok {
			return evt, nil
		}

		if b.IsClosed() {
			return nil, ErrBusClosed
		}

		return nil, ctxError(ctx)
	case <-ctx.Done():
		b.mu.Lock()
		stored, ok := b.waiters[id]
		if ok {
			delete(b.waiters, id)
			close(stored.ch)
		}
		b.mu.Unlock()

		return nil, ctxError(ctx)
	}
}

func ctxError(ctx context.Context) error {
	if errors.Is(ctx.Err(), context.DeadlineExceeded) {
		return ErrWaitTimeout
	}

	return ErrWaitCanceled
}

func (b *Bus) Close() {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.closed {
		return
	}

	b.closed = true

	for id, s := range b.subs {
		delete(b.subs, id)
		close(s.ch)
	}

	for id, w := range b.waiters {
		delete(b.waiters, id)
		close(w.ch)
	}
}

func (b *Bus) IsClosed() bool {
	b.mu.Lock()
	defer b.mu.Unlock()

	return b.closed
}
