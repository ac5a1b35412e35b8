package events

import "sync"

// Queue is an unbounded FIFO of events. Producers never block.
type Queue struct {
	mu     sync.Mutex
	items  []Event
	notify chan struct{}
}

func newQueue() *Queue {
	return &Queue{notify: make(chan struct{}, 1)}
}

func (q *Queue) push(e Event) {
	q.mu.Lock()
	q.items = append(q.items, e)
	q.mu.Unlock()

	select {
	case q.notify <- struct{}{}:
	default:
	}
}

// Drain removes and returns every queued event in publish order.
func (q *Queue) Drain() []Event {
	q.mu.Lock()
	defer q.mu.Unlock()
	if len(q.items) == 0 {
		return nil
	}
	out := q.items
	q.items = nil
	return out
}

func (q *Queue) Len() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.items)
}

// Notify receives a value after at least one push since the last receive.
// Consumers that poll with Drain do not need it.
func (q *Queue) Notify() <-chan struct{} {
	return q.notify
}

// Bus fans events out to a default queue and any number of subscriber queues.
// Events published from one goroutine are observed in the same order by every
// queue.
type Bus struct {
	mu   sync.RWMutex
	def  *Queue
	subs map[*Queue]struct{}
}

func NewBus() *Bus {
	return &Bus{
		def:  newQueue(),
		subs: make(map[*Queue]struct{}),
	}
}

func (b *Bus) Publish(e Event) {
	b.mu.RLock()
	defer b.mu.RUnlock()

	b.def.push(e)
	for q := range b.subs {
		q.push(e)
	}
}

// Drain empties the default queue.
func (b *Bus) Drain() []Event {
	return b.def.Drain()
}

// Subscribe returns a queue that receives every event published from now on.
func (b *Bus) Subscribe() *Queue {
	q := newQueue()
	b.mu.Lock()
	b.subs[q] = struct{}{}
	b.mu.Unlock()
	return q
}

func (b *Bus) Unsubscribe(q *Queue) {
	b.mu.Lock()
	delete(b.subs, q)
	b.mu.Unlock()
}
