package docstore

import (
	"sync"
	"sync/atomic"
)

type snapshot struct {
	collection string
	records    []Record
}

// hub fans committed snapshots out to subscribers.
//
// A single event loop owns the subscriber set; the public methods talk to it
// over channels. Each subscriber has an unbounded mailbox drained by its own
// goroutine, so a slow callback never blocks the loop or a writer.
type hub struct {
	subscribeCh   chan *subscriber
	unsubscribeCh chan *subscriber
	publishCh     chan snapshot
	countReqCh    chan chan int

	stopCh  chan struct{}
	stopped chan struct{}
	closed  atomic.Bool
}

func newHub() *hub {
	h := &hub{
		subscribeCh:   make(chan *subscriber),
		unsubscribeCh: make(chan *subscriber),
		publishCh:     make(chan snapshot),
		countReqCh:    make(chan chan int),
		stopCh:        make(chan struct{}),
		stopped:       make(chan struct{}),
	}
	go h.run()
	return h
}

func (h *hub) run() {
	defer close(h.stopped)

	subs := make(map[string]map[*subscriber]struct{})

	for {
		select {
		case <-h.stopCh:
			for _, set := range subs {
				for sub := range set {
					sub.close()
				}
			}
			return

		case sub := <-h.subscribeCh:
			set, ok := subs[sub.collection]
			if !ok {
				set = make(map[*subscriber]struct{})
				subs[sub.collection] = set
			}
			set[sub] = struct{}{}

		case sub := <-h.unsubscribeCh:
			delete(subs[sub.collection], sub)

		case snap := <-h.publishCh:
			for sub := range subs[snap.collection] {
				sub.push(snap.records)
			}

		case resp := <-h.countReqCh:
			n := 0
			for _, set := range subs {
				n += len(set)
			}
			resp <- n
		}
	}
}

func (h *hub) close() {
	if h.closed.CompareAndSwap(false, true) {
		close(h.stopCh)
	}
	<-h.stopped
}

func (h *hub) subscribe(sub *subscriber) bool {
	if h.closed.Load() {
		return false
	}
	select {
	case h.subscribeCh <- sub:
		return true
	case <-h.stopped:
		return false
	}
}

func (h *hub) unsubscribe(sub *subscriber) {
	if h.closed.Load() {
		return
	}
	select {
	case h.unsubscribeCh <- sub:
	case <-h.stopped:
	}
}

func (h *hub) publish(col string, recs []Record) {
	if h.closed.Load() {
		return
	}
	select {
	case h.publishCh <- snapshot{collection: col, records: recs}:
	case <-h.stopped:
	}
}

// count returns the number of live subscribers.
func (h *hub) count() int {
	if h.closed.Load() {
		return 0
	}
	resp := make(chan int, 1)
	select {
	case h.countReqCh <- resp:
	case <-h.stopped:
		return 0
	}
	select {
	case n := <-resp:
		return n
	case <-h.stopped:
		return 0
	}
}

// Subscribers returns the number of live subscriptions.
func (s *Store) Subscribers() int { return s.hub.count() }

type subscriber struct {
	collection string
	fn         func([]Record)

	mu     sync.Mutex
	queue  [][]Record
	signal chan struct{}

	done      chan struct{}
	closeOnce sync.Once
	closed    atomic.Bool
}

func newSubscriber(col string, fn func([]Record)) *subscriber {
	return &subscriber{
		collection: col,
		fn:         fn,
		signal:     make(chan struct{}, 1),
		done:       make(chan struct{}),
	}
}

func (s *subscriber) push(recs []Record) {
	s.mu.Lock()
	s.queue = append(s.queue, recs)
	s.mu.Unlock()
	select {
	case s.signal <- struct{}{}:
	default:
	}
}

func (s *subscriber) pop() ([]Record, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if len(s.queue) == 0 {
		return nil, false
	}
	recs := s.queue[0]
	s.queue[0] = nil
	s.queue = s.queue[1:]
	return recs, true
}

func (s *subscriber) run() {
	for {
		select {
		case <-s.done:
			return
		case <-s.signal:
		}
		for {
			recs, ok := s.pop()
			if !ok {
				break
			}
			if s.closed.Load() {
				return
			}
			s.fn(recs)
		}
	}
}

func (s *subscriber) close() {
	s.closeOnce.Do(func() {
		s.closed.Store(true)
		close(s.done)
	})
}
