// Package timer runs named periodic callbacks on one goroutine. Callbacks
// identify themselves by name at registration, so handlers never need to
// compare timer handles to find out which timer fired.
package timer

import (
	"container/heap"
	"context"
	"sync"
	"time"

	"vehiclecode-go/errcode"
)

type item struct {
	name  string
	due   int64
	every time.Duration
	cb    func()
	index int
}

type itemHeap []*item

func (h itemHeap) Len() int           { return len(h) }
func (h itemHeap) Less(i, j int) bool { return h[i].due < h[j].due }
func (h itemHeap) Swap(i, j int)      { h[i], h[j] = h[j], h[i]; h[i].index = i; h[j].index = j }
func (h *itemHeap) Push(x any)        { it := x.(*item); it.index = len(*h); *h = append(*h, it) }
func (h *itemHeap) Pop() any {
	old := *h
	n := len(old)
	it := old[n-1]
	it.index = -1
	*h = old[:n-1]
	return it
}
func (h itemHeap) Top() *item {
	if len(h) == 0 {
		return nil
	}
	return h[0]
}

type Service struct {
	mu    sync.Mutex
	wake  chan struct{}
	items map[string]*item
	h     itemHeap
	now   func() time.Time
}

func New() *Service {
	return &Service{
		wake:  make(chan struct{}, 1),
		items: make(map[string]*item),
		now:   time.Now,
	}
}

// Register schedules cb every period, first fire one period from now. cb
// runs on the service goroutine and must not block.
func (s *Service) Register(name string, every time.Duration, cb func()) error {
	if every <= 0 {
		return &errcode.E{C: errcode.InvalidPeriod, Op: "timer.register", Msg: name}
	}
	if cb == nil {
		return &errcode.E{C: errcode.InvalidParams, Op: "timer.register", Msg: name}
	}
	s.mu.Lock()
	if _, ok := s.items[name]; ok {
		s.mu.Unlock()
		return &errcode.E{C: errcode.Duplicate, Op: "timer.register", Msg: name}
	}
	it := &item{
		name:  name,
		due:   s.now().Add(every).UnixNano(),
		every: every,
		cb:    cb,
		index: -1,
	}
	s.items[name] = it
	heap.Push(&s.h, it)
	s.mu.Unlock()
	s.wakeup()
	return nil
}

// Stop removes a timer. Unknown names are ignored.
func (s *Service) Stop(name string) {
	s.mu.Lock()
	if it := s.items[name]; it != nil {
		heap.Remove(&s.h, it.index)
		delete(s.items, name)
	}
	s.mu.Unlock()
	s.wakeup()
}

// Fire runs the named callback immediately on the caller's goroutine without
// moving its schedule. It reports whether the timer exists.
func (s *Service) Fire(name string) bool {
	s.mu.Lock()
	it := s.items[name]
	s.mu.Unlock()
	if it == nil {
		return false
	}
	it.cb()
	return true
}

// Names lists registered timers in no particular order.
func (s *Service) Names() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]string, 0, len(s.items))
	for n := range s.items {
		out = append(out, n)
	}
	return out
}

func (s *Service) Run(ctx context.Context) {
	timer := time.NewTimer(time.Hour)
	defer timer.Stop()

	for {
		wait := s.nextWait()
		if wait < 0 {
			select {
			case <-ctx.Done():
				return
			case <-s.wake:
				continue
			}
		}
		if wait == 0 {
			var fire func()

			s.mu.Lock()
			now := s.now()
			top := s.h.Top()
			if top != nil && top.due <= now.UnixNano() {
				// Re-arm from the previous deadline to avoid drift; skip
				// ahead if we fell more than a period behind.
				next := top.due + int64(top.every)
				if next <= now.UnixNano() {
					next = now.Add(top.every).UnixNano()
				}
				top.due = next
				heap.Fix(&s.h, top.index)
				fire = top.cb
			}
			s.mu.Unlock()

			if fire != nil {
				fire()
			}
			continue
		}

		timer.Reset(time.Duration(wait))
		select {
		case <-ctx.Done():
			return
		case <-s.wake:
			if !timer.Stop() {
				<-timer.C
			}
		case <-timer.C:
		}
	}
}

func (s *Service) nextWait() int64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	top := s.h.Top()
	if top == nil {
		return -1
	}
	now := s.now().UnixNano()
	if top.due <= now {
		return 0
	}
	return top.due - now
}

func (s *Service) wakeup() {
	select {
	case s.wake <- struct{}{}:
	default:
	}
}
