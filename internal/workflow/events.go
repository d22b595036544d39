package workflow

import (
	"sync"

	"subforge/internal/logging"
	"subforge/internal/queue"
)

// EventType names a job lifecycle notification.
type EventType string

const (
	EventJobUpdated EventType = "job.updated"
	EventJobRemoved EventType = "job.removed"
)

// subscriberBuffer is the channel capacity of one subscriber.
const subscriberBuffer = 64

// Event reports a change to one job. Job is nil for removals. Finished is set
// only on the update that moves a run from processing to a terminal status.
type Event struct {
	Type     EventType  `json:"type"`
	JobID    string     `json:"jobId"`
	Job      *queue.Job `json:"job,omitempty"`
	Finished bool       `json:"finished,omitempty"`
}

type broker struct {
	mu     sync.Mutex
	nextID int
	subs   map[int]*subscriber
}

// subscriber delivers events to one consumer through a buffered channel.
// When the buffer is full, progress events are dropped and Finished events
// queue in overflow, which a drain goroutine feeds in order.
type subscriber struct {
	ch   chan Event
	done chan struct{}

	mu       sync.Mutex
	overflow []Event
	draining bool
	closed   bool
}

func (s *subscriber) offer(event Event) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if len(s.overflow) == 0 {
		select {
		case s.ch <- event:
			return true
		default:
		}
	}
	if !event.Finished {
		return false
	}
	s.overflow = append(s.overflow, event)
	if !s.draining {
		s.draining = true
		go s.drain()
	}
	return true
}

// drain sends overflow events in order. An event leaves overflow only once
// sent, so direct sends in offer cannot overtake it.
func (s *subscriber) drain() {
	for {
		s.mu.Lock()
		if s.closed || len(s.overflow) == 0 {
			s.draining = false
			if s.closed {
				close(s.ch)
			}
			s.mu.Unlock()
			return
		}
		event := s.overflow[0]
		s.mu.Unlock()

		select {
		case s.ch <- event:
			s.mu.Lock()
			s.overflow[0] = Event{}
			s.overflow = s.overflow[1:]
			s.mu.Unlock()
		case <-s.done:
		}
	}
}

func (s *subscriber) close() {
	s.mu.Lock()
	s.closed = true
	draining := s.draining
	s.mu.Unlock()
	close(s.done)
	if !draining {
		close(s.ch)
	}
}

// Subscribe returns a channel of job events and a function that ends the
// subscription. Slow subscribers miss progress events rather than block
// pipelines, but never miss the event that finishes a run.
func (m *Manager) Subscribe() (<-chan Event, func()) {
	b := &m.events
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.subs == nil {
		b.subs = make(map[int]*subscriber)
	}
	id := b.nextID
	b.nextID++
	sub := &subscriber{
		ch:   make(chan Event, subscriberBuffer),
		done: make(chan struct{}),
	}
	b.subs[id] = sub

	var once sync.Once
	return sub.ch, func() {
		once.Do(func() {
			b.mu.Lock()
			defer b.mu.Unlock()
			if _, ok := b.subs[id]; ok {
				delete(b.subs, id)
				sub.close()
			}
		})
	}
}

func (m *Manager) publish(event Event) {
	b := &m.events
	b.mu.Lock()
	defer b.mu.Unlock()
	for _, sub := range b.subs {
		if !sub.offer(event) {
			m.logger.Debug("dropping job event for slow subscriber",
				logging.String("event", string(event.Type)),
				logging.String("job_id", event.JobID),
			)
		}
	}
}
