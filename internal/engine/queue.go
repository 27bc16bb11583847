package engine

import (
	"container/heap"
	"context"
	"errors"
	"fmt"
	"log"
	"sync"
	"time"

	"github.com/neonvoidvibes/align/internal/store"
)

// ErrQueueClosed is returned by Enqueue after Close.
var ErrQueueClosed = errors.New("analysis queue closed")

// Analyzer runs one message through the pipeline.
type Analyzer interface {
	Analyze(ctx context.Context, messageID string) (*RunResult, error)
}

// Queue is the single writer for one store. Runs execute one at a time,
// pending runs ordered by message timestamp, so a day's run never overlaps
// the run for the day before it.
type Queue struct {
	analyzer Analyzer

	// OnResult, when set, is called after every run.
	OnResult func(*RunResult, error)

	mu      sync.Mutex
	pending jobHeap
	seq     uint64
	closed  bool
	wake    chan struct{}
}

// NewQueue creates a Queue feeding analyzer. Call Run to start processing.
func NewQueue(analyzer Analyzer) *Queue {
	return &Queue{
		analyzer: analyzer,
		wake:     make(chan struct{}, 1),
	}
}

// Enqueue schedules analysis of a message created at at.
func (q *Queue) Enqueue(messageID string, at time.Time) error {
	q.mu.Lock()
	if q.closed {
		q.mu.Unlock()
		return ErrQueueClosed
	}
	q.seq++
	heap.Push(&q.pending, job{id: messageID, at: at, seq: q.seq})
	q.mu.Unlock()

	q.signal()
	return nil
}

// Backlog lists user messages not yet analyzed, oldest first.
// *store.DB implements it.
type Backlog interface {
	UnprocessedMessages(limit int) ([]store.Message, error)
}

// EnqueuePending queues up to limit unanalyzed messages from b. Call it before
// Run and before accepting new messages, so work left over from a previous
// process runs ahead of anything newer.
func (q *Queue) EnqueuePending(b Backlog, limit int) (int, error) {
	msgs, err := b.UnprocessedMessages(limit)
	if err != nil {
		return 0, fmt.Errorf("load backlog: %w", err)
	}
	for i, m := range msgs {
		if err := q.Enqueue(m.ID, m.CreatedAt); err != nil {
			return i, err
		}
	}
	if len(msgs) == limit {
		log.Printf("queue: backlog truncated at %d messages", limit)
	}
	return len(msgs), nil
}

// Len returns the number of runs waiting.
func (q *Queue) Len() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return q.pending.Len()
}

// Close stops accepting new runs. Run returns once the backlog is drained.
func (q *Queue) Close() {
	q.mu.Lock()
	q.closed = true
	q.mu.Unlock()
	q.signal()
}

func (q *Queue) signal() {
	select {
	case q.wake <- struct{}{}:
	default:
	}
}

// Run processes runs until ctx is done or the queue is closed and empty.
// A run already in progress when ctx is cancelled sees the cancellation and
// aborts if it has not yet written anything.
func (q *Queue) Run(ctx context.Context) error {
	for {
		j, ok := q.next(ctx)
		if !ok {
			return nil
		}
		res, err := q.analyzer.Analyze(ctx, j.id)
		if err != nil {
			log.Printf("queue: %v", err)
		}
		if q.OnResult != nil {
			q.OnResult(res, err)
		}
	}
}

func (q *Queue) next(ctx context.Context) (job, bool) {
	for {
		q.mu.Lock()
		if q.pending.Len() > 0 {
			j := heap.Pop(&q.pending).(job)
			q.mu.Unlock()
			return j, true
		}
		closed := q.closed
		q.mu.Unlock()
		if closed {
			return job{}, false
		}

		select {
		case <-ctx.Done():
			return job{}, false
		case <-q.wake:
		}
	}
}

type job struct {
	id  string
	at  time.Time
	seq uint64
}

// jobHeap orders by message timestamp, then by enqueue order.
type jobHeap []job

func (h jobHeap) Len() int { return len(h) }
func (h jobHeap) Less(i, j int) bool {
	if !h[i].at.Equal(h[j].at) {
		return h[i].at.Before(h[j].at)
	}
	return h[i].seq < h[j].seq
}
func (h jobHeap) Swap(i, j int) { h[i], h[j] = h[j], h[i] }
func (h *jobHeap) Push(x any)   { *h = append(*h, x.(job)) }
func (h *jobHeap) Pop() any {
	old := *h
	n := len(old)
	x := old[n-1]
	*h = old[:n-1]
	return x
}
