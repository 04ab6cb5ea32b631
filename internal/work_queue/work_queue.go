package workqueue

import "sync"

// LineQueue is a FIFO of line indices that refuses an index it has already seen.
type LineQueue struct {
	seen  map[int]bool
	queue []int
	mu    sync.Mutex
}

func NewLineQueue(capacity int) *LineQueue {
	return &LineQueue{
		seen:  make(map[int]bool, capacity),
		queue: make([]int, 0, capacity),
	}
}

func (q *LineQueue) Add(line int) bool {
	q.mu.Lock()
	defer q.mu.Unlock()

	if q.seen[line] {
		return false
	}
	q.seen[line] = true
	q.queue = append(q.queue, line)
	return true
}

func (q *LineQueue) Get() (int, bool) {
	return q.Take(nil)
}

// Take dequeues the next index. onTake runs inside the critical section with the
// number of indices left, so successive callbacks never report a growing count.
func (q *LineQueue) Take(onTake func(remaining int)) (int, bool) {
	q.mu.Lock()
	defer q.mu.Unlock()

	if len(q.queue) == 0 {
		return 0, false
	}
	line := q.queue[0]
	q.queue = q.queue[1:]
	if onTake != nil {
		onTake(len(q.queue))
	}
	return line, true
}

func (q *LineQueue) Size() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.queue)
}
