package worker

import (
	"sync"

	"github.com/shaiso/bqflow/internal/domain"
)

// Queue — FIFO буфер leaf-задач между Producer и workers.
//
// Queue считает задачи, взятые в работу и ещё не подтверждённые (Ack).
// Idle() истинно, только когда очередь пуста и ни одна задача не выполняется.
type Queue struct {
	items  []domain.Query
	active int

	// ready будит один ожидающий worker. Pop передаёт сигнал дальше,
	// если в очереди остались задачи.
	ready chan struct{}

	mu sync.Mutex
}

// NewQueue создаёт пустую очередь.
func NewQueue() *Queue {
	return &Queue{ready: make(chan struct{}, 1)}
}

// Push добавляет задачи в конец очереди.
func (q *Queue) Push(items ...domain.Query) {
	if len(items) == 0 {
		return
	}

	q.mu.Lock()
	q.items = append(q.items, items...)
	q.mu.Unlock()

	q.signal()
}

// Pop забирает задачу из начала очереди и помечает её выполняемой.
// Каждый успешный Pop должен завершиться вызовом Ack.
func (q *Queue) Pop() (domain.Query, bool) {
	q.mu.Lock()
	if len(q.items) == 0 {
		q.mu.Unlock()
		return domain.Query{}, false
	}

	item := q.items[0]
	q.items[0] = domain.Query{}
	q.items = q.items[1:]
	q.active++
	remaining := len(q.items)
	q.mu.Unlock()

	if remaining > 0 {
		q.signal()
	}
	return item, true
}

// Ack подтверждает завершение обработки задачи, взятой через Pop.
func (q *Queue) Ack() {
	q.mu.Lock()
	if q.active > 0 {
		q.active--
	}
	q.mu.Unlock()
}

// Len возвращает количество ожидающих задач.
func (q *Queue) Len() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.items)
}

// Active возвращает количество выполняемых задач.
func (q *Queue) Active() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return q.active
}

// Idle возвращает true, если очередь пуста и ничего не выполняется.
func (q *Queue) Idle() bool {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.items) == 0 && q.active == 0
}

// Ready возвращает канал пробуждения ожидающих workers.
func (q *Queue) Ready() <-chan struct{} {
	return q.ready
}

func (q *Queue) signal() {
	select {
	case q.ready <- struct{}{}:
	default:
	}
}
