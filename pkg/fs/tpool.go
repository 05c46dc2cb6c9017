package fs

import (
	"sync"
)

// Pool runs tasks on a fixed number of goroutines.
type Pool struct {
	wg    sync.WaitGroup
	tasks chan func() error

	mu  sync.Mutex
	err error
}

// NewPool starts n runners with room for backlog queued tasks.
func NewPool(n, backlog int) *Pool {
	if n < 1 {
		n = 1
	}

	pool := &Pool{tasks: make(chan func() error, backlog)}

	for i := 0; i < n; i++ {
		pool.wg.Add(1)

		go pool.runner()
	}

	return pool
}

// Add queues a task, blocking while the backlog is full.
func (pool *Pool) Add(taskfn func() error) {
	pool.tasks <- taskfn
}

func (pool *Pool) runner() {
	defer pool.wg.Done()

	for taskfn := range pool.tasks {
		// keep going on failures, remember the first one
		if err := taskfn(); err != nil {
			pool.mu.Lock()
			if pool.err == nil {
				pool.err = err
			}
			pool.mu.Unlock()
		}
	}
}

// Done waits for the queued tasks and returns the first error.
func (pool *Pool) Done() error {
	close(pool.tasks)
	pool.wg.Wait()

	return pool.err
}
