package worker

import "sync"

// Task is a unit of work run by the pool.
type Task func()

const defaultQueueCapacity = 128

// Pool runs submitted tasks on a fixed number of goroutines. Excess tasks
// queue on the channel and wait for a free worker.
type Pool struct {
	name  string
	tasks chan Task
	wg    sync.WaitGroup
}

func NewPool(name string, size int) *Pool {
	p := &Pool{
		name:  name,
		tasks: make(chan Task, defaultQueueCapacity),
	}
	for i := 0; i < size; i++ {
		p.wg.Add(1)
		go func() {
			defer p.wg.Done()
			for task := range p.tasks {
				task()
			}
		}()
	}
	return p
}

// Submit enqueues a task, blocking while the queue is full. Must not be
// called after Stop.
func (p *Pool) Submit(task Task) {
	p.tasks <- task
}

// Stop waits for queued and in-flight tasks to finish, then releases the
// workers.
func (p *Pool) Stop() {
	close(p.tasks)
	p.wg.Wait()
}
