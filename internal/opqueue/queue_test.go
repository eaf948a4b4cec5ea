package opqueue

import (
	"sync"
	"testing"
)

type funcOp struct {
	fn func()
}

func (o *funcOp) Run() { o.fn() }

type countingListener struct {
	mu             sync.Mutex
	ingress, egress int
}

func (c *countingListener) Ingress(Operation) {
	c.mu.Lock()
	c.ingress++
	c.mu.Unlock()
}

func (c *countingListener) Egress(Operation) {
	c.mu.Lock()
	c.egress++
	c.mu.Unlock()
}

func TestQueueRunsOperationsInOrder(t *testing.T) {
	var mu sync.Mutex
	var order []int
	var wg sync.WaitGroup
	wg.Add(5)

	l := &countingListener{}
	q := New(nil, l)
	for i := 0; i < 5; i++ {
		i := i
		if err := q.Push(&funcOp{fn: func() {
			mu.Lock()
			order = append(order, i)
			mu.Unlock()
			wg.Done()
		}}); err != nil {
			t.Fatalf("Push: %v", err)
		}
	}
	wg.Wait()
	if err := q.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}

	mu.Lock()
	defer mu.Unlock()
	for i, v := range order {
		if v != i {
			t.Fatalf("expected FIFO order, got %v", order)
		}
	}
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.ingress != 5 || l.egress != 5 {
		t.Fatalf("expected 5 ingress/egress notifications, got %d/%d", l.ingress, l.egress)
	}
}

func TestQueuePushAfterCloseFails(t *testing.T) {
	q := New(nil)
	if err := q.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}
	if err := q.Push(&funcOp{fn: func() {}}); err != ErrClosed {
		t.Fatalf("expected ErrClosed, got %v", err)
	}
}
