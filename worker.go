package qcore

import (
	"strconv"
	"sync/atomic"

	events "github.com/docker/go-events"
	"github.com/sirupsen/logrus"

	"github.com/quic-edge/qcore/internal/metrics"
	"github.com/quic-edge/qcore/internal/opqueue"
)

// recvOperation carries one already-demultiplexed datagram into its
// connection's queue (spec section 4.3, "delivery"): binding.go builds
// one of these per packet once lookup has resolved the destination.
type recvOperation struct {
	conn *Conn
	data []byte
}

func (op *recvOperation) Run() {
	op.conn.deliver(op.data)
}

// closeOperation tears a connection down; it is the backup_oper this
// core always has room for (see Worker.Submit), since Go's garbage
// collector removes the need for the teacher's preallocated-object
// pool-exhaustion fallback -- the one case that matters operationally,
// shutting a connection down under load, just runs synchronously instead.
type closeOperation struct {
	conn *Conn
}

func (op *closeOperation) Run() {
	op.conn.teardown()
}

// Worker runs the queued Operations for the connections affinitized to
// it, one at a time, in FIFO order (spec section 4.6). Many connections
// share a Worker in this core: worker affinity is which *Worker a
// Conn was handed at creation, not a dedicated goroutine per
// connection, since a bounded in-flight budget is meaningful only when
// shared across more than one queue.
type Worker struct {
	id     int
	queue  *opqueue.Queue
	budget int32
	inFlight int32 // atomic
	log    logrus.FieldLogger
}

func newWorker(id int, budget int, trace events.Sink, log logrus.FieldLogger) *Worker {
	w := &Worker{id: id, budget: int32(budget), log: log}
	w.queue = opqueue.New(trace, w)
	return w
}

// Ingress/Egress implement opqueue.Listener, tracking in-flight depth for
// the overload check and exporting it to internal/metrics.
func (w *Worker) Ingress(opqueue.Operation) {
	atomic.AddInt32(&w.inFlight, 1)
	metrics.WorkerQueueDepth.WithValues(w.label()).Inc(1)
}

func (w *Worker) Egress(opqueue.Operation) {
	atomic.AddInt32(&w.inFlight, -1)
	metrics.WorkerQueueDepth.WithValues(w.label()).Dec(1)
}

func (w *Worker) label() string {
	return strconv.Itoa(w.id)
}

// Overloaded reports whether this worker is over its bounded in-flight
// budget; Submit consults it to drop a new operation rather than queue
// one more for an overloaded worker (spec section 4.6, "worker
// overloaded"). binding.go's stateless replies (VN/Retry/Reset) are sent
// directly and do not pass through a worker.
func (w *Worker) Overloaded() bool {
	return atomic.LoadInt32(&w.inFlight) > w.budget
}

// Submit queues op for this worker, or reports errWorkerOverloaded
// without queuing if the worker is already over budget -- except for
// closeOperation, which always gets queued (or, if the queue is already
// closed, runs synchronously) so a connection can always be torn down.
func (w *Worker) Submit(op opqueue.Operation) error {
	if _, isClose := op.(*closeOperation); !isClose && w.Overloaded() {
		if w.log != nil {
			w.log.WithField("worker", w.id).Warn("worker overloaded, dropping operation")
		}
		metrics.WorkerOverloadDrops.WithValues(w.label()).Inc(1)
		return errWorkerOverloaded
	}
	err := w.queue.Push(op)
	if err == opqueue.ErrClosed {
		if c, ok := op.(*closeOperation); ok {
			c.Run()
			return nil
		}
	}
	return err
}

func (w *Worker) Close() error {
	return w.queue.Close()
}
