package qcore

import (
	"net"
	"sync/atomic"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/quic-edge/qcore/transport"
)

// Conn is the endpoint-level handle for one QUIC connection: the
// transport.Conn doing the protocol work, the address/CID it is
// currently reachable by, the Worker serializing operations against it,
// and the reference count that decides when it is safe to free (spec
// section 4.2/5, "refcount-driven lifetime"). log.go's logger.attachLogger/
// detachLogger read addr/scid/conn directly.
type Conn struct {
	conn *transport.Conn
	scid []byte
	addr net.Addr

	endpoint *Endpoint
	worker   *Worker

	refs int32 // atomic; 0 once torn down, never reused
}

func newConn(c *transport.Conn, scid []byte, addr net.Addr, ep *Endpoint, w *Worker) *Conn {
	return &Conn{conn: c, scid: scid, addr: addr, endpoint: ep, worker: w, refs: 1}
}

// Transport returns the underlying protocol connection, for a Handler to
// open streams on or read events from.
func (c *Conn) Transport() *transport.Conn {
	return c.conn
}

// RemoteAddr is the address this connection is reachable at.
func (c *Conn) RemoteAddr() net.Addr {
	return c.addr
}

// acquire takes a reference, failing once the connection has been torn
// down (refs reached zero). Every lookup hit must acquire before
// touching the connection and release when done (spec section 4.2,
// "refcounted tentative references").
func (c *Conn) acquire() bool {
	for {
		n := atomic.LoadInt32(&c.refs)
		if n <= 0 {
			return false
		}
		if atomic.CompareAndSwapInt32(&c.refs, n, n+1) {
			return true
		}
	}
}

// release drops a reference, tearing the connection down once it hits
// zero.
func (c *Conn) release() {
	if atomic.AddInt32(&c.refs, -1) == 0 {
		c.endpoint.forget(c)
	}
}

// deliver hands one already-demultiplexed datagram to the connection's
// transport.Conn. It only ever runs on this connection's Worker, so it
// never races with Read/Write/Timeout/Close for the same connection
// (spec section 4.6).
func (c *Conn) deliver(data []byte) {
	now := time.Now()
	if _, err := c.conn.Write(data); err != nil {
		debugLog(c.endpoint.log, "conn %x: write: %v", c.scid, err)
		return
	}
	c.drainEvents(now)
}

func (c *Conn) drainEvents(now time.Time) {
	buf := make([]byte, transport.MaxPacketSize)
	for {
		n, err := c.conn.Read(buf)
		if err != nil || n == 0 {
			break
		}
		if _, err := c.endpoint.datapath.Send(buf[:n], c.addr); err != nil {
			debugLog(c.endpoint.log, "conn %x: send: %v", c.scid, err)
			break
		}
	}
	if c.conn.IsClosed() {
		c.teardown()
	}
}

// teardown removes this connection's lookup entries and detaches its
// listener and event logger; it releases no reference. It runs only on
// the connection's own Worker (from drainEvents once the transport
// reports closed, or as a closeOperation), so never concurrently with
// itself.
func (c *Conn) teardown() {
	c.endpoint.lookup.removeLocalCID(c.scid)
	c.endpoint.lookup.removeRemoteHash(c.addr, c.scid)
	c.endpoint.listeners.detach(c)
	c.endpoint.eventLog.detachLogger(c)
}

func debugLog(log logrus.FieldLogger, format string, args ...interface{}) {
	if log != nil {
		log.Debugf(format, args...)
	}
}

// Datapath is the narrow send/receive surface an Endpoint needs from its
// transport (spec section 6, "datapath contract"); internal/udpsock
// implements it over a real UDP socket, and tests can substitute a fake.
type Datapath interface {
	Send(b []byte, addr net.Addr) (int, error)
}

// Endpoint owns one binding's worth of state: the connection lookup
// table, the stateless-operation tracker, registered listeners, a pool
// of Workers, and the datapath it sends replies through. Client and
// Server are thin constructors over it.
type Endpoint struct {
	config    *transport.Config
	datapath  Datapath
	lookup    *connLookup
	stateless *statelessTracker
	listeners *listenerSet
	workers   []*Worker
	binding   *Binding
	eventLog  *logger

	log logrus.FieldLogger

	nextWorker uint32 // atomic round robin over workers
}

// EndpointOptions configures an Endpoint beyond transport.Config (spec
// section 6's binding/worker knobs).
type EndpointOptions struct {
	TransportConfig *transport.Config

	WorkerCount            int
	WorkerQueueBudget      int
	MaxStatelessOperations int
	StatelessOpTTL         time.Duration
	BlockedSourcePorts     []int

	Log logrus.FieldLogger
}

// DefaultEndpointOptions mirrors spec section 6's configuration table.
func DefaultEndpointOptions() EndpointOptions {
	return EndpointOptions{
		TransportConfig:        transport.DefaultConfig(),
		WorkerCount:            4,
		WorkerQueueBudget:      256,
		MaxStatelessOperations: 4096,
		StatelessOpTTL:         2 * time.Second,
		BlockedSourcePorts:     defaultBlockedSourcePorts(),
		Log:                    logrus.StandardLogger(),
	}
}

// NewEndpoint constructs an Endpoint bound to datapath, including its
// Binding (binding.go); Client.Receive and Server.Receive feed inbound
// datagrams into that Binding.
func NewEndpoint(datapath Datapath, opts EndpointOptions) (*Endpoint, error) {
	if opts.TransportConfig == nil {
		opts.TransportConfig = transport.DefaultConfig()
	}
	if opts.WorkerCount <= 0 {
		opts.WorkerCount = 1
	}
	st, err := newStatelessTracker(opts.MaxStatelessOperations, opts.StatelessOpTTL, "default")
	if err != nil {
		return nil, err
	}
	ep := &Endpoint{
		config:    opts.TransportConfig,
		datapath:  datapath,
		lookup:    newConnLookup(),
		stateless: st,
		listeners: newListenerSet(),
		log:       opts.Log,
		eventLog:  &logger{level: levelOff},
	}
	for i := 0; i < opts.WorkerCount; i++ {
		ep.workers = append(ep.workers, newWorker(i, opts.WorkerQueueBudget, nil, opts.Log))
	}
	ep.binding = newBinding(ep, opts.BlockedSourcePorts)
	return ep, nil
}

// nextWorkerFor picks a worker for a new connection, round robin across
// the pool -- affinity for the connection's lifetime, not per packet.
func (ep *Endpoint) nextWorkerFor() *Worker {
	n := atomic.AddUint32(&ep.nextWorker, 1)
	return ep.workers[int(n)%len(ep.workers)]
}

// forget is called once a Conn's refcount reaches zero; actual
// index cleanup already happened in teardown, called from the close
// path, so this only exists as the acquire/release contract's other
// half and is where a pool would return the Conn, if this core
// pooled them.
func (ep *Endpoint) forget(c *Conn) {
	debugLog(ep.log, "conn %x: freed", c.scid)
}

// Close shuts every worker down, draining in-flight operations first.
func (ep *Endpoint) Close() error {
	var firstErr error
	for _, w := range ep.workers {
		if err := w.Close(); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	return firstErr
}
