package qcore

import (
	"crypto/rand"
	"net"
	"sync"
	"time"

	"github.com/quic-edge/qcore/internal/metrics"
	"github.com/quic-edge/qcore/transport"
)

// statelessOpKind distinguishes the three operations a binding can
// generate without any connection state (spec section 4.4).
type statelessOpKind int

const (
	opVersionNegotiation statelessOpKind = iota
	opRetry
	opStatelessReset
)

func (k statelessOpKind) String() string {
	switch k {
	case opVersionNegotiation:
		return "version_negotiation"
	case opRetry:
		return "retry"
	case opStatelessReset:
		return "stateless_reset"
	default:
		return "unknown"
	}
}

type statelessOpState int

const (
	stateCreated statelessOpState = iota
	stateQueued
	stateProcessed
)

// statelessOp is one tracked stateless operation: {Created -> Queued ->
// Processed -> (Expired && Processed => Free)} per spec section 4.4.
// Sweep frees an entry only once it is both expired and Processed, so an
// operation that is still being sent never gets recycled out from under
// its own datagram.
type statelessOp struct {
	kind      statelessOpKind
	key       string
	state     statelessOpState
	createdAt time.Time
	packet    []byte
}

func (o *statelessOp) expired(now time.Time, ttl time.Duration) bool {
	return now.Sub(o.createdAt) >= ttl
}

// statelessTracker bounds and ages the stateless operations a binding is
// willing to hold at once (spec section 4.4: max_binding_stateless_
// operations, stateless_operation_expiration_ms). It is keyed on the
// remote address, mirroring connLookup's remote-hash index but entirely
// separate from it: a stateless op exists before any connection does.
type statelessTracker struct {
	mu      sync.Mutex
	ops     map[string]*statelessOp
	maxOps  int
	ttl     time.Duration

	retryTokenKey  []byte
	resetKey       []byte
	bindingLabel   string
}

func newStatelessTracker(maxOps int, ttl time.Duration, bindingLabel string) (*statelessTracker, error) {
	t := &statelessTracker{
		ops:          make(map[string]*statelessOp),
		maxOps:       maxOps,
		ttl:          ttl,
		bindingLabel: bindingLabel,
	}
	t.retryTokenKey = make([]byte, transport.RetryTokenKeySize)
	if _, err := rand.Read(t.retryTokenKey); err != nil {
		return nil, err
	}
	t.resetKey = make([]byte, 32)
	if _, err := rand.Read(t.resetKey); err != nil {
		return nil, err
	}
	return t, nil
}

// try first runs Sweep, then reserves room for one more tracked operation
// for addr, returning false (and tracking nothing) if addr already has a
// tracked operation or the binding is still at
// max_binding_stateless_operations.
func (t *statelessTracker) try(kind statelessOpKind, addr net.Addr, now time.Time) (*statelessOp, bool) {
	t.Sweep(now)
	key := addr.String()
	t.mu.Lock()
	defer t.mu.Unlock()
	if _, exists := t.ops[key]; exists {
		return nil, false
	}
	if len(t.ops) >= t.maxOps {
		metrics.StatelessOpsDropped.WithValues(kind.String()).Inc(1)
		return nil, false
	}
	op := &statelessOp{kind: kind, key: key, state: stateCreated, createdAt: now}
	t.ops[key] = op
	metrics.StatelessOpsTracked.WithValues(t.bindingLabel).Inc(1)
	return op, true
}

func (t *statelessTracker) markQueued(op *statelessOp) {
	t.mu.Lock()
	op.state = stateQueued
	t.mu.Unlock()
}

func (t *statelessTracker) markProcessed(op *statelessOp) {
	t.mu.Lock()
	op.state = stateProcessed
	t.mu.Unlock()
}

// Sweep frees tracked operations that are both Processed and expired,
// the aging pass spec section 4.4 calls for so a slow or lost client
// doesn't pin a slot forever.
func (t *statelessTracker) Sweep(now time.Time) int {
	t.mu.Lock()
	defer t.mu.Unlock()
	freed := 0
	for key, op := range t.ops {
		if op.state == stateProcessed && op.expired(now, t.ttl) {
			delete(t.ops, key)
			freed++
		}
	}
	if freed > 0 {
		metrics.StatelessOpsTracked.WithValues(t.bindingLabel).Dec(float64(freed))
	}
	return freed
}

// buildVersionNegotiation creates and tracks a Version Negotiation
// response for a client Initial carrying an unsupported version.
func (t *statelessTracker) buildVersionNegotiation(addr net.Addr, dcid, scid []byte, now time.Time) ([]byte, bool) {
	op, ok := t.try(opVersionNegotiation, addr, now)
	if !ok {
		return nil, false
	}
	pkt := transport.EncodeVersionNegotiation(scid, dcid)
	op.packet = pkt
	t.markQueued(op)
	t.markProcessed(op)
	return pkt, true
}

// buildRetry creates and tracks a Retry packet, picking a fresh CID as
// the new DCID the client must use and encoding its address into the
// token SealRetryToken protects (spec section 4.4, "Retry").
func (t *statelessTracker) buildRetry(addr net.Addr, dcid, scid []byte, now time.Time) ([]byte, []byte, bool) {
	op, ok := t.try(opRetry, addr, now)
	if !ok {
		return nil, nil, false
	}
	newDCID, err := newLocalCIDFn()
	if err != nil {
		t.markProcessed(op)
		return nil, nil, false
	}
	token, err := transport.SealRetryToken(t.retryTokenKey, newDCID, []byte(addr.String()), now)
	if err != nil {
		t.markProcessed(op)
		return nil, nil, false
	}
	pkt := transport.EncodeRetryPacket(transport.ProtocolVersion1, scid, newDCID, dcid, token)
	op.packet = pkt
	t.markQueued(op)
	t.markProcessed(op)
	return pkt, newDCID, true
}

// validateRetryToken reverses buildRetry's token for a client's follow-up
// Initial, confirming the address matches and the token hasn't expired.
func (t *statelessTracker) validateRetryToken(dcid, token []byte, addr net.Addr, now time.Time, maxAge time.Duration) bool {
	got, issuedAt, err := transport.OpenRetryToken(t.retryTokenKey, dcid, token)
	if err != nil {
		return false
	}
	if string(got) != addr.String() {
		return false
	}
	return now.Sub(issuedAt) <= maxAge
}

// buildStatelessReset creates and tracks a Stateless Reset for a short
// header packet whose DCID names no known connection, deriving the
// token from the same DCID so the peer that owns it can recognize the
// reset (spec section 4.4, "Stateless Reset").
func (t *statelessTracker) buildStatelessReset(addr net.Addr, dcid []byte, pad []byte, now time.Time) ([]byte, bool) {
	op, ok := t.try(opStatelessReset, addr, now)
	if !ok {
		return nil, false
	}
	token := transport.DeriveStatelessResetToken(t.resetKey, dcid)
	pkt := transport.EncodeStatelessReset(token, pad)
	op.packet = pkt
	t.markQueued(op)
	t.markProcessed(op)
	return pkt, true
}

// newLocalCIDFn is a package-level indirection over transport's CID
// generator so tests can substitute a deterministic one; production
// code always uses transport.NewLocalCID with crypto/rand.
var newLocalCIDFn = func() ([]byte, error) { return transport.NewLocalCID(nil) }
