package qcore

import (
	"net"
	"sync/atomic"
	"time"

	"github.com/quic-edge/qcore/transport"
)

// retryTokenMaxAge bounds how long a Retry token stays valid; spec
// section 4.4 ties this to stateless_operation_expiration_ms, but a
// token needs to survive a client's full round trip back, so this core
// gives it more headroom than a single tracked operation's TTL.
const retryTokenMaxAge = 10 * time.Second

// Binding is the receive pipeline for one UDP socket (spec section 4.3).
// Every datagram a Datapath hands up goes through Receive, which
// assigns it a packet_id, preprocesses and validates it, decides on
// version negotiation, sub-chains a coalesced datagram by destination
// CID, and routes each chain to an existing connection or decides
// whether to create one -- including, for an Initial that needs address
// validation, deciding on Retry (spec section 4.4).
type Binding struct {
	ep *Endpoint

	blockedSourcePorts map[int]bool
	packetID           uint64 // atomic, spec section 4.3 "packet_id assignment"

	// RequireRetry gates address validation: when set, an Initial without
	// a token is answered with Retry instead of creating a connection, and
	// one whose token fails validation is dropped (spec section 4.4).
	RequireRetry bool
}

func newBinding(ep *Endpoint, blockedPorts []int) *Binding {
	b := &Binding{ep: ep, blockedSourcePorts: make(map[int]bool, len(blockedPorts))}
	for _, p := range blockedPorts {
		b.blockedSourcePorts[p] = true
	}
	return b
}

// defaultBlockedSourcePorts lists UDP services long abused as
// reflection/amplification sources (chargen, DNS, NTP monlist, SNMP,
// SSDP, mDNS, memcached): a datagram claiming to originate from one of
// these is dropped in preprocessing before any parsing, the same
// blocklist msquic's binding keeps for the same reason.
func defaultBlockedSourcePorts() []int {
	return []int{7, 13, 17, 19, 53, 111, 123, 137, 138, 161, 1900, 3702, 5353, 11211}
}

// Receive is the entry point a Datapath calls for every UDP datagram.
// now lets tests drive the pipeline deterministically.
func (b *Binding) Receive(data []byte, addr net.Addr, now time.Time) {
	atomic.AddUint64(&b.packetID, 1)
	if !b.preprocess(data, addr) {
		return
	}
	for len(data) > 0 {
		consumed := b.receiveChain(data, addr, now)
		if consumed <= 0 || consumed > len(data) {
			return
		}
		data = data[consumed:]
	}
}

// preprocess applies the cheap, pre-parse checks spec section 4.3 calls
// preprocessing: a blocked source port, or a datagram too short to be
// anything, is dropped before any packet is parsed.
func (b *Binding) preprocess(data []byte, addr net.Addr) bool {
	if len(data) == 0 {
		return false
	}
	if udpAddr, ok := addr.(*net.UDPAddr); ok && b.blockedSourcePorts[udpAddr.Port] {
		return false
	}
	return true
}

// receiveChain parses and routes exactly one packet from the front of
// data, returning how many bytes it consumed so the caller can move on
// to the next coalesced packet (spec section 4.3, "sub-chaining by
// destination CID"). RFC 9000 requires coalesced long-header packets to
// share one DCID and places any short-header packet last (it has no
// length field), so processing strictly left to right both sub-chains
// correctly and gives Initial-before-Handshake/0-RTT ordering for free
// ("handshake-first ordering").
func (b *Binding) receiveChain(data []byte, addr net.Addr, now time.Time) int {
	info, err := transport.PeekPacketInfo(data, transport.MaxCIDLength)
	if err != nil {
		return len(data)
	}
	chain := data[:info.WireLen]

	if info.Long && info.Version != 0 && !transport.VersionSupported(info.Version) {
		b.handleUnsupportedVersion(addr, info, now)
		return info.WireLen
	}

	if c, ok := b.ep.lookup.findByLocalCID(info.DCID); ok {
		b.deliverOrQueue(c, chain)
		return info.WireLen
	}
	if !info.Long {
		if c, ok := b.ep.lookup.findByRemoteHash(addr, info.DCID); ok {
			b.deliverOrQueue(c, chain)
			return info.WireLen
		}
		// Only an endpoint that accepts connections answers with a
		// stateless reset; a client endpoint drops the packet.
		if b.ep.listeners.hasListener() {
			b.sendStatelessReset(addr, info.DCID, now)
		}
		return info.WireLen
	}
	if info.IsInitial {
		b.handleInitial(chain, addr, info, now)
	}
	// A Handshake/0-RTT packet with no matching connection: nothing
	// useful to do with it, drop.
	return info.WireLen
}

func (b *Binding) handleUnsupportedVersion(addr net.Addr, info transport.PacketInfo, now time.Time) {
	if !b.ep.listeners.hasListener() {
		return
	}
	pkt, ok := b.ep.stateless.buildVersionNegotiation(addr, info.DCID, info.SCID, now)
	if !ok {
		return
	}
	if _, err := b.ep.datapath.Send(pkt, addr); err != nil {
		debugLog(b.ep.log, "binding: send version negotiation: %v", err)
	}
}

func (b *Binding) handleInitial(chain []byte, addr net.Addr, info transport.PacketInfo, now time.Time) {
	if !b.ep.listeners.hasListener() {
		return
	}
	if len(chain) < transport.MinInitialPacketSize {
		return
	}
	// Accept treats a non-empty odcid as "this connection went through
	// Retry"; without Retry the transport takes it from the first Initial.
	var odcid []byte
	if b.RequireRetry {
		odcid = info.DCID
		if len(info.Token) == 0 {
			pkt, _, ok := b.ep.stateless.buildRetry(addr, info.DCID, info.SCID, now)
			if ok {
				if _, err := b.ep.datapath.Send(pkt, addr); err != nil {
					debugLog(b.ep.log, "binding: send retry: %v", err)
				}
			}
			return
		}
		if !b.ep.stateless.validateRetryToken(info.DCID, info.Token, addr, now, retryTokenMaxAge) {
			return
		}
	}
	c, err := b.createConnection(info.SCID, odcid, addr, now)
	if err != nil {
		debugLog(b.ep.log, "binding: create connection: %v", err)
		return
	}
	b.deliverOrQueue(c, chain)
}

// createConnection builds a server-side Conn, indexes it under a
// freshly issued local CID and under (addr, peer SCID), attaches the
// currently registered listener and the event logger, and mints the
// acquired reference deliverOrQueue expects to consume (spec section
// 4.3, "connection creation").
func (b *Binding) createConnection(peerSCID, odcid []byte, addr net.Addr, now time.Time) (*Conn, error) {
	scid, err := transport.NewLocalCID(nil)
	if err != nil {
		return nil, err
	}
	tc, err := transport.Accept(scid, odcid, b.ep.config)
	if err != nil {
		return nil, err
	}
	w := b.ep.nextWorkerFor()
	c := newConn(tc, scid, addr, b.ep, w)
	if err := b.ep.lookup.addLocalCID(scid, c); err != nil {
		return nil, err
	}
	b.ep.lookup.addRemoteHash(c, addr, peerSCID)
	b.ep.eventLog.attachLogger(c)
	if h := b.ep.listeners.attach(c); h != nil {
		c.acquire() // held by the handler goroutine, released when it returns
		go func() {
			defer c.release()
			h.Serve(c)
		}()
	}
	c.acquire() // the extra ref deliverOrQueue's recvOperation will release
	return c, nil
}

// deliverOrQueue hands chain to c's worker as a recvOperation, which
// releases the reference the caller acquired (via findByLocalCID,
// findByRemoteHash, or createConnection's explicit acquire) once it has
// run. If queuing fails, the reference is released here instead, since
// no operation will ever run to do it.
func (b *Binding) deliverOrQueue(c *Conn, chain []byte) {
	buf := append([]byte(nil), chain...)
	if err := c.worker.Submit(&recvOperation{conn: c, data: buf}); err != nil {
		debugLog(b.ep.log, "binding: submit: %v", err)
		c.release()
	}
}

// sendStatelessReset answers a short-header packet naming no known
// connection, padded to look like a plausible 1-RTT packet the peer
// cannot distinguish from one on the wire (spec section 4.4).
func (b *Binding) sendStatelessReset(addr net.Addr, dcid []byte, now time.Time) {
	pad := make([]byte, transport.MinStatelessResetSize-transport.StatelessResetTokenSize)
	pkt, ok := b.ep.stateless.buildStatelessReset(addr, dcid, pad, now)
	if !ok {
		return
	}
	if _, err := b.ep.datapath.Send(pkt, addr); err != nil {
		debugLog(b.ep.log, "binding: send stateless reset: %v", err)
	}
}
