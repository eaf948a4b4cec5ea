package qcore

import (
	"encoding/binary"
	"net"
	"sync"
	"testing"
	"time"

	"github.com/quic-edge/qcore/transport"
)

// fakeDatapath records every packet a Binding sends in response, standing
// in for internal/udpsock's real socket.
type fakeDatapath struct {
	mu   sync.Mutex
	sent [][]byte
}

func (d *fakeDatapath) Send(b []byte, addr net.Addr) (int, error) {
	d.mu.Lock()
	d.sent = append(d.sent, append([]byte(nil), b...))
	d.mu.Unlock()
	return len(b), nil
}

func (d *fakeDatapath) last() []byte {
	d.mu.Lock()
	defer d.mu.Unlock()
	if len(d.sent) == 0 {
		return nil
	}
	return d.sent[len(d.sent)-1]
}

func (d *fakeDatapath) count() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return len(d.sent)
}

type noopHandler struct{}

func (noopHandler) Serve(c *Conn) {}

func newTestEndpoint(t *testing.T) (*Endpoint, *fakeDatapath) {
	t.Helper()
	dp := &fakeDatapath{}
	opts := DefaultEndpointOptions()
	opts.WorkerCount = 1
	ep, err := NewEndpoint(dp, opts)
	if err != nil {
		t.Fatalf("NewEndpoint: %v", err)
	}
	ep.listeners.setHandler(noopHandler{})
	return ep, dp
}

// buildInitialPacket hand-encodes a long-header Initial packet's header
// and a filler payload the same way transport.packet.encodeLongHeader
// does (the fields a binding's receive pipeline reads are all in the
// clear; only the payload is ever encrypted), padded out to
// MinInitialPacketSize so handleInitial's size check passes.
func buildInitialPacket(version uint32, dcid, scid []byte) []byte {
	header := []byte{0xc3} // long header, fixed bit, Initial type, 4-byte packet number
	var four [4]byte
	binary.BigEndian.PutUint32(four[:], version)
	header = append(header, four[:]...)
	header = append(header, byte(len(dcid)))
	header = append(header, dcid...)
	header = append(header, byte(len(scid)))
	header = append(header, scid...)
	header = append(header, 0x00) // empty token length varint

	lengthOff := len(header)
	header = append(header, 0x00, 0x00) // 2-byte length varint placeholder
	header = append(header, 0, 0, 0, 1) // packet number

	total := transport.MinInitialPacketSize
	payloadLen := total - len(header)
	if payloadLen < 0 {
		payloadLen = 0
	}
	lengthVal := uint64(4 + payloadLen)
	header[lengthOff] = 0x40 | byte(lengthVal>>8)
	header[lengthOff+1] = byte(lengthVal)

	return append(header, make([]byte, payloadLen)...)
}

func TestBindingDropsBlockedSourcePort(t *testing.T) {
	ep, dp := newTestEndpoint(t)
	addr := &net.UDPAddr{IP: net.ParseIP("127.0.0.1"), Port: 53}
	pkt := buildInitialPacket(transport.ProtocolVersion1, []byte("destination1"), []byte("source1"))

	ep.binding.Receive(pkt, addr, time.Now())

	if dp.count() != 0 {
		t.Fatalf("expected no reply to a blocked source port, got %d", dp.count())
	}
}

func TestBindingSendsVersionNegotiation(t *testing.T) {
	ep, dp := newTestEndpoint(t)
	addr := &net.UDPAddr{IP: net.ParseIP("127.0.0.1"), Port: 5000}
	dcid := []byte("destination1")
	scid := []byte("source1")
	pkt := buildInitialPacket(0xabababab, dcid, scid)

	ep.binding.Receive(pkt, addr, time.Now())

	if dp.count() != 1 {
		t.Fatalf("expected one version negotiation reply, got %d", dp.count())
	}
	info, err := transport.PeekPacketInfo(dp.last(), transport.MaxCIDLength)
	if err != nil {
		t.Fatalf("PeekPacketInfo on reply: %v", err)
	}
	if info.Version != 0 {
		t.Fatalf("expected a version negotiation packet (version 0), got %#x", info.Version)
	}
}

func TestBindingCreatesConnectionOnInitial(t *testing.T) {
	ep, _ := newTestEndpoint(t)
	addr := &net.UDPAddr{IP: net.ParseIP("127.0.0.1"), Port: 5001}
	dcid := []byte("destination1")
	scid := []byte("source1")
	pkt := buildInitialPacket(transport.ProtocolVersion1, dcid, scid)

	ep.binding.Receive(pkt, addr, time.Now())

	c, ok := ep.lookup.findByRemoteHash(addr, scid)
	if !ok {
		t.Fatalf("expected a connection indexed under (addr, client scid) after an Initial")
	}
	c.release()
}

func TestBindingRetryRequiresValidToken(t *testing.T) {
	ep, dp := newTestEndpoint(t)
	ep.binding.RequireRetry = true
	addr := &net.UDPAddr{IP: net.ParseIP("127.0.0.1"), Port: 5002}
	dcid := []byte("destination1")
	scid := []byte("source1")
	pkt := buildInitialPacket(transport.ProtocolVersion1, dcid, scid)

	ep.binding.Receive(pkt, addr, time.Now())

	if dp.count() != 1 {
		t.Fatalf("expected a retry reply when no token is present, got %d", dp.count())
	}
	if _, ok := ep.lookup.findByRemoteHash(addr, scid); ok {
		t.Fatalf("expected no connection to be created before retry validates")
	}

	retryToken, err := transport.DecodeRetryToken(dp.last())
	if err != nil {
		t.Fatalf("DecodeRetryToken: %v", err)
	}
	newDCIDInfo, err := transport.PeekPacketInfo(dp.last(), transport.MaxCIDLength)
	if err != nil {
		t.Fatalf("PeekPacketInfo on retry: %v", err)
	}
	// The retry's SCID is the new DCID the client must echo back.
	pkt2 := buildInitialPacketWithToken(transport.ProtocolVersion1, newDCIDInfo.SCID, scid, retryToken)
	ep.binding.Receive(pkt2, addr, time.Now())

	c, ok := ep.lookup.findByRemoteHash(addr, scid)
	if !ok {
		t.Fatalf("expected a connection after a valid retry token round trip")
	}
	c.release()
}

func buildInitialPacketWithToken(version uint32, dcid, scid, token []byte) []byte {
	header := []byte{0xc3}
	var four [4]byte
	binary.BigEndian.PutUint32(four[:], version)
	header = append(header, four[:]...)
	header = append(header, byte(len(dcid)))
	header = append(header, dcid...)
	header = append(header, byte(len(scid)))
	header = append(header, scid...)
	header = append(header, byte(len(token)))
	header = append(header, token...)

	lengthOff := len(header)
	header = append(header, 0x00, 0x00)
	header = append(header, 0, 0, 0, 1)

	total := transport.MinInitialPacketSize
	payloadLen := total - len(header)
	if payloadLen < 0 {
		payloadLen = 0
	}
	lengthVal := uint64(4 + payloadLen)
	header[lengthOff] = 0x40 | byte(lengthVal>>8)
	header[lengthOff+1] = byte(lengthVal)

	return append(header, make([]byte, payloadLen)...)
}

func TestBindingStatelessResetForUnknownShortHeader(t *testing.T) {
	ep, dp := newTestEndpoint(t)
	addr := &net.UDPAddr{IP: net.ParseIP("127.0.0.1"), Port: 5003}
	dcid := make([]byte, transport.MaxCIDLength)
	for i := range dcid {
		dcid[i] = byte(i)
	}
	// 0x40 sets the fixed bit with the high (long-header) bit clear.
	pkt := append([]byte{0x40}, dcid...)
	pkt = append(pkt, make([]byte, 4)...) // packet number

	ep.binding.Receive(pkt, addr, time.Now())

	if dp.count() != 1 {
		t.Fatalf("expected one stateless reset reply, got %d", dp.count())
	}
	if len(dp.last()) < transport.MinStatelessResetSize {
		t.Fatalf("stateless reset too short: %d bytes", len(dp.last()))
	}
}

func TestBindingNoListenerDropsInitial(t *testing.T) {
	dp := &fakeDatapath{}
	opts := DefaultEndpointOptions()
	opts.WorkerCount = 1
	ep, err := NewEndpoint(dp, opts)
	if err != nil {
		t.Fatalf("NewEndpoint: %v", err)
	}
	addr := &net.UDPAddr{IP: net.ParseIP("127.0.0.1"), Port: 5004}
	pkt := buildInitialPacket(transport.ProtocolVersion1, []byte("destination1"), []byte("source1"))

	ep.binding.Receive(pkt, addr, time.Now())

	if dp.count() != 0 {
		t.Fatalf("expected no reply with no listener registered, got %d", dp.count())
	}
}
