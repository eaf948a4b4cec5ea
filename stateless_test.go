package qcore

import (
	"net"
	"testing"
	"time"

	"github.com/quic-edge/qcore/transport"
)

func testAddr(port int) net.Addr {
	return &net.UDPAddr{IP: net.ParseIP("127.0.0.1"), Port: port}
}

func TestStatelessTrackerVersionNegotiation(t *testing.T) {
	tr, err := newStatelessTracker(4, time.Second, "test")
	if err != nil {
		t.Fatalf("newStatelessTracker: %v", err)
	}
	now := time.Now()
	pkt, ok := tr.buildVersionNegotiation(testAddr(1), []byte{1, 2, 3, 4}, []byte{5, 6, 7, 8}, now)
	if !ok || len(pkt) == 0 {
		t.Fatalf("expected version negotiation packet")
	}
	// A second op for the same address before Sweep should be refused.
	if _, ok := tr.buildVersionNegotiation(testAddr(1), []byte{1, 2, 3, 4}, []byte{5, 6, 7, 8}, now); ok {
		t.Fatalf("expected duplicate op for same address to be refused")
	}
}

func TestStatelessTrackerRetryRoundTrip(t *testing.T) {
	tr, err := newStatelessTracker(4, time.Second, "test")
	if err != nil {
		t.Fatalf("newStatelessTracker: %v", err)
	}
	now := time.Now()
	addr := testAddr(2)
	dcid := []byte{1, 2, 3, 4, 5, 6, 7, 8}
	scid := []byte{9, 9, 9, 9}
	pkt, newDCID, ok := tr.buildRetry(addr, dcid, scid, now)
	if !ok || len(pkt) == 0 || len(newDCID) == 0 {
		t.Fatalf("expected retry packet and new dcid")
	}
	token, err := transport.DecodeRetryToken(pkt)
	if err != nil {
		t.Fatalf("DecodeRetryToken: %v", err)
	}
	if !tr.validateRetryToken(newDCID, token, addr, now.Add(time.Millisecond), time.Minute) {
		t.Fatalf("expected retry token to validate")
	}
	if tr.validateRetryToken(newDCID, token, testAddr(3), now, time.Minute) {
		t.Fatalf("expected retry token to reject a different address")
	}
}

func TestStatelessTrackerSweepFreesExpiredProcessed(t *testing.T) {
	tr, err := newStatelessTracker(1, time.Millisecond, "test")
	if err != nil {
		t.Fatalf("newStatelessTracker: %v", err)
	}
	now := time.Now()
	addr := testAddr(4)
	if _, ok := tr.buildStatelessReset(addr, []byte{1, 2, 3, 4}, nil, now); !ok {
		t.Fatalf("expected stateless reset to be tracked")
	}
	if _, ok := tr.buildStatelessReset(testAddr(5), []byte{5, 6, 7, 8}, nil, now); ok {
		t.Fatalf("expected tracker at capacity to refuse a second address")
	}
	freed := tr.Sweep(now.Add(time.Second))
	if freed != 1 {
		t.Fatalf("expected Sweep to free 1 expired entry, freed %d", freed)
	}
	if _, ok := tr.buildStatelessReset(testAddr(5), []byte{5, 6, 7, 8}, nil, now.Add(time.Second)); !ok {
		t.Fatalf("expected capacity to be available after Sweep")
	}
}
