package transport

import (
	"testing"
	"time"
)

func TestRenoCongestionSlowStartGrowsOnAck(t *testing.T) {
	c := newRenoCongestion()
	initial := c.congestionWindow()
	c.onDataSent(MaxPacketSize)
	c.onDataAcked(time.Now(), 1, MaxPacketSize, 50*time.Millisecond)
	if c.congestionWindow() <= initial {
		t.Fatalf("expected window to grow in slow start: got %d, was %d", c.congestionWindow(), initial)
	}
	if c.bytesInFlight() != 0 {
		t.Fatalf("expected bytesInFlight 0 after full ack, got %d", c.bytesInFlight())
	}
}

func TestRenoCongestionLossHalvesWindow(t *testing.T) {
	c := newRenoCongestion()
	before := c.congestionWindow()
	c.onDataSent(MaxPacketSize)
	c.onDataLost(1, 1, MaxPacketSize, false)
	if c.congestionWindow() >= before {
		t.Fatalf("expected window to shrink after loss: got %d, was %d", c.congestionWindow(), before)
	}
	if c.congestionWindow() < renoMinWindow {
		t.Fatalf("window fell below minimum: %d < %d", c.congestionWindow(), renoMinWindow)
	}
}

func TestRenoCongestionPersistentCongestionResetsToMin(t *testing.T) {
	c := newRenoCongestion()
	c.onDataSent(10 * MaxPacketSize)
	c.onDataLost(1, 1, int(10*MaxPacketSize), true)
	if c.congestionWindow() != renoMinWindow {
		t.Fatalf("expected window reset to minimum on persistent congestion, got %d", c.congestionWindow())
	}
}

func TestRenoCongestionInvalidatedUnblocks(t *testing.T) {
	c := newRenoCongestion()
	c.window = MaxPacketSize
	c.onDataSent(MaxPacketSize)
	if unblocked := c.onDataInvalidated(MaxPacketSize); !unblocked {
		t.Fatalf("expected invalidation to unblock a fully-utilized window")
	}
}
