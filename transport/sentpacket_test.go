package transport

import (
	"testing"
	"time"
)

func TestOutgoingPacketAddFrameAckEliciting(t *testing.T) {
	op := newOutgoingPacket(1, time.Now())
	op.addFrame(newPaddingFrame(1))
	if op.ackEliciting || op.inFlight {
		t.Fatalf("padding alone should not make the packet ack-eliciting or in-flight")
	}
	op.addFrame(newMaxDataFrame(10))
	if !op.ackEliciting || !op.inFlight {
		t.Fatalf("expected max_data to mark packet ack-eliciting and in-flight")
	}
}

func TestSentFrameAckEliciting(t *testing.T) {
	cases := []struct {
		f    frame
		want bool
	}{
		{newPaddingFrame(1), false},
		{&ackFrame{}, false},
		{newConnectionCloseFrame(0, 0, nil, false), false},
		{&pingFrame{}, true},
		{newMaxDataFrame(1), true},
	}
	for _, c := range cases {
		if got := sentFrameAckEliciting(c.f); got != c.want {
			t.Fatalf("sentFrameAckEliciting(%T) = %v, want %v", c.f, got, c.want)
		}
	}
}
