package transport

import "time"

// outgoingPacket accumulates the frames chosen for one packet while it is
// being built (conn.send/sendFrames), and becomes the record recovery
// uses to track it once sent (spec section 3, "Sent packet metadata").
type outgoingPacket struct {
	packetNumber uint64
	timeSent     time.Time
	size         uint64
	ackEliciting bool
	inFlight     bool
	is0RTT       bool // tags a 0-RTT packet within the shared Application space (spec section 4.5)
	frames       []frame

	next *outgoingPacket // recovery's sent-packet list link
}

func newOutgoingPacket(pn uint64, now time.Time) *outgoingPacket {
	return &outgoingPacket{packetNumber: pn, timeSent: now}
}

func (op *outgoingPacket) addFrame(f frame) {
	op.frames = append(op.frames, f)
	if sentFrameAckEliciting(f) {
		op.ackEliciting = true
		op.inFlight = true
	}
}

func (op *outgoingPacket) String() string {
	return sprint("pn=", op.packetNumber, " size=", op.size, " frames=", len(op.frames))
}

// sentFrameAckEliciting mirrors isFrameAckEliciting but operates on the
// decoded frame value a sender already holds, rather than re-deriving a
// wire type code.
func sentFrameAckEliciting(f frame) bool {
	switch f.(type) {
	case *paddingFrame, *ackFrame, *connectionCloseFrame:
		return false
	}
	return true
}
