package transport

import (
	"bytes"
	"testing"
)

func roundTrip(t *testing.T, f frame, decode func([]byte) (int, error)) []byte {
	t.Helper()
	buf := make([]byte, f.encodedLen())
	n, err := f.encode(buf)
	if err != nil {
		t.Fatalf("encode: %v", err)
	}
	if n != f.encodedLen() {
		t.Fatalf("encode wrote %d, encodedLen() = %d", n, f.encodedLen())
	}
	m, err := decode(buf)
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	if m != n {
		t.Fatalf("decode consumed %d, want %d", m, n)
	}
	return buf
}

func TestAckFrameFromRangeSetRoundTrip(t *testing.T) {
	var recv rangeSet
	recv.add(0, 3)   // [0,3)
	recv.add(10, 5)  // [10,15)
	recv.add(20, 1)  // [20,21)

	f := newAckFrame(42, recv)
	if f.largestAck != 20 {
		t.Fatalf("largestAck = %d, want 20", f.largestAck)
	}
	if len(f.ranges) != 2 {
		t.Fatalf("ranges = %d, want 2", len(f.ranges))
	}

	buf := make([]byte, f.encodedLen())
	if _, err := f.encode(buf); err != nil {
		t.Fatalf("encode: %v", err)
	}
	var got ackFrame
	if _, err := got.decode(buf); err != nil {
		t.Fatalf("decode: %v", err)
	}
	rs := got.toRangeSet()
	if rs == nil || !rs.equal(&recv) {
		t.Fatalf("round trip mismatch: got %+v, want %+v", rs, recv)
	}
}

func TestAckFrameECN(t *testing.T) {
	f := &ackFrame{largestAck: 5, ackDelay: 1, firstAckRange: 5}
	buf := make([]byte, f.encodedLen())
	if _, err := f.encode(buf); err != nil {
		t.Fatalf("encode: %v", err)
	}
	var got ackFrame
	if _, err := got.decode(buf); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if got.ecnCounts {
		t.Fatalf("expected ecnCounts false for plain ACK encoding")
	}
}

func TestResetStreamFrameRoundTrip(t *testing.T) {
	f := newResetStreamFrame(7, 11, 99)
	var got resetStreamFrame
	roundTrip(t, f, got.decode)
	if got.streamID != 7 || got.errorCode != 11 || got.finalSize != 99 {
		t.Fatalf("got %+v", got)
	}
}

func TestStopSendingFrameRoundTrip(t *testing.T) {
	f := newStopSendingFrame(3, 4)
	var got stopSendingFrame
	roundTrip(t, f, got.decode)
	if got.streamID != 3 || got.errorCode != 4 {
		t.Fatalf("got %+v", got)
	}
}

func TestCryptoFrameRoundTrip(t *testing.T) {
	data := []byte("handshake bytes")
	f := newCryptoFrame(data, 128)
	var got cryptoFrame
	roundTrip(t, f, got.decode)
	if got.offset != 128 || !bytes.Equal(got.data, data) {
		t.Fatalf("got %+v", got)
	}
}

func TestNewTokenFrameRoundTrip(t *testing.T) {
	tok := []byte{1, 2, 3, 4}
	f := newNewTokenFrame(tok)
	var got newTokenFrame
	roundTrip(t, f, got.decode)
	if !bytes.Equal(got.token, tok) {
		t.Fatalf("got %+v", got)
	}
}

func TestStreamFrameRoundTrip(t *testing.T) {
	data := []byte("payload")
	f := newStreamFrame(5, data, 16, true)
	var got streamFrame
	roundTrip(t, f, got.decode)
	if got.streamID != 5 || got.offset != 16 || !got.fin || !bytes.Equal(got.data, data) {
		t.Fatalf("got %+v", got)
	}
}

func TestMaxStreamsFrameBidiUni(t *testing.T) {
	for _, bidi := range []bool{false, true} {
		f := newMaxStreamsFrame(42, bidi)
		var got maxStreamsFrame
		roundTrip(t, f, got.decode)
		if got.bidi != bidi || got.maximumStreams != 42 {
			t.Fatalf("got %+v, bidi=%v", got, bidi)
		}
	}
}

func TestStreamsBlockedFrameBidiUni(t *testing.T) {
	for _, bidi := range []bool{false, true} {
		f := newStreamsBlockedFrame(7, bidi)
		var got streamsBlockedFrame
		roundTrip(t, f, got.decode)
		if got.bidi != bidi || got.streamLimit != 7 {
			t.Fatalf("got %+v, bidi=%v", got, bidi)
		}
	}
}

func TestDataBlockedFrameRoundTrip(t *testing.T) {
	f := newDataBlockedFrame(1000)
	var got dataBlockedFrame
	roundTrip(t, f, got.decode)
	if got.dataLimit != 1000 {
		t.Fatalf("got %+v", got)
	}
}

func TestStreamDataBlockedFrameRoundTrip(t *testing.T) {
	f := newStreamDataBlockedFrame(9, 500)
	var got streamDataBlockedFrame
	roundTrip(t, f, got.decode)
	if got.streamID != 9 || got.dataLimit != 500 {
		t.Fatalf("got %+v", got)
	}
}

func TestNewConnectionIDFrameRoundTrip(t *testing.T) {
	f := &newConnectionIDFrame{
		sequenceNumber: 2,
		retirePriorTo:  1,
		connectionID:   []byte{1, 2, 3, 4, 5, 6, 7, 8},
	}
	copy(f.resetToken[:], bytes.Repeat([]byte{0xaa}, 16))
	var got newConnectionIDFrame
	roundTrip(t, f, got.decode)
	if got.sequenceNumber != 2 || got.retirePriorTo != 1 {
		t.Fatalf("got %+v", got)
	}
	if !bytes.Equal(got.connectionID, f.connectionID) {
		t.Fatalf("connectionID mismatch: %x vs %x", got.connectionID, f.connectionID)
	}
	if got.resetToken != f.resetToken {
		t.Fatalf("resetToken mismatch")
	}
}

func TestRetireConnectionIDFrameRoundTrip(t *testing.T) {
	f := &retireConnectionIDFrame{sequenceNumber: 3}
	var got retireConnectionIDFrame
	roundTrip(t, f, got.decode)
	if got.sequenceNumber != 3 {
		t.Fatalf("got %+v", got)
	}
}

func TestPathChallengeResponseRoundTrip(t *testing.T) {
	var data [8]byte
	copy(data[:], []byte("01234567"))

	c := &pathChallengeFrame{data: data}
	var gotC pathChallengeFrame
	roundTrip(t, c, gotC.decode)
	if gotC.data != data {
		t.Fatalf("challenge mismatch: %x", gotC.data)
	}

	r := &pathResponseFrame{data: data}
	var gotR pathResponseFrame
	roundTrip(t, r, gotR.decode)
	if gotR.data != data {
		t.Fatalf("response mismatch: %x", gotR.data)
	}
}

func TestConnectionCloseFrameTransportAndApplication(t *testing.T) {
	f := newConnectionCloseFrame(0x01, 0x08, []byte("bye"), false)
	var got connectionCloseFrame
	roundTrip(t, f, got.decode)
	if got.application || got.errorCode != 0x01 || got.frameType != 0x08 || string(got.reasonPhrase) != "bye" {
		t.Fatalf("got %+v", got)
	}

	af := newConnectionCloseFrame(0x02, 0, []byte("app bye"), true)
	var gotA connectionCloseFrame
	roundTrip(t, af, gotA.decode)
	if !gotA.application || gotA.errorCode != 0x02 || gotA.frameType != 0 || string(gotA.reasonPhrase) != "app bye" {
		t.Fatalf("got %+v", gotA)
	}
}

func TestDatagramFrameRoundTrip(t *testing.T) {
	data := []byte("unreliable payload")
	f := &datagramFrame{data: data}
	var got datagramFrame
	roundTrip(t, f, got.decode)
	if !bytes.Equal(got.data, data) {
		t.Fatalf("got %+v", got)
	}
}

func TestAckFrequencyFrameRoundTrip(t *testing.T) {
	f := &ackFrequencyFrame{
		sequenceNumber:        1,
		ackElicitingThreshold: 2,
		requestedMaxAckDelay:  25000,
		reorderThreshold:      3,
	}
	var got ackFrequencyFrame
	roundTrip(t, f, got.decode)
	if got != *f {
		t.Fatalf("got %+v, want %+v", got, *f)
	}
}

func TestPaddingFrameRoundTrip(t *testing.T) {
	f := newPaddingFrame(5)
	buf := make([]byte, f.encodedLen())
	n, err := f.encode(buf)
	if err != nil || n != 5 {
		t.Fatalf("encode: n=%d err=%v", n, err)
	}
	var got paddingFrame
	m, err := got.decode(buf)
	if err != nil || m != 5 || got.length != 5 {
		t.Fatalf("decode: m=%d err=%v got=%+v", m, err, got)
	}
}

func TestPingFrameRoundTrip(t *testing.T) {
	f := &pingFrame{}
	var got pingFrame
	roundTrip(t, f, got.decode)
}

func TestHandshakeDoneFrameRoundTrip(t *testing.T) {
	f := &handshakeDoneFrame{}
	var got handshakeDoneFrame
	roundTrip(t, f, got.decode)
}

func TestIsFrameAckEliciting(t *testing.T) {
	if isFrameAckEliciting(frameTypePadding) {
		t.Fatalf("padding should not be ack-eliciting")
	}
	if isFrameAckEliciting(frameTypeAck) || isFrameAckEliciting(frameTypeAckECN) {
		t.Fatalf("ack frames should not be ack-eliciting")
	}
	if isFrameAckEliciting(frameTypeConnectionClose) || isFrameAckEliciting(frameTypeApplicationClose) {
		t.Fatalf("connection close should not be ack-eliciting")
	}
	if !isFrameAckEliciting(frameTypeStream) {
		t.Fatalf("stream should be ack-eliciting")
	}
}

func TestEncodeFrames(t *testing.T) {
	frames := []frame{newPaddingFrame(2), &pingFrame{}, newMaxDataFrame(10)}
	total := 0
	for _, f := range frames {
		total += f.encodedLen()
	}
	buf := make([]byte, total)
	n, err := encodeFrames(buf, frames)
	if err != nil {
		t.Fatalf("encodeFrames: %v", err)
	}
	if n != total {
		t.Fatalf("encodeFrames wrote %d, want %d", n, total)
	}
}
