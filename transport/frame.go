package transport

import "fmt"

// Frame type codes, RFC 9000 section 19 plus the RFC 9221 (DATAGRAM) and
// draft-ietf-quic-ack-frequency extensions this core also speaks.
const (
	frameTypePadding    = 0x00
	frameTypePing       = 0x01
	frameTypeAck        = 0x02
	frameTypeAckECN     = 0x03
	frameTypeResetStream = 0x04
	frameTypeStopSending = 0x05
	frameTypeCrypto      = 0x06
	frameTypeNewToken    = 0x07
	frameTypeStream      = 0x08
	frameTypeStreamEnd   = 0x0f
	frameTypeMaxData         = 0x10
	frameTypeMaxStreamData   = 0x11
	frameTypeMaxStreamsBidi  = 0x12
	frameTypeMaxStreamsUni   = 0x13
	frameTypeDataBlocked        = 0x14
	frameTypeStreamDataBlocked  = 0x15
	frameTypeStreamsBlockedBidi = 0x16
	frameTypeStreamsBlockedUni  = 0x17
	frameTypeNewConnectionID    = 0x18
	frameTypeRetireConnectionID = 0x19
	frameTypePathChallenge      = 0x1a
	frameTypePathResponse       = 0x1b
	frameTypeConnectionClose    = 0x1c
	frameTypeApplicationClose   = 0x1d
	frameTypeHanshakeDone       = 0x1e
	frameTypeDatagram       = 0x30
	frameTypeDatagramWithLen = 0x31
	frameTypeAckFrequency   = 0xaf
)

// isFrameAckEliciting reports whether receiving a frame of this type
// requires the receiver to eventually ACK the packet that carried it
// (RFC 9000 section 13.2): everything except ACK, ACK_ECN, PADDING and
// CONNECTION_CLOSE.
func isFrameAckEliciting(typ uint64) bool {
	switch typ {
	case frameTypePadding, frameTypeAck, frameTypeAckECN,
		frameTypeConnectionClose, frameTypeApplicationClose:
		return false
	}
	return true
}

// frame is the common wire encoding surface every concrete frame type
// implements; decode is typed per-struct since it also determines the
// concrete result the caller switches on.
type frame interface {
	encode(b []byte) (int, error)
	encodedLen() int
}

// PADDING

type paddingFrame struct {
	length int
}

func newPaddingFrame(length int) *paddingFrame {
	return &paddingFrame{length: length}
}

func (s *paddingFrame) decode(b []byte) (int, error) {
	n := 0
	for n < len(b) && b[n] == frameTypePadding {
		n++
	}
	s.length = n
	return n, nil
}

func (s *paddingFrame) encode(b []byte) (int, error) {
	if len(b) < s.length {
		return 0, errShortBuffer
	}
	for i := 0; i < s.length; i++ {
		b[i] = frameTypePadding
	}
	return s.length, nil
}

func (s *paddingFrame) encodedLen() int {
	return s.length
}

// PING

type pingFrame struct{}

func (s *pingFrame) decode(b []byte) (int, error) {
	var typ uint64
	n := getVarint(b, &typ)
	if n == 0 {
		return 0, errShortBuffer
	}
	return n, nil
}

func (s *pingFrame) encode(b []byte) (int, error) {
	if len(b) < 1 {
		return 0, errShortBuffer
	}
	return putVarint(b, frameTypePing), nil
}

func (s *pingFrame) encodedLen() int {
	return 1
}

// ACK

type ackRange struct {
	gap    uint64
	length uint64
}

type ackFrame struct {
	largestAck    uint64
	ackDelay      uint64
	firstAckRange    uint64
	ranges        []ackRange
	ecnCounts     bool
	ect0, ect1, ce uint64
}

// newAckFrame builds an ACK frame from a received-packet-number range
// set, encoding the largest range as firstAckRange and the rest as
// gap/length pairs walking from largest to smallest per RFC 9000
// section 19.3.
func newAckFrame(ackDelay uint64, recv rangeSet) *ackFrame {
	f := &ackFrame{ackDelay: ackDelay}
	n := recv.len()
	if n == 0 {
		return f
	}
	start, length := recv.at(n - 1)
	f.largestAck = start + length - 1
	f.firstAckRange = length - 1
	prevStart := start
	for i := n - 2; i >= 0; i-- {
		s, l := recv.at(i)
		f.ranges = append(f.ranges, ackRange{
			gap:    prevStart - (s + l) - 1,
			length: l - 1,
		})
		prevStart = s
	}
	return f
}

func (s *ackFrame) decode(b []byte) (int, error) {
	orig := b
	var typ uint64
	n := getVarint(b, &typ)
	if n == 0 {
		return 0, errShortBuffer
	}
	b = b[n:]
	s.ecnCounts = typ == frameTypeAckECN

	var largest, delay, count, first uint64
	for _, v := range []*uint64{&largest, &delay, &count, &first} {
		m := getVarint(b, v)
		if m == 0 {
			return 0, errShortBuffer
		}
		b = b[m:]
	}
	if first > largest {
		return 0, newError(FrameEncodingError, "ack first range")
	}
	s.largestAck = largest
	s.ackDelay = delay
	s.firstAckRange = first
	s.ranges = s.ranges[:0]
	if count > 65536 {
		return 0, newError(FrameEncodingError, "ack range count")
	}
	smallest := largest - first
	for i := uint64(0); i < count; i++ {
		var gap, length uint64
		m := getVarint(b, &gap)
		if m == 0 {
			return 0, errShortBuffer
		}
		b = b[m:]
		m = getVarint(b, &length)
		if m == 0 {
			return 0, errShortBuffer
		}
		b = b[m:]
		if gap+2+length > smallest {
			return 0, newError(FrameEncodingError, "ack gap")
		}
		smallest -= gap + 2 + length
		s.ranges = append(s.ranges, ackRange{gap: gap, length: length})
	}
	if s.ecnCounts {
		for _, v := range []*uint64{&s.ect0, &s.ect1, &s.ce} {
			m := getVarint(b, v)
			if m == 0 {
				return 0, errShortBuffer
			}
			b = b[m:]
		}
	}
	return len(orig) - len(b), nil
}

func (s *ackFrame) toRangeSet() *rangeSet {
	rs := &rangeSet{}
	start := s.largestAck - s.firstAckRange
	rs.add(start, s.firstAckRange+1)
	for _, r := range s.ranges {
		if r.gap+2+r.length > start {
			return nil
		}
		start -= r.gap + 2 + r.length
		rs.add(start, r.length+1)
	}
	return rs
}

func (s *ackFrame) encodedLen() int {
	n := varintLen(frameTypeAck) + varintLen(s.largestAck) + varintLen(s.ackDelay) +
		varintLen(uint64(len(s.ranges))) + varintLen(s.firstAckRange)
	for _, r := range s.ranges {
		n += varintLen(r.gap) + varintLen(r.length)
	}
	return n
}

func (s *ackFrame) encode(b []byte) (int, error) {
	if len(b) < s.encodedLen() {
		return 0, errShortBuffer
	}
	off := putVarint(b, frameTypeAck)
	off += putVarint(b[off:], s.largestAck)
	off += putVarint(b[off:], s.ackDelay)
	off += putVarint(b[off:], uint64(len(s.ranges)))
	off += putVarint(b[off:], s.firstAckRange)
	for _, r := range s.ranges {
		off += putVarint(b[off:], r.gap)
		off += putVarint(b[off:], r.length)
	}
	return off, nil
}

func (s *ackFrame) String() string {
	return fmt.Sprintf("ack largest=%d delay=%d ranges=%d", s.largestAck, s.ackDelay, len(s.ranges))
}

// RESET_STREAM

type resetStreamFrame struct {
	streamID  uint64
	errorCode uint64
	finalSize uint64
}

func newResetStreamFrame(streamID, errorCode, finalSize uint64) *resetStreamFrame {
	return &resetStreamFrame{streamID: streamID, errorCode: errorCode, finalSize: finalSize}
}

func (s *resetStreamFrame) decode(b []byte) (int, error) {
	return decodeVarintFields(b, frameTypeResetStream, &s.streamID, &s.errorCode, &s.finalSize)
}

func (s *resetStreamFrame) encode(b []byte) (int, error) {
	return encodeVarintFields(b, frameTypeResetStream, s.streamID, s.errorCode, s.finalSize)
}

func (s *resetStreamFrame) encodedLen() int {
	return varintFieldsLen(frameTypeResetStream, s.streamID, s.errorCode, s.finalSize)
}

func (s *resetStreamFrame) String() string {
	return fmt.Sprintf("reset_stream id=%d code=%d final=%d", s.streamID, s.errorCode, s.finalSize)
}

// STOP_SENDING

type stopSendingFrame struct {
	streamID  uint64
	errorCode uint64
}

func newStopSendingFrame(streamID, errorCode uint64) *stopSendingFrame {
	return &stopSendingFrame{streamID: streamID, errorCode: errorCode}
}

func (s *stopSendingFrame) decode(b []byte) (int, error) {
	return decodeVarintFields(b, frameTypeStopSending, &s.streamID, &s.errorCode)
}

func (s *stopSendingFrame) encode(b []byte) (int, error) {
	return encodeVarintFields(b, frameTypeStopSending, s.streamID, s.errorCode)
}

func (s *stopSendingFrame) encodedLen() int {
	return varintFieldsLen(frameTypeStopSending, s.streamID, s.errorCode)
}

// CRYPTO

type cryptoFrame struct {
	offset uint64
	data   []byte
}

func newCryptoFrame(data []byte, offset uint64) *cryptoFrame {
	return &cryptoFrame{data: data, offset: offset}
}

func (s *cryptoFrame) decode(b []byte) (int, error) {
	orig := b
	var typ, length uint64
	n := getVarint(b, &typ)
	if n == 0 {
		return 0, errShortBuffer
	}
	b = b[n:]
	m := getVarint(b, &s.offset)
	if m == 0 {
		return 0, errShortBuffer
	}
	b = b[m:]
	l := getVarint(b, &length)
	if l == 0 {
		return 0, errShortBuffer
	}
	b = b[l:]
	if uint64(len(b)) < length {
		return 0, errShortBuffer
	}
	s.data = b[:length]
	b = b[length:]
	return len(orig) - len(b), nil
}

func (s *cryptoFrame) encode(b []byte) (int, error) {
	if len(b) < s.encodedLen() {
		return 0, errShortBuffer
	}
	off := putVarint(b, frameTypeCrypto)
	off += putVarint(b[off:], s.offset)
	off += putVarint(b[off:], uint64(len(s.data)))
	off += copy(b[off:], s.data)
	return off, nil
}

func (s *cryptoFrame) encodedLen() int {
	return varintLen(frameTypeCrypto) + varintLen(s.offset) + varintLen(uint64(len(s.data))) + len(s.data)
}

func (s *cryptoFrame) String() string {
	return fmt.Sprintf("crypto offset=%d length=%d", s.offset, len(s.data))
}

// NEW_TOKEN

type newTokenFrame struct {
	token []byte
}

func newNewTokenFrame(token []byte) *newTokenFrame {
	return &newTokenFrame{token: token}
}

func (s *newTokenFrame) decode(b []byte) (int, error) {
	orig := b
	var typ, length uint64
	n := getVarint(b, &typ)
	if n == 0 {
		return 0, errShortBuffer
	}
	b = b[n:]
	m := getVarint(b, &length)
	if m == 0 {
		return 0, errShortBuffer
	}
	b = b[m:]
	if uint64(len(b)) < length {
		return 0, errShortBuffer
	}
	s.token = b[:length]
	b = b[length:]
	return len(orig) - len(b), nil
}

func (s *newTokenFrame) encode(b []byte) (int, error) {
	if len(b) < s.encodedLen() {
		return 0, errShortBuffer
	}
	off := putVarint(b, frameTypeNewToken)
	off += putVarint(b[off:], uint64(len(s.token)))
	off += copy(b[off:], s.token)
	return off, nil
}

func (s *newTokenFrame) encodedLen() int {
	return varintLen(frameTypeNewToken) + varintLen(uint64(len(s.token))) + len(s.token)
}

// STREAM

type streamFrame struct {
	streamID uint64
	offset   uint64
	data     []byte
	fin      bool
}

func newStreamFrame(id uint64, data []byte, offset uint64, fin bool) *streamFrame {
	return &streamFrame{streamID: id, data: data, offset: offset, fin: fin}
}

// decode parses a STREAM frame. The low 3 bits of the type select which
// optional fields (OFF, LEN, FIN) are present, per RFC 9000 section 19.8.
func (s *streamFrame) decode(b []byte) (int, error) {
	orig := b
	var typ uint64
	n := getVarint(b, &typ)
	if n == 0 {
		return 0, errShortBuffer
	}
	b = b[n:]
	hasOff := typ&0x04 != 0
	hasLen := typ&0x02 != 0
	s.fin = typ&0x01 != 0

	m := getVarint(b, &s.streamID)
	if m == 0 {
		return 0, errShortBuffer
	}
	b = b[m:]
	s.offset = 0
	if hasOff {
		m = getVarint(b, &s.offset)
		if m == 0 {
			return 0, errShortBuffer
		}
		b = b[m:]
	}
	var length uint64
	if hasLen {
		m = getVarint(b, &length)
		if m == 0 {
			return 0, errShortBuffer
		}
		b = b[m:]
	} else {
		length = uint64(len(b))
	}
	if uint64(len(b)) < length {
		return 0, errShortBuffer
	}
	s.data = b[:length]
	b = b[length:]
	return len(orig) - len(b), nil
}

func (s *streamFrame) encode(b []byte) (int, error) {
	if len(b) < s.encodedLen() {
		return 0, errShortBuffer
	}
	typ := uint64(frameTypeStream) | 0x04 | 0x02 // always include offset + explicit length
	if s.fin {
		typ |= 0x01
	}
	off := putVarint(b, typ)
	off += putVarint(b[off:], s.streamID)
	off += putVarint(b[off:], s.offset)
	off += putVarint(b[off:], uint64(len(s.data)))
	off += copy(b[off:], s.data)
	return off, nil
}

func (s *streamFrame) encodedLen() int {
	return varintLen(frameTypeStream|0x06) + varintLen(s.streamID) + varintLen(s.offset) +
		varintLen(uint64(len(s.data))) + len(s.data)
}

func (s *streamFrame) String() string {
	return fmt.Sprintf("stream id=%d offset=%d length=%d fin=%v", s.streamID, s.offset, len(s.data), s.fin)
}

// MAX_DATA

type maxDataFrame struct {
	maximumData uint64
}

func newMaxDataFrame(max uint64) *maxDataFrame {
	return &maxDataFrame{maximumData: max}
}

func (s *maxDataFrame) decode(b []byte) (int, error) {
	return decodeVarintFields(b, frameTypeMaxData, &s.maximumData)
}

func (s *maxDataFrame) encode(b []byte) (int, error) {
	return encodeVarintFields(b, frameTypeMaxData, s.maximumData)
}

func (s *maxDataFrame) encodedLen() int {
	return varintFieldsLen(frameTypeMaxData, s.maximumData)
}

// MAX_STREAM_DATA

type maxStreamDataFrame struct {
	streamID    uint64
	maximumData uint64
}

func newMaxStreamDataFrame(id, max uint64) *maxStreamDataFrame {
	return &maxStreamDataFrame{streamID: id, maximumData: max}
}

func (s *maxStreamDataFrame) decode(b []byte) (int, error) {
	return decodeVarintFields(b, frameTypeMaxStreamData, &s.streamID, &s.maximumData)
}

func (s *maxStreamDataFrame) encode(b []byte) (int, error) {
	return encodeVarintFields(b, frameTypeMaxStreamData, s.streamID, s.maximumData)
}

func (s *maxStreamDataFrame) encodedLen() int {
	return varintFieldsLen(frameTypeMaxStreamData, s.streamID, s.maximumData)
}

// MAX_STREAMS

type maxStreamsFrame struct {
	bidi           bool
	maximumStreams uint64
}

func newMaxStreamsFrame(maximum uint64, bidi bool) *maxStreamsFrame {
	return &maxStreamsFrame{bidi: bidi, maximumStreams: maximum}
}

func (s *maxStreamsFrame) decode(b []byte) (int, error) {
	var typ uint64
	n := getVarint(b, &typ)
	if n == 0 {
		return 0, errShortBuffer
	}
	s.bidi = typ == frameTypeMaxStreamsBidi
	m := getVarint(b[n:], &s.maximumStreams)
	if m == 0 {
		return 0, errShortBuffer
	}
	return n + m, nil
}

func (s *maxStreamsFrame) encode(b []byte) (int, error) {
	typ := uint64(frameTypeMaxStreamsUni)
	if s.bidi {
		typ = frameTypeMaxStreamsBidi
	}
	return encodeVarintFields(b, typ, s.maximumStreams)
}

func (s *maxStreamsFrame) encodedLen() int {
	return varintFieldsLen(frameTypeMaxStreamsBidi, s.maximumStreams)
}

// DATA_BLOCKED

type dataBlockedFrame struct {
	dataLimit uint64
}

func newDataBlockedFrame(limit uint64) *dataBlockedFrame {
	return &dataBlockedFrame{dataLimit: limit}
}

func (s *dataBlockedFrame) decode(b []byte) (int, error) {
	return decodeVarintFields(b, frameTypeDataBlocked, &s.dataLimit)
}

func (s *dataBlockedFrame) encode(b []byte) (int, error) {
	return encodeVarintFields(b, frameTypeDataBlocked, s.dataLimit)
}

func (s *dataBlockedFrame) encodedLen() int {
	return varintFieldsLen(frameTypeDataBlocked, s.dataLimit)
}

// STREAM_DATA_BLOCKED

type streamDataBlockedFrame struct {
	streamID  uint64
	dataLimit uint64
}

func newStreamDataBlockedFrame(streamID, limit uint64) *streamDataBlockedFrame {
	return &streamDataBlockedFrame{streamID: streamID, dataLimit: limit}
}

func (s *streamDataBlockedFrame) decode(b []byte) (int, error) {
	return decodeVarintFields(b, frameTypeStreamDataBlocked, &s.streamID, &s.dataLimit)
}

func (s *streamDataBlockedFrame) encode(b []byte) (int, error) {
	return encodeVarintFields(b, frameTypeStreamDataBlocked, s.streamID, s.dataLimit)
}

func (s *streamDataBlockedFrame) encodedLen() int {
	return varintFieldsLen(frameTypeStreamDataBlocked, s.streamID, s.dataLimit)
}

// STREAMS_BLOCKED

type streamsBlockedFrame struct {
	bidi        bool
	streamLimit uint64
}

func newStreamsBlockedFrame(limit uint64, bidi bool) *streamsBlockedFrame {
	return &streamsBlockedFrame{bidi: bidi, streamLimit: limit}
}

func (s *streamsBlockedFrame) decode(b []byte) (int, error) {
	var typ uint64
	n := getVarint(b, &typ)
	if n == 0 {
		return 0, errShortBuffer
	}
	s.bidi = typ == frameTypeStreamsBlockedBidi
	m := getVarint(b[n:], &s.streamLimit)
	if m == 0 {
		return 0, errShortBuffer
	}
	return n + m, nil
}

func (s *streamsBlockedFrame) encode(b []byte) (int, error) {
	typ := uint64(frameTypeStreamsBlockedUni)
	if s.bidi {
		typ = frameTypeStreamsBlockedBidi
	}
	return encodeVarintFields(b, typ, s.streamLimit)
}

func (s *streamsBlockedFrame) encodedLen() int {
	return varintFieldsLen(frameTypeStreamsBlockedBidi, s.streamLimit)
}

// NEW_CONNECTION_ID

type newConnectionIDFrame struct {
	sequenceNumber uint64
	retirePriorTo  uint64
	connectionID   []byte
	resetToken     [16]byte
}

func (s *newConnectionIDFrame) decode(b []byte) (int, error) {
	orig := b
	var typ uint64
	n := getVarint(b, &typ)
	if n == 0 {
		return 0, errShortBuffer
	}
	b = b[n:]
	for _, v := range []*uint64{&s.sequenceNumber, &s.retirePriorTo} {
		m := getVarint(b, v)
		if m == 0 {
			return 0, errShortBuffer
		}
		b = b[m:]
	}
	if len(b) < 1 {
		return 0, errShortBuffer
	}
	cidLen := int(b[0])
	b = b[1:]
	if len(b) < cidLen+16 {
		return 0, errShortBuffer
	}
	s.connectionID = b[:cidLen]
	copy(s.resetToken[:], b[cidLen:cidLen+16])
	b = b[cidLen+16:]
	return len(orig) - len(b), nil
}

func (s *newConnectionIDFrame) encode(b []byte) (int, error) {
	if len(b) < s.encodedLen() {
		return 0, errShortBuffer
	}
	off := putVarint(b, frameTypeNewConnectionID)
	off += putVarint(b[off:], s.sequenceNumber)
	off += putVarint(b[off:], s.retirePriorTo)
	b[off] = byte(len(s.connectionID))
	off++
	off += copy(b[off:], s.connectionID)
	off += copy(b[off:], s.resetToken[:])
	return off, nil
}

func (s *newConnectionIDFrame) encodedLen() int {
	return varintLen(frameTypeNewConnectionID) + varintLen(s.sequenceNumber) +
		varintLen(s.retirePriorTo) + 1 + len(s.connectionID) + 16
}

// RETIRE_CONNECTION_ID

type retireConnectionIDFrame struct {
	sequenceNumber uint64
}

func (s *retireConnectionIDFrame) decode(b []byte) (int, error) {
	return decodeVarintFields(b, frameTypeRetireConnectionID, &s.sequenceNumber)
}

func (s *retireConnectionIDFrame) encode(b []byte) (int, error) {
	return encodeVarintFields(b, frameTypeRetireConnectionID, s.sequenceNumber)
}

func (s *retireConnectionIDFrame) encodedLen() int {
	return varintFieldsLen(frameTypeRetireConnectionID, s.sequenceNumber)
}

// PATH_CHALLENGE / PATH_RESPONSE

type pathChallengeFrame struct {
	data [8]byte
}

func (s *pathChallengeFrame) decode(b []byte) (int, error) {
	return decodePathData(b, frameTypePathChallenge, &s.data)
}

func (s *pathChallengeFrame) encode(b []byte) (int, error) {
	return encodePathData(b, frameTypePathChallenge, &s.data)
}

func (s *pathChallengeFrame) encodedLen() int {
	return varintLen(frameTypePathChallenge) + 8
}

type pathResponseFrame struct {
	data [8]byte
}

func (s *pathResponseFrame) decode(b []byte) (int, error) {
	return decodePathData(b, frameTypePathResponse, &s.data)
}

func (s *pathResponseFrame) encode(b []byte) (int, error) {
	return encodePathData(b, frameTypePathResponse, &s.data)
}

func (s *pathResponseFrame) encodedLen() int {
	return varintLen(frameTypePathResponse) + 8
}

func decodePathData(b []byte, want uint64, data *[8]byte) (int, error) {
	var typ uint64
	n := getVarint(b, &typ)
	if n == 0 || len(b) < n+8 {
		return 0, errShortBuffer
	}
	copy(data[:], b[n:n+8])
	return n + 8, nil
}

func encodePathData(b []byte, typ uint64, data *[8]byte) (int, error) {
	if len(b) < varintLen(typ)+8 {
		return 0, errShortBuffer
	}
	n := putVarint(b, typ)
	n += copy(b[n:], data[:])
	return n, nil
}

// CONNECTION_CLOSE

type connectionCloseFrame struct {
	application  bool
	errorCode    uint64
	frameType    uint64
	reasonPhrase []byte
}

func newConnectionCloseFrame(errorCode, frameType uint64, reasonPhrase []byte, application bool) *connectionCloseFrame {
	return &connectionCloseFrame{
		application:  application,
		errorCode:    errorCode,
		frameType:    frameType,
		reasonPhrase: reasonPhrase,
	}
}

func (s *connectionCloseFrame) decode(b []byte) (int, error) {
	orig := b
	var typ uint64
	n := getVarint(b, &typ)
	if n == 0 {
		return 0, errShortBuffer
	}
	b = b[n:]
	s.application = typ == frameTypeApplicationClose
	m := getVarint(b, &s.errorCode)
	if m == 0 {
		return 0, errShortBuffer
	}
	b = b[m:]
	if !s.application {
		l := getVarint(b, &s.frameType)
		if l == 0 {
			return 0, errShortBuffer
		}
		b = b[l:]
	} else {
		s.frameType = 0
	}
	var reasonLen uint64
	l := getVarint(b, &reasonLen)
	if l == 0 {
		return 0, errShortBuffer
	}
	b = b[l:]
	if uint64(len(b)) < reasonLen {
		return 0, errShortBuffer
	}
	s.reasonPhrase = b[:reasonLen]
	b = b[reasonLen:]
	return len(orig) - len(b), nil
}

func (s *connectionCloseFrame) encode(b []byte) (int, error) {
	if len(b) < s.encodedLen() {
		return 0, errShortBuffer
	}
	typ := uint64(frameTypeConnectionClose)
	if s.application {
		typ = frameTypeApplicationClose
	}
	off := putVarint(b, typ)
	off += putVarint(b[off:], s.errorCode)
	if !s.application {
		off += putVarint(b[off:], s.frameType)
	}
	off += putVarint(b[off:], uint64(len(s.reasonPhrase)))
	off += copy(b[off:], s.reasonPhrase)
	return off, nil
}

func (s *connectionCloseFrame) encodedLen() int {
	typ := uint64(frameTypeConnectionClose)
	n := varintLen(typ) + varintLen(s.errorCode)
	if !s.application {
		n += varintLen(s.frameType)
	}
	n += varintLen(uint64(len(s.reasonPhrase))) + len(s.reasonPhrase)
	return n
}

func (s *connectionCloseFrame) String() string {
	return fmt.Sprintf("connection_close app=%v code=%d reason=%s", s.application, s.errorCode, s.reasonPhrase)
}

// HANDSHAKE_DONE

type handshakeDoneFrame struct{}

func (s *handshakeDoneFrame) decode(b []byte) (int, error) {
	var typ uint64
	n := getVarint(b, &typ)
	if n == 0 {
		return 0, errShortBuffer
	}
	return n, nil
}

func (s *handshakeDoneFrame) encode(b []byte) (int, error) {
	if len(b) < 1 {
		return 0, errShortBuffer
	}
	return putVarint(b, frameTypeHanshakeDone), nil
}

func (s *handshakeDoneFrame) encodedLen() int {
	return 1
}

// DATAGRAM (RFC 9221)

type datagramFrame struct {
	data []byte
}

func (s *datagramFrame) decode(b []byte) (int, error) {
	orig := b
	var typ uint64
	n := getVarint(b, &typ)
	if n == 0 {
		return 0, errShortBuffer
	}
	b = b[n:]
	if typ == frameTypeDatagramWithLen {
		var length uint64
		m := getVarint(b, &length)
		if m == 0 {
			return 0, errShortBuffer
		}
		b = b[m:]
		if uint64(len(b)) < length {
			return 0, errShortBuffer
		}
		s.data = b[:length]
		b = b[length:]
	} else {
		s.data = b
		b = nil
	}
	return len(orig) - len(b), nil
}

func (s *datagramFrame) encode(b []byte) (int, error) {
	if len(b) < s.encodedLen() {
		return 0, errShortBuffer
	}
	off := putVarint(b, frameTypeDatagramWithLen)
	off += putVarint(b[off:], uint64(len(s.data)))
	off += copy(b[off:], s.data)
	return off, nil
}

func (s *datagramFrame) encodedLen() int {
	return varintLen(frameTypeDatagramWithLen) + varintLen(uint64(len(s.data))) + len(s.data)
}

// ACK_FREQUENCY (draft-ietf-quic-ack-frequency), carried as a private-use
// extension frame; a received one is decoded and logged, and its values
// are not applied to acknowledgement or recovery behaviour.
type ackFrequencyFrame struct {
	sequenceNumber uint64
	ackElicitingThreshold uint64
	requestedMaxAckDelay  uint64
	reorderThreshold      uint64
}

func (s *ackFrequencyFrame) decode(b []byte) (int, error) {
	return decodeVarintFields(b, frameTypeAckFrequency, &s.sequenceNumber,
		&s.ackElicitingThreshold, &s.requestedMaxAckDelay, &s.reorderThreshold)
}

func (s *ackFrequencyFrame) encode(b []byte) (int, error) {
	return encodeVarintFields(b, frameTypeAckFrequency, s.sequenceNumber,
		s.ackElicitingThreshold, s.requestedMaxAckDelay, s.reorderThreshold)
}

func (s *ackFrequencyFrame) encodedLen() int {
	return varintFieldsLen(frameTypeAckFrequency, s.sequenceNumber,
		s.ackElicitingThreshold, s.requestedMaxAckDelay, s.reorderThreshold)
}

// helpers shared by the many frames that are just a type code followed
// by a flat list of varints.

func decodeVarintFields(b []byte, wantType uint64, fields ...*uint64) (int, error) {
	orig := b
	var typ uint64
	n := getVarint(b, &typ)
	if n == 0 {
		return 0, errShortBuffer
	}
	b = b[n:]
	for _, f := range fields {
		m := getVarint(b, f)
		if m == 0 {
			return 0, errShortBuffer
		}
		b = b[m:]
	}
	return len(orig) - len(b), nil
}

func encodeVarintFields(b []byte, typ uint64, fields ...uint64) (int, error) {
	n := varintFieldsLen(typ, fields...)
	if len(b) < n {
		return 0, errShortBuffer
	}
	off := putVarint(b, typ)
	for _, f := range fields {
		off += putVarint(b[off:], f)
	}
	return off, nil
}

func varintFieldsLen(typ uint64, fields ...uint64) int {
	n := varintLen(typ)
	for _, f := range fields {
		n += varintLen(f)
	}
	return n
}

// encodeFrames encodes a sequence of frames into b, returning the total
// bytes written.
func encodeFrames(b []byte, frames []frame) (int, error) {
	off := 0
	for _, f := range frames {
		n, err := f.encode(b[off:])
		if err != nil {
			return 0, err
		}
		off += n
	}
	return off, nil
}
