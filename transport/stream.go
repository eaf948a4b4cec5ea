package transport

import "sort"

// isStreamLocal reports whether stream id was initiated by this endpoint.
func isStreamLocal(id uint64, isClient bool) bool {
	clientInitiated := id&0x1 == 0
	return clientInitiated == isClient
}

// isStreamBidi reports whether the stream is bidirectional, per the
// stream-id type bits of RFC 9000 section 2.1.
func isStreamBidi(id uint64) bool {
	return id&0x2 == 0
}

// sendChunk is one contiguous run of application data queued for send,
// ordered by offset. Re-queued (lost) data is reinserted in order.
type sendChunk struct {
	data   []byte
	offset uint64
	fin    bool
}

// sendBuffer orders outgoing stream/crypto data by offset and records the
// highest acknowledged offset and whether the FIN was acknowledged. Data
// requeued after a loss is resent whole, including any of its bytes that
// were already acknowledged.
type sendBuffer struct {
	chunks     []sendChunk
	ackedUpTo  uint64
	finOffset  uint64
	finSet     bool
	finAcked   bool
}

func (b *sendBuffer) push(data []byte, offset uint64, fin bool) error {
	cp := make([]byte, len(data))
	copy(cp, data)
	b.chunks = append(b.chunks, sendChunk{data: cp, offset: offset, fin: fin})
	sort.Slice(b.chunks, func(i, j int) bool { return b.chunks[i].offset < b.chunks[j].offset })
	if fin {
		b.finSet = true
		b.finOffset = offset + uint64(len(data))
	}
	return nil
}

// popSend removes and returns up to max bytes of the lowest-offset queued
// data, along with whether it closes the stream.
func (b *sendBuffer) popSend(max int) ([]byte, uint64, bool) {
	if len(b.chunks) == 0 {
		return nil, 0, false
	}
	c := b.chunks[0]
	if len(c.data) <= max {
		b.chunks = b.chunks[1:]
		return c.data, c.offset, c.fin
	}
	out := c.data[:max]
	b.chunks[0] = sendChunk{data: c.data[max:], offset: c.offset + uint64(max), fin: c.fin}
	return out, c.offset, false
}

// ack records that [offset, offset+length) was acknowledged by the peer.
func (b *sendBuffer) ack(offset, length uint64) {
	if offset+length > b.ackedUpTo {
		b.ackedUpTo = offset + length
	}
	if b.finSet && offset+length >= b.finOffset {
		b.finAcked = true
	}
}

func (b *sendBuffer) complete() bool {
	return b.finSet && b.finAcked && len(b.chunks) == 0
}

func (b *sendBuffer) hasPending() bool {
	return len(b.chunks) > 0
}

// recvChunk is one contiguous run of received data awaiting in-order
// delivery to the application.
type recvChunk struct {
	data   []byte
	offset uint64
}

// recvBuffer reassembles out-of-order received stream/crypto data into an
// in-order byte stream, per RFC 9000 section 2.2.
type recvBuffer struct {
	chunks    []recvChunk
	readUpTo  uint64
	finOffset uint64
	finSet    bool
}

func (b *recvBuffer) pushRecv(data []byte, offset uint64, fin bool) error {
	if offset+uint64(len(data)) <= b.readUpTo {
		return nil // already delivered
	}
	if fin {
		b.finSet = true
		b.finOffset = offset + uint64(len(data))
	}
	cp := make([]byte, len(data))
	copy(cp, data)
	b.chunks = append(b.chunks, recvChunk{data: cp, offset: offset})
	sort.Slice(b.chunks, func(i, j int) bool { return b.chunks[i].offset < b.chunks[j].offset })
	return nil
}

// reset drops all buffered data on RESET_STREAM, returning how many
// bytes of flow-control credit are newly available to the connection.
func (b *recvBuffer) reset(finalSize uint64) (int, error) {
	if b.finSet && finalSize != b.finOffset {
		return 0, newError(FinalSizeError, "reset stream final size mismatch")
	}
	credit := 0
	for _, c := range b.chunks {
		credit += len(c.data)
	}
	b.chunks = nil
	b.finSet = true
	b.finOffset = finalSize
	return credit, nil
}

// pushRecv on a cryptoStream (no flow control, no fin).
type cryptoStream struct {
	send sendBuffer
	recv recvBuffer
}

func (c *cryptoStream) pushRecv(data []byte, offset uint64, fin bool) error {
	return c.recv.pushRecv(data, offset, fin)
}

func (c *cryptoStream) popSend(max int) ([]byte, uint64, bool) {
	return c.send.popSend(max)
}

// Stream is one QUIC stream's send/receive state.
type Stream struct {
	id   uint64
	send sendBuffer
	recv recvBuffer

	flow          flowControl
	connFlow      *flowControl
	updateMaxData bool
}

func (s *Stream) pushRecv(data []byte, offset uint64, fin bool) error {
	if err := s.recv.pushRecv(data, offset, fin); err != nil {
		return err
	}
	if s.flow.shouldUpdateMaxRecv() {
		s.updateMaxData = true
	}
	return nil
}

func (s *Stream) popSend(max int) ([]byte, uint64, bool) {
	return s.send.popSend(max)
}

// Read copies reassembled, in-order bytes into b.
func (s *Stream) Read(b []byte) (int, error) {
	n := 0
	for n < len(b) && len(s.recv.chunks) > 0 {
		c := &s.recv.chunks[0]
		if c.offset > s.recv.readUpTo {
			break
		}
		skip := s.recv.readUpTo - c.offset
		if skip >= uint64(len(c.data)) {
			s.recv.chunks = s.recv.chunks[1:]
			continue
		}
		avail := c.data[skip:]
		m := copy(b[n:], avail)
		n += m
		s.recv.readUpTo += uint64(m)
		if uint64(m) == uint64(len(avail)) {
			s.recv.chunks = s.recv.chunks[1:]
		} else {
			break
		}
	}
	if n == 0 && s.recv.finSet && s.recv.readUpTo >= s.recv.finOffset {
		return 0, errStreamClosed
	}
	return n, nil
}

// Write queues data for the stream to send.
func (s *Stream) Write(b []byte) (int, error) {
	err := s.send.push(b, s.sendOffset(), false)
	return len(b), err
}

func (s *Stream) sendOffset() uint64 {
	n := uint64(0)
	for _, c := range s.send.chunks {
		end := c.offset + uint64(len(c.data))
		if end > n {
			n = end
		}
	}
	if n < s.send.ackedUpTo {
		n = s.send.ackedUpTo
	}
	return n
}

// Close marks the stream's send side as finished (FIN).
func (s *Stream) Close() error {
	return s.send.push(nil, s.sendOffset(), true)
}

func (s *Stream) ackMaxData() {
	s.updateMaxData = false
}

var errStreamClosed = newError(NoError, "stream closed")

// streamMap owns all streams of a connection, keyed by stream id, plus
// the locally-imposed and peer-imposed concurrent stream limits.
type streamMap struct {
	streams map[uint64]*Stream

	localMaxStreamsBidi uint64
	localMaxStreamsUni  uint64
	peerMaxStreamsBidi  uint64
	peerMaxStreamsUni   uint64
}

func (m *streamMap) init(maxStreamsBidi, maxStreamsUni uint64) {
	m.streams = make(map[uint64]*Stream)
	m.localMaxStreamsBidi = maxStreamsBidi
	m.localMaxStreamsUni = maxStreamsUni
}

func (m *streamMap) get(id uint64) *Stream {
	return m.streams[id]
}

func (m *streamMap) create(id uint64, local, bidi bool) (*Stream, error) {
	st := &Stream{id: id}
	m.streams[id] = st
	return st, nil
}

func (m *streamMap) setPeerMaxStreamsBidi(n uint64) {
	if n > m.peerMaxStreamsBidi {
		m.peerMaxStreamsBidi = n
	}
}

func (m *streamMap) setPeerMaxStreamsUni(n uint64) {
	if n > m.peerMaxStreamsUni {
		m.peerMaxStreamsUni = n
	}
}

// hasFlushable reports whether any stream has data queued to send.
func (m *streamMap) hasFlushable() bool {
	for _, st := range m.streams {
		if st.send.hasPending() {
			return true
		}
	}
	return false
}
