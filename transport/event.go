package transport

// EventType identifies the kind of application-visible occurrence a
// connection queues for its owner to drain via Conn.Events (spec section
// 3, "Event" and section 4.8, stream lifecycle signals).
type EventType int

const (
	// EventStream indicates a stream has data or state changes available:
	// newly readable bytes, a peer-initiated reset, a stop request, or
	// completion of the send side.
	EventStream EventType = iota
	// EventDatagram indicates an unreliable DATAGRAM frame (RFC 9221) was
	// received; Datagram holds its payload.
	EventDatagram
)

// Event is a single queued occurrence, drained in order by Conn.Events.
// Only fields relevant to Type are populated.
type Event struct {
	Type EventType

	StreamID uint64

	// StreamReset is set when the peer reset a stream (RESET_STREAM).
	StreamReset bool
	// StreamStop is set when the peer asked us to stop sending
	// (STOP_SENDING).
	StreamStop bool
	// StreamReadable is set when new bytes or a FIN became available to
	// read.
	StreamReadable bool
	// StreamComplete is set once the stream's send side has finished: its
	// FIN was queued and acknowledged and no data is left to send. The
	// receive side is not consulted.
	StreamComplete bool

	ErrorCode uint64

	// Datagram holds the payload of an EventDatagram event.
	Datagram []byte
}

func newStreamResetEvent(streamID uint64, errorCode uint64) Event {
	return Event{Type: EventStream, StreamID: streamID, StreamReset: true, ErrorCode: errorCode}
}

func newStreamStopEvent(streamID uint64, errorCode uint64) Event {
	return Event{Type: EventStream, StreamID: streamID, StreamStop: true, ErrorCode: errorCode}
}

func newStreamRecvEvent(streamID uint64) Event {
	return Event{Type: EventStream, StreamID: streamID, StreamReadable: true}
}

func newStreamCompleteEvent(streamID uint64) Event {
	return Event{Type: EventStream, StreamID: streamID, StreamComplete: true}
}

func newDatagramEvent(data []byte) Event {
	return Event{Type: EventDatagram, Datagram: data}
}
