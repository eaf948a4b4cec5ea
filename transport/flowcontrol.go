package transport

// flowControl tracks connection- or stream-level flow control limits
// per RFC 9000 section 4: how much the peer has told us we may send,
// and how much we have told the peer it may send us.
type flowControl struct {
	maxSend   uint64 // limit advertised by the peer
	sendUsed  uint64
	maxRecv      uint64 // limit we have told the peer (communicated)
	maxRecvNext  uint64 // limit we intend to advertise once committed
	recvUsed     uint64
}

func (f *flowControl) init(maxRecv, maxSend uint64) {
	f.maxRecv = maxRecv
	f.maxRecvNext = maxRecv
	f.maxSend = maxSend
}

// canSend returns how many more bytes may be sent before hitting the
// peer-advertised limit.
func (f *flowControl) canSend() uint64 {
	if f.sendUsed >= f.maxSend {
		return 0
	}
	return f.maxSend - f.sendUsed
}

func (f *flowControl) addSend(n int) {
	f.sendUsed += uint64(n)
}

func (f *flowControl) setMaxSend(n uint64) {
	if n > f.maxSend {
		f.maxSend = n
	}
}

// canRecv returns how many more bytes may be received before the locally
// advertised limit is violated.
func (f *flowControl) canRecv() uint64 {
	if f.recvUsed >= f.maxRecvNext {
		return 0
	}
	return f.maxRecvNext - f.recvUsed
}

func (f *flowControl) addRecv(n int) {
	f.recvUsed += uint64(n)
}

// shouldUpdateMaxRecv reports whether enough of the receive window has
// been consumed that a new MAX_DATA/MAX_STREAM_DATA should be sent,
// using the common half-window heuristic.
func (f *flowControl) shouldUpdateMaxRecv() bool {
	return f.recvUsed*2 >= f.maxRecvNext
}

// commitMaxRecv doubles the receive window once a MAX_DATA/MAX_STREAM_DATA
// update has actually been queued for sending.
func (f *flowControl) commitMaxRecv() {
	f.maxRecvNext = f.maxRecv + (f.maxRecvNext-f.maxRecv)*2 + f.maxRecv
	if f.maxRecvNext < f.maxRecv {
		f.maxRecvNext = f.maxRecv
	}
	f.maxRecv = f.maxRecvNext
}
