package transport

// tlsHandshake is the narrow handshake I/O surface this core consumes
// from the TLS engine collaborator (spec section 1 and "Non-goals": TLS
// 1.3 internals are explicitly out of scope here). Real deployments
// plug in crypto/tls's QUIC transport (tls.QUICConn) behind this same
// surface; what's implemented below is a minimal stand-in that carries
// local/peer transport parameters across the crypto streams and reports
// completion once both sides have exchanged them, so the rest of the
// core (packet number spaces, recovery, flow control) has a real
// collaborator to drive in tests.
type tlsHandshake struct {
	conn      *Conn
	tlsConfig *TLSConfig

	localParams *Parameters
	peer        *Parameters
	complete    bool
	sentParams  bool
}

func (h *tlsHandshake) init(c *Conn, cfg *TLSConfig) {
	h.conn = c
	h.tlsConfig = cfg
}

func (h *tlsHandshake) reset() {
	h.complete = false
	h.sentParams = false
	h.peer = nil
}

func (h *tlsHandshake) setTransportParams(p *Parameters) {
	h.localParams = p
}

// doHandshake advances the crypto-stream exchange: queue our transport
// parameters for send once, and treat receipt of any peer crypto bytes
// as completion once we have parsed a peer Parameters record.
func (h *tlsHandshake) doHandshake() error {
	if h.complete {
		return nil
	}
	space := &h.conn.packetNumberSpaces[packetSpaceInitial]
	if !h.sentParams && h.localParams != nil {
		data := encodeParameters(h.localParams)
		if err := space.cryptoStream.send.push(data, 0, false); err != nil {
			return err
		}
		h.sentParams = true
	}
	if len(space.cryptoStream.recv.chunks) > 0 && h.peer == nil {
		c := space.cryptoStream.recv.chunks[0]
		p, err := decodeParameters(c.data)
		if err != nil {
			return err
		}
		h.peer = p
	}
	if h.sentParams && h.peer != nil {
		h.complete = true
	}
	return nil
}

func (h *tlsHandshake) HandshakeComplete() bool {
	return h.complete
}

func (h *tlsHandshake) peerTransportParams() *Parameters {
	return h.peer
}

// writeSpace reports which packet-number space a probe or close frame
// should be sent in when the handshake hasn't completed.
func (h *tlsHandshake) writeSpace() packetSpace {
	if h.complete {
		return packetSpaceApplication
	}
	if h.conn.packetNumberSpaces[packetSpaceHandshake].canEncrypt(packetTypeHandshake) {
		return packetSpaceHandshake
	}
	return packetSpaceInitial
}

// encodeParameters/decodeParameters is a compact, non-RFC-9000-wire-format
// encoding of Parameters sufficient for this stand-in handshake to carry
// the fields validatePeerTransportParams checks; it is not the TLS
// extension encoding and is not meant to interoperate with other QUIC
// stacks (see Non-goals).
func encodeParameters(p *Parameters) []byte {
	b := make([]byte, 0, 64)
	b = appendVarBytes(b, p.InitialSourceCID)
	b = appendVarBytes(b, p.OriginalDestinationCID)
	b = appendVarBytes(b, p.RetrySourceCID)
	b = appendVarBytes(b, p.StatelessResetToken)
	var n [8]byte
	putUint64(n[:], p.InitialMaxData)
	b = append(b, n[:]...)
	return b
}

func decodeParameters(b []byte) (*Parameters, error) {
	p := &Parameters{}
	var err error
	p.InitialSourceCID, b, err = takeVarBytes(b)
	if err != nil {
		return nil, err
	}
	p.OriginalDestinationCID, b, err = takeVarBytes(b)
	if err != nil {
		return nil, err
	}
	p.RetrySourceCID, b, err = takeVarBytes(b)
	if err != nil {
		return nil, err
	}
	p.StatelessResetToken, b, err = takeVarBytes(b)
	if err != nil {
		return nil, err
	}
	if len(b) < 8 {
		return nil, newError(TransportParameterError, "short params")
	}
	p.InitialMaxData = getUint64(b)
	return p, nil
}

func appendVarBytes(b, v []byte) []byte {
	var tmp [8]byte
	n := putVarint(tmp[:], uint64(len(v)))
	b = append(b, tmp[:n]...)
	return append(b, v...)
}

func takeVarBytes(b []byte) ([]byte, []byte, error) {
	var ln uint64
	n := getVarint(b, &ln)
	if n == 0 || uint64(len(b)-n) < ln {
		return nil, nil, newError(TransportParameterError, "short params")
	}
	return b[n : n+int(ln)], b[n+int(ln):], nil
}

func putUint64(b []byte, v uint64) {
	for i := 0; i < 8; i++ {
		b[7-i] = byte(v >> (8 * i))
	}
}

func getUint64(b []byte) uint64 {
	var v uint64
	for i := 0; i < 8; i++ {
		v = v<<8 | uint64(b[i])
	}
	return v
}
