package transport

// PacketInfo is the subset of a packet's header the binding's receive
// pipeline needs to classify and route a datagram before a Conn exists
// to decrypt it (spec section 4.3: packet_id assignment, preprocessing,
// version-negotiation decision and sub-chaining by destination CID all
// happen from this information alone).
type PacketInfo struct {
	// Long is false for short-header (1-RTT) packets, whose header only
	// ever carries a DCID -- the SCID and Version fields are zero.
	Long    bool
	Version uint32
	DCID    []byte
	SCID    []byte
	// IsInitial is set for long-header Initial packets, the only type a
	// binding may need to validate against MinInitialPacketSize and a
	// retry token.
	IsInitial bool
	// Token is the Initial packet's address-validation token, if any.
	Token []byte

	// WireLen is how many bytes of the datagram this one packet occupies,
	// used to split a coalesced datagram into per-packet chains (spec
	// section 4.3, "sub-chaining by destination CID") without decrypting
	// anything: Initial/0-RTT/Handshake carry their own length, a Retry
	// or Version Negotiation packet always consumes the rest of the
	// datagram (never coalesced with anything else), and a short header
	// has no length field at all, so by construction it must be the last
	// packet in its datagram.
	WireLen int
}

// PeekPacketInfo parses just enough of a datagram's first packet to route
// it, without requiring any connection's decryption keys. dcil is the
// expected destination CID length for short-header packets, which an
// endpoint fixes when it starts issuing local CIDs (spec section 4.2).
func PeekPacketInfo(b []byte, dcil int) (PacketInfo, error) {
	p := packet{header: packetHeader{dcil: uint8(dcil)}}
	if _, err := p.decodeHeader(b); err != nil {
		return PacketInfo{}, err
	}
	info := PacketInfo{
		Long:      p.typ != packetTypeShort,
		Version:   p.header.version,
		DCID:      p.header.dcid,
		SCID:      p.header.scid,
		IsInitial: p.typ == packetTypeInitial,
		Token:     p.token,
	}
	switch p.typ {
	case packetTypeShort, packetTypeVersionNegotiation, packetTypeRetry:
		info.WireLen = len(b)
	default:
		var lengthVal uint64
		n := getVarint(b[p.headerLen:], &lengthVal)
		if n == 0 {
			return PacketInfo{}, errShortBuffer
		}
		info.WireLen = p.headerLen + n + int(lengthVal)
		if info.WireLen > len(b) {
			return PacketInfo{}, errShortBuffer
		}
	}
	return info, nil
}
