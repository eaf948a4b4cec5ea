package transport

import (
	"encoding/binary"
	"fmt"
)

// QUIC wire versions this core understands (RFC 9000 and RFC 9369).
const (
	ProtocolVersion1 uint32 = 0x00000001
	ProtocolVersion2 uint32 = 0x6b3343cf
	versionNegotiationVersion uint32 = 0x00000000
)

func versionSupported(v uint32) bool {
	return v == ProtocolVersion1 || v == ProtocolVersion2
}

// VersionSupported reports whether v is one this core can speak, for the
// binding's version-negotiation decision (spec section 4.3) before any
// Conn exists to ask.
func VersionSupported(v uint32) bool {
	return versionSupported(v)
}

// SupportedVersions lists the versions advertised in a Version
// Negotiation response, in preference order.
var SupportedVersions = []uint32{ProtocolVersion1, ProtocolVersion2}

// packetSpace identifies one of the three packet-number spaces (Initial,
// Handshake, Application), per RFC 9000 section 12.3.
type packetSpace int

const (
	packetSpaceInitial packetSpace = iota
	packetSpaceHandshake
	packetSpaceApplication
	packetSpaceCount
)

func (s packetSpace) String() string {
	switch s {
	case packetSpaceInitial:
		return "initial"
	case packetSpaceHandshake:
		return "handshake"
	case packetSpaceApplication:
		return "application"
	default:
		return "unknown"
	}
}

// encryptionLevel is an alias surface for packetSpace used where the spec
// and RFC talk about "encryption level" rather than packet-number space;
// the two are in 1:1 correspondence in this core (0-RTT shares the
// application space's packet number space but is tracked by the is0RTT
// flag on outgoingPacket, per spec section 4.5).
type encryptionLevel = packetSpace

// packetType is the wire packet type byte (long header form) or a
// synthetic marker for short-header 1-RTT packets.
type packetType uint8

const (
	packetTypeInitial packetType = iota
	packetTypeZeroRTT
	packetTypeHandshake
	packetTypeRetry
	packetTypeVersionNegotiation
	packetTypeShort
)

func (t packetType) String() string {
	switch t {
	case packetTypeInitial:
		return "initial"
	case packetTypeZeroRTT:
		return "0rtt"
	case packetTypeHandshake:
		return "handshake"
	case packetTypeRetry:
		return "retry"
	case packetTypeVersionNegotiation:
		return "version_negotiation"
	case packetTypeShort:
		return "1rtt"
	default:
		return "unknown"
	}
}

func packetTypeFromSpace(space packetSpace) packetType {
	switch space {
	case packetSpaceInitial:
		return packetTypeInitial
	case packetSpaceHandshake:
		return packetTypeHandshake
	default:
		return packetTypeShort
	}
}

const (
	headerFormLong  = 0x80
	fixedBit        = 0x40
	longPacketType  = 0x30 // bits 4-5 select Initial/0-RTT/Handshake/Retry
	longReservedLen = 0x0c
	longPNLenMask   = 0x03
)

// packetHeader holds the fields common to long and short header forms
// (RFC 9000 section 17.2) after parsing, enough to route and, for long
// headers, complete decryption.
type packetHeader struct {
	version uint32
	dcid    []byte
	scid    []byte
	dcil    uint8 // expected DCID length for short headers (= len(local scid))
}

// packet is a decoded (or about-to-be-encoded) QUIC packet. Body fields
// are only populated for the packet types that carry them (Version
// Negotiation's supportedVersions, Retry's token).
type packet struct {
	typ          packetType
	header       packetHeader
	packetNumber uint64
	payloadLen   int
	headerLen    int
	pnOffset     int

	supportedVersions []uint32
	token             []byte
}

func (p *packet) String() string {
	return fmt.Sprintf("type=%s dcid=%x scid=%x pn=%d", p.typ, p.header.dcid, p.header.scid, p.packetNumber)
}

func (p *packet) encodedLen() int {
	n := p.headerLen
	n += p.payloadLen
	return n
}

// decodeHeader parses just enough of the header to classify the packet
// and extract DCID/SCID for routing, per RFC 9000 section 17. It does
// not decrypt the packet number, which is protected until the AEAD
// keys for the packet's space are available (done by packetNumberSpace).
func (p *packet) decodeHeader(b []byte) (int, error) {
	if len(b) < 1 {
		return 0, errShortBuffer
	}
	first := b[0]
	if first&headerFormLong == 0 {
		return p.decodeShortHeader(b)
	}
	return p.decodeLongHeader(b)
}

func (p *packet) decodeShortHeader(b []byte) (int, error) {
	dcidLen := int(p.header.dcil)
	if len(b) < 1+dcidLen {
		return 0, errShortBuffer
	}
	p.typ = packetTypeShort
	p.header.version = 0
	p.header.dcid = b[1 : 1+dcidLen]
	p.headerLen = 1 + dcidLen
	p.pnOffset = p.headerLen
	return p.headerLen, nil
}

func (p *packet) decodeLongHeader(b []byte) (int, error) {
	if len(b) < 6 {
		return 0, errShortBuffer
	}
	first := b[0]
	version := binary.BigEndian.Uint32(b[1:5])
	off := 5
	dcidLen := int(b[off])
	off++
	if err := validateCIDLength(dcidLen); err != nil {
		return 0, err
	}
	if len(b) < off+dcidLen+1 {
		return 0, errShortBuffer
	}
	dcid := b[off : off+dcidLen]
	off += dcidLen
	scidLen := int(b[off])
	off++
	if err := validateCIDLength(scidLen); err != nil {
		return 0, err
	}
	if len(b) < off+scidLen {
		return 0, errShortBuffer
	}
	scid := b[off : off+scidLen]
	off += scidLen

	p.header.version = version
	p.header.dcid = dcid
	p.header.scid = scid

	if version == versionNegotiationVersion {
		p.typ = packetTypeVersionNegotiation
		p.headerLen = off
		return off, nil
	}
	switch (first & longPacketType) >> 4 {
	case 0:
		p.typ = packetTypeInitial
		// Initial packets carry a Token Length + Token before the
		// common Length + Packet Number fields that decryptPacket
		// parses; pull it in now so recvPacketInitial can inspect it.
		var tokenLen uint64
		n := getVarint(b[off:], &tokenLen)
		if n == 0 {
			return 0, errShortBuffer
		}
		off += n
		if len(b) < off+int(tokenLen) {
			return 0, errShortBuffer
		}
		p.token = b[off : off+int(tokenLen)]
		off += int(tokenLen)
	case 1:
		p.typ = packetTypeZeroRTT
	case 2:
		p.typ = packetTypeHandshake
	case 3:
		p.typ = packetTypeRetry
	}
	p.headerLen = off
	return off, nil
}

// decodeBody parses the fields that follow the common long-header prefix
// for the packet types that need it at the binding/conn layer before
// decryption: Version Negotiation's version list and Retry's token.
// Initial/Handshake/0-RTT packets are rejected here: decodeLongHeader
// already parsed an Initial's token, and packetNumberSpace.decryptPacket
// reads the varint payload length together with the protected packet
// number.
func (p *packet) decodeBody(b []byte) (int, error) {
	switch p.typ {
	case packetTypeVersionNegotiation:
		body := b[p.headerLen:]
		if len(body)%4 != 0 {
			return 0, newError(FrameEncodingError, "version negotiation body")
		}
		p.supportedVersions = p.supportedVersions[:0]
		for i := 0; i+4 <= len(body); i += 4 {
			p.supportedVersions = append(p.supportedVersions, binary.BigEndian.Uint32(body[i:i+4]))
		}
		return len(body), nil
	case packetTypeRetry:
		// Retry body is [token][16-byte integrity tag]; the tag is
		// verified separately (verifyRetryIntegrity) since it covers
		// the whole datagram plus the original DCID, not decodable in
		// isolation.
		body := b[p.headerLen:]
		if len(body) < retryIntegrityTagLen {
			return 0, errShortBuffer
		}
		p.token = body[:len(body)-retryIntegrityTagLen]
		return len(body), nil
	default:
		return 0, newError(InternalError, "decodeBody: unsupported packet type")
	}
}

// encode writes p's header (long or short) to b, returning the offset of
// the payload. Used when building outgoing packets; the packet-number
// and payload bytes, and then header/packet-number protection, are
// applied by packetNumberSpace.encryptPacket.
func (p *packet) encode(b []byte) (int, error) {
	if p.typ == packetTypeShort {
		return p.encodeShortHeader(b)
	}
	return p.encodeLongHeader(b)
}

// packetNumberLen is the fixed width this core uses to encode packet
// numbers on the wire. RFC 9000 allows 1-4 variable-length bytes chosen
// to be just larger than twice the gap since the last ACKed packet;
// always using the maximum width is a deliberate simplification of the
// packet-number encoding (not the loss-detection or ACK logic, which are
// exact) since shrinking it is a pure bandwidth optimization orthogonal
// to this spec's four subsystems.
const packetNumberLen = 4

func (p *packet) encodeShortHeader(b []byte) (int, error) {
	n := 1 + len(p.header.dcid) + packetNumberLen
	if len(b) < n {
		return 0, errShortBuffer
	}
	b[0] = fixedBit | byte(packetNumberLen-1)
	off := 1
	off += copy(b[off:], p.header.dcid)
	p.pnOffset = off
	binary.BigEndian.PutUint32(b[off:], uint32(p.packetNumber))
	off += packetNumberLen
	p.headerLen = off
	return off, nil
}

func (p *packet) encodeLongHeader(b []byte) (int, error) {
	n := 7 + len(p.header.dcid) + len(p.header.scid) + packetNumberLen
	if p.typ == packetTypeInitial {
		n += varintLen(uint64(len(p.token))) + len(p.token)
	}
	if p.typ != packetTypeVersionNegotiation && p.typ != packetTypeRetry {
		n += 2 // payload-length varint; packetNumberLen + payloadLen must fit maxVarint2
	}
	if len(b) < n {
		return 0, errShortBuffer
	}
	first := headerFormLong | fixedBit | byte(packetNumberLen-1)
	switch p.typ {
	case packetTypeInitial:
		// type bits 00
	case packetTypeZeroRTT:
		first |= 1 << 4
	case packetTypeHandshake:
		first |= 2 << 4
	case packetTypeRetry:
		first |= 3 << 4
	}
	b[0] = first
	binary.BigEndian.PutUint32(b[1:5], p.header.version)
	off := 5
	b[off] = byte(len(p.header.dcid))
	off++
	off += copy(b[off:], p.header.dcid)
	b[off] = byte(len(p.header.scid))
	off++
	off += copy(b[off:], p.header.scid)
	if p.typ == packetTypeInitial {
		m := putVarint(b[off:], uint64(len(p.token)))
		off += m
		off += copy(b[off:], p.token)
	}
	if p.typ != packetTypeVersionNegotiation && p.typ != packetTypeRetry {
		lengthVal := uint64(packetNumberLen + p.payloadLen)
		m := putVarint(b[off:], lengthVal)
		if m != 2 {
			// Force a 2-byte encoding to keep the reserved-space math
			// above exact; lengthVal is always >= 64 in practice
			// because of minPayloadLength + AEAD overhead.
			b[off] = 0x40 | byte(lengthVal>>8)
			b[off+1] = byte(lengthVal)
		}
		off += 2
		p.pnOffset = off
		binary.BigEndian.PutUint32(b[off:], uint32(p.packetNumber))
		off += packetNumberLen
	}
	p.headerLen = off
	return off, nil
}
