package transport

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/sha256"
	"encoding/binary"
	"time"
)

// This file is the wire-encoding half of the three stateless operations
// a binding can generate without any connection state (spec section 4.4):
// Version Negotiation, Retry, and Stateless Reset. The lifecycle/aging
// bookkeeping around them lives at the endpoint layer; everything here
// is pure encode/decode plus the two distinct keys that section calls
// for -- retryIntegrityKeyV1 (aead.go) authenticates a Retry packet's header,
// while RetryTokenKeySize/SealRetryToken below encrypt the opaque token a
// legitimate client echoes back, a different key for a different job.

// RetryTokenKeySize is the symmetric key size for SealRetryToken/
// OpenRetryToken, kept separate from retryIntegrityKeyV1 (spec section
// 4.4: "implemented as two distinct keys").
const RetryTokenKeySize = 16

// StatelessResetTokenSize is RFC 9000 section 10.3's fixed token width.
const StatelessResetTokenSize = 16

// MinStatelessResetSize is the minimum total length RFC 9000 section
// 10.3 requires for a Stateless Reset packet, so it cannot be
// distinguished from a short-header packet by length alone.
const MinStatelessResetSize = 39

// foldNonce derives an AEAD nonce from a connection ID by XOR-folding it
// down to size, so a token's nonce never has to travel alongside it.
func foldNonce(cid []byte, size int) []byte {
	nonce := make([]byte, size)
	for i, b := range cid {
		nonce[i%size] ^= b
	}
	return nonce
}

// SealRetryToken encrypts the remote address and issue time into an
// opaque token a client must echo back in its next Initial packet (spec
// section 4.4, "Retry"). dcid is both authenticated data and the source
// of the nonce (via foldNonce), so the token itself carries no nonce.
func SealRetryToken(key, dcid, addr []byte, issuedAt time.Time) ([]byte, error) {
	aead, err := newRetryTokenAEAD(key)
	if err != nil {
		return nil, err
	}
	plain := make([]byte, 9, 9+len(addr))
	binary.BigEndian.PutUint64(plain[:8], uint64(issuedAt.UnixNano()))
	plain[8] = byte(len(addr))
	plain = append(plain, addr...)
	nonce := foldNonce(dcid, aead.NonceSize())
	return aead.Seal(nil, nonce, plain, dcid), nil
}

// OpenRetryToken reverses SealRetryToken.
func OpenRetryToken(key, dcid, token []byte) (addr []byte, issuedAt time.Time, err error) {
	aead, err := newRetryTokenAEAD(key)
	if err != nil {
		return nil, time.Time{}, err
	}
	nonce := foldNonce(dcid, aead.NonceSize())
	plain, err := aead.Open(nil, nonce, token, dcid)
	if err != nil {
		return nil, time.Time{}, newError(InvalidToken, "retry token")
	}
	if len(plain) < 9 {
		return nil, time.Time{}, newError(InvalidToken, "short retry token")
	}
	ns := int64(binary.BigEndian.Uint64(plain[:8]))
	addrLen := int(plain[8])
	if len(plain) < 9+addrLen {
		return nil, time.Time{}, newError(InvalidToken, "short retry token")
	}
	return plain[9 : 9+addrLen], time.Unix(0, ns), nil
}

func newRetryTokenAEAD(key []byte) (cipher.AEAD, error) {
	block, err := aes.NewCipher(key)
	if err != nil {
		return nil, err
	}
	return cipher.NewGCM(block)
}

// EncodeVersionNegotiation builds a Version Negotiation packet echoing
// the client's CIDs and SupportedVersions (spec section 4.4, "Version
// Negotiation").
func EncodeVersionNegotiation(dcid, scid []byte) []byte {
	p := packet{typ: packetTypeVersionNegotiation, header: packetHeader{dcid: dcid, scid: scid}}
	buf := make([]byte, 7+len(dcid)+len(scid)+4*len(SupportedVersions))
	n, err := p.encode(buf)
	if err != nil {
		return nil
	}
	for _, v := range SupportedVersions {
		binary.BigEndian.PutUint32(buf[n:], v)
		n += 4
	}
	return buf[:n]
}

// EncodeRetryPacket builds a Retry packet carrying token, followed by the
// integrity tag sealRetryIntegrity computes over the pseudo-packet and
// origDCID (RFC 9001 section 5.8). Unlike Initial/Handshake packets, a
// Retry's token is part of the header proper, so it is not built via
// packet.encodeLongHeader (which only ever writes a token for Initial).
func EncodeRetryPacket(version uint32, dcid, scid, origDCID, token []byte) []byte {
	n := 7 + len(dcid) + len(scid) + len(token)
	buf := make([]byte, n+retryIntegrityTagLen)
	buf[0] = headerFormLong | fixedBit | (3 << 4)
	binary.BigEndian.PutUint32(buf[1:5], version)
	off := 5
	buf[off] = byte(len(dcid))
	off++
	off += copy(buf[off:], dcid)
	buf[off] = byte(len(scid))
	off++
	off += copy(buf[off:], scid)
	off += copy(buf[off:], token)
	tag := sealRetryIntegrity(origDCID, buf[:off])
	off += copy(buf[off:], tag)
	return buf[:off]
}

// DecodeRetryToken extracts the token from an encoded Retry packet
// (the inverse of EncodeRetryPacket's token placement), for a client
// that received one to pass along in its next Initial packet.
func DecodeRetryToken(pkt []byte) ([]byte, error) {
	p := packet{}
	if _, err := p.decodeHeader(pkt); err != nil {
		return nil, err
	}
	if p.typ != packetTypeRetry {
		return nil, newError(ProtocolViolation, "not a retry packet")
	}
	if _, err := p.decodeBody(pkt); err != nil {
		return nil, err
	}
	return p.token, nil
}

// DeriveStatelessResetToken computes the 16-byte token RFC 9000 section
// 10.3 ties to a connection ID, constant for a given (key, cid) pair so
// either endpoint can recognize its own reset later without any
// per-connection state.
func DeriveStatelessResetToken(key, cid []byte) [StatelessResetTokenSize]byte {
	sum := sha256.New()
	sum.Write(key)
	sum.Write(cid)
	digest := sum.Sum(nil)
	var token [StatelessResetTokenSize]byte
	copy(token[:], digest)
	return token
}

// EncodeStatelessReset builds a packet indistinguishable from a
// short-header 1-RTT packet to an off-path observer: an unpredictable
// pad (random []byte, wire-format byte 0 with the long-header bit clear)
// followed by the token, padded up to MinStatelessResetSize total (RFC
// 9000 section 10.3).
func EncodeStatelessReset(token [StatelessResetTokenSize]byte, pad []byte) []byte {
	total := len(pad) + StatelessResetTokenSize
	if total < MinStatelessResetSize {
		total = MinStatelessResetSize
	}
	buf := make([]byte, total)
	copy(buf, pad)
	// First byte must look like a short header: long-header bit clear.
	buf[0] &^= headerFormLong
	buf[0] |= fixedBit
	copy(buf[total-StatelessResetTokenSize:], token[:])
	return buf
}
