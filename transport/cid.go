package transport

import (
	"crypto/rand"
	"io"

	"github.com/rs/xid"
)

// Connection ID and packet size limits (RFC 9000 sections 14, 17.2).
const (
	// MaxCIDLength is the largest connection ID this core will encode or
	// accept, per RFC 9000 section 17.2.
	MaxCIDLength = 20

	// MinCIDLength is the smallest connection ID newLocalCID will ever
	// generate. RFC 9000 permits zero-length CIDs, but this core always
	// routes by CID (spec section 4.2, "Connection lookup"), so an
	// endpoint never issues one short enough to make that routing
	// ambiguous.
	MinCIDLength = 8

	// MinInitialPacketSize is the minimum UDP payload an Initial packet
	// (and any datagram carrying one) must occupy, per RFC 9000 section
	// 14.1.
	MinInitialPacketSize = 1200

	// MaxPacketSize is the largest packet this core will ever build,
	// independent of what the peer's transport parameters allow.
	MaxPacketSize = 1452

	// minPayloadLength is the minimum packet payload (post header,
	// pre AEAD tag) needed so the packet number protection sample has
	// enough bytes to its right, per RFC 9001 section 5.4.2.
	minPayloadLength = 4

	maxCryptoFrameOverhead = 16
	maxStreamFrameOverhead = 24
)

// NewLocalCID generates a connection ID an endpoint can issue as one of
// its own (spec section 4.2/4.3: the local-CID index binding.go and
// lookup.go route incoming packets by). The first 12 bytes are an
// xid.New() value -- time, machine and process identifiers plus a
// counter, unique across a binding's listeners without any coordination
// -- and the remaining MaxCIDLength-12 bytes come from rng, so the full
// value is still unpredictable to an off-path attacker (required for the
// stateless-reset token derived from it not to be guessable, RFC 9000
// section 10.3). A nil rng uses crypto/rand.
func NewLocalCID(rng io.Reader) ([]byte, error) {
	if rng == nil {
		rng = rand.Reader
	}
	id := xid.New()
	idBytes := id.Bytes()
	cid := make([]byte, MaxCIDLength)
	copy(cid, idBytes)
	if _, err := io.ReadFull(rng, cid[len(idBytes):]); err != nil {
		return nil, err
	}
	return cid, nil
}

// validateCIDLength enforces RFC 9000 section 17.2's bound on connection
// IDs read off the wire: a header's one-byte length field can claim up
// to 255, but no valid connection ID is ever longer than MaxCIDLength
// (spec section 3, "cid_total_length").
func validateCIDLength(n int) error {
	if n > MaxCIDLength {
		return newError(ProtocolViolation, "cid too long")
	}
	return nil
}
