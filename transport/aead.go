package transport

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/binary"
)

// This file implements the narrow AEAD / header-protection surface the
// connection state machine calls into (spec section 1: "the
// cryptographic primitives (AEAD and header protection)" are an external
// collaborator). It is the RFC 9001 section 5.2 Initial-secret
// construction plus AES-GCM/AES-ECB, provided so loss detection and the
// frame codec have a real collaborator to drive end to end. 1-RTT keys
// come from handshake.go's TLS stand-in once the handshake completes;
// earlyDataKeys below adds just enough 0-RTT key material to exercise
// the 0-RTT accept-then-invalidate path, without implementing a real
// session-resumption key schedule.

var initialSaltV1 = []byte{
	0x38, 0x76, 0x2c, 0xf7, 0xf5, 0x59, 0x34, 0xb3, 0x4d, 0x17,
	0x9a, 0xe6, 0xa4, 0xc8, 0x0c, 0xad, 0xcc, 0xbb, 0x7f, 0x0a,
}

var initialSaltV2 = []byte{
	0x0d, 0xed, 0xe3, 0xde, 0xf7, 0x00, 0xa6, 0xdb, 0x81, 0x93,
	0x81, 0xbe, 0x6e, 0x26, 0x9d, 0xcb, 0xf9, 0xbd, 0x2e, 0xd9,
}

func hkdfExtract(salt, ikm []byte) []byte {
	mac := hmac.New(sha256.New, salt)
	mac.Write(ikm)
	return mac.Sum(nil)
}

func hkdfExpandLabel(secret []byte, label string, length int) []byte {
	full := "tls13 " + label
	info := make([]byte, 0, 3+len(full)+1)
	info = append(info, byte(length>>8), byte(length))
	info = append(info, byte(len(full)))
	info = append(info, full...)
	info = append(info, 0)

	var out []byte
	var prev []byte
	mac := hmac.New(sha256.New, secret)
	for len(out) < length {
		mac.Reset()
		mac.Write(prev)
		mac.Write(info)
		mac.Write([]byte{byte(len(out)/sha256.Size) + 1})
		prev = mac.Sum(nil)
		out = append(out, prev...)
	}
	return out[:length]
}

// aeadKeys is one direction's (client->server or server->client) derived
// key material: AEAD key, IV and header-protection key.
type aeadKeys struct {
	aead   cipher.AEAD
	iv     []byte
	hpKey  []byte
	hpBlk  cipher.Block
}

func deriveAEADKeys(secret []byte) aeadKeys {
	key := hkdfExpandLabel(secret, "quic key", 16)
	iv := hkdfExpandLabel(secret, "quic iv", 12)
	hp := hkdfExpandLabel(secret, "quic hp", 16)
	block, _ := aes.NewCipher(key)
	gcm, _ := cipher.NewGCM(block)
	hpBlock, _ := aes.NewCipher(hp)
	return aeadKeys{aead: gcm, iv: iv, hpKey: hp, hpBlk: hpBlock}
}

func (k aeadKeys) Overhead() int {
	if k.aead == nil {
		return 16
	}
	return k.aead.Overhead()
}

// nonce XORs the packet number into the derived IV per RFC 9001 5.3.
func (k aeadKeys) nonce(packetNumber uint64) []byte {
	n := make([]byte, len(k.iv))
	copy(n, k.iv)
	var pn [8]byte
	binary.BigEndian.PutUint64(pn[:], packetNumber)
	for i := 0; i < 8; i++ {
		n[len(n)-8+i] ^= pn[i]
	}
	return n
}

// headerProtectionMask computes the 5-byte header protection mask from a
// sample of ciphertext, per RFC 9001 section 5.4.3 (AES-ECB based).
func (k aeadKeys) headerProtectionMask(sample []byte) []byte {
	mask := make([]byte, aes.BlockSize)
	if k.hpBlk == nil || len(sample) < aes.BlockSize {
		return mask
	}
	k.hpBlk.Encrypt(mask, sample)
	return mask
}

// initialAEAD derives both directions' Initial keys from a connection ID,
// per RFC 9001 section 5.2.
type initialAEAD struct {
	client aeadKeys
	server aeadKeys
}

func (a *initialAEAD) init(cid []byte) {
	a.initVersion(cid, initialSaltV1)
}

func (a *initialAEAD) initVersion(cid []byte, salt []byte) {
	initialSecret := hkdfExtract(salt, cid)
	clientSecret := hkdfExpandLabel(initialSecret, "client in", sha256.Size)
	serverSecret := hkdfExpandLabel(initialSecret, "server in", sha256.Size)
	a.client = deriveAEADKeys(clientSecret)
	a.server = deriveAEADKeys(serverSecret)
}

// earlyDataKeys derives this core's 0-RTT (early data) key material (spec
// section 4.5, "0-RTT rejection") from the same connection ID Initial
// keys use. Real 0-RTT keys come from a resumed session's PSK, via TLS's
// early secret -- this handshake stand-in never establishes one (no
// session ticket storage; TLS interop is an explicit Non-goal). Deriving
// from the DCID instead is a non-interoperable stand-in, but it gives
// both sides the same key without any out-of-band state, which is enough
// to actually encrypt/decrypt 0-RTT packets end to end so the
// accept-then-invalidate path (recovery.go's invalidateEarlyData) is
// exercised rather than skipped. 0-RTT is one-directional (client to
// server only), so there is a single derived key, not a client/server
// pair.
func earlyDataKeys(cid []byte) aeadKeys {
	secret := hkdfExtract(initialSaltV1, cid)
	secret = hkdfExpandLabel(secret, "zero rtt", sha256.Size)
	return deriveAEADKeys(secret)
}

const retryIntegrityTagLen = 16

// retryIntegrityKeyV1/Nonce are the fixed, version-specific AEAD key and
// nonce RFC 9001 section 5.8 defines for authenticating Retry packets;
// they are fixed constants, separate from the random retry-token key each
// statelessTracker generates (root stateless.go).
var retryIntegrityKeyV1 = []byte{
	0xbe, 0x0c, 0x69, 0x0b, 0x9f, 0x66, 0x57, 0x5a, 0x1d, 0x76, 0x6b, 0x54, 0xe3, 0x68, 0xc8, 0x4e,
}
var retryIntegrityNonceV1 = []byte{
	0x46, 0x15, 0x99, 0xd3, 0x5d, 0x63, 0x2b, 0xf2, 0x23, 0x98, 0x25, 0xbb,
}

// verifyRetryIntegrity checks the 16-byte integrity tag appended to a
// Retry packet (RFC 9001 section 5.8) against the pseudo-packet built
// from the client's original DCID plus everything preceding the tag.
func verifyRetryIntegrity(b []byte, origDCID []byte) bool {
	if len(b) < retryIntegrityTagLen {
		return false
	}
	body, tag := b[:len(b)-retryIntegrityTagLen], b[len(b)-retryIntegrityTagLen:]
	block, err := aes.NewCipher(retryIntegrityKeyV1)
	if err != nil {
		return false
	}
	gcm, err := cipher.NewGCM(block)
	if err != nil {
		return false
	}
	pseudo := make([]byte, 0, 1+len(origDCID)+len(body))
	pseudo = append(pseudo, byte(len(origDCID)))
	pseudo = append(pseudo, origDCID...)
	pseudo = append(pseudo, body...)
	expected := gcm.Seal(nil, retryIntegrityNonceV1, nil, pseudo)
	return hmac.Equal(expected, tag)
}

// sealRetryIntegrity computes the tag a server appends when emitting a
// Retry packet, the encode-side counterpart of verifyRetryIntegrity.
func sealRetryIntegrity(origDCID, body []byte) []byte {
	block, err := aes.NewCipher(retryIntegrityKeyV1)
	if err != nil {
		return make([]byte, retryIntegrityTagLen)
	}
	gcm, err := cipher.NewGCM(block)
	if err != nil {
		return make([]byte, retryIntegrityTagLen)
	}
	pseudo := make([]byte, 0, 1+len(origDCID)+len(body))
	pseudo = append(pseudo, byte(len(origDCID)))
	pseudo = append(pseudo, origDCID...)
	pseudo = append(pseudo, body...)
	return gcm.Seal(nil, retryIntegrityNonceV1, nil, pseudo)
}
