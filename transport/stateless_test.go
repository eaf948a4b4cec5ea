package transport

import (
	"bytes"
	"testing"
	"time"
)

func TestRetryTokenRoundTrip(t *testing.T) {
	key := bytes.Repeat([]byte{0x42}, RetryTokenKeySize)
	dcid := []byte{1, 2, 3, 4, 5, 6, 7, 8}
	addr := []byte("198.51.100.1:4433")
	issuedAt := time.Unix(1700000000, 0)

	token, err := SealRetryToken(key, dcid, addr, issuedAt)
	if err != nil {
		t.Fatalf("SealRetryToken: %v", err)
	}
	gotAddr, gotTime, err := OpenRetryToken(key, dcid, token)
	if err != nil {
		t.Fatalf("OpenRetryToken: %v", err)
	}
	if !bytes.Equal(gotAddr, addr) {
		t.Fatalf("addr mismatch: got %q want %q", gotAddr, addr)
	}
	if !gotTime.Equal(issuedAt) {
		t.Fatalf("time mismatch: got %v want %v", gotTime, issuedAt)
	}
}

func TestRetryTokenRejectsWrongDCID(t *testing.T) {
	key := bytes.Repeat([]byte{0x42}, RetryTokenKeySize)
	token, err := SealRetryToken(key, []byte{1, 2, 3, 4}, []byte("addr"), time.Now())
	if err != nil {
		t.Fatalf("SealRetryToken: %v", err)
	}
	if _, _, err := OpenRetryToken(key, []byte{9, 9, 9, 9}, token); err == nil {
		t.Fatalf("expected token to be rejected under the wrong dcid")
	}
}

func TestEncodeRetryPacketVerifies(t *testing.T) {
	dcid := []byte{1, 2, 3, 4, 5, 6, 7, 8}
	scid := []byte{0xaa, 0xbb, 0xcc, 0xdd}
	origDCID := []byte{9, 9, 9, 9, 9, 9, 9, 9}
	token := []byte("opaque-token")

	pkt := EncodeRetryPacket(ProtocolVersion1, dcid, scid, origDCID, token)
	if !verifyRetryIntegrity(pkt, origDCID) {
		t.Fatalf("expected retry packet to verify against origDCID")
	}
	info, err := PeekPacketInfo(pkt, 0)
	if err != nil {
		t.Fatalf("PeekPacketInfo: %v", err)
	}
	if string(info.DCID) != string(dcid) {
		t.Fatalf("expected retry's wire dcid field to carry the dcid argument, got %x", info.DCID)
	}
}

func TestDeriveStatelessResetTokenDeterministic(t *testing.T) {
	key := []byte("reset-key")
	cid := []byte{1, 2, 3, 4}
	a := DeriveStatelessResetToken(key, cid)
	b := DeriveStatelessResetToken(key, cid)
	if a != b {
		t.Fatalf("expected deterministic token for the same (key, cid)")
	}
	other := DeriveStatelessResetToken(key, []byte{5, 6, 7, 8})
	if a == other {
		t.Fatalf("expected distinct tokens for distinct cids")
	}
}

func TestEncodeStatelessResetMinSize(t *testing.T) {
	token := DeriveStatelessResetToken([]byte("k"), []byte{1})
	pkt := EncodeStatelessReset(token, nil)
	if len(pkt) < MinStatelessResetSize {
		t.Fatalf("expected at least %d bytes, got %d", MinStatelessResetSize, len(pkt))
	}
	if pkt[0]&headerFormLong != 0 {
		t.Fatalf("expected short-header form bit clear")
	}
	if !bytes.Equal(pkt[len(pkt)-StatelessResetTokenSize:], token[:]) {
		t.Fatalf("expected token in the trailing bytes")
	}
}
