package transport

import "testing"

func TestPeekPacketInfoShortHeader(t *testing.T) {
	dcid := []byte{1, 2, 3, 4, 5, 6, 7, 8}
	p := packet{typ: packetTypeShort, header: packetHeader{dcid: dcid}, packetNumber: 1}
	buf := make([]byte, 64)
	n, err := p.encodeShortHeader(buf)
	if err != nil {
		t.Fatalf("encodeShortHeader: %v", err)
	}
	info, err := PeekPacketInfo(buf[:n], len(dcid))
	if err != nil {
		t.Fatalf("PeekPacketInfo: %v", err)
	}
	if info.Long {
		t.Fatalf("expected short header")
	}
	if string(info.DCID) != string(dcid) {
		t.Fatalf("dcid mismatch: got %x want %x", info.DCID, dcid)
	}
}

func TestPeekPacketInfoLongHeaderInitial(t *testing.T) {
	dcid := []byte{9, 9, 9, 9, 9, 9, 9, 9}
	scid := []byte{1, 1, 1, 1}
	p := packet{
		typ:          packetTypeInitial,
		header:       packetHeader{version: ProtocolVersion1, dcid: dcid, scid: scid},
		packetNumber: 1,
		payloadLen:   minPayloadLength,
	}
	buf := make([]byte, 128)
	n, err := p.encodeLongHeader(buf)
	if err != nil {
		t.Fatalf("encodeLongHeader: %v", err)
	}
	// encodeLongHeader only writes header bytes (through the packet
	// number); the payloadLen bytes of ciphertext it reserves space for
	// in the length field are appended separately, so the full wire
	// packet is n+payloadLen bytes.
	wireLen := n + minPayloadLength
	info, err := PeekPacketInfo(buf[:wireLen], 0)
	if err != nil {
		t.Fatalf("PeekPacketInfo: %v", err)
	}
	if !info.Long || !info.IsInitial {
		t.Fatalf("expected long-header Initial packet")
	}
	if string(info.DCID) != string(dcid) || string(info.SCID) != string(scid) {
		t.Fatalf("cid mismatch")
	}
	if info.Version != ProtocolVersion1 {
		t.Fatalf("version mismatch: got %x", info.Version)
	}
	if info.WireLen != wireLen {
		t.Fatalf("expected WireLen %d, got %d", wireLen, info.WireLen)
	}
}

func TestPeekPacketInfoCoalescedSplitsByWireLen(t *testing.T) {
	dcid := []byte{9, 9, 9, 9, 9, 9, 9, 9}
	scid := []byte{1, 1, 1, 1}
	first := packet{
		typ:          packetTypeInitial,
		header:       packetHeader{version: ProtocolVersion1, dcid: dcid, scid: scid},
		packetNumber: 1,
		payloadLen:   minPayloadLength,
	}
	buf := make([]byte, 256)
	n1, err := first.encodeLongHeader(buf)
	if err != nil {
		t.Fatalf("encodeLongHeader: %v", err)
	}
	// Pad first packet's declared payload out to payloadLen so WireLen is
	// self-consistent, then append a second (short header) packet.
	off := n1 + minPayloadLength
	second := packet{typ: packetTypeShort, header: packetHeader{dcid: dcid}, packetNumber: 2}
	n2, err := second.encodeShortHeader(buf[off:])
	if err != nil {
		t.Fatalf("encodeShortHeader: %v", err)
	}
	datagram := buf[:off+n2]

	info, err := PeekPacketInfo(datagram, len(dcid))
	if err != nil {
		t.Fatalf("PeekPacketInfo: %v", err)
	}
	if info.WireLen != off {
		t.Fatalf("expected first chain to end at %d, got %d", off, info.WireLen)
	}
	rest := datagram[info.WireLen:]
	restInfo, err := PeekPacketInfo(rest, len(dcid))
	if err != nil {
		t.Fatalf("PeekPacketInfo on remainder: %v", err)
	}
	if restInfo.Long {
		t.Fatalf("expected the trailing packet to be short-header")
	}
	if restInfo.WireLen != len(rest) {
		t.Fatalf("expected a short header to consume the rest of the datagram")
	}
}
