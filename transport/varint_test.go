package transport

import "testing"

func TestVarintRoundTrip(t *testing.T) {
	values := []uint64{0, 1, 63, 64, 16383, 16384, 1073741823, 1073741824, maxVarint8}
	buf := make([]byte, 8)
	for _, v := range values {
		n := putVarint(buf, v)
		if n == 0 {
			t.Fatalf("putVarint(%d) failed", v)
		}
		var got uint64
		m := getVarint(buf[:n], &got)
		if m != n {
			t.Fatalf("getVarint consumed %d, want %d", m, n)
		}
		if got != v {
			t.Fatalf("got %d, want %d", got, v)
		}
		if varintLen(v) != n {
			t.Fatalf("varintLen(%d)=%d, want %d", v, varintLen(v), n)
		}
	}
}

func TestPutVarintOutOfRange(t *testing.T) {
	buf := make([]byte, 8)
	if n := putVarint(buf, maxVarint8+1); n != 0 {
		t.Fatalf("expected 0, got %d", n)
	}
}

func TestGetVarintShortBuffer(t *testing.T) {
	var v uint64
	if n := getVarint(nil, &v); n != 0 {
		t.Fatalf("expected 0, got %d", n)
	}
	buf := []byte{0x80, 0x00} // 4-byte encoding but only 2 bytes present
	if n := getVarint(buf, &v); n != 0 {
		t.Fatalf("expected 0, got %d", n)
	}
}
