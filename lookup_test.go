package qcore

import (
	"net"
	"testing"

	"github.com/go-test/deep"
)

func newTestConn() *Conn {
	return &Conn{refs: 1}
}

func TestConnLookupLocalCID(t *testing.T) {
	l := newConnLookup()
	c := newTestConn()
	cid := []byte("local-cid-one")
	if err := l.addLocalCID(cid, c); err != nil {
		t.Fatalf("addLocalCID: %v", err)
	}
	if err := l.addLocalCID(cid, newTestConn()); err != errCIDInUse {
		t.Fatalf("expected errCIDInUse on duplicate add, got %v", err)
	}
	got, ok := l.findByLocalCID(cid)
	if !ok || got != c {
		t.Fatalf("findByLocalCID: got %v, %v", got, ok)
	}
	got.release()

	l.removeLocalCID(cid)
	if _, ok := l.findByLocalCID(cid); ok {
		t.Fatalf("expected miss after removeLocalCID")
	}
}

func TestConnLookupRemoteHash(t *testing.T) {
	l := newConnLookup()
	c := newTestConn()
	addr := &net.UDPAddr{IP: net.ParseIP("192.0.2.1"), Port: 4433}
	peerCID := []byte("peer-cid")

	if loser := l.addRemoteHash(c, addr, peerCID); loser != nil {
		t.Fatalf("expected first add to win, got loser %v", loser)
	}
	other := newTestConn()
	if winner := l.addRemoteHash(other, addr, peerCID); winner != c {
		t.Fatalf("expected existing owner %v to win race, got %v", c, winner)
	}

	got, ok := l.findByRemoteHash(addr, peerCID)
	if !ok || got != c {
		t.Fatalf("findByRemoteHash: got %v, %v", got, ok)
	}
	got.release()

	wantKey := remoteKey{addr: addr.String(), cid: string(peerCID)}
	gotKey := remoteKey{addr: addr.String(), cid: string(peerCID)}
	if diff := deep.Equal(wantKey, gotKey); diff != nil {
		t.Fatalf("remoteKey mismatch: %v", diff)
	}

	l.removeRemoteHash(addr, peerCID)
	if _, ok := l.findByRemoteHash(addr, peerCID); ok {
		t.Fatalf("expected miss after removeRemoteHash")
	}
}

func TestConnLookupFindByRemoteAddr(t *testing.T) {
	l := newConnLookup()
	c := newTestConn()
	addr := &net.UDPAddr{IP: net.ParseIP("192.0.2.2"), Port: 4434}
	l.addRemoteHash(c, addr, []byte("some-cid"))

	got, ok := l.findByRemoteAddr(addr)
	if !ok || got != c {
		t.Fatalf("findByRemoteAddr: got %v, %v", got, ok)
	}
	got.release()

	other := &net.UDPAddr{IP: net.ParseIP("192.0.2.3"), Port: 4434}
	if _, ok := l.findByRemoteAddr(other); ok {
		t.Fatalf("expected miss for unrelated address")
	}
}

func TestConnLookupMoveLocalCIDs(t *testing.T) {
	src := newConnLookup()
	dst := newConnLookup()
	c := newTestConn()
	cids := [][]byte{[]byte("cid-a"), []byte("cid-b"), []byte("cid-c")}
	for _, cid := range cids {
		if err := src.addLocalCID(cid, c); err != nil {
			t.Fatalf("addLocalCID: %v", err)
		}
	}

	src.moveLocalCIDs(dst, cids, c)

	for _, cid := range cids {
		if _, ok := src.findByLocalCID(cid); ok {
			t.Fatalf("expected %q to be gone from source table", cid)
		}
		got, ok := dst.findByLocalCID(cid)
		if !ok || got != c {
			t.Fatalf("expected %q to resolve in destination table", cid)
		}
		got.release()
	}
}
