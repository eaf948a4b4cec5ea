// Package udpsock is the concrete Datapath a Binding or Client sends and
// receives through: a UDP socket opened with SO_REUSEPORT so an endpoint
// can run one socket per worker without a userspace fan-out step, and
// wrapped in an ipv4.PacketConn/ipv6.PacketConn for batched reads
// (spec section 6, "datapath contract").
package udpsock

import (
	"context"
	"net"
	"syscall"
	"time"

	"golang.org/x/net/ipv4"
	"golang.org/x/net/ipv6"
	"golang.org/x/sys/unix"
)

// recvBufferSize and sendBufferSize are set generously so the kernel can
// queue bursts while the worker pool is busy delivering earlier packets.
const (
	recvBufferSize = 4 << 20
	sendBufferSize = 4 << 20
)

// Message is one datagram read off the socket, paired with the address it
// came from; ReadBatch returns a slice of these to let a Binding walk a
// whole recvmmsg(2) batch before yielding back to the caller.
type Message struct {
	Data []byte
	Addr net.Addr
}

// Socket is a UDP socket opened with SO_REUSEPORT, read through x/net's
// batched ipv4/ipv6 PacketConn ReadBatch (recvmmsg(2) on Linux, one
// datagram at a time on platforms without the batch syscall). Send
// writes one datagram per call with WriteTo.
type Socket struct {
	pc   net.PacketConn
	ipv4 *ipv4.PacketConn
	ipv6 *ipv6.PacketConn
	v6   bool
}

// Listen opens a UDP socket bound to addr with SO_REUSEPORT set, so
// multiple Sockets (one per worker, say) can share the same port and let
// the kernel load-balance incoming datagrams across them.
func Listen(network, addr string) (*Socket, error) {
	udpAddr, err := net.ResolveUDPAddr(network, addr)
	if err != nil {
		return nil, err
	}
	lc := net.ListenConfig{
		Control: func(_, _ string, c syscall.RawConn) error {
			var ctrlErr error
			err := c.Control(func(fd uintptr) {
				ctrlErr = unix.SetsockoptInt(int(fd), unix.SOL_SOCKET, unix.SO_REUSEPORT, 1)
			})
			if err != nil {
				return err
			}
			return ctrlErr
		},
	}
	pc, err := lc.ListenPacket(context.Background(), network, udpAddr.String())
	if err != nil {
		return nil, err
	}
	udpConn := pc.(*net.UDPConn)
	_ = udpConn.SetReadBuffer(recvBufferSize)
	_ = udpConn.SetWriteBuffer(sendBufferSize)

	s := &Socket{pc: pc}
	if udpAddr.IP.To4() != nil {
		s.ipv4 = ipv4.NewPacketConn(udpConn)
	} else {
		s.v6 = true
		s.ipv6 = ipv6.NewPacketConn(udpConn)
	}
	return s, nil
}

// Send implements qcore.Datapath.
func (s *Socket) Send(b []byte, addr net.Addr) (int, error) {
	return s.pc.WriteTo(b, addr)
}

// ReadBatch reads up to len(bufs) datagrams in one batch syscall where the
// platform supports it (Linux recvmmsg via x/net/ipv4 and x/net/ipv6),
// falling back to sequential ReadFrom calls otherwise.
func (s *Socket) ReadBatch(bufs [][]byte, deadline time.Time) ([]Message, error) {
	if !deadline.IsZero() {
		_ = s.pc.SetReadDeadline(deadline)
	}
	if s.v6 {
		return s.readBatchV6(bufs)
	}
	return s.readBatchV4(bufs)
}

func (s *Socket) readBatchV4(bufs [][]byte) ([]Message, error) {
	ms := make([]ipv4.Message, len(bufs))
	for i := range bufs {
		ms[i].Buffers = [][]byte{bufs[i]}
	}
	n, err := s.ipv4.ReadBatch(ms, 0)
	if err != nil {
		return nil, err
	}
	out := make([]Message, n)
	for i := 0; i < n; i++ {
		out[i] = Message{Data: bufs[i][:ms[i].N], Addr: ms[i].Addr}
	}
	return out, nil
}

func (s *Socket) readBatchV6(bufs [][]byte) ([]Message, error) {
	ms := make([]ipv6.Message, len(bufs))
	for i := range bufs {
		ms[i].Buffers = [][]byte{bufs[i]}
	}
	n, err := s.ipv6.ReadBatch(ms, 0)
	if err != nil {
		return nil, err
	}
	out := make([]Message, n)
	for i := 0; i < n; i++ {
		out[i] = Message{Data: bufs[i][:ms[i].N], Addr: ms[i].Addr}
	}
	return out, nil
}

// Close closes the underlying socket.
func (s *Socket) Close() error {
	return s.pc.Close()
}

// LocalAddr reports the address the socket is bound to.
func (s *Socket) LocalAddr() net.Addr {
	return s.pc.LocalAddr()
}
