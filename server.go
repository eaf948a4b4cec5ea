package qcore

import (
	"net"
	"time"

	"github.com/quic-edge/qcore/internal/udpsock"
	"github.com/quic-edge/qcore/transport"
)

// Server is a thin inbound constructor over Endpoint: it registers an
// application Handler and feeds every inbound datagram through the
// endpoint's Binding, which creates connections on demand.
type Server struct {
	ep *Endpoint
}

// NewServer builds a Server bound to datapath, serving accepted
// connections with handler. A nil handler leaves the endpoint with no
// listener registered, so Binding answers nothing (spec section 4.3,
// "version negotiation decision").
func NewServer(datapath Datapath, handler Handler, opts EndpointOptions) (*Server, error) {
	ep, err := NewEndpoint(datapath, opts)
	if err != nil {
		return nil, err
	}
	if handler != nil {
		ep.listeners.setHandler(handler)
	}
	return &Server{ep: ep}, nil
}

// RequireAddressValidation turns on the Retry gate: an Initial without a
// token is answered with Retry instead of creating a connection, and one
// whose token fails validation is dropped (spec section 4.4).
func (s *Server) RequireAddressValidation(require bool) {
	s.ep.binding.RequireRetry = require
}

// Receive feeds one inbound UDP datagram through the server's binding.
func (s *Server) Receive(data []byte, addr net.Addr, now time.Time) {
	s.ep.binding.Receive(data, addr, now)
}

// Close shuts every worker down.
func (s *Server) Close() error {
	return s.ep.Close()
}

// ListenAndServe opens a UDP socket at addr with Listen's default
// (real) Datapath and runs Serve on it until sock.ReadBatch returns an
// error (typically Close or a read deadline).
func ListenAndServe(network, addr string, handler Handler, opts EndpointOptions) error {
	sock, err := udpsock.Listen(network, addr)
	if err != nil {
		return err
	}
	defer sock.Close()
	srv, err := NewServer(sock, handler, opts)
	if err != nil {
		return err
	}
	return srv.Serve(sock)
}

// Serve pulls batches of datagrams off sock and feeds each through
// Receive until a read fails (socket closed).
func (s *Server) Serve(sock *udpsock.Socket) error {
	bufs := make([][]byte, 32)
	for i := range bufs {
		bufs[i] = make([]byte, transport.MaxPacketSize)
	}
	for {
		msgs, err := sock.ReadBatch(bufs, time.Time{})
		if err != nil {
			return err
		}
		now := time.Now()
		for _, m := range msgs {
			s.Receive(m.Data, m.Addr, now)
		}
	}
}
