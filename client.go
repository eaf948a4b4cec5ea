package qcore

import (
	"net"
	"time"

	"github.com/quic-edge/qcore/transport"
)

// Client is a thin outbound constructor over Endpoint: it owns no
// listener, only ever creates connections via Dial, and never answers
// Initial/VN/Retry traffic since accepting is server.go's job.
type Client struct {
	ep *Endpoint
}

// NewClient builds a Client bound to datapath. Replies (server-only
// stateless operations) are never generated on this endpoint, so a
// Client never needs a registered listener.
func NewClient(datapath Datapath, opts EndpointOptions) (*Client, error) {
	ep, err := NewEndpoint(datapath, opts)
	if err != nil {
		return nil, err
	}
	return &Client{ep: ep}, nil
}

// Dial starts a client handshake toward addr, registering the new
// connection under a freshly issued local CID so replies routed back
// through Receive find it.
func (cl *Client) Dial(addr net.Addr) (*Conn, error) {
	scid, err := transport.NewLocalCID(nil)
	if err != nil {
		return nil, err
	}
	tc, err := transport.Connect(scid, cl.ep.config)
	if err != nil {
		return nil, err
	}
	w := cl.ep.nextWorkerFor()
	c := newConn(tc, scid, addr, cl.ep, w)
	if err := cl.ep.lookup.addLocalCID(scid, c); err != nil {
		return nil, err
	}
	cl.ep.eventLog.attachLogger(c)

	buf := make([]byte, transport.MaxPacketSize)
	n, err := tc.Read(buf)
	if err != nil {
		return nil, err
	}
	if _, err := cl.ep.datapath.Send(buf[:n], addr); err != nil {
		return nil, err
	}
	return c, nil
}

// Receive feeds one inbound datagram (a reply to a connection Dial
// started) through the endpoint's binding.
func (cl *Client) Receive(data []byte, addr net.Addr, now time.Time) {
	cl.ep.binding.Receive(data, addr, now)
}

// Close shuts every worker down.
func (cl *Client) Close() error {
	return cl.ep.Close()
}
