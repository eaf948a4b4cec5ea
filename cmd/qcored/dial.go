package main

import (
	"net"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/quic-edge/qcore"
	"github.com/quic-edge/qcore/internal/udpsock"
)

var dialAddr string

// DialCmd starts a client connection to a qcore server.
var DialCmd = &cobra.Command{
	Use:   "dial",
	Short: "start a QUIC handshake toward an endpoint and feed its replies for five seconds",
	Run: func(cmd *cobra.Command, args []string) {
		log := logrus.WithField("component", "qcored")
		addr, err := net.ResolveUDPAddr("udp", dialAddr)
		if err != nil {
			fatalf("resolve %s: %v", dialAddr, err)
		}

		sock, err := udpsock.Listen("udp", ":0")
		if err != nil {
			fatalf("listen: %v", err)
		}
		defer sock.Close()

		opts := qcore.DefaultEndpointOptions()
		opts.Log = log
		cl, err := qcore.NewClient(sock, opts)
		if err != nil {
			fatalf("new client: %v", err)
		}
		defer cl.Close()

		if _, err := cl.Dial(addr); err != nil {
			fatalf("dial: %v", err)
		}
		log.Infof("handshake initiated toward %s", addr)

		bufs := make([][]byte, 8)
		for i := range bufs {
			bufs[i] = make([]byte, 1452)
		}
		deadline := time.Now().Add(5 * time.Second)
		for time.Now().Before(deadline) {
			msgs, err := sock.ReadBatch(bufs, deadline)
			if err != nil {
				break
			}
			now := time.Now()
			for _, m := range msgs {
				cl.Receive(m.Data, m.Addr, now)
			}
		}
	},
}

func init() {
	DialCmd.Flags().StringVar(&dialAddr, "addr", "127.0.0.1:4433", "UDP address to connect to")
}
