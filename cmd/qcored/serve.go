package main

import (
	"io"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/quic-edge/qcore"
	"github.com/quic-edge/qcore/internal/udpsock"
)

var (
	serveAddr         string
	serveRequireRetry bool
)

// ServeCmd starts a qcore server listening for connections.
var ServeCmd = &cobra.Command{
	Use:   "serve",
	Short: "accept incoming QUIC connections on a UDP socket",
	Run: func(cmd *cobra.Command, args []string) {
		opts := qcore.DefaultEndpointOptions()
		log := logrus.WithField("component", "qcored")
		opts.Log = log

		sock, err := udpsock.Listen("udp", serveAddr)
		if err != nil {
			fatalf("listen: %v", err)
		}
		defer sock.Close()

		handler := &echoHandler{log: log}
		srv, err := qcore.NewServer(sock, handler, opts)
		if err != nil {
			fatalf("new server: %v", err)
		}
		srv.RequireAddressValidation(serveRequireRetry)

		log.Infof("listening on %s", serveAddr)
		if err := srv.Serve(sock); err != nil {
			fatalf("serve: %v", err)
		}
	},
}

func init() {
	ServeCmd.Flags().StringVar(&serveAddr, "addr", ":4433", "UDP address to listen on")
	ServeCmd.Flags().BoolVar(&serveRequireRetry, "require-retry", false, "require address validation via Retry before accepting a connection")
}

// echoHandler reads every stream a peer opens and logs its length; a
// placeholder Handler until an application is wired on top of qcore.
type echoHandler struct {
	log logrus.FieldLogger
}

func (h *echoHandler) Serve(c *qcore.Conn) {
	tc := c.Transport()
	h.log.WithField("remote", c.RemoteAddr()).Info("connection accepted")
	buf := make([]byte, 4096)
	for i := uint64(0); ; i++ {
		st, err := tc.Stream(i)
		if err != nil {
			return
		}
		n, err := st.Read(buf)
		if err != nil && err != io.EOF {
			return
		}
		h.log.Debugf("stream %d: %d bytes", i, n)
	}
}
