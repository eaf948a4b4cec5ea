package transport

import (
	"crypto/tls"
	"io"
	"time"
)

// TLSConfig is the narrow slice of *tls.Config this core needs from the
// TLS engine collaborator (spec section 1: "the TLS engine (only its
// handshake I/O surface is consumed)"). It is not a TLS implementation;
// the stand-in tlsHandshake (handshake.go) makes no crypto/tls call, and
// Conn reads only Rand and Time from it.
type TLSConfig struct {
	ServerName         string
	InsecureSkipVerify bool
	Certificates       []tls.Certificate
	ClientCAs          *tls.Config // reserved for mutual-TLS wiring
	NextProtos         []string

	// Rand and Time mirror tls.Config's knobs, threaded through so tests
	// can make connection ID generation and deadlines deterministic.
	Rand io.Reader
	Time func() time.Time
}

// Config carries everything needed to create a client or server Conn:
// the wire version, transport parameters, TLS collaborator config, and
// the knobs from spec section 6 governing recovery and the binding.
type Config struct {
	Version uint32
	Params  Parameters
	TLS     *TLSConfig

	// Recovery tuning (spec section 6).
	MaxWorkerQueueDelay time.Duration // floors the PTO (max_worker_queue_delay_us)
	InitialRTT          time.Duration // initial_rtt_ms
	DisconnectTimeout   time.Duration // disconnect_timeout_us
}

// Parameters are QUIC transport parameters (RFC 9000 section 18.2)
// exchanged during the handshake. Fields are read by the peer's
// validatePeerTransportParams and folded into flow control/recovery once
// the handshake completes.
type Parameters struct {
	OriginalDestinationCID []byte
	InitialSourceCID       []byte
	RetrySourceCID         []byte
	StatelessResetToken    []byte

	MaxIdleTimeout                 time.Duration
	MaxUDPPayloadSize              uint64
	InitialMaxData                 uint64
	InitialMaxStreamDataBidiLocal  uint64
	InitialMaxStreamDataBidiRemote uint64
	InitialMaxStreamDataUni        uint64
	InitialMaxStreamsBidi          uint64
	InitialMaxStreamsUni           uint64
	AckDelayExponent               uint64
	MaxAckDelay                    time.Duration
	DisableActiveMigration         bool
	ActiveConnIDLimit              uint64
}

// DefaultParameters returns the transport parameters this core advertises
// absent application-specific overrides.
func DefaultParameters() Parameters {
	return Parameters{
		MaxIdleTimeout:                 30 * time.Second,
		MaxUDPPayloadSize:              MaxPacketSize,
		InitialMaxData:                 1 << 20,
		InitialMaxStreamDataBidiLocal:  1 << 18,
		InitialMaxStreamDataBidiRemote: 1 << 18,
		InitialMaxStreamDataUni:        1 << 18,
		InitialMaxStreamsBidi:          100,
		InitialMaxStreamsUni:           100,
		AckDelayExponent:               3,
		MaxAckDelay:                    25 * time.Millisecond,
		ActiveConnIDLimit:              4,
	}
}

// DefaultConfig returns a Config with the constants spec.md names
// throughout sections 4 and 6.
func DefaultConfig() *Config {
	return &Config{
		Version:             ProtocolVersion1,
		Params:              DefaultParameters(),
		TLS:                 &TLSConfig{},
		MaxWorkerQueueDelay: 25 * time.Millisecond,
		InitialRTT:          333 * time.Millisecond,
		DisconnectTimeout:   30 * time.Second,
	}
}
