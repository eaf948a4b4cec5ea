package qcore

import "errors"

var (
	// errCIDInUse is returned by connLookup.addLocalCID when the CID is
	// already claimed; NewLocalCID makes this vanishingly unlikely, and
	// binding.go's createConnection and Client.Dial return it to their
	// caller without retrying.
	errCIDInUse = errors.New("qcore: connection id already in use")

	// errConnClosed names an operation targeting a Conn whose reference
	// count has already reached zero; no code in this package returns it.
	errConnClosed = errors.New("qcore: connection closed")

	// errNoListener names the case of no listener being registered to
	// accept an Initial packet; binding.go drops such packets silently
	// and does not return it.
	errNoListener = errors.New("qcore: no listener registered")

	// errWorkerOverloaded is returned by Worker.Submit when the worker is
	// over its bounded in-flight operation budget and a new operation
	// (any kind but closeOperation) is dropped rather than queued (spec
	// section 4.6).
	errWorkerOverloaded = errors.New("qcore: worker overloaded")
)
