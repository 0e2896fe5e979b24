package ingress

import "errors"

// Sentinel errors, classified the way the egress component is: a listen
// failure is fatal to this component only, everything past that point is
// per-peer and handled by dropping back to WAIT_PEER.
var (
	ErrListen = errors.New("ingress: listen")
	ErrAccept = errors.New("ingress: accept")
)

// ErrColumnsZero is returned by Dispatch when a linear Position payload
// arrives but the server's Geometry has no column count configured, so the
// index can't be validated against anything.
var ErrColumnsZero = errors.New("ingress: no matrix columns configured")

// ErrNoKeyEvent is returned by Dispatch when a ClientMessage carries neither
// a KeyPosition nor a linear Position.
var ErrNoKeyEvent = errors.New("ingress: client message missing key event payload")
