package loopback

import "errors"

var (
	ErrNoBrowser    = errors.New("loopback: no browser available on this platform")
	ErrBusy         = errors.New("loopback: a sign-in is already waiting for its callback")
	ErrEmptyPayload = errors.New("loopback: empty callback payload")
	ErrDynamicPort  = errors.New("loopback: address needs a fixed port registered with the provider")
)
