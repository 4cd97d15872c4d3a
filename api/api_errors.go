package api

import (
	"fmt"

	"golang.org/x/xerrors"
)

var (
	// ErrNoHosts signals a client configured without any gateway.
	ErrNoHosts = xerrors.New("no gateway hosts configured")

	_ error = (*ErrHTTPStatus)(nil)
	_ error = (*ErrRequest)(nil)
)

// ErrHTTPStatus is a gateway answer with an unexpected status.
type ErrHTTPStatus struct {
	Status  int
	Message string
}

func (e *ErrHTTPStatus) Error() string {
	return fmt.Sprintf("gateway returned %d: %s", e.Status, e.Message)
}

// ErrRequest is a request that got no response from Host.
type ErrRequest struct {
	Host string
	Err  error
}

func (e *ErrRequest) Error() string {
	return fmt.Sprintf("request to %s failed: %s", e.Host, e.Err)
}

func (e *ErrRequest) Unwrap() error {
	return e.Err
}
