package api

import (
	"context"
	"net/http"
)

//go:generate go run github.com/golang/mock/mockgen -destination=mocks/mock_gateway.go -package=mocks . Gateway

// Gateway is the HTTP surface of a network gateway. A response with a non-2xx
// status is returned as a Response, not an error; errors mean no usable
// response was received from any host.
type Gateway interface {
	Get(ctx context.Context, endpoint string, opts ...RequestOption) (*Response, error)
	// Post sends body as is when it is a []byte or string and as JSON
	// otherwise.
	Post(ctx context.Context, endpoint string, body any, opts ...RequestOption) (*Response, error)
}

type RequestOptions struct {
	Header http.Header
}

type RequestOption func(*RequestOptions)

func WithHeader(key, value string) RequestOption {
	return func(o *RequestOptions) {
		if o.Header == nil {
			o.Header = http.Header{}
		}
		o.Header.Add(key, value)
	}
}

func ApplyOptions(opts []RequestOption) RequestOptions {
	var o RequestOptions
	for _, opt := range opts {
		opt(&o)
	}
	return o
}
