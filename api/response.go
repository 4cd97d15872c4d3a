package api

import (
	"encoding/json"
	"net/http"
	"strings"

	"golang.org/x/xerrors"
)

type Response struct {
	Status     int
	StatusText string
	Header     http.Header
	Data       []byte
}

func (r *Response) OK() bool {
	return r.Status >= 200 && r.Status < 300
}

func (r *Response) Text() string {
	return string(r.Data)
}

func (r *Response) JSON(v any) error {
	if err := json.Unmarshal(r.Data, v); err != nil {
		return xerrors.Errorf("decoding %d response: %w", r.Status, err)
	}
	return nil
}

// ErrorMessage extracts the error reported by a gateway: the "error" member
// of a JSON body, else the body text, else the status text.
func (r *Response) ErrorMessage() string {
	var body struct {
		Error any `json:"error"`
	}
	if json.Unmarshal(r.Data, &body) == nil && body.Error != nil {
		if s, ok := body.Error.(string); ok {
			return s
		}
		b, _ := json.Marshal(body.Error)
		return string(b)
	}

	if t := strings.TrimSpace(string(r.Data)); t != "" {
		return t
	}
	if r.StatusText != "" {
		return r.StatusText
	}
	return http.StatusText(r.Status)
}

// Err converts a non-2xx response into an *ErrHTTPStatus.
func (r *Response) Err() error {
	if r.OK() {
		return nil
	}
	return r.StatusError()
}

// StatusError describes the response as an *ErrHTTPStatus whatever its
// status, for callers that expect one specific status.
func (r *Response) StatusError() error {
	return &ErrHTTPStatus{Status: r.Status, Message: r.ErrorMessage()}
}
