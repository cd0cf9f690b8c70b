package request

import (
	"bytes"
	"encoding/json"
)

// Response is the normalized envelope every caller receives. Exactly one of
// Data and Error is set, and Success mirrors Error == nil. Failures are
// carried inside the envelope rather than raised, so consumers can render
// error state uniformly.
type Response struct {
	// Data is the response payload. Nil on failure.
	Data []byte

	// Error is the normalized failure. Nil on success.
	Error error

	// Status is the transport status code, when the adapter reports one.
	Status int

	// Success is true when Error is nil.
	Success bool

	// Extra carries adapter-specific response details (e.g., headers).
	Extra map[string]string
}

// NewSuccess builds a success envelope.
func NewSuccess(data []byte, status int) Response {
	return Response{
		Data:    data,
		Status:  status,
		Success: true,
		Extra:   map[string]string{},
	}
}

// NewFailure builds a failure envelope from a normalized failure.
func NewFailure(err error, status int) Response {
	return Response{
		Error:   err,
		Status:  status,
		Success: false,
		Extra:   map[string]string{},
	}
}

// responseJSON is the wire form used when persisting envelopes to a backing
// store. Errors are flattened to class + message and rebuilt as *Failure.
type responseJSON struct {
	Data         []byte            `json:"data,omitempty"`
	ErrorClass   FailureClass      `json:"error_class,omitempty"`
	ErrorMessage string            `json:"error_message,omitempty"`
	Status       int               `json:"status"`
	Success      bool              `json:"success"`
	Extra        map[string]string `json:"extra,omitempty"`
}

// MarshalJSON implements json.Marshaler.
func (r Response) MarshalJSON() ([]byte, error) {
	wire := responseJSON{
		Data:    r.Data,
		Status:  r.Status,
		Success: r.Success,
		Extra:   r.Extra,
	}
	if r.Error != nil {
		wire.ErrorClass = ClassOf(r.Error)
		wire.ErrorMessage = r.Error.Error()
	}
	return json.Marshal(wire)
}

// UnmarshalJSON implements json.Unmarshaler.
func (r *Response) UnmarshalJSON(data []byte) error {
	var wire responseJSON
	if err := json.Unmarshal(data, &wire); err != nil {
		return err
	}

	r.Data = wire.Data
	r.Status = wire.Status
	r.Success = wire.Success
	r.Extra = wire.Extra
	r.Error = nil
	if wire.ErrorMessage != "" || wire.ErrorClass != "" {
		r.Error = &Failure{Class: wire.ErrorClass, Message: wire.ErrorMessage}
	}
	return nil
}

// Equal reports whether two envelopes carry the same result. Errors compare
// by class and message.
func (r Response) Equal(other Response) bool {
	if !bytes.Equal(r.Data, other.Data) {
		return false
	}
	if r.Status != other.Status || r.Success != other.Success {
		return false
	}
	if (r.Error == nil) != (other.Error == nil) {
		return false
	}
	if r.Error != nil {
		if ClassOf(r.Error) != ClassOf(other.Error) || r.Error.Error() != other.Error.Error() {
			return false
		}
	}
	if len(r.Extra) != len(other.Extra) {
		return false
	}
	for k, v := range r.Extra {
		if other.Extra[k] != v {
			return false
		}
	}
	return true
}
