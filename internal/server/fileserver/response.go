package fileserver

import (
	"encoding/json"
	"errors"

	"github.com/yndnr/filevault-go/internal/core/domain"
)

// Response statuses.
const (
	StatusSuccess = "success"
	StatusError   = "error"
)

// Response is the reply to one command.
//
// Error responses carry Message and Code and never Data or Items.
// Items encodes as [] when an empty listing succeeds.
type Response struct {
	Status  string   `json:"status"`
	Message string   `json:"message,omitempty"`
	Code    string   `json:"code,omitempty"`
	Data    *string  `json:"data,omitempty"`
	Items   []string `json:"items,omitzero"`
}

func successResponse(message string) *Response {
	return &Response{Status: StatusSuccess, Message: message}
}

func dataResponse(data string) *Response {
	return &Response{Status: StatusSuccess, Data: &data}
}

func itemsResponse(items []string) *Response {
	if items == nil {
		items = []string{}
	}
	return &Response{Status: StatusSuccess, Items: items}
}

// errorResponse converts err into the single error response shape.
// Causes are never exposed; details are, because they only ever describe
// the request itself.
func errorResponse(err error) *Response {
	var de *domain.DomainError
	if !errors.As(err, &de) {
		de = domain.ErrInternal
	}
	msg := de.Message
	if de.Details != "" {
		msg += ": " + de.Details
	}
	return &Response{Status: StatusError, Message: msg, Code: de.Code}
}

// encode marshals the response. Marshalling a Response cannot fail for
// valid UTF-8; invalid bytes are replaced by the encoder.
func (r *Response) encode() []byte {
	b, err := json.Marshal(r)
	if err != nil {
		b, _ = json.Marshal(errorResponse(domain.ErrInternal))
	}
	return b
}
