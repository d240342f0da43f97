package fileserver

import (
	"errors"
	"testing"

	"github.com/yndnr/filevault-go/internal/core/domain"
)

func TestResponse_Encode(t *testing.T) {
	tests := []struct {
		name string
		resp *Response
		want string
	}{
		{"message", successResponse("Deleted"), `{"status":"success","message":"Deleted"}`},
		{"data", dataResponse("aGk="), `{"status":"success","data":"aGk="}`},
		{"empty data", dataResponse(""), `{"status":"success","data":""}`},
		{"items", itemsResponse([]string{"D:a", "F:b"}), `{"status":"success","items":["D:a","F:b"]}`},
		{"empty items", itemsResponse(nil), `{"status":"success","items":[]}`},
		{
			"domain error",
			errorResponse(domain.ErrNotAuthenticated),
			`{"status":"error","message":"not logged in","code":"FV-AUTH-4010"}`,
		},
		{
			"details",
			errorResponse(domain.ErrMissingField.WithDetails("path")),
			`{"status":"error","message":"missing required field: path","code":"FV-PROTO-4002"}`,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := string(tt.resp.encode()); got != tt.want {
				t.Errorf("encode() = %s, want %s", got, tt.want)
			}
		})
	}
}

func TestErrorResponse_HidesCause(t *testing.T) {
	cause := errors.New("open /srv/storage/alice/x: input/output error")

	resp := errorResponse(domain.ErrStorageFailure.WithCause(cause))
	if resp.Message != domain.ErrStorageFailure.Message {
		t.Errorf("Message = %q, want %q", resp.Message, domain.ErrStorageFailure.Message)
	}

	resp = errorResponse(cause)
	if resp.Code != domain.ErrInternal.Code {
		t.Errorf("Code = %q, want %q", resp.Code, domain.ErrInternal.Code)
	}
	if resp.Status != StatusError || resp.Data != nil || resp.Items != nil {
		t.Errorf("unexpected error response %+v", resp)
	}
}
