package fileserver

import (
	"bytes"
	"encoding/json"

	"github.com/yndnr/filevault-go/internal/core/domain"
)

// Command names on the wire.
const (
	CmdRegister        = "register"
	CmdLogin           = "login"
	CmdLogout          = "logout"
	CmdCreateDirectory = "create_directory"
	CmdUploadFile      = "upload_file"
	CmdDownloadFile    = "download_file"
	CmdDelete          = "delete"
	CmdListDirectory   = "list_directory"
	CmdPing            = "ping"
)

// Command is one decoded request. Each variant carries only its own fields.
type Command interface {
	Name() string
}

// RegisterCommand creates an account.
type RegisterCommand struct {
	Username string
	Password string
}

// LoginCommand authenticates the session.
type LoginCommand struct {
	Username string
	Password string
}

// LogoutCommand clears the session's account.
type LogoutCommand struct{}

// CreateDirectoryCommand creates a directory inside the sandbox.
type CreateDirectoryCommand struct {
	Path string
}

// UploadFileCommand stores a file.
//
// Data holds the standard base64 text exactly as it appeared on the wire,
// without the surrounding quotes. It is decoded while being written to disk.
type UploadFileCommand struct {
	Path string
	Data []byte
}

// DownloadFileCommand reads a file.
type DownloadFileCommand struct {
	Path string
}

// DeleteCommand removes a file or directory tree.
type DeleteCommand struct {
	Path string
}

// ListDirectoryCommand lists a directory. An empty Path is the sandbox root.
type ListDirectoryCommand struct {
	Path string
}

// PingCommand checks liveness.
type PingCommand struct{}

func (RegisterCommand) Name() string        { return CmdRegister }
func (LoginCommand) Name() string           { return CmdLogin }
func (LogoutCommand) Name() string          { return CmdLogout }
func (CreateDirectoryCommand) Name() string { return CmdCreateDirectory }
func (UploadFileCommand) Name() string      { return CmdUploadFile }
func (DownloadFileCommand) Name() string    { return CmdDownloadFile }
func (DeleteCommand) Name() string          { return CmdDelete }
func (ListDirectoryCommand) Name() string   { return CmdListDirectory }
func (PingCommand) Name() string            { return CmdPing }

// fields is the undecoded request object.
type fields map[string]json.RawMessage

// Message is a request whose command tag has been read but whose fields are
// not yet validated.
type Message struct {
	Name   string
	fields fields
}

// ParseMessage reads the command tag of one message. The message must be a
// JSON object with a string "command".
func ParseMessage(payload []byte) (*Message, error) {
	trimmed := bytes.TrimSpace(payload)
	if len(trimmed) == 0 || trimmed[0] != '{' {
		return nil, domain.ErrMalformedMessage.WithDetails("expected a JSON object")
	}

	var f fields
	if err := json.Unmarshal(trimmed, &f); err != nil {
		return nil, domain.ErrMalformedMessage.WithCause(err)
	}

	name, err := f.required("command")
	if err != nil {
		return nil, err
	}
	return &Message{Name: name, fields: f}, nil
}

// RequiresAuth reports whether the named command needs a logged-in session.
// Unknown names report false so that they fail as unsupported commands.
func RequiresAuth(name string) bool {
	switch name {
	case CmdLogout, CmdCreateDirectory, CmdUploadFile, CmdDownloadFile, CmdDelete, CmdListDirectory:
		return true
	}
	return false
}

// DecodeCommand parses one message into its command variant.
//
// Required fields must be present and must be JSON strings; unknown fields
// are ignored.
func DecodeCommand(payload []byte) (Command, error) {
	msg, err := ParseMessage(payload)
	if err != nil {
		return nil, err
	}
	return msg.Command()
}

// Command validates the message fields and returns the command variant.
func (m *Message) Command() (Command, error) {
	name, f := m.Name, m.fields
	switch name {
	case CmdRegister, CmdLogin:
		user, err := f.required("username")
		if err != nil {
			return nil, err
		}
		pass, err := f.required("password")
		if err != nil {
			return nil, err
		}
		if name == CmdRegister {
			return RegisterCommand{Username: user, Password: pass}, nil
		}
		return LoginCommand{Username: user, Password: pass}, nil

	case CmdLogout:
		return LogoutCommand{}, nil

	case CmdPing:
		return PingCommand{}, nil

	case CmdCreateDirectory, CmdDownloadFile, CmdDelete:
		p, err := f.required("path")
		if err != nil {
			return nil, err
		}
		switch name {
		case CmdCreateDirectory:
			return CreateDirectoryCommand{Path: p}, nil
		case CmdDownloadFile:
			return DownloadFileCommand{Path: p}, nil
		default:
			return DeleteCommand{Path: p}, nil
		}

	case CmdUploadFile:
		p, err := f.required("path")
		if err != nil {
			return nil, err
		}
		data, err := f.base64Text("data")
		if err != nil {
			return nil, err
		}
		return UploadFileCommand{Path: p, Data: data}, nil

	case CmdListDirectory:
		p, err := f.optional("path")
		if err != nil {
			return nil, err
		}
		return ListDirectoryCommand{Path: p}, nil

	default:
		return nil, domain.ErrUnknownCommand.WithDetails(name)
	}
}

func (f fields) required(key string) (string, error) {
	raw, ok := f[key]
	if !ok {
		return "", domain.ErrMissingField.WithDetails(key)
	}
	return decodeString(key, raw)
}

// optional returns "" for an absent or null field.
func (f fields) optional(key string) (string, error) {
	raw, ok := f[key]
	if !ok || bytes.Equal(raw, []byte("null")) {
		return "", nil
	}
	return decodeString(key, raw)
}

// base64Text returns the body of a JSON string field without copying it when
// it contains no escape sequences. Standard base64 never needs escaping, but
// some encoders write "/" as "\/".
func (f fields) base64Text(key string) ([]byte, error) {
	raw, ok := f[key]
	if !ok {
		return nil, domain.ErrMissingField.WithDetails(key)
	}
	if len(raw) < 2 || raw[0] != '"' || raw[len(raw)-1] != '"' {
		return nil, domain.ErrInvalidField.WithDetails(key + " must be a string")
	}
	body := raw[1 : len(raw)-1]
	if bytes.IndexByte(body, '\\') < 0 {
		return body, nil
	}
	s, err := decodeString(key, raw)
	if err != nil {
		return nil, err
	}
	return []byte(s), nil
}

func decodeString(key string, raw json.RawMessage) (string, error) {
	var s string
	if len(raw) == 0 || raw[0] != '"' {
		return "", domain.ErrInvalidField.WithDetails(key + " must be a string")
	}
	if err := json.Unmarshal(raw, &s); err != nil {
		return "", domain.ErrInvalidField.WithDetails(key + " must be a string")
	}
	return s, nil
}
