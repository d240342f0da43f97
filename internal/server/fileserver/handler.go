package fileserver

import (
	"context"
	"encoding/base64"
	"errors"
	"log/slog"

	"github.com/yndnr/filevault-go/internal/core/domain"
	"github.com/yndnr/filevault-go/internal/core/service"
	"github.com/yndnr/filevault-go/internal/telemetry/logger"
	"github.com/yndnr/filevault-go/internal/telemetry/metric"
)

// Success messages.
const (
	msgRegistered       = "Registration successful"
	msgLoggedIn         = "Login successful"
	msgLoggedOut        = "Logout successful"
	msgDirectoryCreated = "Directory created"
	msgFileUploaded     = "File uploaded"
	msgDeleted          = "Deleted"
	msgPong             = "pong"
)

// Dispatcher routes decoded commands to the registry and the file service.
type Dispatcher struct {
	registry *service.AccountRegistry
	files    *service.FileService
	metrics  *metric.Registry
	logger   *slog.Logger
}

// NewDispatcher creates a dispatcher. metrics may be nil.
func NewDispatcher(registry *service.AccountRegistry, files *service.FileService, metrics *metric.Registry, log *slog.Logger) *Dispatcher {
	if log == nil {
		log = slog.Default()
	}
	return &Dispatcher{
		registry: registry,
		files:    files,
		metrics:  metrics,
		logger:   log,
	}
}

// Dispatch executes cmd for the connection and returns its response.
// Every failure becomes an error response.
func (d *Dispatcher) Dispatch(ctx context.Context, c *Conn, cmd Command) *Response {
	sess := c.Session()
	acct := sess.Account()
	if acct == nil && RequiresAuth(cmd.Name()) {
		return errorResponse(domain.ErrNotAuthenticated)
	}
	if acct != nil {
		ctx = logger.WithUser(ctx, acct.Username)
	}

	switch cmd := cmd.(type) {
	case RegisterCommand:
		return d.register(ctx, cmd)
	case LoginCommand:
		return d.login(ctx, sess, cmd)
	case LogoutCommand:
		sess.logout()
		d.log(ctx).Info("logout")
		return successResponse(msgLoggedOut)
	case PingCommand:
		return successResponse(msgPong)
	case CreateDirectoryCommand:
		if err := d.files.CreateDirectory(ctx, acct, cmd.Path); err != nil {
			return d.fail(ctx, cmd, err)
		}
		return successResponse(msgDirectoryCreated)
	case UploadFileCommand:
		n, err := d.files.WriteEncodedFile(ctx, acct, cmd.Path, cmd.Data)
		if err != nil {
			return d.fail(ctx, cmd, err)
		}
		if d.metrics != nil {
			d.metrics.AddUploaded(n)
		}
		d.log(ctx).Debug("file uploaded", "path", cmd.Path, "bytes", n)
		return successResponse(msgFileUploaded)
	case DownloadFileCommand:
		data, err := d.files.ReadFile(ctx, acct, cmd.Path)
		if err != nil {
			return d.fail(ctx, cmd, err)
		}
		if d.metrics != nil {
			d.metrics.AddDownloaded(int64(len(data)))
		}
		return dataResponse(base64.StdEncoding.EncodeToString(data))
	case DeleteCommand:
		if err := d.files.Delete(ctx, acct, cmd.Path); err != nil {
			return d.fail(ctx, cmd, err)
		}
		return successResponse(msgDeleted)
	case ListDirectoryCommand:
		entries, err := d.files.ListDirectory(ctx, acct, cmd.Path)
		if err != nil {
			return d.fail(ctx, cmd, err)
		}
		items := make([]string, len(entries))
		for i, e := range entries {
			items[i] = e.String()
		}
		return itemsResponse(items)
	default:
		return errorResponse(domain.ErrUnknownCommand.WithDetails(cmd.Name()))
	}
}

func (d *Dispatcher) register(ctx context.Context, cmd RegisterCommand) *Response {
	acct, err := d.registry.Register(ctx, cmd.Username, cmd.Password)
	if err != nil {
		return d.fail(ctx, cmd, err)
	}
	if d.metrics != nil {
		d.metrics.IncRegistrations()
	}
	d.log(ctx).Info("account registered", "username", acct.Username)
	return successResponse(msgRegistered)
}

// login authenticates and binds the account to the session. A failed
// attempt leaves any existing login in place.
func (d *Dispatcher) login(ctx context.Context, sess *Session, cmd LoginCommand) *Response {
	acct, err := d.registry.Authenticate(ctx, cmd.Username, cmd.Password)
	if err != nil {
		if d.metrics != nil && errors.Is(err, domain.ErrInvalidCredentials) {
			d.metrics.IncAuthFailures()
		}
		return d.fail(ctx, cmd, err)
	}
	sess.login(acct)
	d.log(logger.WithUser(ctx, acct.Username)).Info("login")
	return successResponse(msgLoggedIn)
}

func (d *Dispatcher) fail(ctx context.Context, cmd Command, err error) *Response {
	switch {
	case !domain.IsDomainError(err, ""), errors.Is(err, domain.ErrStorageFailure), errors.Is(err, domain.ErrInternal):
		d.log(ctx).Error("command failed", "command", cmd.Name(), "error", err)
	default:
		d.log(ctx).Debug("command rejected", "command", cmd.Name(), "code", domain.GetErrorCode(err))
	}
	return errorResponse(err)
}

func (d *Dispatcher) log(ctx context.Context) *slog.Logger {
	l := d.logger
	if id := logger.ConnIDFromContext(ctx); id != "" {
		l = l.With("conn_id", id)
	}
	if user := logger.UserFromContext(ctx); user != "" {
		l = l.With("user", user)
	}
	return l
}
