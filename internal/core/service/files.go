package service

import (
	"bytes"
	"context"
	"encoding/base64"
	"errors"
	"io"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/yndnr/filevault-go/internal/core/domain"
)

// DefaultMaxFileBytes is the upload cap (100 MiB).
const DefaultMaxFileBytes int64 = 100 << 20

// Filesystem permissions for sandbox content.
const (
	DirPerm  fs.FileMode = 0750
	FilePerm fs.FileMode = 0640
)

// uploadTempPrefix marks in-flight uploads. Such entries are hidden from
// listings, and account paths may not use the prefix.
const uploadTempPrefix = ".filevault-upload-"

// EntryKind tags a directory listing entry.
type EntryKind byte

const (
	// KindDirectory marks a directory entry.
	KindDirectory EntryKind = 'D'
	// KindFile marks a file entry.
	KindFile EntryKind = 'F'
)

// Entry is one immediate child of a listed directory.
type Entry struct {
	Kind EntryKind
	Name string
}

// String renders the entry in wire form, e.g. "D:docs" or "F:notes.txt".
func (e Entry) String() string {
	return string(e.Kind) + ":" + e.Name
}

// FileServiceConfig holds configuration for FileService.
type FileServiceConfig struct {
	// MaxFileBytes caps decoded upload size (default: 100 MiB).
	MaxFileBytes int64

	// Logger records the causes behind generic storage failures.
	Logger *slog.Logger
}

// FileService implements directory and file operations inside account sandboxes.
//
// Every operation resolves the path first, then checks the account's
// capability, then touches the filesystem. Filesystem errors never escape
// raw: they become domain errors (usually ErrStorageFailure with the cause
// attached for logging).
type FileService struct {
	maxFileBytes int64
	logger       *slog.Logger
}

// NewFileService creates a new FileService.
func NewFileService(cfg *FileServiceConfig) *FileService {
	s := &FileService{
		maxFileBytes: DefaultMaxFileBytes,
		logger:       slog.Default(),
	}
	if cfg != nil {
		if cfg.MaxFileBytes > 0 {
			s.maxFileBytes = cfg.MaxFileBytes
		}
		if cfg.Logger != nil {
			s.logger = cfg.Logger
		}
	}
	return s
}

// MaxFileBytes returns the upload cap.
func (s *FileService) MaxFileBytes() int64 {
	return s.maxFileBytes
}

// prepare resolves rel, rejects reserved names and checks the capability,
// in that order.
func (s *FileService) prepare(acct *domain.Account, rel string, perm domain.Permission) (string, error) {
	full, err := ResolvePath(acct, rel)
	if err != nil {
		return "", err
	}
	if reservedName(rel) {
		return "", domain.ErrInvalidField.WithDetails("path uses the reserved prefix " + uploadTempPrefix)
	}
	if !acct.Can(perm) {
		return "", domain.ErrPermissionDenied.WithDetails(string(perm) + " not granted")
	}
	return full, nil
}

// CreateDirectory creates the directory and any missing parents.
// An already existing directory is not an error.
func (s *FileService) CreateDirectory(ctx context.Context, acct *domain.Account, rel string) error {
	full, err := s.prepare(acct, rel, domain.PermCreate)
	if err != nil {
		return err
	}
	if err := os.MkdirAll(full, DirPerm); err != nil {
		return s.failure(ctx, "create directory", acct, rel, err)
	}
	return nil
}

// WriteFile stores data at rel, replacing any existing file.
func (s *FileService) WriteFile(ctx context.Context, acct *domain.Account, rel string, data []byte) error {
	full, err := s.prepare(acct, rel, domain.PermWrite)
	if err != nil {
		return err
	}
	if int64(len(data)) > s.maxFileBytes {
		return domain.ErrPayloadTooLarge.WithDetails(capDetails(s.maxFileBytes))
	}
	_, err = s.store(ctx, acct, rel, full, bytes.NewReader(data))
	return err
}

// WriteEncodedFile stores the standard base64 payload encoded at rel.
//
// The decoded size is derived from the encoded length and checked against the
// cap before anything touches the disk. Decoding streams into a temporary file
// beside the target, which is renamed into place only after the whole payload
// decoded cleanly; a malformed payload leaves no file behind.
// It returns the number of decoded bytes written.
func (s *FileService) WriteEncodedFile(ctx context.Context, acct *domain.Account, rel string, encoded []byte) (int64, error) {
	full, err := s.prepare(acct, rel, domain.PermWrite)
	if err != nil {
		return 0, err
	}
	if decodedUpperBound(encoded) > s.maxFileBytes {
		return 0, domain.ErrPayloadTooLarge.WithDetails(capDetails(s.maxFileBytes))
	}

	dec := base64.NewDecoder(base64.StdEncoding, bytes.NewReader(encoded))
	return s.store(ctx, acct, rel, full, dec)
}

// store streams r into a temp file next to full and renames it into place.
func (s *FileService) store(ctx context.Context, acct *domain.Account, rel, full string, r io.Reader) (int64, error) {
	if IsSandboxRoot(acct, full) {
		return 0, domain.ErrStorageFailure.WithDetails("path names the sandbox root")
	}

	dir := filepath.Dir(full)
	if err := os.MkdirAll(dir, DirPerm); err != nil {
		return 0, s.failure(ctx, "create parent directories", acct, rel, err)
	}

	tmp, err := os.CreateTemp(dir, uploadTempPrefix+"*")
	if err != nil {
		return 0, s.failure(ctx, "create temp file", acct, rel, err)
	}
	tmpName := tmp.Name()
	committed := false
	defer func() {
		if !committed {
			_ = os.Remove(tmpName)
		}
	}()

	n, err := io.Copy(tmp, io.LimitReader(r, s.maxFileBytes+1))
	if err != nil {
		_ = tmp.Close()
		var corrupt base64.CorruptInputError
		if errors.As(err, &corrupt) || errors.Is(err, io.ErrUnexpectedEOF) {
			return 0, domain.ErrMalformedPayload.WithCause(err)
		}
		return 0, s.failure(ctx, "write temp file", acct, rel, err)
	}
	if n > s.maxFileBytes {
		_ = tmp.Close()
		return 0, domain.ErrPayloadTooLarge.WithDetails(capDetails(s.maxFileBytes))
	}
	if err := tmp.Chmod(FilePerm); err != nil {
		_ = tmp.Close()
		return 0, s.failure(ctx, "chmod temp file", acct, rel, err)
	}
	if err := tmp.Close(); err != nil {
		return 0, s.failure(ctx, "close temp file", acct, rel, err)
	}
	if err := os.Rename(tmpName, full); err != nil {
		return 0, s.failure(ctx, "rename into place", acct, rel, err)
	}
	committed = true
	return n, nil
}

// ReadFile returns the contents of the regular file at rel.
// Anything that is not an existing regular file yields ErrNotFound.
func (s *FileService) ReadFile(ctx context.Context, acct *domain.Account, rel string) ([]byte, error) {
	full, err := s.prepare(acct, rel, domain.PermRead)
	if err != nil {
		return nil, err
	}

	info, err := os.Lstat(full)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, domain.ErrNotFound.WithDetails(rel)
		}
		return nil, s.failure(ctx, "stat", acct, rel, err)
	}
	if !info.Mode().IsRegular() {
		return nil, domain.ErrNotFound.WithDetails(rel)
	}
	if info.Size() > s.maxFileBytes {
		return nil, domain.ErrPayloadTooLarge.WithDetails(capDetails(s.maxFileBytes))
	}

	data, err := os.ReadFile(full)
	if err != nil {
		return nil, s.failure(ctx, "read", acct, rel, err)
	}
	return data, nil
}

// Delete removes the file at rel, or the directory at rel with everything
// beneath it. A missing target yields ErrNotFound. The sandbox root itself
// cannot be deleted.
func (s *FileService) Delete(ctx context.Context, acct *domain.Account, rel string) error {
	full, err := s.prepare(acct, rel, domain.PermDelete)
	if err != nil {
		return err
	}
	if IsSandboxRoot(acct, full) {
		return domain.ErrPermissionDenied.WithDetails("sandbox root cannot be deleted")
	}

	info, err := os.Lstat(full)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return domain.ErrNotFound.WithDetails(rel)
		}
		return s.failure(ctx, "stat", acct, rel, err)
	}

	if info.IsDir() {
		err = os.RemoveAll(full)
	} else {
		err = os.Remove(full)
	}
	if err != nil {
		return s.failure(ctx, "delete", acct, rel, err)
	}
	return nil
}

// ListDirectory returns the immediate children of the directory at rel,
// directories first, each group sorted by name. A missing or empty
// directory yields an empty, non-nil slice.
func (s *FileService) ListDirectory(ctx context.Context, acct *domain.Account, rel string) ([]Entry, error) {
	full, err := s.prepare(acct, rel, domain.PermRead)
	if err != nil {
		return nil, err
	}

	entries, err := os.ReadDir(full)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) || isNotDir(full) {
			return []Entry{}, nil
		}
		return nil, s.failure(ctx, "read directory", acct, rel, err)
	}

	dirs := make([]Entry, 0, len(entries))
	files := make([]Entry, 0, len(entries))
	for _, e := range entries {
		name := e.Name()
		if strings.HasPrefix(name, uploadTempPrefix) {
			continue
		}
		if e.IsDir() {
			dirs = append(dirs, Entry{Kind: KindDirectory, Name: name})
		} else {
			files = append(files, Entry{Kind: KindFile, Name: name})
		}
	}
	return append(dirs, files...), nil
}

func (s *FileService) failure(ctx context.Context, op string, acct *domain.Account, rel string, err error) error {
	s.logger.WarnContext(ctx, "storage operation failed",
		"op", op,
		"user", acct.Username,
		"path", rel,
		"error", err)
	return domain.ErrStorageFailure.WithCause(err)
}

// reservedName reports whether any element of rel starts with uploadTempPrefix.
func reservedName(rel string) bool {
	for _, elem := range strings.FieldsFunc(rel, func(r rune) bool { return r == '/' || r == '\\' }) {
		if strings.HasPrefix(elem, uploadTempPrefix) {
			return true
		}
	}
	return false
}

func isNotDir(full string) bool {
	info, err := os.Stat(full)
	return err == nil && !info.IsDir()
}

// decodedUpperBound returns the decoded size of a padded base64 payload.
// For payloads containing line breaks it over-estimates.
func decodedUpperBound(encoded []byte) int64 {
	n := int64(base64.StdEncoding.DecodedLen(len(encoded)))
	trimmed := bytes.TrimRight(encoded, "\r\n")
	if bytes.HasSuffix(trimmed, []byte("==")) {
		n -= 2
	} else if bytes.HasSuffix(trimmed, []byte("=")) {
		n--
	}
	if n < 0 {
		return 0
	}
	return n
}

func capDetails(limit int64) string {
	return "limit is " + formatBytes(limit)
}

func formatBytes(n int64) string {
	const mib = 1 << 20
	if n%mib == 0 {
		return strconv.FormatInt(n/mib, 10) + " MiB"
	}
	return strconv.FormatInt(n, 10) + " bytes"
}
