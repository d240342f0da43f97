package service

import (
	"os"
	"path"
	"path/filepath"
	"strings"

	"github.com/yndnr/filevault-go/internal/core/domain"
)

// ResolvePath maps a sandbox-relative path onto the filesystem and checks
// that the result stays inside the account's sandbox root.
//
// Backslashes are treated as separators. Absolute paths, volume names and NUL
// bytes are rejected. The empty path and "." resolve to the sandbox root.
// Every filesystem touch on behalf of an account must go through here first.
func ResolvePath(acct *domain.Account, rel string) (string, error) {
	if acct == nil || acct.SandboxRoot == "" {
		return "", domain.ErrPathEscape.WithDetails("no sandbox")
	}

	root, err := canonicalRoot(acct.SandboxRoot)
	if err != nil {
		return "", domain.ErrPathEscape.WithCause(err)
	}

	if strings.IndexByte(rel, 0) >= 0 {
		return "", domain.ErrPathEscape.WithDetails("path contains NUL")
	}

	slashed := strings.ReplaceAll(rel, `\`, "/")
	if path.IsAbs(slashed) || filepath.IsAbs(slashed) || filepath.VolumeName(filepath.FromSlash(slashed)) != "" {
		return "", domain.ErrPathEscape.WithDetails("absolute path")
	}

	full := filepath.Join(root, filepath.FromSlash(slashed))
	if !within(root, full) {
		return "", domain.ErrPathEscape.WithDetails(rel)
	}
	return full, nil
}

// IsSandboxRoot reports whether full is the account's sandbox root.
func IsSandboxRoot(acct *domain.Account, full string) bool {
	root, err := canonicalRoot(acct.SandboxRoot)
	if err != nil {
		return false
	}
	return filepath.Clean(full) == root
}

func canonicalRoot(root string) (string, error) {
	abs, err := filepath.Abs(root)
	if err != nil {
		return "", err
	}
	return filepath.Clean(abs), nil
}

// within reports whether target equals root or lies beneath it.
// A plain prefix test is not enough: "/srv/alice2" starts with "/srv/alice".
func within(root, target string) bool {
	if target == root {
		return true
	}
	rel, err := filepath.Rel(root, target)
	if err != nil {
		return false
	}
	return rel != ".." && !strings.HasPrefix(rel, ".."+string(os.PathSeparator)) && !filepath.IsAbs(rel)
}
