package fileserver

import (
	"sync"

	"github.com/yndnr/filevault-go/internal/core/domain"
)

// Session is the authentication state of one connection.
//
// Only the owning connection's goroutine changes it; the lock exists for
// admin listings that read it from elsewhere.
type Session struct {
	mu      sync.RWMutex
	account *domain.Account
}

// Account returns the authenticated account, or nil.
func (s *Session) Account() *domain.Account {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.account
}

// Authenticated reports whether an account is logged in.
func (s *Session) Authenticated() bool {
	return s.Account() != nil
}

// Username returns the logged-in username, or "".
func (s *Session) Username() string {
	if a := s.Account(); a != nil {
		return a.Username
	}
	return ""
}

func (s *Session) login(acct *domain.Account) {
	s.mu.Lock()
	s.account = acct
	s.mu.Unlock()
}

func (s *Session) logout() {
	s.mu.Lock()
	s.account = nil
	s.mu.Unlock()
}
