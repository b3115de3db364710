package crypto

import (
	"errors"
	"sync"
)

// ErrSecretDestroyed is returned when a destroyed handle is read.
var ErrSecretDestroyed = errors.New("crypto: secret handle destroyed")

// Secret is a scoped handle over plaintext secret key bytes. The buffer is
// valid until Destroy, which zeroes it. No method hands out an owned copy;
// callers operate on the buffer in place and release the handle as soon as
// the operation completes.
type Secret struct {
	mu   sync.Mutex
	buf  []byte
	dead bool
}

// NewSecret wraps the given bytes in a handle, taking ownership of the
// slice. The caller must not retain its own reference.
func NewSecret(b []byte) *Secret {
	return &Secret{buf: b}
}

// Bytes returns the plaintext buffer, or an error if the handle was
// already destroyed.
func (s *Secret) Bytes() ([]byte, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.dead {
		return nil, ErrSecretDestroyed
	}
	return s.buf, nil
}

// Destroy zeroes the buffer and invalidates the handle. Safe to call more
// than once.
func (s *Secret) Destroy() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.dead {
		return
	}
	for i := range s.buf {
		s.buf[i] = 0
	}
	s.buf = nil
	s.dead = true
}

// Destroyed reports whether the handle has been released.
func (s *Secret) Destroyed() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.dead
}
