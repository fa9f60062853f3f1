// Package sessionfile stores platform session blobs on the filesystem, one
// file per account, optionally sealed with NaCl secretbox. The
// domain.SessionStore port keeps the backend swappable for a secrets store
// in distributed deployments.
package sessionfile

import (
	"crypto/rand"
	"encoding/hex"
	"fmt"
	"os"
	"path/filepath"

	"golang.org/x/crypto/nacl/secretbox"

	"github.com/fairyhunter13/jobscout/internal/domain"
)

// Store is a filesystem-backed session store.
type Store struct {
	dir string
	key *[32]byte // nil means blobs are stored unencrypted (dev only)
}

// New creates the directory if needed. hexKey is the hex-encoded 32-byte
// secretbox key; empty disables encryption.
func New(dir, hexKey string) (*Store, error) {
	if err := os.MkdirAll(dir, 0o700); err != nil {
		return nil, fmt.Errorf("op=session.new: %w", err)
	}
	s := &Store{dir: dir}
	if hexKey != "" {
		raw, err := hex.DecodeString(hexKey)
		if err != nil || len(raw) != 32 {
			return nil, fmt.Errorf("op=session.new: %w: key must be 64 hex chars", domain.ErrInvalidArgument)
		}
		s.key = new([32]byte)
		copy(s.key[:], raw)
	}
	return s, nil
}

func (s *Store) path(accountID int) string {
	return filepath.Join(s.dir, fmt.Sprintf("account-%d.session", accountID))
}

// Load reads and unseals the session blob for an account.
func (s *Store) Load(_ domain.Context, accountID int) ([]byte, error) {
	raw, err := os.ReadFile(s.path(accountID))
	if err != nil {
		if os.IsNotExist(err) {
			return nil, fmt.Errorf("op=session.load account=%d: %w", accountID, domain.ErrNotFound)
		}
		return nil, fmt.Errorf("op=session.load account=%d: %w", accountID, err)
	}
	if s.key == nil {
		return raw, nil
	}
	if len(raw) < 24 {
		return nil, fmt.Errorf("op=session.load account=%d: sealed blob too short", accountID)
	}
	var nonce [24]byte
	copy(nonce[:], raw[:24])
	blob, ok := secretbox.Open(nil, raw[24:], &nonce, s.key)
	if !ok {
		return nil, fmt.Errorf("op=session.load account=%d: %w", accountID, domain.ErrAuthKeyInvalid)
	}
	return blob, nil
}

// Save seals and writes the session blob atomically.
func (s *Store) Save(_ domain.Context, accountID int, blob []byte) error {
	out := blob
	if s.key != nil {
		var nonce [24]byte
		if _, err := rand.Read(nonce[:]); err != nil {
			return fmt.Errorf("op=session.save account=%d: %w", accountID, err)
		}
		out = secretbox.Seal(nonce[:], blob, &nonce, s.key)
	}
	tmp := s.path(accountID) + ".tmp"
	if err := os.WriteFile(tmp, out, 0o600); err != nil {
		return fmt.Errorf("op=session.save account=%d: %w", accountID, err)
	}
	if err := os.Rename(tmp, s.path(accountID)); err != nil {
		return fmt.Errorf("op=session.save account=%d: %w", accountID, err)
	}
	return nil
}
