package vfs

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"sync"

	"github.com/starford/hedgey/internal/apperr"
)

// keyRecord is the single persisted key-material row. Exactly one of Raw or
// Wrapped is set.
type keyRecord struct {
	Raw        string `json:"raw,omitempty"`
	Wrapped    string `json:"wrapped,omitempty"`
	Salt       string `json:"salt,omitempty"`
	Iterations int    `json:"iterations,omitempty"`
	WrapIV     string `json:"wrap_iv,omitempty"`
}

func (r *keyRecord) isWrapped() bool { return r != nil && r.Wrapped != "" }

// KeyStatus reports the state of the key material.
type KeyStatus struct {
	HasKey   bool `json:"has_key"`
	Wrapped  bool `json:"wrapped"`
	Unlocked bool `json:"unlocked"`
}

// Keyring owns the session's data key. While the stored key is wrapped by a
// passphrase and has not been unlocked, Key blocks until Unlock or
// SetPassphrase succeeds or the caller's context ends.
type Keyring struct {
	db         *DB
	iterations int

	mu    sync.Mutex
	key   []byte
	ready chan struct{} // closed while key is cached
}

// NewKeyring returns a keyring over db. iterations <= 0 selects DefaultIterations.
func NewKeyring(db *DB, iterations int) *Keyring {
	if iterations <= 0 {
		iterations = DefaultIterations
	}
	return &Keyring{db: db, iterations: iterations, ready: make(chan struct{})}
}

// Key returns a copy of the data key, loading or creating it on first use.
// The copy stays valid after Lock; callers wipe it when done.
func (k *Keyring) Key(ctx context.Context) ([]byte, error) {
	for {
		k.mu.Lock()
		if k.key != nil {
			key := bytes.Clone(k.key)
			k.mu.Unlock()
			return key, nil
		}
		rec, err := k.load(ctx)
		if err != nil {
			k.mu.Unlock()
			return nil, err
		}
		switch {
		case rec == nil:
			key, err := k.createLocked(ctx)
			k.mu.Unlock()
			return bytes.Clone(key), err
		case !rec.isWrapped():
			key, err := base64.StdEncoding.DecodeString(rec.Raw)
			if err != nil || len(key) != KeyLength {
				k.mu.Unlock()
				return nil, fmt.Errorf("vfs: stored key is corrupt")
			}
			k.setLocked(key)
			k.mu.Unlock()
			return bytes.Clone(key), nil
		}
		ready := k.ready
		k.mu.Unlock()

		select {
		case <-ready:
		case <-ctx.Done():
			return nil, fmt.Errorf("%w: %w", apperr.ErrLocked, ctx.Err())
		}
	}
}

// SetPassphrase wraps the data key under a key derived from passphrase and
// replaces the stored raw key with the wrapped form. A wrapped key must be
// unlocked before it can be re-wrapped.
func (k *Keyring) SetPassphrase(ctx context.Context, passphrase string) error {
	if strings.TrimSpace(passphrase) == "" {
		return fmt.Errorf("vfs: passphrase is empty: %w", apperr.ErrBadPassphrase)
	}
	k.mu.Lock()
	defer k.mu.Unlock()

	key := k.key
	if key == nil {
		rec, err := k.load(ctx)
		if err != nil {
			return err
		}
		switch {
		case rec == nil:
			if key, err = randomBytes(KeyLength); err != nil {
				return fmt.Errorf("vfs: generate key: %w", err)
			}
		case rec.isWrapped():
			return apperr.ErrLocked
		default:
			if key, err = base64.StdEncoding.DecodeString(rec.Raw); err != nil {
				return fmt.Errorf("vfs: stored key is corrupt")
			}
		}
	}

	salt, err := randomBytes(SaltLength)
	if err != nil {
		return fmt.Errorf("vfs: generate salt: %w", err)
	}
	kek := deriveKey(passphrase, salt, k.iterations)
	defer wipe(kek)
	iv, wrapped, err := seal(kek, key)
	if err != nil {
		return err
	}
	rec := &keyRecord{
		Wrapped:    base64.StdEncoding.EncodeToString(wrapped),
		Salt:       base64.StdEncoding.EncodeToString(salt),
		Iterations: k.iterations,
		WrapIV:     base64.StdEncoding.EncodeToString(iv),
	}
	if err := k.store(ctx, rec); err != nil {
		return err
	}
	k.setLocked(key)
	return nil
}

// Unlock derives the wrapping key from passphrase and unwraps the stored key.
// A wrong passphrase returns false with a nil error and leaves the keyring locked.
func (k *Keyring) Unlock(ctx context.Context, passphrase string) (bool, error) {
	k.mu.Lock()
	defer k.mu.Unlock()

	rec, err := k.load(ctx)
	if err != nil {
		return false, err
	}
	if !rec.isWrapped() {
		if k.key != nil {
			return true, nil
		}
		if rec == nil {
			_, err := k.createLocked(ctx)
			return err == nil, err
		}
		key, err := base64.StdEncoding.DecodeString(rec.Raw)
		if err != nil {
			return false, fmt.Errorf("vfs: stored key is corrupt")
		}
		k.setLocked(key)
		return true, nil
	}

	salt, err1 := base64.StdEncoding.DecodeString(rec.Salt)
	iv, err2 := base64.StdEncoding.DecodeString(rec.WrapIV)
	wrapped, err3 := base64.StdEncoding.DecodeString(rec.Wrapped)
	if err := errors.Join(err1, err2, err3); err != nil {
		return false, fmt.Errorf("vfs: wrapped key is corrupt: %w", err)
	}
	kek := deriveKey(passphrase, salt, rec.Iterations)
	defer wipe(kek)
	key, err := open(kek, iv, wrapped)
	if err != nil {
		return false, nil
	}
	k.setLocked(key)
	return true, nil
}

// Lock drops the cached key. Later Key calls block again when the stored key
// is wrapped.
func (k *Keyring) Lock() {
	k.mu.Lock()
	defer k.mu.Unlock()
	if k.key == nil {
		return
	}
	wipe(k.key)
	k.key = nil
	k.ready = make(chan struct{})
}

// Status reports whether a key exists, whether it is wrapped and whether it
// is cached for this session.
func (k *Keyring) Status(ctx context.Context) (KeyStatus, error) {
	k.mu.Lock()
	defer k.mu.Unlock()
	rec, err := k.load(ctx)
	if err != nil {
		return KeyStatus{}, err
	}
	return KeyStatus{
		HasKey:   rec != nil,
		Wrapped:  rec.isWrapped(),
		Unlocked: k.key != nil,
	}, nil
}

func (k *Keyring) createLocked(ctx context.Context) ([]byte, error) {
	key, err := randomBytes(KeyLength)
	if err != nil {
		return nil, fmt.Errorf("vfs: generate key: %w", err)
	}
	if err := k.store(ctx, &keyRecord{Raw: base64.StdEncoding.EncodeToString(key)}); err != nil {
		return nil, err
	}
	k.setLocked(key)
	return key, nil
}

func (k *Keyring) setLocked(key []byte) {
	k.key = key
	select {
	case <-k.ready:
	default:
		close(k.ready)
	}
}

func (k *Keyring) load(ctx context.Context) (*keyRecord, error) {
	raw, ok, err := k.db.GetSetting(ctx, metaCryptoKey)
	if err != nil || !ok {
		return nil, err
	}
	var rec keyRecord
	if err := json.Unmarshal([]byte(raw), &rec); err != nil {
		return nil, fmt.Errorf("vfs: decode key record: %w", err)
	}
	return &rec, nil
}

func (k *Keyring) store(ctx context.Context, rec *keyRecord) error {
	data, err := json.Marshal(rec)
	if err != nil {
		return fmt.Errorf("vfs: encode key record: %w", err)
	}
	return k.db.SetSetting(ctx, metaCryptoKey, string(data))
}
