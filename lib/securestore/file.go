// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package securestore

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"

	"filippo.io/age"
	"golang.org/x/sys/unix"

	"github.com/bureau-foundation/timeoff/lib/sealed"
	"github.com/bureau-foundation/timeoff/lib/session"
)

const (
	identityFile = "identity.age-key"
	lockFile     = ".lock"
)

// FileConfig configures a File store.
type FileConfig struct {
	// Directory holds the identity, the lock file, and the slot. It is
	// created with mode 0700 if missing. Required.
	Directory string

	// Slot names the session slot, normally SlotName(clientID,
	// tenantID). Required.
	Slot string

	// Logger receives warnings about unusable slot content. If nil, a
	// no-op logger is used.
	Logger *slog.Logger
}

// File is a Store backed by an age-sealed file.
type File struct {
	directory string
	slotPath  string
	identity  *age.X25519Identity
	logger    *slog.Logger
}

// OpenFile prepares the store directory and loads (or creates) the
// sealing identity. It does not read the slot.
func OpenFile(cfg FileConfig) (*File, error) {
	if cfg.Directory == "" {
		return nil, fmt.Errorf("securestore: Directory is required")
	}
	if cfg.Slot == "" {
		return nil, fmt.Errorf("securestore: Slot is required")
	}
	logger := cfg.Logger
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}

	if err := os.MkdirAll(cfg.Directory, 0o700); err != nil {
		return nil, fmt.Errorf("securestore: creating %s: %w", cfg.Directory, err)
	}
	identity, err := sealed.LoadOrCreateIdentity(filepath.Join(cfg.Directory, identityFile))
	if err != nil {
		return nil, fmt.Errorf("securestore: %w", err)
	}

	return &File{
		directory: cfg.Directory,
		slotPath:  filepath.Join(cfg.Directory, cfg.Slot+".age"),
		identity:  identity,
		logger:    logger.With("component", "securestore", "slot", cfg.Slot),
	}, nil
}

// Path returns the slot file path.
func (f *File) Path() string { return f.slotPath }

// Get reads the slot. Missing or unusable content yields (nil, nil).
func (f *File) Get(ctx context.Context) (*session.Session, error) {
	var result *session.Session
	err := f.withLock(ctx, func() error {
		ciphertext, err := os.ReadFile(f.slotPath)
		if errors.Is(err, fs.ErrNotExist) {
			return nil
		}
		if err != nil {
			return fmt.Errorf("securestore: reading slot: %w", err)
		}
		result = f.decode(ciphertext)
		return nil
	})
	if err != nil {
		return nil, err
	}
	return result, nil
}

// decode opens and parses a slot. Failures are logged and yield nil.
func (f *File) decode(ciphertext []byte) *session.Session {
	plaintext, err := sealed.Open(ciphertext, f.identity)
	if err != nil {
		f.logger.Warn("discarding undecryptable session slot", "error", err)
		return nil
	}
	defer sealed.Zero(plaintext)

	var value session.Session
	if err := json.Unmarshal(plaintext, &value); err != nil {
		f.logger.Warn("discarding unparsable session slot", "error", err)
		return nil
	}
	if err := value.Validate(); err != nil {
		f.logger.Warn("discarding session slot without access token")
		return nil
	}
	return &value
}

// Set replaces the slot atomically.
func (f *File) Set(ctx context.Context, value session.Session) error {
	if err := value.Validate(); err != nil {
		return errors.Join(ErrInvalidSession, err)
	}
	plaintext, err := json.Marshal(value)
	if err != nil {
		return fmt.Errorf("securestore: encoding session: %w", err)
	}
	defer sealed.Zero(plaintext)

	ciphertext, err := sealed.Seal(plaintext, f.identity)
	if err != nil {
		return fmt.Errorf("securestore: %w", err)
	}
	return f.withLock(ctx, func() error {
		return f.writeSlot(ciphertext)
	})
}

// Clear deletes the slot. Clearing an empty slot is not an error.
func (f *File) Clear(ctx context.Context) error {
	return f.withLock(ctx, func() error {
		err := os.Remove(f.slotPath)
		if err != nil && !errors.Is(err, fs.ErrNotExist) {
			return fmt.Errorf("securestore: removing slot: %w", err)
		}
		return nil
	})
}

func (f *File) writeSlot(data []byte) error {
	temporary, err := os.CreateTemp(f.directory, "slot-*.tmp")
	if err != nil {
		return fmt.Errorf("securestore: creating temporary slot: %w", err)
	}
	temporaryPath := temporary.Name()

	success := false
	defer func() {
		if !success {
			os.Remove(temporaryPath)
		}
	}()

	if err := temporary.Chmod(0o600); err != nil {
		temporary.Close()
		return fmt.Errorf("securestore: chmod temporary slot: %w", err)
	}
	if _, err := temporary.Write(data); err != nil {
		temporary.Close()
		return fmt.Errorf("securestore: writing temporary slot: %w", err)
	}
	if err := temporary.Sync(); err != nil {
		temporary.Close()
		return fmt.Errorf("securestore: syncing temporary slot: %w", err)
	}
	if err := temporary.Close(); err != nil {
		return fmt.Errorf("securestore: closing temporary slot: %w", err)
	}
	if err := os.Rename(temporaryPath, f.slotPath); err != nil {
		return fmt.Errorf("securestore: renaming slot into place: %w", err)
	}
	success = true

	if parent, err := os.Open(f.directory); err == nil {
		parent.Sync()
		parent.Close()
	}
	return nil
}

// withLock runs fn while holding an exclusive flock on the store
// directory's lock file. The lock is released on every return path.
// Cancellation is checked before the lock is requested; once acquired,
// fn runs to completion so a write is never abandoned half-way.
func (f *File) withLock(ctx context.Context, fn func() error) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	handle, err := os.OpenFile(filepath.Join(f.directory, lockFile), os.O_RDWR|os.O_CREATE, 0o600)
	if err != nil {
		return fmt.Errorf("securestore: opening lock: %w", err)
	}
	defer handle.Close()

	if err := flock(int(handle.Fd()), unix.LOCK_EX); err != nil {
		return fmt.Errorf("securestore: acquiring lock: %w", err)
	}
	defer flock(int(handle.Fd()), unix.LOCK_UN)

	return fn()
}

func flock(fd, how int) error {
	for {
		err := unix.Flock(fd, how)
		if err != unix.EINTR {
			return err
		}
	}
}
