// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package sealed

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"strings"

	"filippo.io/age"
	"filippo.io/age/armor"
)

// LoadOrCreateIdentity reads the age X25519 identity at path, generating
// and writing a new one if the file does not exist. The file holds the
// AGE-SECRET-KEY-1... string followed by a newline.
func LoadOrCreateIdentity(path string) (*age.X25519Identity, error) {
	data, err := os.ReadFile(path)
	if err == nil {
		defer zero(data)
		identity, err := age.ParseX25519Identity(strings.TrimSpace(string(data)))
		if err != nil {
			return nil, fmt.Errorf("parsing identity %s: %w", path, err)
		}
		return identity, nil
	}
	if !errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("reading identity %s: %w", path, err)
	}

	identity, err := age.GenerateX25519Identity()
	if err != nil {
		return nil, fmt.Errorf("generating age identity: %w", err)
	}
	// O_EXCL: a concurrent process that won the race keeps its key and
	// we read it back instead of clobbering it.
	file, err := os.OpenFile(path, os.O_WRONLY|os.O_CREATE|os.O_EXCL, 0o600)
	if errors.Is(err, fs.ErrExist) {
		return LoadOrCreateIdentity(path)
	}
	if err != nil {
		return nil, fmt.Errorf("creating identity %s: %w", path, err)
	}
	if _, err := io.WriteString(file, identity.String()+"\n"); err != nil {
		file.Close()
		return nil, fmt.Errorf("writing identity %s: %w", path, err)
	}
	if err := file.Sync(); err != nil {
		file.Close()
		return nil, fmt.Errorf("syncing identity %s: %w", path, err)
	}
	if err := file.Close(); err != nil {
		return nil, fmt.Errorf("closing identity %s: %w", path, err)
	}
	return identity, nil
}

// Seal encrypts plaintext to the identity's recipient and returns the
// armored ciphertext.
func Seal(plaintext []byte, identity *age.X25519Identity) ([]byte, error) {
	var buffer bytes.Buffer
	armorWriter := armor.NewWriter(&buffer)
	writer, err := age.Encrypt(armorWriter, identity.Recipient())
	if err != nil {
		return nil, fmt.Errorf("creating age encryptor: %w", err)
	}
	if _, err := writer.Write(plaintext); err != nil {
		return nil, fmt.Errorf("writing plaintext to age encryptor: %w", err)
	}
	if err := writer.Close(); err != nil {
		return nil, fmt.Errorf("finalizing age encryption: %w", err)
	}
	if err := armorWriter.Close(); err != nil {
		return nil, fmt.Errorf("finalizing armor: %w", err)
	}
	return buffer.Bytes(), nil
}

// Open decrypts an armored ciphertext produced by Seal. The caller
// should zero the returned plaintext once it has been decoded.
func Open(ciphertext []byte, identity *age.X25519Identity) ([]byte, error) {
	reader, err := age.Decrypt(armor.NewReader(bytes.NewReader(ciphertext)), identity)
	if err != nil {
		return nil, fmt.Errorf("decrypting: %w", err)
	}
	plaintext, err := io.ReadAll(reader)
	if err != nil {
		zero(plaintext)
		return nil, fmt.Errorf("reading decrypted plaintext: %w", err)
	}
	return plaintext, nil
}

// Zero overwrites b in place.
func Zero(b []byte) { zero(b) }

func zero(b []byte) {
	for index := range b {
		b[index] = 0
	}
}
