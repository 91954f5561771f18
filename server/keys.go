package server

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"golang.org/x/crypto/bcrypt"

	"github.com/hazyhaar/weave/idgen"
)

// ErrUnknownAPIKey is returned for malformed, absent, or mismatched keys.
// Callers map it to 401 without distinguishing the cases.
var ErrUnknownAPIKey = errors.New("server: unknown api key")

// KeySchema contains the DDL for the api_keys table. Only the bcrypt
// hash of the secret half is stored; the plaintext key exists once, at
// provisioning time.
const KeySchema = `
CREATE TABLE IF NOT EXISTS api_keys (
    key_id       TEXT PRIMARY KEY,
    secret_hash  TEXT NOT NULL,
    owner_id     TEXT NOT NULL,
    label        TEXT NOT NULL DEFAULT '',
    created_at   INTEGER NOT NULL,
    last_used_at INTEGER
);

CREATE INDEX IF NOT EXISTS idx_api_keys_owner ON api_keys(owner_id);
`

// Key layout: "wv_" + 8-char key id + 24-char secret. The key id is the
// plaintext lookup column; only the secret is bcrypt-compared.
const (
	keyPrefix    = "wv_"
	keyIDLen     = 8
	keySecretLen = 24
)

// KeyStore provisions and resolves agent API keys.
type KeyStore struct {
	DB        *sql.DB
	newKeyID  idgen.Generator
	newSecret idgen.Generator
	logger    *slog.Logger
}

// NewKeyStore creates a KeyStore on an already-opened database.
func NewKeyStore(db *sql.DB) *KeyStore {
	return &KeyStore{
		DB:        db,
		newKeyID:  idgen.NanoID(keyIDLen),
		newSecret: idgen.NanoID(keySecretLen),
		logger:    slog.Default(),
	}
}

// Create provisions a key for ownerID and returns the one plaintext
// copy. The secret half is stored only as a bcrypt hash.
func (s *KeyStore) Create(ctx context.Context, ownerID, label string) (string, error) {
	if ownerID == "" {
		return "", fmt.Errorf("server: create key: owner id required")
	}

	keyID := s.newKeyID()
	secret := s.newSecret()
	hash, err := bcrypt.GenerateFromPassword([]byte(secret), bcrypt.DefaultCost)
	if err != nil {
		return "", fmt.Errorf("server: hash key secret: %w", err)
	}

	_, err = s.DB.ExecContext(ctx,
		`INSERT INTO api_keys (key_id, secret_hash, owner_id, label, created_at)
		VALUES (?, ?, ?, ?, ?)`,
		keyID, string(hash), ownerID, label, time.Now().UnixMilli())
	if err != nil {
		return "", fmt.Errorf("server: store key: %w", err)
	}
	return keyPrefix + keyID + secret, nil
}

// Resolve validates a presented key and returns its owner ID. Refreshes
// last_used_at on success, best effort.
func (s *KeyStore) Resolve(ctx context.Context, key string) (string, error) {
	if !strings.HasPrefix(key, keyPrefix) || len(key) <= len(keyPrefix)+keyIDLen {
		return "", ErrUnknownAPIKey
	}
	keyID := key[len(keyPrefix) : len(keyPrefix)+keyIDLen]
	secret := key[len(keyPrefix)+keyIDLen:]

	var hash, ownerID string
	err := s.DB.QueryRowContext(ctx,
		`SELECT secret_hash, owner_id FROM api_keys WHERE key_id = ?`, keyID).
		Scan(&hash, &ownerID)
	if err == sql.ErrNoRows {
		return "", ErrUnknownAPIKey
	}
	if err != nil {
		return "", fmt.Errorf("server: resolve key: %w", err)
	}

	if bcrypt.CompareHashAndPassword([]byte(hash), []byte(secret)) != nil {
		return "", ErrUnknownAPIKey
	}

	if _, err := s.DB.ExecContext(ctx,
		`UPDATE api_keys SET last_used_at = ? WHERE key_id = ?`,
		time.Now().UnixMilli(), keyID); err != nil {
		s.logger.Warn("server: refresh key usage failed", "key_id", keyID, "error", err)
	}
	return ownerID, nil
}
