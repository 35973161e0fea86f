package sqlite

import (
	"context"
	"crypto/sha256"
	"database/sql"
	"encoding/hex"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/rpggio/opsdash/internal/repository"
)

var _ repository.APIKeyRepository = (*APIKeyRepository)(nil)

// APIKeyRepository stores API keys by SHA-256 hash; plaintext tokens are
// never written.
type APIKeyRepository struct {
	db *DB
}

func NewAPIKeyRepository(db *DB) *APIKeyRepository {
	return &APIKeyRepository{db: db}
}

// Add registers token for clientID.
func (r *APIKeyRepository) Add(ctx context.Context, clientID, token, description string) error {
	if strings.TrimSpace(clientID) == "" || strings.TrimSpace(token) == "" {
		return fmt.Errorf("%w: client id and token are required", repository.ErrInvalidInput)
	}
	_, err := r.db.ExecContext(ctx, `
		INSERT INTO api_keys (key_hash, client_id, created_at, description) VALUES (?, ?, ?, ?)
	`, HashToken(token), clientID, time.Now().UTC(), description)
	if err != nil {
		if isUniqueViolation(err) {
			return repository.ErrConflict
		}
		return fmt.Errorf("failed to add api key: %w", err)
	}
	return nil
}

// ResolveClient returns the client a token was issued to and stamps its
// last use.
func (r *APIKeyRepository) ResolveClient(ctx context.Context, token string) (string, error) {
	hash := HashToken(token)
	var clientID string
	err := r.db.QueryRowContext(ctx, `SELECT client_id FROM api_keys WHERE key_hash = ?`, hash).Scan(&clientID)
	if errors.Is(err, sql.ErrNoRows) {
		return "", repository.ErrNotFound
	}
	if err != nil {
		return "", fmt.Errorf("failed to resolve api key: %w", err)
	}
	if _, err := r.db.ExecContext(ctx, `UPDATE api_keys SET last_used = ? WHERE key_hash = ?`, time.Now().UTC(), hash); err != nil {
		return "", fmt.Errorf("failed to stamp api key: %w", err)
	}
	return clientID, nil
}

// HashToken is the stored form of a token.
func HashToken(token string) string {
	sum := sha256.Sum256([]byte(token))
	return hex.EncodeToString(sum[:])
}
