package businessflow

import (
	"crypto/rand"
	"encoding/hex"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"golang.org/x/crypto/bcrypt"
)

const apiKeySecretBytes = 32

// GenerateAPIKey returns "<company uuid>.<secret>" and the bcrypt hash of the secret.
// The uuid half lets the key be matched to its company without scanning hashes.
func GenerateAPIKey(companyUUID uuid.UUID, cost int) (key, hash string, err error) {
	buf := make([]byte, apiKeySecretBytes)
	if _, err := rand.Read(buf); err != nil {
		return "", "", fmt.Errorf("failed to read random bytes: %w", err)
	}
	secret := hex.EncodeToString(buf)

	hashed, err := bcrypt.GenerateFromPassword([]byte(secret), cost)
	if err != nil {
		return "", "", fmt.Errorf("failed to hash api key: %w", err)
	}
	return companyUUID.String() + "." + secret, string(hashed), nil
}

// ParseAPIKey splits a key produced by GenerateAPIKey
func ParseAPIKey(key string) (uuid.UUID, string, error) {
	rawID, secret, ok := strings.Cut(strings.TrimSpace(key), ".")
	if !ok || len(secret) != apiKeySecretBytes*2 {
		return uuid.Nil, "", ErrInvalidAPIKey
	}
	id, err := uuid.Parse(rawID)
	if err != nil {
		return uuid.Nil, "", ErrInvalidAPIKey
	}
	return id, secret, nil
}

// VerifyAPIKeySecret compares secret with the stored hash
func VerifyAPIKeySecret(hash *string, secret string) bool {
	if hash == nil || *hash == "" {
		return false
	}
	return bcrypt.CompareHashAndPassword([]byte(*hash), []byte(secret)) == nil
}
