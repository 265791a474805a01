package auth

import (
	"crypto/rand"
	"crypto/sha256"
	"encoding/base64"
	"encoding/hex"
	"fmt"
	"strings"
)

const (
	// TokenPrefix identifies weavy API tokens
	TokenPrefix = "weavy_"
	// TokenLength is the number of random bytes behind every token
	TokenLength = 32
	// displayChars is how much of the secret the stored display prefix keeps
	displayChars = 8
)

// secret is a freshly minted token before it is persisted
type secret struct {
	plaintext string
	hash      string
	prefix    string
}

func newSecret() (secret, error) {
	raw := make([]byte, TokenLength)
	if _, err := rand.Read(raw); err != nil {
		return secret{}, fmt.Errorf("failed to generate random bytes: %w", err)
	}
	plaintext := TokenPrefix + base64.RawURLEncoding.EncodeToString(raw)
	return secret{plaintext: plaintext, hash: HashToken(plaintext), prefix: displayPrefix(plaintext)}, nil
}

// HashToken is the lookup key stored in api_tokens.token_hash
func HashToken(token string) string {
	sum := sha256.Sum256([]byte(token))
	return hex.EncodeToString(sum[:])
}

// checkFormat rejects anything that could not have come from newSecret, so
// the database is only consulted for well-formed tokens.
func checkFormat(token string) error {
	encoded, ok := strings.CutPrefix(token, TokenPrefix)
	if !ok {
		return fmt.Errorf("token must start with %q", TokenPrefix)
	}
	raw, err := base64.RawURLEncoding.DecodeString(encoded)
	if err != nil {
		return fmt.Errorf("invalid token encoding: %w", err)
	}
	if len(raw) != TokenLength {
		return fmt.Errorf("token carries %d bytes, want %d", len(raw), TokenLength)
	}
	return nil
}

// displayPrefix is what token listings show in place of the secret
func displayPrefix(token string) string {
	encoded := strings.TrimPrefix(token, TokenPrefix)
	if len(encoded) > displayChars {
		encoded = encoded[:displayChars]
	}
	return TokenPrefix + encoded
}
