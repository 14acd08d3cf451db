package security

import (
	"crypto/rand"
	"fmt"
	"math/big"
)

var tokenCharset = []rune("abcdefghijklmnopqrstuvwxyz0123456789")

// GenerateTokenID produces a random lowercase alphanumeric identifier of the
// given length, suitable for opaque session tokens.
func GenerateTokenID(length int) (string, error) {
	if length <= 0 {
		return "", fmt.Errorf("length must be positive")
	}

	result := make([]rune, length)
	for i := 0; i < length; i++ {
		idx, err := randInt(len(tokenCharset))
		if err != nil {
			return "", err
		}
		result[i] = tokenCharset[idx]
	}
	return string(result), nil
}

// randInt draws uniformly from [0, max); rand.Int avoids modulo bias.
func randInt(max int) (int, error) {
	if max <= 0 {
		return 0, fmt.Errorf("invalid max %d", max)
	}
	n, err := rand.Int(rand.Reader, big.NewInt(int64(max)))
	if err != nil {
		return 0, err
	}
	return int(n.Int64()), nil
}
