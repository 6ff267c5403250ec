package challenge

import (
	"crypto/rand"
	"fmt"
	"math/big"

	"github.com/dtroode/anonrelay-server/internal/model"
)

const (
	// TokenLength is the length of a simple confirmation token.
	TokenLength = 10

	tokenAlphabet = "ABCDEFGHIJKLMNOPQRSTUVWXYZabcdefghijklmnopqrstuvwxyz0123456789"
	// codeAlphabet omits characters that are ambiguous when rendered (0/O,
	// 1/I/l).
	codeAlphabet = "ABCDEFGHJKLMNPQRSTUVWXYZ23456789"
)

// NewToken returns a random alphanumeric token of length n.
func NewToken(n int) (string, error) {
	return randomString(n, tokenAlphabet)
}

// NewCode returns a random image-challenge code of length n.
func NewCode(n int) (string, error) {
	return randomString(n, codeAlphabet)
}

// CodeLength returns the image code length for a difficulty tier.
func CodeLength(d model.Difficulty) int {
	switch d {
	case model.DifficultyMedium:
		return 6
	case model.DifficultyHard:
		return 8
	case model.DifficultyExtreme:
		return 10
	default:
		return 4
	}
}

func randomString(n int, alphabet string) (string, error) {
	out := make([]byte, n)
	max := big.NewInt(int64(len(alphabet)))
	for i := range out {
		idx, err := rand.Int(rand.Reader, max)
		if err != nil {
			return "", fmt.Errorf("failed to read random bytes: %w", err)
		}
		out[i] = alphabet[idx.Int64()]
	}
	return string(out), nil
}
