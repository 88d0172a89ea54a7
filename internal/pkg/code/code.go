package code

import (
	"crypto/rand"
	"fmt"
	"math/big"
)

// New generates a random numeric one-time code of the given length,
// zero-padded, from a CSPRNG.
func New(length int) (string, error) {
	max := big.NewInt(1)
	for i := 0; i < length; i++ {
		max.Mul(max, big.NewInt(10))
	}
	n, err := rand.Int(rand.Reader, max)
	if err != nil {
		return "", fmt.Errorf("generate code: %w", err)
	}
	return fmt.Sprintf("%0*d", length, n), nil
}
