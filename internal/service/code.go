package service

import (
	"crypto/rand"
	"fmt"
	"math/big"

	"github.com/adswipe/child-panel/internal/apperror"
)

// codeAlphabet is the 62-symbol set short codes are drawn from. With 6
// characters that is 62^6 ≈ 5.68×10^10 possible codes, so collisions are
// rare but not impossible — uniqueness is still checked against the
// global registry.
const codeAlphabet = "ABCDEFGHIJKLMNOPQRSTUVWXYZabcdefghijklmnopqrstuvwxyz0123456789"

// CodeLength is the length of a short link code.
const CodeLength = 6

// maxCodeAttempts bounds the draw-and-check loop. At normal registry
// sizes the first draw almost always wins; the bound only matters when
// the code space is nearly full, and then failing loudly beats spinning.
const maxCodeAttempts = 1000

// randomCode draws one candidate code with crypto/rand. It's a package
// variable so tests can pin the candidate sequence.
var randomCode = func() (string, error) {
	buf := make([]byte, CodeLength)
	max := big.NewInt(int64(len(codeAlphabet)))
	for i := range buf {
		n, err := rand.Int(rand.Reader, max)
		if err != nil {
			return "", fmt.Errorf("service: reading random bytes: %w", err)
		}
		buf[i] = codeAlphabet[n.Int64()]
	}
	return string(buf), nil
}

// generateUniqueCode draws candidates until one is absent from taken,
// the set of every code currently in the global registry. Gives up with
// ErrCodeSpaceExhausted after maxCodeAttempts draws.
func generateUniqueCode(taken map[string]struct{}) (string, error) {
	for attempt := 0; attempt < maxCodeAttempts; attempt++ {
		code, err := randomCode()
		if err != nil {
			return "", err
		}
		if _, exists := taken[code]; !exists {
			return code, nil
		}
	}
	return "", apperror.CodeSpaceExhausted(maxCodeAttempts)
}
