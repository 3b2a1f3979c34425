package rooms

import (
	"crypto/rand"
	"io"
	"math/big"
	"regexp"
	"strings"
)

// CodeLength is the number of characters in a room code.
const CodeLength = 4

// A code is three digits followed by one letter from A to F.
const (
	codeDigits  = "0123456789"
	codeLetters = "ABCDEF"
)

var codePattern = regexp.MustCompile(`^[0-9]{3}[A-F]$`)

// NewCode returns a random room code drawn from crypto/rand.
func NewCode() (string, error) {
	return newCodeFrom(rand.Reader)
}

func newCodeFrom(r io.Reader) (string, error) {
	var b strings.Builder
	b.Grow(CodeLength)

	for i := 0; i < CodeLength; i++ {
		alphabet := codeDigits
		if i == CodeLength-1 {
			alphabet = codeLetters
		}
		c, err := pick(r, alphabet)
		if err != nil {
			return "", err
		}
		b.WriteByte(c)
	}
	return b.String(), nil
}

// pick draws one character uniformly from alphabet.
func pick(r io.Reader, alphabet string) (byte, error) {
	n, err := rand.Int(r, big.NewInt(int64(len(alphabet))))
	if err != nil {
		return 0, err
	}
	return alphabet[n.Int64()], nil
}

// NormalizeCode canonicalizes a user supplied code to upper case and
// reports whether it has the shape of a room code.
func NormalizeCode(code string) (string, bool) {
	code = strings.ToUpper(strings.TrimSpace(code))
	return code, codePattern.MatchString(code)
}
