// Package keygen produces the short random alphanumeric tokens used as
// short-URL keys. The generator gives no uniqueness guarantee: collision
// policy, if any, belongs to the caller.
package keygen

import (
	"crypto/rand"
	"fmt"
	"math/big"
)

// ShortKeyLength is the number of symbols in a generated short key.
const ShortKeyLength = 6

const alphabet = "0123456789abcdefghijklmnopqrstuvwxyzABCDEFGHIJKLMNOPQRSTUVWXYZ"

// Random returns a random token of n symbols drawn from the alphanumeric alphabet.
func Random(n int) (string, error) {
	result := make([]byte, n)
	alphabetLength := big.NewInt(int64(len(alphabet)))
	for i := range result {
		index, err := rand.Int(rand.Reader, alphabetLength)
		if err != nil {
			return "", fmt.Errorf(
				"in internal/keygen/keygen.go/Random(): error while `rand.Int()` calling: %w",
				err,
			)
		}
		result[i] = alphabet[index.Int64()]
	}

	return string(result), nil
}

// ShortKey returns a random token of the standard short-key length.
func ShortKey() (string, error) {
	return Random(ShortKeyLength)
}
