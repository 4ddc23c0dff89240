package helius

import (
	"errors"
	"fmt"

	"filippo.io/edwards25519"
	"github.com/mr-tron/base58"
)

// addressLength is the size of a decoded Solana account address.
const addressLength = 32

// ErrInvalidAddress means a string is not a base58 encoded 32-byte key.
var ErrInvalidAddress = errors.New("invalid address")

// ParseAddress decodes a base58 account address.
func ParseAddress(s string) ([]byte, error) {
	decoded, err := base58.Decode(s)
	if err != nil {
		return nil, fmt.Errorf("%w %q: %v", ErrInvalidAddress, s, err)
	}
	if len(decoded) != addressLength {
		return nil, fmt.Errorf("%w %q: decoded length %d", ErrInvalidAddress, s, len(decoded))
	}
	return decoded, nil
}

// IsOnCurve reports whether key is a valid ed25519 point, i.e. a wallet
// rather than a program derived address.
func IsOnCurve(key []byte) bool {
	if len(key) != addressLength {
		return false
	}
	_, err := new(edwards25519.Point).SetBytes(key)
	return err == nil
}
