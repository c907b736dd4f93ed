// Package cursor turns backend pagination tokens into opaque, URL safe strings.
package cursor

import (
	"errors"

	"github.com/mr-tron/base58"
)

var ErrInvalidCursor = errors.New("invalid cursor")

// Encode returns the base58 form of token, "" for an empty token.
func Encode(token []byte) string {
	if len(token) == 0 {
		return ""
	}
	return base58.Encode(token)
}

// EncodeString is Encode for string tokens such as S3 continuation tokens.
func EncodeString(token string) string {
	return Encode([]byte(token))
}

// Decode reverses Encode. An empty cursor decodes to a nil token.
func Decode(c string) ([]byte, error) {
	if c == "" {
		return nil, nil
	}
	token, err := base58.Decode(c)
	if err != nil || len(token) == 0 {
		return nil, ErrInvalidCursor
	}
	return token, nil
}

// DecodeString is Decode for string tokens.
func DecodeString(c string) (string, error) {
	token, err := Decode(c)
	return string(token), err
}
