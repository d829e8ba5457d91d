// Package token issues and parses the opaque handoff tokens presented in
// person at the security desk. An item token is handed to the finder when a
// found item is submitted; a request token is handed to a claimant when a
// claim is filed.
package token

import (
	"crypto/rand"
	"encoding/hex"
	"fmt"
	"strings"
)

// Kind identifies which entity a token refers to.
type Kind string

const (
	KindItem    Kind = "item"
	KindRequest Kind = "request"
)

// Token prefixes, transcribable at the desk.
const (
	itemPrefix    = "ITEM-"
	requestPrefix = "REQUEST-"
)

// ErrInvalidFormat is returned when a presented token has no known prefix.
var ErrInvalidFormat = fmt.Errorf("invalid token format")

// New generates a fresh token for the given kind: the kind's prefix plus
// 4 random bytes hex-encoded in upper case (e.g. "ITEM-3FA2B9C1"). Tokens
// carry no entity identity; uniqueness is enforced at the persistence layer
// and callers must regenerate on collision.
func New(kind Kind) (string, error) {
	buf := make([]byte, 4)
	if _, err := rand.Read(buf); err != nil {
		return "", fmt.Errorf("generating token: %w", err)
	}
	suffix := strings.ToUpper(hex.EncodeToString(buf))

	switch kind {
	case KindItem:
		return itemPrefix + suffix, nil
	case KindRequest:
		return requestPrefix + suffix, nil
	default:
		return "", fmt.Errorf("unknown token kind %q", kind)
	}
}

// Parse determines the kind of a presented token. The token value itself
// stays opaque; lookups go through the store by full token string.
func Parse(tok string) (Kind, error) {
	switch {
	case strings.HasPrefix(tok, itemPrefix):
		return KindItem, nil
	case strings.HasPrefix(tok, requestPrefix):
		return KindRequest, nil
	default:
		return "", ErrInvalidFormat
	}
}
