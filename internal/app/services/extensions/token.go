package extensions

import "github.com/google/uuid"

// NewToken returns a fresh opaque capability token for an extension request.
// UUIDv4 gives 122 bits of randomness, enough that a collision or a guess is
// not a practical concern. Uniqueness is additionally enforced by the token
// primary key in the store.
func NewToken() string {
	return uuid.NewString()
}
