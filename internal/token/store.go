package token

import (
	"context"
	"time"
)

// RevocationStore tracks revoked token ids until their underlying token
// would have expired. Implementations must be safe for concurrent use.
//
// Revoke is an atomic test-and-set: it reports whether the id was already
// on the list, and two concurrent calls for the same id never both observe
// false. Rotation leans on this to keep refresh tokens single-use.
type RevocationStore interface {
	Revoke(ctx context.Context, tokenID string, ttl time.Duration) (alreadyRevoked bool, err error)
	IsRevoked(ctx context.Context, tokenID string) (bool, error)
}
