package service

import (
	"errors"
	"fmt"

	accountrepo "collection-vault/internal/account/repository"
	sessionrepo "collection-vault/internal/session/repository"
)

// guardWrite translates storage outcomes into domain errors. An optimistic
// concurrency conflict (version mismatch or token-hash unique violation, both
// realistic under racing duplicate refresh calls) becomes
// ErrConcurrencyConflict; any other failure is wrapped so nothing pgx-specific
// crosses the service boundary.
func guardWrite(op string, err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, sessionrepo.ErrConflict) || errors.Is(err, accountrepo.ErrConflict) {
		return ErrConcurrencyConflict
	}
	return fmt.Errorf("%s: %w", op, err)
}
