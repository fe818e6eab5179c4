package scoring

import (
	"fmt"

	"filippo.io/edwards25519"
	"github.com/mr-tron/base58"

	"token-sniper/internal/domain"
)

// validateSnapshot rejects snapshots that cannot identify a tradable
// token. Returns ErrInvalidCandidate wrapped with the concrete defect.
func validateSnapshot(s *domain.CandidateSnapshot) error {
	if s.Mint == "" {
		return fmt.Errorf("%w: empty mint", domain.ErrInvalidCandidate)
	}
	raw, err := base58.Decode(s.Mint)
	if err != nil || len(raw) != 32 {
		return fmt.Errorf("%w: mint %q is not a 32-byte base58 key", domain.ErrInvalidCandidate, s.Mint)
	}
	if s.Price <= 0 {
		return fmt.Errorf("%w: non-positive price %f", domain.ErrInvalidCandidate, s.Price)
	}
	if s.CapturedAt <= 0 {
		return fmt.Errorf("%w: missing capture timestamp", domain.ErrInvalidCandidate)
	}
	return nil
}

// poolResolved reports whether the snapshot's pool address looks like a
// real AMM pool account. Pool accounts are program-derived, so a key that
// sits on the ed25519 curve cannot be one; such pools are treated as
// unresolved rather than failing the snapshot.
func poolResolved(pool string) bool {
	if pool == "" {
		return false
	}
	raw, err := base58.Decode(pool)
	if err != nil || len(raw) != 32 {
		return false
	}
	return !isOnCurve(raw)
}

func isOnCurve(point []byte) bool {
	if len(point) != 32 {
		return false
	}
	_, err := new(edwards25519.Point).SetBytes(point)
	return err == nil
}
