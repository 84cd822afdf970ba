package refreshrecords

import (
	"context"
	"time"

	"github.com/moviemate/authkeeper/internal/server/models"
)

// Repository persists refresh-record rows. The three conditional writes
// (MarkReplaced, RevokeFamily, DeleteExpired) carry all revocation-state
// correctness: each is a single atomic statement guarded on the current
// revocation state, so concurrent callers cannot both observe a win.
type Repository interface {
	Create(ctx context.Context, rec *models.RefreshRecord) error
	FindByJTI(ctx context.Context, jti string) (*models.RefreshRecord, error)

	// MarkReplaced revokes the record identified by jti and links it to its
	// successor, but only if it is still unrevoked. Returns the number of
	// rows affected: 0 means another caller already revoked it.
	MarkReplaced(ctx context.Context, jti, replacedByID string, now time.Time) (int64, error)

	// RevokeFamily revokes every live record of the family. Idempotent: a
	// second call affects zero rows. Rows are never deleted here.
	RevokeFamily(ctx context.Context, familyID string, now time.Time) (int64, error)

	// DeleteExpired removes records past their expiry, and revoked records
	// whose revocation is older than the retention window. Live records are
	// never deleted.
	DeleteExpired(ctx context.Context, now time.Time, retention time.Duration) (int64, error)
}
