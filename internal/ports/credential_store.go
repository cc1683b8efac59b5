package ports

import (
	"context"

	"github.com/halcyonapp/halcyon-session-cli/internal/domain"
)

// CredentialStore persists the credential record across process restarts.
// Read returns (nil, nil) when no usable record exists, including when the
// stored record is corrupt or partially written, so callers always have a
// well-defined absent fallback. Write must be atomic with respect to process
// termination. Clear is idempotent.
type CredentialStore interface {
	Read(ctx context.Context) (*domain.CredentialRecord, error)
	Write(ctx context.Context, record domain.CredentialRecord) error
	Clear(ctx context.Context) error
}
