package port

import (
	"context"

	"github.com/annoworks/annotation-pipeline/internal/archive"
)

// ArchiveStore defines read and locked-rewrite operations on per-document
// ledger files. Update reports success; ledger writes are best-effort and
// never fail the triggering business operation.
type ArchiveStore interface {
	Update(ctx context.Context, documentID int64, mutate func(*archive.Archive)) bool
	Load(documentID int64) (*archive.Archive, error)
	Path(documentID int64) string
}
