package form

import (
	"context"
	"fmt"

	"github.com/eringen/folio/apperr"
	"github.com/eringen/folio/docstore"
)

// Remover is the store surface used by Delete.
type Remover interface {
	Get(ctx context.Context, col, id string) (docstore.Record, error)
	Delete(ctx context.Context, col, id string) error
}

// Delete removes a document and then its cover blob, if it has one. A
// failed blob delete is retried by the blob client's sweep, so the document
// delete is never blocked by storage.
func Delete(ctx context.Context, store Remover, blobs Blobs, col, id string) error {
	if store == nil {
		return fmt.Errorf("form: no store: %w", apperr.ErrConfigurationMissing)
	}
	rec, err := store.Get(ctx, col, id)
	if err != nil {
		return err
	}
	if err := store.Delete(ctx, col, id); err != nil {
		return err
	}
	if p, _ := rec.Fields["imagePath"].(string); p != "" && blobs != nil {
		blobs.Delete(ctx, p)
	}
	return nil
}
