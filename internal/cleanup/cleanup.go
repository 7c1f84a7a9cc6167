// Package cleanup reconciles the storage directory with the file metadata
// table. A purge racing a concurrent upload can leave a blob without a
// record; this removes such orphans on demand.
package cleanup

import (
	"context"
	"strings"

	"github.com/ewbrowntech/atto-host/internal/database"
)

// BlobStore is the slice of the storage backend the sweep needs.
type BlobStore interface {
	List() ([]string, error)
	Delete(name string) error
}

// GetOrphanedBlobs returns the names of blobs whose id (the blob name with
// its extension stripped) has no metadata record.
func GetOrphanedBlobs(ctx context.Context, store *database.Store, ls BlobStore) ([]string, error) {
	ids, err := store.ListFileIDs(ctx)
	if err != nil {
		return nil, err
	}

	known := make(map[string]bool, len(ids))
	for _, id := range ids {
		known[id] = true
	}

	names, err := ls.List()
	if err != nil {
		return nil, err
	}

	var orphans []string
	for _, name := range names {
		id := name
		if dot := strings.LastIndex(name, "."); dot > 0 {
			id = name[:dot]
		}
		if !known[id] {
			orphans = append(orphans, name)
		}
	}

	return orphans, nil
}

// RemoveOrphanedBlobs deletes every orphaned blob and returns the names of
// those removed.
func RemoveOrphanedBlobs(ctx context.Context, store *database.Store, ls BlobStore) ([]string, error) {
	orphans, err := GetOrphanedBlobs(ctx, store, ls)
	if err != nil {
		return nil, err
	}

	removed := []string{}
	for _, name := range orphans {
		if err := ls.Delete(name); err != nil {
			return removed, err
		}
		removed = append(removed, name)
	}

	return removed, nil
}
