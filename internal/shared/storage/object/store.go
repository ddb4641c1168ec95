package object

import (
	"context"
	"errors"
	"fmt"
	"io"
	"path"
	"time"

	"jobboard-backend/internal/shared/util"
)

// ErrInvalidKey is returned for keys escaping the store root.
var ErrInvalidKey = errors.New("invalid storage key")

// ObjectStore defines the contract for durable resume storage.
type ObjectStore interface {
	Save(ctx context.Context, ownerID string, fileName string, r io.Reader) (storageKey string, sizeBytes int64, mimeType string, err error)
	Open(ctx context.Context, storageKey string) (io.ReadCloser, error)
	// Delete removes the object. Deleting a missing key is not an error.
	Delete(ctx context.Context, storageKey string) error
}

// PermanentKey builds the storage key for a saved resume: the owner's hashed
// namespace followed by a UTC timestamp and the sanitized file name.
func PermanentKey(ownerID, fileName string, at time.Time) (string, error) {
	name, err := util.SanitizeFileName(fileName)
	if err != nil {
		return "", fmt.Errorf("sanitize file name: %w", err)
	}
	owner := util.OwnerKey(ownerID)
	stamp := at.UTC().Format("20060102T150405.000000000Z")
	return path.Join(owner, fmt.Sprintf("resume_%s_%s", stamp, name)), nil
}
