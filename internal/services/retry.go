package services

import (
	"github.com/dnt-protocol/dnt-staking-engine/internal/db"
	"github.com/dnt-protocol/dnt-staking-engine/internal/types"
)

// storageError converts a storage failure into an engine error, leaving
// conflicts untouched so the retry loop can see them.
func storageError(err error) error {
	switch {
	case err == nil:
		return nil
	case db.IsConflictError(err):
		return err
	case db.IsNotFoundError(err):
		return types.NewNotFoundError(err.Error())
	default:
		return types.NewInternalServiceError(err)
	}
}
