package repositories

import (
	"context"
	"errors"

	"gorm.io/gorm"

	"dealflow/internal/core/domain"
)

type txKey struct{}

// withTx stores tx in ctx so repositories called inside a transaction share it.
func withTx(ctx context.Context, tx *gorm.DB) context.Context {
	return context.WithValue(ctx, txKey{}, tx)
}

// getDB returns the transaction carried by ctx, or db.
func getDB(ctx context.Context, db *gorm.DB) *gorm.DB {
	if tx, ok := ctx.Value(txKey{}).(*gorm.DB); ok && tx != nil {
		return tx.WithContext(ctx)
	}
	return db.WithContext(ctx)
}

// mapErr translates gorm errors into domain errors at the repository boundary.
func mapErr(err error) error {
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return domain.ErrNotFound
	}
	return err
}
