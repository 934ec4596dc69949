package models

import (
	"context"

	"github.com/mmdatafocus/cashflow_backend/config"
	"gorm.io/gorm"
)

type txKey struct{}

// dbFromContext returns the transaction started by RunInTx, or the global
// handle bound to ctx.
func dbFromContext(ctx context.Context) *gorm.DB {
	if tx, ok := ctx.Value(txKey{}).(*gorm.DB); ok && tx != nil {
		return tx
	}
	return config.GetDB().WithContext(ctx)
}

// RunInTx runs fn inside one database transaction carried by the context.
// A nested call joins the outer transaction.
func RunInTx(ctx context.Context, fn func(ctx context.Context) error) (err error) {
	if _, ok := ctx.Value(txKey{}).(*gorm.DB); ok {
		return fn(ctx)
	}
	tx := config.GetDB().WithContext(ctx).Begin()
	if tx.Error != nil {
		return tx.Error
	}
	defer func() {
		if r := recover(); r != nil {
			tx.Rollback()
			panic(r)
		}
	}()
	if err := fn(context.WithValue(ctx, txKey{}, tx)); err != nil {
		tx.Rollback()
		return err
	}
	return tx.Commit().Error
}
