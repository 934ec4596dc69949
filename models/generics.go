package models

import (
	"context"
	"errors"

	"github.com/mmdatafocus/cashflow_backend/utils"
	"gorm.io/gorm"
)

type Resource interface {
	GetBusinessId() string
}

// GetResource reads through the redis cache and checks tenant ownership.
func GetResource[T Resource](ctx context.Context, id int) (*T, error) {
	businessId, err := utils.RequireBusinessId(ctx)
	if err != nil {
		return nil, err
	}
	result, err := utils.RetrieveRedis[T](id)
	if err != nil {
		return nil, err
	}
	if result != nil {
		if (*result).GetBusinessId() != businessId {
			return nil, errors.New("cannot access resource owned by other business")
		}
		return result, nil
	}

	result, err = fetchModel[T](ctx, businessId, id)
	if err != nil {
		return nil, err
	}
	if err := utils.StoreRedis[T](result, id); err != nil {
		return nil, err
	}
	return result, nil
}

func fetchModel[T any](ctx context.Context, businessId string, id int) (*T, error) {
	var result T
	err := dbFromContext(ctx).Where("business_id = ?", businessId).First(&result, id).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, utils.ErrorRecordNotFound
		}
		return nil, err
	}
	return &result, nil
}
