package repository

import (
	"context"

	"linguameet/internal/storage"
)

// baseRepository 提供以字串主鍵操作的共用 CRUD
type baseRepository[T any] struct {
	db *storage.Database
}

func newBaseRepository[T any](db *storage.Database) baseRepository[T] {
	return baseRepository[T]{db: db}
}

func (r *baseRepository[T]) Create(ctx context.Context, model *T) error {
	return r.db.WithContext(ctx).Create(model).Error
}

func (r *baseRepository[T]) FindByID(ctx context.Context, id string) (*T, error) {
	var model T
	if err := r.db.WithContext(ctx).First(&model, "id = ?", id).Error; err != nil {
		return nil, err
	}
	return &model, nil
}

func (r *baseRepository[T]) Update(ctx context.Context, model *T) error {
	return r.db.WithContext(ctx).Save(model).Error
}

func (r *baseRepository[T]) Delete(ctx context.Context, id string) error {
	var model T
	return r.db.WithContext(ctx).Delete(&model, "id = ?", id).Error
}
