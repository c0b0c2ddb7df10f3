package utils

import (
	"context"
	"fmt"
	"reflect"

	"bitbucket.org/gudangkita/inventory_backend/config"
)

// check if id exists within the store, return RecordNotFound error
func ValidateResourceId[T any](ctx context.Context, store string, id interface{}) error {

	count, err := ResourceCountWhere[T](ctx, store, "id = ?", id)
	if err != nil {
		return err
	}
	if count <= 0 {
		return ErrorRecordNotFound
	}

	return nil
}

// check if ALL ids exist within the store, return RecordNotFound error
func ValidateResourcesId[M any, ID comparable](ctx context.Context, store string, ids []ID) error {
	unqIds := UniqueSlice(ids)

	count, err := ResourceCountWhere[M](ctx, store, "id IN ?", unqIds)
	if err != nil {
		return err
	}
	if count != int64(len(unqIds)) {
		return ErrorRecordNotFound
	}

	return nil
}

func ValidateUnique[T any](ctx context.Context, store string, column string, value interface{}, exceptId interface{}) error {
	var count int64
	var err error
	if reflect.ValueOf(exceptId).IsZero() {
		count, err = ResourceCountWhere[T](ctx, store, column+" = ?", value)
	} else {
		count, err = ResourceCountWhere[T](ctx, store, column+" = ? AND NOT id = ?", value, exceptId)
	}

	if err != nil {
		return err
	}
	if count > 0 {
		return fmt.Errorf("%w: %s", ErrDuplicateEntity, column)
	}
	return nil
}

// count records, using WHERE store = ? AND $condition
// store can be blank for cross-store admin tooling
func ResourceCountWhere[T any](ctx context.Context, store string, condition string, value ...interface{}) (int64, error) {
	var model T

	db := config.GetDB()
	dbCtx := db.WithContext(ctx).Model(&model)
	var count int64
	if store != "" {
		dbCtx.Where("store = ?", store)
	}
	dbCtx.Where(condition, value...)
	if err := dbCtx.Count(&count).Error; err != nil {
		return 0, err
	}
	return count, nil
}

func UniqueSlice[T comparable](in []T) []T {
	seen := make(map[T]struct{}, len(in))
	out := make([]T, 0, len(in))
	for _, v := range in {
		if _, ok := seen[v]; ok {
			continue
		}
		seen[v] = struct{}{}
		out = append(out, v)
	}
	return out
}
