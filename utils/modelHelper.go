package utils

import (
	"context"

	"bitbucket.org/gudangkita/inventory_backend/config"
)

/* DB fetching */

// fetch model from db
// (ctx's store is used in query's WHERE, may return RecordNotFound)
func FetchModel[T any](ctx context.Context, store string, id int, associations ...string) (*T, error) {

	db := config.GetDB()
	dbCtx := db.WithContext(ctx).Where("store = ?", store)
	// preloading
	for _, field := range associations {
		dbCtx = dbCtx.Preload(field)
	}
	var result T
	err := dbCtx.First(&result, id).Error
	if err != nil {
		return nil, ErrorRecordNotFound
	}
	return &result, nil
}
