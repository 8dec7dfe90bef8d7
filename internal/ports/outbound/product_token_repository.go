package outbound

import (
	"context"

	"github.com/archon-research/emissions-api/internal/domain/entity"
)

// ProductTokenRepository defines persistence for product token records.
type ProductTokenRepository interface {
	// CountProducts counts records matching all bundles.
	CountProducts(ctx context.Context, bundles []entity.FilterBundle) (int64, error)

	// SelectPaginated returns at most limit records matching all bundles,
	// ordered by token id, skipping the first offset.
	SelectPaginated(ctx context.Context, offset, limit int, bundles []entity.FilterBundle) ([]*entity.ProductToken, error)

	// InsertProductToken persists the record and returns it with its
	// store-assigned TokenID.
	InsertProductToken(ctx context.Context, token *entity.ProductToken) (*entity.ProductToken, error)
}
