package postgres

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/ethereum/go-ethereum/common"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/archon-research/emissions-api/internal/domain/entity"
	"github.com/archon-research/emissions-api/internal/ports/outbound"
)

// Compile-time check that ProductTokenRepository implements outbound.ProductTokenRepository.
var _ outbound.ProductTokenRepository = (*ProductTokenRepository)(nil)

// ProductTokenRepository is a PostgreSQL implementation of the
// outbound.ProductTokenRepository port.
type ProductTokenRepository struct {
	pool   *pgxpool.Pool
	logger *slog.Logger
}

// NewProductTokenRepository creates a new PostgreSQL product token repository.
func NewProductTokenRepository(pool *pgxpool.Pool, logger *slog.Logger) (*ProductTokenRepository, error) {
	if pool == nil {
		return nil, fmt.Errorf("database pool cannot be nil")
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &ProductTokenRepository{
		pool:   pool,
		logger: logger.With("component", "product-token-repository"),
	}, nil
}

// CountProducts counts the records matching all bundles.
func (r *ProductTokenRepository) CountProducts(ctx context.Context, bundles []entity.FilterBundle) (int64, error) {
	var w whereBuilder
	if err := applyFilters(&w, bundles); err != nil {
		return 0, err
	}

	var count int64
	if err := r.pool.QueryRow(ctx, "SELECT COUNT(*) FROM product_token"+w.sql(), w.args...).Scan(&count); err != nil {
		return 0, fmt.Errorf("counting product tokens: %w", err)
	}
	return count, nil
}

// SelectPaginated returns at most limit records matching all bundles in
// token id order, skipping the first offset.
func (r *ProductTokenRepository) SelectPaginated(ctx context.Context, offset, limit int, bundles []entity.FilterBundle) ([]*entity.ProductToken, error) {
	query, args, err := buildSelectPaginated(offset, limit, bundles)
	if err != nil {
		return nil, err
	}

	rows, err := r.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("querying product tokens: %w", err)
	}
	defer rows.Close()

	return scanProductTokens(rows)
}

func buildSelectPaginated(offset, limit int, bundles []entity.FilterBundle) (string, []any, error) {
	var w whereBuilder
	if err := applyFilters(&w, bundles); err != nil {
		return "", nil, err
	}
	n := len(w.args)
	query := fmt.Sprintf(`
		SELECT token_id, product_id, tracker_id, auditor,
		       amount::text, available::text, name, unit, unit_amount::text, hash
		FROM product_token%s
		ORDER BY token_id
		OFFSET $%d LIMIT $%d`, w.sql(), n+1, n+2)
	return query, append(w.args, offset, limit), nil
}

type productTokenRow struct {
	tokenID    int64
	productID  int64
	trackerID  int64
	auditor    []byte
	amount     string
	available  string
	name       string
	unit       string
	unitAmount string
	hash       string
}

func (row productTokenRow) toEntity() (*entity.ProductToken, error) {
	amount, err := numericToBigInt("amount", row.amount)
	if err != nil {
		return nil, err
	}
	available, err := numericToBigInt("available", row.available)
	if err != nil {
		return nil, err
	}
	unitAmount, err := numericToBigInt("unit_amount", row.unitAmount)
	if err != nil {
		return nil, err
	}
	return &entity.ProductToken{
		TokenID:    row.tokenID,
		ProductID:  row.productID,
		TrackerID:  row.trackerID,
		Auditor:    common.BytesToAddress(row.auditor),
		Amount:     amount,
		Available:  available,
		Name:       row.name,
		Unit:       row.unit,
		UnitAmount: unitAmount,
		Hash:       row.hash,
	}, nil
}

func scanProductTokens(rows pgx.Rows) ([]*entity.ProductToken, error) {
	var tokens []*entity.ProductToken
	for rows.Next() {
		var row productTokenRow
		if err := rows.Scan(
			&row.tokenID, &row.productID, &row.trackerID, &row.auditor,
			&row.amount, &row.available, &row.name, &row.unit, &row.unitAmount, &row.hash,
		); err != nil {
			return nil, fmt.Errorf("scanning product token: %w", err)
		}
		token, err := row.toEntity()
		if err != nil {
			return nil, fmt.Errorf("product token %d: %w", row.tokenID, err)
		}
		tokens = append(tokens, token)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating product tokens: %w", err)
	}
	return tokens, nil
}

// InsertProductToken persists token and returns a copy carrying the
// store-assigned token id.
func (r *ProductTokenRepository) InsertProductToken(ctx context.Context, token *entity.ProductToken) (*entity.ProductToken, error) {
	if token == nil {
		return nil, fmt.Errorf("product token cannot be nil")
	}
	amount, err := bigIntToNumeric(token.Amount)
	if err != nil {
		return nil, fmt.Errorf("amount: %w", err)
	}
	available, err := bigIntToNumeric(token.Available)
	if err != nil {
		return nil, fmt.Errorf("available: %w", err)
	}
	unitAmount, err := bigIntToNumeric(token.UnitAmount)
	if err != nil {
		return nil, fmt.Errorf("unit amount: %w", err)
	}

	var tokenID int64
	err = r.pool.QueryRow(ctx, `
		INSERT INTO product_token (product_id, tracker_id, auditor, amount, available, name, unit, unit_amount, hash)
		VALUES ($1, $2, $3, $4::numeric, $5::numeric, $6, $7, $8::numeric, $9)
		RETURNING token_id
	`, token.ProductID, token.TrackerID, token.Auditor.Bytes(),
		amount, available, token.Name, token.Unit, unitAmount, token.Hash,
	).Scan(&tokenID)
	if err != nil {
		return nil, fmt.Errorf("inserting product token: %w", err)
	}

	inserted := *token
	inserted.TokenID = tokenID
	r.logger.Debug("product token stored", "tokenId", tokenID, "hash", token.Hash)
	return &inserted, nil
}
