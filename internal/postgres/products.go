package postgres

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/dukerupert/kirana/internal/domain"
)

// =============================================================================
// CATALOG AND INVENTORY
// =============================================================================

const productColumns = `id, name, slug, price, images, is_active, sold_count, created_at, updated_at`

func (q *queries) CreateProduct(ctx context.Context, p *domain.Product) error {
	if p.ID == uuid.Nil {
		p.ID = uuid.New()
	}
	now := time.Now()
	p.CreatedAt, p.UpdatedAt = now, now
	images := p.Images
	if images == nil {
		images = []string{}
	}

	_, err := q.db.Exec(ctx, `
		INSERT INTO products (`+productColumns+`)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)`,
		p.ID, p.Name, p.Slug, p.Price, images, p.IsActive, p.SoldCount, p.CreatedAt, p.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to insert product: %w", err)
	}

	for i, v := range p.Inventory {
		if _, err := q.db.Exec(ctx, `
			INSERT INTO product_inventory (product_id, position, color, size, quantity, sku)
			VALUES ($1, $2, $3, $4, $5, NULLIF($6, ''))`,
			p.ID, i, v.Color, v.Size, v.Quantity, v.SKU,
		); err != nil {
			if isUniqueViolation(err, "") {
				return domain.Conflict("product.create", "duplicate variant or SKU")
			}
			return fmt.Errorf("failed to insert inventory: %w", err)
		}
	}
	return nil
}

func (q *queries) GetProduct(ctx context.Context, id uuid.UUID) (*domain.Product, error) {
	products, err := q.GetProducts(ctx, []uuid.UUID{id})
	if err != nil {
		return nil, err
	}
	p, ok := products[id]
	if !ok {
		return nil, domain.ErrProductNotFound
	}
	return p, nil
}

// GetProducts loads products with their inventory. Unknown IDs are absent
// from the result.
func (q *queries) GetProducts(ctx context.Context, ids []uuid.UUID) (map[uuid.UUID]*domain.Product, error) {
	out := make(map[uuid.UUID]*domain.Product, len(ids))
	if len(ids) == 0 {
		return out, nil
	}

	rows, err := q.db.Query(ctx, `SELECT `+productColumns+` FROM products WHERE id = ANY($1)`, ids)
	if err != nil {
		return nil, fmt.Errorf("failed to query products: %w", err)
	}
	products, err := pgx.CollectRows(rows, func(row pgx.CollectableRow) (*domain.Product, error) {
		var p domain.Product
		err := row.Scan(&p.ID, &p.Name, &p.Slug, &p.Price, &p.Images, &p.IsActive, &p.SoldCount, &p.CreatedAt, &p.UpdatedAt)
		return &p, err
	})
	if err != nil {
		return nil, fmt.Errorf("failed to scan products: %w", err)
	}
	for _, p := range products {
		out[p.ID] = p
	}

	rows, err = q.db.Query(ctx, `
		SELECT product_id, color, size, quantity, COALESCE(sku, '')
		FROM product_inventory
		WHERE product_id = ANY($1)
		ORDER BY product_id, position`, ids)
	if err != nil {
		return nil, fmt.Errorf("failed to query inventory: %w", err)
	}
	defer rows.Close()
	for rows.Next() {
		var productID uuid.UUID
		var v domain.Variant
		if err := rows.Scan(&productID, &v.Color, &v.Size, &v.Quantity, &v.SKU); err != nil {
			return nil, fmt.Errorf("failed to scan inventory: %w", err)
		}
		if p, ok := out[productID]; ok {
			p.Inventory = append(p.Inventory, v)
		}
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to read inventory: %w", err)
	}
	return out, nil
}

// DecrementInventory removes qty units from one variant. A NULL attribute
// only matches a NULL attribute.
func (q *queries) DecrementInventory(ctx context.Context, productID uuid.UUID, color, size *string, qty int) error {
	tag, err := q.db.Exec(ctx, `
		UPDATE product_inventory SET quantity = quantity - $4
		WHERE product_id = $1
		  AND color IS NOT DISTINCT FROM $2
		  AND size IS NOT DISTINCT FROM $3
		  AND quantity >= $4`,
		productID, color, size, qty,
	)
	if err != nil {
		if isCheckViolation(err) {
			return domain.ErrInsufficientStock
		}
		return fmt.Errorf("failed to decrement inventory: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return domain.ErrInsufficientStock
	}
	_, err = q.db.Exec(ctx, `UPDATE products SET updated_at = now() WHERE id = $1`, productID)
	return err
}

func (q *queries) IncrementSoldCount(ctx context.Context, productID uuid.UUID, qty int) error {
	tag, err := q.db.Exec(ctx, `
		UPDATE products SET sold_count = sold_count + $2, updated_at = now()
		WHERE id = $1`,
		productID, qty,
	)
	if err != nil {
		return fmt.Errorf("failed to increment sold count: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return domain.ErrProductNotFound
	}
	return nil
}

// scanErr maps a missing row to notFound.
func scanErr(err error, notFound error, what string) error {
	if errors.Is(err, pgx.ErrNoRows) {
		return notFound
	}
	return fmt.Errorf("failed to get %s: %w", what, err)
}
