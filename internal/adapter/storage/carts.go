package storage

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/shopspring/decimal"

	"github.com/niksmo/repair-shop/internal/core/domain"
	"github.com/niksmo/repair-shop/internal/core/port"
)

var _ port.CartsStorage = CartsRepository{}

type CartsRepository struct {
	sqldb sqldb
}

func NewCartsRepository(sqldb sqldb) CartsRepository {
	return CartsRepository{sqldb}
}

func (r CartsRepository) CreateCart(ctx context.Context, cartID string) error {
	const op = "CartsRepository.CreateCart"

	if err := ctx.Err(); err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}

	query := `INSERT INTO carts (cart_id) VALUES ($1);`
	if _, err := r.sqldb.ExecContext(ctx, query, cartID); err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	return nil
}

// ReadCart returns the cart priced with the current record prices.
// Items of blocked records or services that lost their price are skipped.
func (r CartsRepository) ReadCart(
	ctx context.Context, cartID string,
) (domain.Cart, error) {
	const op = "CartsRepository.ReadCart"
	log := slog.With("op", op, "cartID", cartID)

	if err := ctx.Err(); err != nil {
		return domain.Cart{}, fmt.Errorf("%s: %w", op, err)
	}

	var exists bool
	err := r.sqldb.QueryRowContext(
		ctx, `SELECT EXISTS (SELECT 1 FROM carts WHERE cart_id = $1);`, cartID,
	).Scan(&exists)
	if err != nil {
		return domain.Cart{}, fmt.Errorf("%s: %w", op, err)
	}
	if !exists {
		return domain.Cart{}, fmt.Errorf("%s: %w", op, domain.ErrNotFound)
	}

	query := `
		SELECT
			i.record_id, r.brand, r.model, i.service,
			CASE i.service
				WHEN 'moduleRepair' THEN r.module_repair
				WHEN 'batteryRepair' THEN r.battery_repair
				WHEN 'pinRepair' THEN r.pin_repair
			END,
			i.quantity
		FROM cart_items i
		JOIN repair_records r ON r.record_id = i.record_id
		WHERE i.cart_id = $1 AND NOT r.blocked
		ORDER BY i.created_at ASC, i.record_id ASC, i.service ASC;`

	rows, err := r.sqldb.QueryContext(ctx, query, cartID)
	if err != nil {
		return domain.Cart{}, fmt.Errorf("%s: %w", op, err)
	}
	defer closeRows(log, rows)

	cart := domain.Cart{ID: cartID, Items: make([]domain.CartItem, 0)}
	for rows.Next() {
		var (
			item    domain.CartItem
			service string
			price   decimal.NullDecimal
		)
		err := rows.Scan(
			&item.RecordID, &item.Brand, &item.Model, &service,
			&price, &item.Quantity,
		)
		if err != nil {
			return domain.Cart{}, fmt.Errorf("%s: %w", op, err)
		}

		k, ok := domain.ParsePriceKey(service)
		if !ok || !price.Valid {
			log.Warn(
				"cart item is not quotable anymore",
				"recordID", item.RecordID,
				"service", service,
			)
			continue
		}
		item.Service = k
		item.UnitPrice = price.Decimal
		cart.Items = append(cart.Items, item)
	}
	if err := rows.Err(); err != nil {
		return domain.Cart{}, fmt.Errorf("%s: %w", op, err)
	}
	return cart, nil
}

func (r CartsRepository) UpsertCartItem(
	ctx context.Context, cartID string, key domain.CartItemKey, quantity int,
) error {
	const op = "CartsRepository.UpsertCartItem"

	if err := ctx.Err(); err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}

	query := `
		INSERT INTO cart_items (cart_id, record_id, service, quantity)
		VALUES ($1, $2, $3, $4)
		ON CONFLICT (cart_id, record_id, service) DO UPDATE SET
			quantity = EXCLUDED.quantity;`

	_, err := r.sqldb.ExecContext(
		ctx, query, cartID, key.RecordID, key.Service.String(), quantity,
	)
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	return nil
}

func (r CartsRepository) DeleteCartItem(
	ctx context.Context, cartID string, key domain.CartItemKey,
) error {
	const op = "CartsRepository.DeleteCartItem"

	if err := ctx.Err(); err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}

	query := `
		DELETE FROM cart_items
		WHERE cart_id = $1 AND record_id = $2 AND service = $3;`

	res, err := r.sqldb.ExecContext(
		ctx, query, cartID, key.RecordID, key.Service.String(),
	)
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}

	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	if n == 0 {
		return fmt.Errorf("%s: %w", op, domain.ErrNotFound)
	}
	return nil
}
