package service

import (
	"context"
	"fmt"

	"github.com/google/uuid"

	"github.com/niksmo/repair-shop/internal/core/domain"
)

func (s Service) CreateCart(ctx context.Context) (domain.Cart, error) {
	const op = "Service.CreateCart"

	if err := ctx.Err(); err != nil {
		return domain.Cart{}, fmt.Errorf("%s: %w", op, err)
	}

	cartID := uuid.NewString()
	if err := s.cartsStorage.CreateCart(ctx, cartID); err != nil {
		return domain.Cart{}, fmt.Errorf("%s: %w", op, err)
	}
	return domain.Cart{ID: cartID}, nil
}

func (s Service) Cart(ctx context.Context, cartID string) (domain.Cart, error) {
	const op = "Service.Cart"

	if err := ctx.Err(); err != nil {
		return domain.Cart{}, fmt.Errorf("%s: %w", op, err)
	}

	if err := validateID(cartID); err != nil {
		return domain.Cart{}, fmt.Errorf("%s: %w", op, err)
	}

	cart, err := s.cartsStorage.ReadCart(ctx, cartID)
	if err != nil {
		return domain.Cart{}, fmt.Errorf("%s: %w", op, err)
	}
	return cart, nil
}

// PutCartItem sets the quantity of a quoted repair in the cart.
//
// Zero quantity removes the item. The service must be quotable for the record.
func (s Service) PutCartItem(
	ctx context.Context, cartID string, key domain.CartItemKey, quantity int,
) (domain.Cart, error) {
	const op = "Service.PutCartItem"

	if quantity == 0 {
		cart, err := s.RemoveCartItem(ctx, cartID, key)
		if err != nil {
			return domain.Cart{}, fmt.Errorf("%s: %w", op, err)
		}
		return cart, nil
	}

	if err := ctx.Err(); err != nil {
		return domain.Cart{}, fmt.Errorf("%s: %w", op, err)
	}

	if err := validateCartItem(cartID, key, quantity); err != nil {
		return domain.Cart{}, fmt.Errorf("%s: %w", op, err)
	}

	if _, err := s.cartsStorage.ReadCart(ctx, cartID); err != nil {
		return domain.Cart{}, fmt.Errorf("%s: %w", op, err)
	}

	record, err := s.recordsStorage.ReadRecord(ctx, key.RecordID)
	if err != nil {
		return domain.Cart{}, fmt.Errorf("%s: %w", op, err)
	}
	if !record.Prices.Get(key.Service).Valid {
		return domain.Cart{}, fmt.Errorf(
			"%s: %w: %s", op, domain.ErrNotQuotable, key.Service,
		)
	}

	err = s.cartsStorage.UpsertCartItem(ctx, cartID, key, quantity)
	if err != nil {
		return domain.Cart{}, fmt.Errorf("%s: %w", op, err)
	}

	cart, err := s.cartsStorage.ReadCart(ctx, cartID)
	if err != nil {
		return domain.Cart{}, fmt.Errorf("%s: %w", op, err)
	}
	return cart, nil
}

func (s Service) RemoveCartItem(
	ctx context.Context, cartID string, key domain.CartItemKey,
) (domain.Cart, error) {
	const op = "Service.RemoveCartItem"

	if err := ctx.Err(); err != nil {
		return domain.Cart{}, fmt.Errorf("%s: %w", op, err)
	}

	if err := validateCartItem(cartID, key, 1); err != nil {
		return domain.Cart{}, fmt.Errorf("%s: %w", op, err)
	}

	err := s.cartsStorage.DeleteCartItem(ctx, cartID, key)
	if err != nil {
		return domain.Cart{}, fmt.Errorf("%s: %w", op, err)
	}

	cart, err := s.cartsStorage.ReadCart(ctx, cartID)
	if err != nil {
		return domain.Cart{}, fmt.Errorf("%s: %w", op, err)
	}
	return cart, nil
}

func validateCartItem(cartID string, key domain.CartItemKey, quantity int) error {
	if err := validateID(cartID); err != nil {
		return err
	}
	if err := validateID(key.RecordID); err != nil {
		return err
	}
	if !key.Service.Valid() {
		return fmt.Errorf("%w: unknown service", domain.ErrInvalidArgument)
	}
	if quantity < 0 {
		return fmt.Errorf("%w: negative quantity", domain.ErrInvalidArgument)
	}
	return nil
}
