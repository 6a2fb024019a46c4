package service

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/niksmo/repair-shop/internal/core/domain"
	"github.com/niksmo/repair-shop/internal/core/quote"
	"github.com/niksmo/repair-shop/internal/core/variant"
)

func (s Service) VariantOptions(
	ctx context.Context, brand, model string, sel domain.Selection,
) (domain.VariantOptions, error) {
	const op = "Service.VariantOptions"

	records, err := s.Records(ctx, brand, model)
	if err != nil {
		return domain.VariantOptions{}, fmt.Errorf("%s: %w", op, err)
	}

	return domain.VariantOptions{
		Values:   variant.Options(records, sel),
		Required: variant.RequiredKeys(records, sel),
	}, nil
}

func (s Service) ResolveVariant(
	ctx context.Context, brand, model string, sel domain.Selection,
) (quote.Result, error) {
	const op = "Service.ResolveVariant"
	log := slog.With("op", op, "brand", brand, "model", model)

	records, err := s.Records(ctx, brand, model)
	if err != nil {
		return quote.Result{}, fmt.Errorf("%s: %w", op, err)
	}

	res := variant.ResolveSelectedRecord(
		records, sel, variant.RequiredKeys(records, sel),
	)
	if res.Status == variant.StatusAmbiguous {
		log.Warn(
			"several records match the same selection",
			"matches", res.Matches,
			"selection", selectionAttrs(sel),
		)
	}

	result, err := s.quoter.Resolve(res)
	if err != nil {
		return quote.Result{}, fmt.Errorf("%s: %w", op, err)
	}
	return result, nil
}

func selectionAttrs(sel domain.Selection) map[string]string {
	out := make(map[string]string, len(sel))
	for k, v := range sel {
		out[k.String()] = v
	}
	return out
}
