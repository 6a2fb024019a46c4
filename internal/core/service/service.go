package service

import (
	"context"
	"fmt"
	"strings"
	"sync"

	"github.com/niksmo/repair-shop/internal/core/domain"
	"github.com/niksmo/repair-shop/internal/core/port"
	"github.com/niksmo/repair-shop/internal/core/quote"
	"github.com/niksmo/repair-shop/internal/core/variant"
)

// SearchLimit caps the number of records returned by a free-text search.
const SearchLimit = 50

var _ port.CatalogReader = (*Service)(nil)
var _ port.VariantResolver = (*Service)(nil)
var _ port.RecordsSender = (*Service)(nil)
var _ port.RecordBlockSetter = (*Service)(nil)
var _ port.RecordBlockGetter = (*Service)(nil)
var _ port.RecordsSaver = (*Service)(nil)
var _ port.CartManager = (*Service)(nil)

// A Quoter turns a resolution into customer facing price lines.
type Quoter interface {
	Resolve(variant.Resolution) (quote.Result, error)
}

type Service struct {
	recordsProducer     port.RecordsProducer
	recordBlockProducer port.RecordBlockProducer
	recordsStorage      port.RecordsStorage
	cartsStorage        port.CartsStorage
	recordBlockProc     port.RecordBlockProcessor
	recordBlockerProc   port.RecordBlockerProcessor
	recordBlockView     port.RecordBlockView
	quoter              Quoter
}

func New(
	recordsProducer port.RecordsProducer,
	recordBlockProducer port.RecordBlockProducer,
	recordsStorage port.RecordsStorage,
	cartsStorage port.CartsStorage,
	recordBlockProc port.RecordBlockProcessor,
	recordBlockerProc port.RecordBlockerProcessor,
	recordBlockView port.RecordBlockView,
	quoter Quoter,
) Service {
	return Service{
		recordsProducer,
		recordBlockProducer,
		recordsStorage,
		cartsStorage,
		recordBlockProc,
		recordBlockerProc,
		recordBlockView,
		quoter,
	}
}

// Run runs the stream processors and the block view in separate goroutines.
//
// Blocks current goroutine while processors are preparing to ready state.
func (s Service) Run(ctx context.Context, stopFn context.CancelFunc) {
	var wg sync.WaitGroup
	wg.Add(3)
	go s.recordBlockProc.Run(ctx, stopFn, &wg)
	go s.recordBlockerProc.Run(ctx, stopFn, &wg)
	go s.recordBlockView.Run(ctx, stopFn, &wg)
	wg.Wait()
}

func (s Service) Close() {
	s.recordBlockProc.Close()
	s.recordBlockerProc.Close()
}

func (s Service) Brands(ctx context.Context) ([]string, error) {
	const op = "Service.Brands"

	if err := ctx.Err(); err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	brands, err := s.recordsStorage.ReadBrands(ctx)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	return brands, nil
}

func (s Service) Models(ctx context.Context, brand string) ([]string, error) {
	const op = "Service.Models"

	if err := ctx.Err(); err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	brand = strings.TrimSpace(brand)
	if brand == "" {
		return nil, fmt.Errorf("%s: %w: brand is empty", op, domain.ErrInvalidArgument)
	}

	models, err := s.recordsStorage.ReadModels(ctx, brand)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	return models, nil
}

func (s Service) Records(
	ctx context.Context, brand, model string,
) ([]domain.Record, error) {
	const op = "Service.Records"

	if err := ctx.Err(); err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	brand, model, err := normalizeBrandModel(brand, model)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	records, err := s.recordsStorage.ReadRecords(ctx, brand, model)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	return records, nil
}

func (s Service) SearchRecords(
	ctx context.Context, term string,
) ([]domain.Record, error) {
	const op = "Service.SearchRecords"

	if err := ctx.Err(); err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	term = strings.TrimSpace(term)
	if term == "" {
		return nil, fmt.Errorf("%s: %w: search term is empty", op, domain.ErrInvalidArgument)
	}

	records, err := s.recordsStorage.SearchRecords(ctx, term, SearchLimit)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	return records, nil
}

func normalizeBrandModel(brand, model string) (string, string, error) {
	brand = strings.TrimSpace(brand)
	model = strings.TrimSpace(model)
	if brand == "" || model == "" {
		return "", "", fmt.Errorf(
			"%w: brand and model are required", domain.ErrInvalidArgument,
		)
	}
	return brand, model, nil
}
