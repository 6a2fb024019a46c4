package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/google/uuid"

	"github.com/niksmo/repair-shop/internal/core/domain"
)

// SendRecords validates a catalog import and publishes it for storage.
//
// Records without id get a new one. Empty attribute values are dropped.
func (s Service) SendRecords(ctx context.Context, rs []domain.Record) error {
	const op = "Service.SendRecords"

	if err := ctx.Err(); err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}

	if len(rs) == 0 {
		return fmt.Errorf("%s: %w: no records", op, domain.ErrInvalidArgument)
	}

	normalized := make([]domain.Record, 0, len(rs))
	for i, r := range rs {
		v, err := normalizeRecord(r)
		if err != nil {
			return fmt.Errorf("%s: record %d: %w", op, i, err)
		}
		normalized = append(normalized, v)
	}

	err := s.recordsProducer.ProduceRecords(ctx, normalized)
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	return nil
}

func (s Service) SetBlock(ctx context.Context, b domain.RecordBlock) error {
	const op = "Service.SetBlock"
	log := slog.With("op", op, "recordID", b.RecordID)

	if err := ctx.Err(); err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}

	if err := validateID(b.RecordID); err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}

	err := s.recordBlockProducer.ProduceBlock(ctx, b)
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}

	err = s.recordsStorage.SetBlocked(ctx, b.RecordID, b.Blocked)
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			log.Info("record is not stored yet, block is kept for its import")
			return nil
		}
		return fmt.Errorf("%s: %w", op, err)
	}
	return nil
}

// BlockStatus reads the block flag of a record from the block table.
// Unknown record ids are not blocked.
func (s Service) BlockStatus(
	ctx context.Context, recordID string,
) (domain.RecordBlock, error) {
	const op = "Service.BlockStatus"

	if err := ctx.Err(); err != nil {
		return domain.RecordBlock{}, fmt.Errorf("%s: %w", op, err)
	}

	if err := validateID(recordID); err != nil {
		return domain.RecordBlock{}, fmt.Errorf("%s: %w", op, err)
	}

	blocked, err := s.recordBlockView.IsBlocked(ctx, recordID)
	if err != nil {
		return domain.RecordBlock{}, fmt.Errorf("%s: %w", op, err)
	}
	return domain.RecordBlock{RecordID: recordID, Blocked: blocked}, nil
}

func (s Service) SaveRecords(ctx context.Context, rs []domain.Record) error {
	const op = "Service.SaveRecords"

	if err := ctx.Err(); err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}

	err := s.recordsStorage.StoreRecords(ctx, rs)
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	return nil
}

func normalizeRecord(r domain.Record) (domain.Record, error) {
	var err error
	r.Brand, r.Model, err = normalizeBrandModel(r.Brand, r.Model)
	if err != nil {
		return domain.Record{}, err
	}

	if r.ID == "" {
		r.ID = uuid.NewString()
	} else if err := validateID(r.ID); err != nil {
		return domain.Record{}, err
	}

	attrs := make(domain.Attributes, len(r.Attributes))
	for k, v := range r.Attributes {
		v = strings.TrimSpace(v)
		if !k.Valid() || v == "" {
			continue
		}
		attrs[k] = v
	}
	if v, ok := attrs[domain.AttrFrame]; ok {
		if _, ok := domain.ParseFrame(v); !ok {
			return domain.Record{}, fmt.Errorf(
				"%w: frame must be %q or %q",
				domain.ErrInvalidArgument, domain.FrameWith, domain.FrameWithout,
			)
		}
	}
	r.Attributes = attrs

	prices := make(domain.Prices, len(r.Prices))
	for k, v := range r.Prices {
		if !k.Valid() {
			continue
		}
		if v.IsNegative() {
			return domain.Record{}, fmt.Errorf(
				"%w: %s price is negative", domain.ErrInvalidArgument, k,
			)
		}
		prices[k] = v
	}
	r.Prices = prices

	return r, nil
}

func validateID(id string) error {
	if _, err := uuid.Parse(id); err != nil {
		return fmt.Errorf("%w: malformed id %q", domain.ErrInvalidArgument, id)
	}
	return nil
}
