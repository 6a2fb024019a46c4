package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"slices"

	"github.com/samber/lo"
	"github.com/shopspring/decimal"

	"github.com/niksmo/repair-shop/internal/core/domain"
	"github.com/niksmo/repair-shop/internal/core/port"
)

var _ port.RecordsStorage = RecordsRepository{}

const recordColumns = `
	record_id, brand, model, color, has_frame, version, type,
	module_repair, battery_repair, pin_repair`

type RecordsRepository struct {
	sqldb sqldb
}

func NewRecordsRepository(sqldb sqldb) RecordsRepository {
	return RecordsRepository{sqldb}
}

// StoreRecords upserts records by id. Block flag and insertion order
// of already stored records are kept. A new record takes the block set
// for its id before it was stored.
func (r RecordsRepository) StoreRecords(
	ctx context.Context, vs []domain.Record,
) (storeErr error) {
	const op = "RecordsRepository.StoreRecords"
	log := slog.With("op", op)

	if err := ctx.Err(); err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}

	tx, err := r.sqldb.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("%s: failed to begin tx: %w", op, err)
	}

	defer func() {
		if storeErr == nil {
			if err := tx.Commit(); err != nil {
				storeErr = fmt.Errorf("%s: failed to commit %w", op, err)
			}
			return
		}

		err := tx.Rollback()
		if err != nil {
			log.Error("failed to rollback tx", "err", err)
		}
	}()

	query := `
		INSERT INTO repair_records (` + recordColumns + `, blocked)
		VALUES (
			$1, $2, $3, $4, $5, $6, $7, $8, $9, $10,
			COALESCE(
				(SELECT blocked FROM record_blocks WHERE record_id = $1),
				FALSE
			)
		)
		ON CONFLICT (record_id) DO UPDATE SET
			brand = EXCLUDED.brand,
			model = EXCLUDED.model,
			color = EXCLUDED.color,
			has_frame = EXCLUDED.has_frame,
			version = EXCLUDED.version,
			type = EXCLUDED.type,
			module_repair = EXCLUDED.module_repair,
			battery_repair = EXCLUDED.battery_repair,
			pin_repair = EXCLUDED.pin_repair,
			updated_at = now();
	`

	stmt, err := tx.PrepareContext(ctx, query)
	if err != nil {
		return fmt.Errorf("%s: failed to prepare stmt: %w", op, err)
	}
	defer func() {
		if err := stmt.Close(); err != nil {
			log.Error("failed to close prepared stmt", "err", err)
		}
	}()

	if err := lockRecordIDs(ctx, tx, recordIDs(vs)...); err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}

	for _, v := range vs {
		_, err := stmt.ExecContext(ctx, recordArgs(v)...)
		if err != nil {
			return fmt.Errorf("%s: failed to exec: %w", op, err)
		}
	}

	log.Debug("records stored", "count", len(vs))
	return nil
}

func (r RecordsRepository) ReadBrands(ctx context.Context) ([]string, error) {
	const op = "RecordsRepository.ReadBrands"

	query := `
		SELECT DISTINCT brand FROM repair_records
		WHERE NOT blocked
		ORDER BY brand ASC;`

	brands, err := r.readStrings(ctx, op, query)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	return brands, nil
}

func (r RecordsRepository) ReadModels(
	ctx context.Context, brand string,
) ([]string, error) {
	const op = "RecordsRepository.ReadModels"

	query := `
		SELECT DISTINCT model FROM repair_records
		WHERE brand = $1 AND NOT blocked
		ORDER BY model ASC;`

	models, err := r.readStrings(ctx, op, query, brand)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	return models, nil
}

// ReadRecords returns the visible records of brand and model
// in insertion order.
func (r RecordsRepository) ReadRecords(
	ctx context.Context, brand, model string,
) ([]domain.Record, error) {
	const op = "RecordsRepository.ReadRecords"

	query := `
		SELECT ` + recordColumns + `
		FROM repair_records
		WHERE brand = $1 AND model = $2 AND NOT blocked
		ORDER BY seq ASC;`

	records, err := r.readRecords(ctx, op, query, brand, model)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	return records, nil
}

func (r RecordsRepository) ReadRecord(
	ctx context.Context, recordID string,
) (domain.Record, error) {
	const op = "RecordsRepository.ReadRecord"

	if err := ctx.Err(); err != nil {
		return domain.Record{}, fmt.Errorf("%s: %w", op, err)
	}

	query := `
		SELECT ` + recordColumns + `
		FROM repair_records
		WHERE record_id = $1 AND NOT blocked;`

	v, err := scanRecord(r.sqldb.QueryRowContext(ctx, query, recordID))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return domain.Record{}, fmt.Errorf("%s: %w", op, domain.ErrNotFound)
		}
		return domain.Record{}, fmt.Errorf("%s: %w", op, err)
	}
	return v, nil
}

// SearchRecords matches term case-insensitively against "brand model".
func (r RecordsRepository) SearchRecords(
	ctx context.Context, term string, limit int,
) ([]domain.Record, error) {
	const op = "RecordsRepository.SearchRecords"

	query := `
		SELECT ` + recordColumns + `
		FROM repair_records
		WHERE NOT blocked AND (brand || ' ' || model) ILIKE $1
		ORDER BY brand ASC, model ASC, seq ASC
		LIMIT $2;`

	records, err := r.readRecords(ctx, op, query, containsPattern(term), limit)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	return records, nil
}

// SetBlocked keeps the block for recordID and applies it to the stored
// record. ErrNotFound means the record is not stored yet, the block
// applies once it is.
func (r RecordsRepository) SetBlocked(
	ctx context.Context, recordID string, blocked bool,
) (setErr error) {
	const op = "RecordsRepository.SetBlocked"
	log := slog.With("op", op)

	if err := ctx.Err(); err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}

	tx, err := r.sqldb.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("%s: failed to begin tx: %w", op, err)
	}
	defer func() {
		if setErr != nil && !errors.Is(setErr, domain.ErrNotFound) {
			if err := tx.Rollback(); err != nil {
				log.Error("failed to rollback tx", "err", err)
			}
			return
		}
		if err := tx.Commit(); err != nil {
			setErr = fmt.Errorf("%s: failed to commit %w", op, err)
		}
	}()

	if err := lockRecordIDs(ctx, tx, recordID); err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}

	_, err = tx.ExecContext(ctx, `
		INSERT INTO record_blocks (record_id, blocked) VALUES ($1, $2)
		ON CONFLICT (record_id) DO UPDATE SET
			blocked = EXCLUDED.blocked,
			updated_at = now();`, recordID, blocked)
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}

	res, err := tx.ExecContext(ctx, `
		UPDATE repair_records SET blocked = $2, updated_at = now()
		WHERE record_id = $1;`, recordID, blocked)
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

func (r RecordsRepository) readStrings(
	ctx context.Context, op, query string, args ...any,
) ([]string, error) {
	log := slog.With("op", op)

	if err := ctx.Err(); err != nil {
		return nil, err
	}

	rows, err := r.sqldb.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer closeRows(log, rows)

	out := make([]string, 0)
	for rows.Next() {
		var s string
		if err := rows.Scan(&s); err != nil {
			return nil, err
		}
		out = append(out, s)
	}
	return out, rows.Err()
}

func (r RecordsRepository) readRecords(
	ctx context.Context, op, query string, args ...any,
) ([]domain.Record, error) {
	log := slog.With("op", op)

	if err := ctx.Err(); err != nil {
		return nil, err
	}

	rows, err := r.sqldb.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer closeRows(log, rows)

	out := make([]domain.Record, 0)
	for rows.Next() {
		v, err := scanRecord(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, v)
	}
	return out, rows.Err()
}

type scanner interface {
	Scan(dest ...any) error
}

func scanRecord(s scanner) (domain.Record, error) {
	var (
		v                    domain.Record
		color, version, typ  sql.NullString
		hasFrame             sql.NullBool
		module, battery, pin decimal.NullDecimal
	)

	err := s.Scan(
		&v.ID, &v.Brand, &v.Model, &color, &hasFrame, &version, &typ,
		&module, &battery, &pin,
	)
	if err != nil {
		return domain.Record{}, err
	}

	v.Attributes = make(domain.Attributes)
	setNullString(v.Attributes, domain.AttrColor, color)
	setNullString(v.Attributes, domain.AttrVersion, version)
	setNullString(v.Attributes, domain.AttrType, typ)
	if hasFrame.Valid {
		v.Attributes[domain.AttrFrame] = domain.FrameValue(hasFrame.Bool)
	}

	v.Prices = make(domain.Prices)
	setNullPrice(v.Prices, domain.PriceModuleRepair, module)
	setNullPrice(v.Prices, domain.PriceBatteryRepair, battery)
	setNullPrice(v.Prices, domain.PricePinRepair, pin)
	return v, nil
}

func recordArgs(v domain.Record) []any {
	var hasFrame sql.NullBool
	if frame, ok := v.Attributes.Get(domain.AttrFrame); ok {
		hasFrame.Bool, hasFrame.Valid = domain.ParseFrame(frame)
	}
	return []any{
		v.ID, v.Brand, v.Model,
		nullString(v.Attributes, domain.AttrColor),
		hasFrame,
		nullString(v.Attributes, domain.AttrVersion),
		nullString(v.Attributes, domain.AttrType),
		v.Prices.Get(domain.PriceModuleRepair),
		v.Prices.Get(domain.PriceBatteryRepair),
		v.Prices.Get(domain.PricePinRepair),
	}
}

func nullString(a domain.Attributes, k domain.AttributeKey) sql.NullString {
	v, ok := a.Get(k)
	return sql.NullString{String: v, Valid: ok}
}

func setNullString(a domain.Attributes, k domain.AttributeKey, v sql.NullString) {
	if v.Valid && v.String != "" {
		a[k] = v.String
	}
}

func setNullPrice(p domain.Prices, k domain.PriceKey, v decimal.NullDecimal) {
	if v.Valid {
		p[k] = v.Decimal
	}
}

func recordIDs(vs []domain.Record) []string {
	return lo.Map(vs, func(v domain.Record, _ int) string { return v.ID })
}

// lockRecordIDs serializes storing and blocking of the same ids until tx ends.
func lockRecordIDs(ctx context.Context, tx *sql.Tx, ids ...string) error {
	ids = lo.Uniq(ids)
	slices.Sort(ids)
	for _, id := range ids {
		_, err := tx.ExecContext(
			ctx, `SELECT pg_advisory_xact_lock(hashtextextended($1, 0));`, id,
		)
		if err != nil {
			return fmt.Errorf("lock record %q: %w", id, err)
		}
	}
	return nil
}
