package postgres

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"

	"github.com/patagonia-core/stock-planning/internal/domain"
)

const defaultSegmentationChunk = 7000

type segmentationRepository struct {
	db        *DB
	chunkSize int
	stores    []string
}

// NewSegmentationRepository creates the segmentation store. chunkSize bounds
// the rows sent per INSERT statement.
func NewSegmentationRepository(db *DB, chunkSize int, stores []string) *segmentationRepository {
	if chunkSize <= 0 {
		chunkSize = defaultSegmentationChunk
	}
	return &segmentationRepository{db: db, chunkSize: chunkSize, stores: stores}
}

type segmentRow struct {
	SKU            string `db:"sku"`
	DeliveryOption string `db:"delivery_option"`
	Targets        []byte `db:"targets"`
}

func (r segmentRow) toDomain() (domain.SegmentationRecord, error) {
	rec := domain.SegmentationRecord{SKU: r.SKU, DeliveryOption: r.DeliveryOption, Targets: map[string]float64{}}
	if len(r.Targets) > 0 {
		if err := json.Unmarshal(r.Targets, &rec.Targets); err != nil {
			return rec, fmt.Errorf("decode targets of %s/%s: %w", r.SKU, r.DeliveryOption, err)
		}
	}
	return rec, nil
}

func toDomainSegments(rows []segmentRow) ([]domain.SegmentationRecord, error) {
	out := make([]domain.SegmentationRecord, 0, len(rows))
	for _, row := range rows {
		rec, err := row.toDomain()
		if err != nil {
			return nil, err
		}
		out = append(out, rec)
	}
	return out, nil
}

// segmentColumns splits records into the column arrays fed to unnest.
func segmentColumns(records []domain.SegmentationRecord) (skus, deliveries, targets []string, err error) {
	skus = make([]string, len(records))
	deliveries = make([]string, len(records))
	targets = make([]string, len(records))
	for i, rec := range records {
		raw, err := json.Marshal(rec.Targets)
		if err != nil {
			return nil, nil, nil, fmt.Errorf("encode targets of %s: %w", rec.SKU, err)
		}
		skus[i] = rec.SKU
		deliveries[i] = rec.DeliveryOption
		targets[i] = string(raw)
	}
	return skus, deliveries, targets, nil
}

func (r *segmentationRepository) Replace(ctx context.Context, records []domain.SegmentationRecord) (int, error) {
	existing := 0
	err := r.db.WithTx(ctx, func(tx *sqlx.Tx) error {
		keys := make(map[[2]string]struct{})
		rows, err := tx.QueryContext(ctx, `SELECT sku, delivery_option FROM stock_segmentation`)
		if err != nil {
			return fmt.Errorf("failed to read current segmentation: %w", err)
		}
		for rows.Next() {
			var sku, delivery string
			if err := rows.Scan(&sku, &delivery); err != nil {
				rows.Close()
				return fmt.Errorf("failed to scan segmentation key: %w", err)
			}
			keys[[2]string{sku, delivery}] = struct{}{}
		}
		rows.Close()
		if err := rows.Err(); err != nil {
			return fmt.Errorf("failed to read current segmentation: %w", err)
		}

		for _, rec := range records {
			if _, ok := keys[[2]string{rec.SKU, rec.DeliveryOption}]; ok {
				existing++
			}
		}

		if _, err := tx.ExecContext(ctx, `DELETE FROM stock_segmentation`); err != nil {
			return fmt.Errorf("failed to clear segmentation: %w", err)
		}

		return insertSegmentChunks(ctx, tx, `
			INSERT INTO stock_segmentation (sku, delivery_option, targets)
			SELECT u.sku, u.delivery_option, u.targets::jsonb
			FROM unnest($1::text[], $2::text[], $3::text[]) AS u(sku, delivery_option, targets)
			ON CONFLICT (sku, delivery_option) DO UPDATE SET targets = EXCLUDED.targets
		`, records, r.chunkSize)
	})
	if err != nil {
		return 0, err
	}
	return existing, nil
}

func insertSegmentChunks(ctx context.Context, tx *sqlx.Tx, query string, records []domain.SegmentationRecord, chunkSize int, extra ...interface{}) error {
	for start := 0; start < len(records); start += chunkSize {
		end := start + chunkSize
		if end > len(records) {
			end = len(records)
		}

		skus, deliveries, targets, err := segmentColumns(records[start:end])
		if err != nil {
			return err
		}
		args := append([]interface{}{pq.Array(skus), pq.Array(deliveries), pq.Array(targets)}, extra...)
		if _, err := tx.ExecContext(ctx, query, args...); err != nil {
			return fmt.Errorf("failed to insert segmentation rows %d-%d: %w", start+1, end, err)
		}
	}
	return nil
}

func (r *segmentationRepository) Truncate(ctx context.Context) error {
	if _, err := r.db.ExecContext(ctx, `TRUNCATE TABLE stock_segmentation`); err != nil {
		return fmt.Errorf("failed to truncate segmentation: %w", err)
	}
	return nil
}

func (r *segmentationRepository) List(ctx context.Context, filter domain.SegmentFilter) ([]domain.SegmentationRecord, error) {
	where, args, idx := buildSegmentFilterClause(filter, "", 1)
	order, orderArgs := buildSegmentOrderClause(filter, r.stores, "", idx)
	args = append(args, orderArgs...)
	idx += len(orderArgs)

	query := `SELECT sku, delivery_option, targets FROM stock_segmentation WHERE 1=1` + where + order
	if filter.PageSize > 0 {
		query += fmt.Sprintf(" LIMIT $%d OFFSET $%d", idx, idx+1)
		args = append(args, filter.PageSize, filter.Offset())
	}

	var rows []segmentRow
	if err := r.db.SelectContext(ctx, &rows, query, args...); err != nil {
		return nil, fmt.Errorf("failed to list segmentation: %w", err)
	}
	return toDomainSegments(rows)
}

func (r *segmentationRepository) Count(ctx context.Context, filter domain.SegmentFilter) (int, error) {
	where, args, _ := buildSegmentFilterClause(filter, "", 1)

	var total int
	if err := r.db.GetContext(ctx, &total, `SELECT COUNT(*) FROM stock_segmentation WHERE 1=1`+where, args...); err != nil {
		return 0, fmt.Errorf("failed to count segmentation: %w", err)
	}
	return total, nil
}

func (r *segmentationRepository) ListByDeliveries(ctx context.Context, deliveries []string) ([]domain.SegmentationRecord, error) {
	var rows []segmentRow
	err := r.db.SelectContext(ctx, &rows, `
		SELECT sku, delivery_option, targets
		FROM stock_segmentation
		WHERE delivery_option = ANY($1)
		ORDER BY sku, delivery_option
	`, pq.Array(deliveries))
	if err != nil {
		return nil, fmt.Errorf("failed to list segmentation by delivery: %w", err)
	}
	return toDomainSegments(rows)
}

func (r *segmentationRepository) DeliveryOptions(ctx context.Context) ([]string, error) {
	options := []string{}
	err := r.db.SelectContext(ctx, &options, `
		SELECT DISTINCT delivery_option
		FROM stock_segmentation
		WHERE delivery_option <> ''
		ORDER BY delivery_option
	`)
	if err != nil {
		return nil, fmt.Errorf("failed to list delivery options: %w", err)
	}
	return options, nil
}

func (r *segmentationRepository) SaveHistory(ctx context.Context, replenishmentID string, records []domain.SegmentationRecord) error {
	return r.db.WithTx(ctx, func(tx *sqlx.Tx) error {
		return insertSegmentChunks(ctx, tx, `
			INSERT INTO segmentation_history (replenishment_id, sku, delivery_option, targets)
			SELECT $4::uuid, u.sku, u.delivery_option, u.targets::jsonb
			FROM unnest($1::text[], $2::text[], $3::text[]) AS u(sku, delivery_option, targets)
		`, records, r.chunkSize, replenishmentID)
	})
}

func (r *segmentationRepository) GetHistory(ctx context.Context, replenishmentID string) ([]domain.SegmentationHistoryRecord, error) {
	var rows []segmentRow
	err := r.db.SelectContext(ctx, &rows, `
		SELECT sku, delivery_option, targets
		FROM segmentation_history
		WHERE replenishment_id = $1
		ORDER BY sku, delivery_option
	`, replenishmentID)
	if err != nil {
		return nil, fmt.Errorf("failed to get segmentation history: %w", err)
	}

	out := make([]domain.SegmentationHistoryRecord, 0, len(rows))
	for _, row := range rows {
		rec, err := row.toDomain()
		if err != nil {
			return nil, err
		}
		out = append(out, domain.SegmentationHistoryRecord{
			ReplenishmentID: replenishmentID,
			SKU:             rec.SKU,
			DeliveryOption:  rec.DeliveryOption,
			Targets:         rec.Targets,
		})
	}
	return out, nil
}
