package postgres

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"

	"github.com/patagonia-core/stock-planning/internal/domain"
)

// 11 bind parameters per line keeps a chunk well under the protocol limit.
const lineChunkSize = 2000

type replenishmentRepository struct {
	db *DB
}

func NewReplenishmentRepository(db *DB) *replenishmentRepository {
	return &replenishmentRepository{db: db}
}

type headerRow struct {
	ID                    string         `db:"id"`
	TotalReplenishmentQty int64          `db:"total_replenishment_qty"`
	TotalBreakQty         int64          `db:"total_break_qty"`
	SelectedDeliveries    pq.StringArray `db:"selected_deliveries"`
	StartDate             time.Time      `db:"start_date"`
	EndDate               time.Time      `db:"end_date"`
	StoresConsidered      pq.StringArray `db:"stores_considered"`
	ERPTransferOrders     []byte         `db:"erp_transfer_orders"`
	CreatedAt             time.Time      `db:"created_at"`
}

func (h headerRow) toDomain() (*domain.ReplenishmentHeader, error) {
	header := &domain.ReplenishmentHeader{
		ID:                      h.ID,
		TotalReplenishmentQty:   h.TotalReplenishmentQty,
		TotalBreakQty:           h.TotalBreakQty,
		SelectedDeliveryOptions: []string(h.SelectedDeliveries),
		StartDate:               h.StartDate,
		EndDate:                 h.EndDate,
		StoresConsidered:        []string(h.StoresConsidered),
		CreatedAt:               h.CreatedAt,
		ERPTransferOrders:       map[string]string{},
	}
	if len(h.ERPTransferOrders) > 0 {
		if err := json.Unmarshal(h.ERPTransferOrders, &header.ERPTransferOrders); err != nil {
			return nil, fmt.Errorf("decode transfer orders of %s: %w", h.ID, err)
		}
	}
	return header, nil
}

func (r *replenishmentRepository) Save(ctx context.Context, header *domain.ReplenishmentHeader, lines []domain.ReplenishmentLine) (string, error) {
	if header.ID == "" {
		header.ID = uuid.NewString()
	}
	if header.CreatedAt.IsZero() {
		header.CreatedAt = time.Now()
	}
	if header.ERPTransferOrders == nil {
		header.ERPTransferOrders = map[string]string{}
	}
	orders, err := json.Marshal(header.ERPTransferOrders)
	if err != nil {
		return "", fmt.Errorf("failed to encode transfer orders: %w", err)
	}

	err = r.db.WithTx(ctx, func(tx *sqlx.Tx) error {
		_, err := tx.ExecContext(ctx, `
			INSERT INTO replenishment_headers (
				id, total_replenishment_qty, total_break_qty, selected_deliveries,
				start_date, end_date, stores_considered, erp_transfer_orders, created_at
			) VALUES ($1, $2, $3, $4, $5, $6, $7, $8::jsonb, $9)
		`,
			header.ID,
			header.TotalReplenishmentQty,
			header.TotalBreakQty,
			pq.Array(header.SelectedDeliveryOptions),
			header.StartDate,
			header.EndDate,
			pq.Array(header.StoresConsidered),
			string(orders),
			header.CreatedAt,
		)
		if err != nil {
			return fmt.Errorf("failed to insert replenishment header: %w", err)
		}

		for start := 0; start < len(lines); start += lineChunkSize {
			end := start + lineChunkSize
			if end > len(lines) {
				end = len(lines)
			}
			if err := insertLines(ctx, tx, header.ID, lines[start:end]); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return "", err
	}
	return header.ID, nil
}

func insertLines(ctx context.Context, tx *sqlx.Tx, headerID string, lines []domain.ReplenishmentLine) error {
	const cols = 11
	args := make([]interface{}, 0, len(lines)*cols)
	for _, l := range lines {
		args = append(args,
			headerID, l.SKU, l.Store, l.Team, l.Category, l.CostCenter,
			l.SegmentTarget, l.SalesQty, l.StockQty, l.OrderedQty, l.ReplenishmentQty,
		)
	}

	query := `
		INSERT INTO replenishment_lines (
			header_id, sku, store, team, category, cost_center,
			segment_target, sales_qty, stock_qty, ordered_qty, replenishment_qty
		) VALUES ` + placeholders(len(lines), cols)

	if _, err := tx.ExecContext(ctx, query, args...); err != nil {
		return fmt.Errorf("failed to insert replenishment lines: %w", err)
	}
	return nil
}

func (r *replenishmentRepository) GetSummary(ctx context.Context, id string) (*domain.ReplenishmentHeader, error) {
	if _, err := uuid.Parse(id); err != nil {
		return nil, domain.ErrNotFound
	}

	var row headerRow
	err := r.db.GetContext(ctx, &row, `
		SELECT id, total_replenishment_qty, total_break_qty, selected_deliveries,
		       start_date, end_date, stores_considered, erp_transfer_orders, created_at
		FROM replenishment_headers
		WHERE id = $1
	`, id)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, domain.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get replenishment summary: %w", err)
	}
	return row.toDomain()
}

func (r *replenishmentRepository) GetLines(ctx context.Context, id string) ([]domain.ReplenishmentLine, error) {
	lines := []domain.ReplenishmentLine{}
	if _, err := uuid.Parse(id); err != nil {
		return lines, nil
	}

	// Store rank follows the header's stores_considered order.
	err := r.db.SelectContext(ctx, &lines, `
		SELECT l.id, l.header_id, l.sku, l.store, l.team, l.category, l.cost_center,
		       l.segment_target, l.sales_qty, l.stock_qty, l.ordered_qty, l.replenishment_qty,
		       l.erp_transfer_order_number, l.erp_line_id
		FROM replenishment_lines l
		JOIN replenishment_headers h ON h.id = l.header_id
		WHERE l.header_id = $1
		ORDER BY l.sku, COALESCE(array_position(h.stores_considered, l.store), 2147483647), l.id
	`, id)
	if err != nil {
		return nil, fmt.Errorf("failed to get replenishment lines: %w", err)
	}
	return lines, nil
}

func (r *replenishmentRepository) UpdateERPInfo(ctx context.Context, id string, transferOrders map[string]string, lineERPIDs map[int64]string) error {
	if _, err := uuid.Parse(id); err != nil {
		return domain.ErrNotFound
	}
	if transferOrders == nil {
		transferOrders = map[string]string{}
	}
	orders, err := json.Marshal(transferOrders)
	if err != nil {
		return fmt.Errorf("failed to encode transfer orders: %w", err)
	}

	return r.db.WithTx(ctx, func(tx *sqlx.Tx) error {
		res, err := tx.ExecContext(ctx, `
			UPDATE replenishment_headers
			SET erp_transfer_orders = erp_transfer_orders || $2::jsonb
			WHERE id = $1
		`, id, string(orders))
		if err != nil {
			return fmt.Errorf("failed to update transfer orders: %w", err)
		}
		if n, _ := res.RowsAffected(); n == 0 {
			return domain.ErrNotFound
		}

		if len(lineERPIDs) == 0 {
			return nil
		}

		stmt, err := tx.PrepareContext(ctx, `
			UPDATE replenishment_lines l
			SET erp_line_id = $1,
			    erp_transfer_order_number = h.erp_transfer_orders ->> l.store
			FROM replenishment_headers h
			WHERE h.id = l.header_id AND l.header_id = $2 AND l.id = $3
		`)
		if err != nil {
			return fmt.Errorf("failed to prepare line update: %w", err)
		}
		defer stmt.Close()

		for lineID, erpLineID := range lineERPIDs {
			if _, err := stmt.ExecContext(ctx, erpLineID, id, lineID); err != nil {
				return fmt.Errorf("failed to update line %d: %w", lineID, err)
			}
		}
		return nil
	})
}

func (r *replenishmentRepository) Delete(ctx context.Context, id string) error {
	if _, err := uuid.Parse(id); err != nil {
		return domain.ErrNotFound
	}

	res, err := r.db.ExecContext(ctx, `DELETE FROM replenishment_headers WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("failed to delete replenishment: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return domain.ErrNotFound
	}
	return nil
}

func (r *replenishmentRepository) List(ctx context.Context, query string, page, limit int) ([]domain.ReplenishmentListItem, int, error) {
	if limit <= 0 {
		limit = 10
	}
	if page <= 0 {
		page = 1
	}

	where := ""
	args := []interface{}{}
	if q := strings.TrimSpace(query); q != "" {
		where = ` WHERE h.id::text ILIKE $1 OR array_to_string(h.selected_deliveries, ',') ILIKE $1`
		args = append(args, "%"+q+"%")
	}

	var total int
	if err := r.db.GetContext(ctx, &total, `SELECT COUNT(*) FROM replenishment_headers h`+where, args...); err != nil {
		return nil, 0, fmt.Errorf("failed to count replenishments: %w", err)
	}

	items := []domain.ReplenishmentListItem{}
	listQuery := fmt.Sprintf(`
		SELECT h.id, h.total_replenishment_qty, h.total_break_qty, h.start_date, h.end_date, h.created_at,
		       COUNT(l.id) AS line_count,
		       COUNT(l.id) FILTER (WHERE l.replenishment_qty > 0 AND l.erp_line_id IS NULL) AS pending_lines
		FROM replenishment_headers h
		LEFT JOIN replenishment_lines l ON l.header_id = h.id
		%s
		GROUP BY h.id
		ORDER BY h.created_at DESC
		LIMIT $%d OFFSET $%d
	`, where, len(args)+1, len(args)+2)
	args = append(args, limit, (page-1)*limit)

	if err := r.db.SelectContext(ctx, &items, listQuery, args...); err != nil {
		return nil, 0, fmt.Errorf("failed to list replenishments: %w", err)
	}
	return items, total, nil
}

func (r *replenishmentRepository) GetOperationRows(ctx context.Context, id string) ([]domain.OperationRow, error) {
	rows := []domain.OperationRow{}
	if _, err := uuid.Parse(id); err != nil {
		return nil, domain.ErrNotFound
	}

	var exists bool
	if err := r.db.GetContext(ctx, &exists, `SELECT EXISTS (SELECT 1 FROM replenishment_headers WHERE id = $1)`, id); err != nil {
		return nil, fmt.Errorf("failed to check replenishment: %w", err)
	}
	if !exists {
		return nil, domain.ErrNotFound
	}

	err := r.db.SelectContext(ctx, &rows, `
		SELECT l.id AS line_id, l.sku, l.store, l.team, l.category, l.cost_center, l.replenishment_qty,
		       COALESCE(l.erp_transfer_order_number, h.erp_transfer_orders ->> l.store) AS erp_transfer_order_number,
		       l.erp_line_id,
		       l.erp_line_id IS NOT NULL AS exported
		FROM replenishment_lines l
		JOIN replenishment_headers h ON h.id = l.header_id
		WHERE l.header_id = $1 AND l.replenishment_qty > 0
		ORDER BY l.store, l.sku
	`, id)
	if err != nil {
		return nil, fmt.Errorf("failed to get operation rows: %w", err)
	}
	return rows, nil
}
