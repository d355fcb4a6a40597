package service

import (
	"bytes"
	"context"
	"encoding/csv"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/rs/zerolog/log"
	"golang.org/x/sync/errgroup"

	"github.com/patagonia-core/stock-planning/internal/domain"
	"github.com/patagonia-core/stock-planning/internal/replenishment"
	"github.com/patagonia-core/stock-planning/internal/repository"
	"github.com/patagonia-core/stock-planning/internal/storage"
)

const (
	defaultPresignExpiry = 24 * time.Hour
	exportPrefix         = "operations/"
)

// CalculateRequest holds the operator choices of a calculation run.
type CalculateRequest struct {
	StartDate       time.Time               `json:"startDate"`
	EndDate         time.Time               `json:"endDate"`
	DeliveryOptions []string                `json:"selectedDeliveryOptions"`
	StorePriority   []string                `json:"storePriority"`
	EditedSegments  replenishment.Overrides `json:"editedSegments,omitempty"`
	EditedSales     replenishment.Overrides `json:"editedSales,omitempty"`
}

// LinesView is the answer to a lines request. Groups is set when a grouping
// was asked for.
type LinesView struct {
	GroupBy domain.GroupBy             `json:"groupBy"`
	Lines   []domain.ReplenishmentLine `json:"lines"`
	Groups  []domain.LineGroup         `json:"groups,omitempty"`
}

type ReplenishmentService struct {
	segments   repository.SegmentationRepository
	repo       repository.ReplenishmentRepository
	agg        repository.Aggregator
	store      storage.ObjectStorage
	calculator *replenishment.Calculator
	stores     []string
	expiry     time.Duration
	now        func() time.Time
}

func NewReplenishmentService(
	segments repository.SegmentationRepository,
	repo repository.ReplenishmentRepository,
	agg repository.Aggregator,
	objectStorage storage.ObjectStorage,
	stores []string,
	presignExpiry time.Duration,
) *ReplenishmentService {
	if presignExpiry <= 0 {
		presignExpiry = defaultPresignExpiry
	}
	return &ReplenishmentService{
		segments:   segments,
		repo:       repo,
		agg:        agg,
		store:      objectStorage,
		calculator: replenishment.NewCalculator(),
		stores:     stores,
		expiry:     presignExpiry,
		now:        time.Now,
	}
}

func (s *ReplenishmentService) input(req CalculateRequest) (replenishment.Input, error) {
	in := replenishment.Input{
		StartDate:       req.StartDate,
		EndDate:         req.EndDate,
		DeliveryOptions: req.DeliveryOptions,
		StorePriority:   req.StorePriority,
		EditedSegments:  req.EditedSegments,
		EditedSales:     req.EditedSales,
	}
	if len(in.StorePriority) == 0 {
		in.StorePriority = append([]string(nil), s.stores...)
	}
	if err := in.Validate(); err != nil {
		return in, err
	}
	if len(s.stores) > 0 {
		known := make(map[string]bool, len(s.stores))
		for _, store := range s.stores {
			known[store] = true
		}
		for _, store := range in.StorePriority {
			if !known[store] {
				return in, domain.NewValidationError("storePriority", "tienda desconocida: "+store)
			}
		}
	}
	return in, nil
}

// load fills the data side of in. Segmentation and the three warehouse
// reads run concurrently; attributes follow once the SKUs are known.
func (s *ReplenishmentService) load(ctx context.Context, in *replenishment.Input) error {
	g, gctx := errgroup.WithContext(ctx)
	window := domain.AggregateFilter{Start: in.StartDate, End: in.EndDate, NoPagination: true}
	snapshot := domain.AggregateFilter{NoPagination: true}

	g.Go(func() error {
		rows, err := s.segments.ListByDeliveries(gctx, in.DeliveryOptions)
		if err != nil {
			return fmt.Errorf("load segmentation: %w", err)
		}
		in.Segments = rows
		return nil
	})
	g.Go(func() error {
		rows, err := s.agg.FetchSales(gctx, window)
		if err != nil {
			return fmt.Errorf("load sales: %w", err)
		}
		in.Sales = rows
		return nil
	})
	g.Go(func() error {
		rows, err := s.agg.FetchStoreStock(gctx, snapshot)
		if err != nil {
			return fmt.Errorf("load store stock: %w", err)
		}
		in.StoreStock = rows
		return nil
	})
	g.Go(func() error {
		rows, err := s.agg.FetchCentralStock(gctx, snapshot)
		if err != nil {
			return fmt.Errorf("load central stock: %w", err)
		}
		in.CentralStock = rows
		return nil
	})
	if err := g.Wait(); err != nil {
		return err
	}

	skus := uniqueSKUs(in.Segments)
	attrs, err := s.agg.FetchProductAttributes(ctx, skus)
	if err != nil {
		return fmt.Errorf("load product attributes: %w", err)
	}
	in.Attributes = attrs
	return nil
}

func uniqueSKUs(records []domain.SegmentationRecord) []string {
	seen := make(map[string]bool, len(records))
	out := make([]string, 0, len(records))
	for _, r := range records {
		if !seen[r.SKU] {
			seen[r.SKU] = true
			out = append(out, r.SKU)
		}
	}
	return out
}

// Calculate runs the calculation without saving it.
func (s *ReplenishmentService) Calculate(ctx context.Context, req CalculateRequest) (*domain.ReplenishmentResult, error) {
	result, _, err := s.calculate(ctx, req)
	return result, err
}

func (s *ReplenishmentService) calculate(ctx context.Context, req CalculateRequest) (*domain.ReplenishmentResult, []domain.SegmentationRecord, error) {
	in, err := s.input(req)
	if err != nil {
		return nil, nil, err
	}
	if err := s.load(ctx, &in); err != nil {
		return nil, nil, err
	}

	started := time.Now()
	result, err := s.calculator.Calculate(in)
	if err != nil {
		return nil, nil, err
	}

	log.Info().
		Strs("deliveries", in.DeliveryOptions).
		Int("segments", len(in.Segments)).
		Int("lines", len(result.Lines)).
		Int64("total_qty", result.Header.TotalReplenishmentQty).
		Int64("breaks", result.Header.TotalBreakQty).
		Dur("took", time.Since(started)).
		Msg("replenishment: calculated")
	return &result, in.Segments, nil
}

// CalculateAndSave runs the calculation, saves it and snapshots the
// segmentation rows it used.
func (s *ReplenishmentService) CalculateAndSave(ctx context.Context, req CalculateRequest) (*domain.ReplenishmentResult, error) {
	result, segments, err := s.calculate(ctx, req)
	if err != nil {
		return nil, err
	}

	id, err := s.repo.Save(ctx, &result.Header, result.Lines)
	if err != nil {
		return nil, fmt.Errorf("failed to save replenishment: %w", err)
	}

	if err := s.segments.SaveHistory(ctx, id, segments); err != nil {
		// A replenishment without its snapshot is not kept.
		if delErr := s.repo.Delete(context.WithoutCancel(ctx), id); delErr != nil {
			log.Error().Err(delErr).Str("replenishment_id", id).Msg("replenishment: rollback after snapshot failure failed")
		}
		return nil, fmt.Errorf("failed to save segmentation history: %w", err)
	}

	// Re-read so the caller sees the stored line ids.
	lines, err := s.repo.GetLines(ctx, id)
	if err != nil {
		return nil, err
	}
	result.Header.ID = id
	result.Lines = lines

	log.Info().Str("replenishment_id", id).Int("lines", len(lines)).Msg("replenishment: saved")
	return result, nil
}

func (s *ReplenishmentService) Summary(ctx context.Context, id string) (*domain.ReplenishmentHeader, error) {
	return s.repo.GetSummary(ctx, id)
}

// Lines returns the lines of a replenishment, regrouped when groupBy is set.
func (s *ReplenishmentService) Lines(ctx context.Context, id, groupBy string) (*LinesView, error) {
	g, ok := domain.ParseGroupBy(groupBy)
	if !ok {
		return nil, domain.NewValidationError("groupBy", "agrupación inválida: "+groupBy)
	}

	lines, err := s.repo.GetLines(ctx, id)
	if err != nil {
		return nil, err
	}

	view := &LinesView{GroupBy: g, Lines: lines}
	if g != domain.GroupByNone {
		view.Groups = domain.GroupLines(lines, g)
	}
	return view, nil
}

func (s *ReplenishmentService) List(ctx context.Context, query string, page, limit int) (domain.PageResponse[domain.ReplenishmentListItem], error) {
	if page <= 0 {
		page = 1
	}
	if limit <= 0 {
		limit = 10
	}
	items, total, err := s.repo.List(ctx, query, page, limit)
	if err != nil {
		return domain.PageResponse[domain.ReplenishmentListItem]{}, err
	}
	return domain.NewPageResponse(items, total, page, limit), nil
}

func (s *ReplenishmentService) Delete(ctx context.Context, id string) error {
	if err := s.repo.Delete(ctx, id); err != nil {
		return err
	}
	log.Info().Str("replenishment_id", id).Msg("replenishment: deleted")
	return nil
}

// OperationRows returns the lines to pick with their product dimensions.
func (s *ReplenishmentService) OperationRows(ctx context.Context, id string) ([]domain.OperationRow, error) {
	rows, err := s.repo.GetOperationRows(ctx, id)
	if err != nil {
		return nil, err
	}

	skus := make([]string, 0, len(rows))
	seen := make(map[string]bool)
	for _, r := range rows {
		if !seen[r.SKU] {
			seen[r.SKU] = true
			skus = append(skus, r.SKU)
		}
	}
	attrs, err := s.agg.FetchProductAttributes(ctx, skus)
	if err != nil {
		return nil, fmt.Errorf("load product attributes: %w", err)
	}
	bySKU := make(map[string]domain.ProductAttributes, len(attrs))
	for _, a := range attrs {
		bySKU[a.SKU] = a
	}

	for i := range rows {
		a, ok := bySKU[rows[i].SKU]
		if !ok {
			continue
		}
		rows[i].ItemNumber = a.ItemNumber
		rows[i].ColorID = a.ColorID
		rows[i].SizeID = a.SizeID
		rows[i].ConfigurationID = a.ConfigurationID
		rows[i].StyleID = a.StyleID
		rows[i].Description = a.Description
	}
	return rows, nil
}

var operationCSVHeader = []string{
	"TIENDA", "SKU", "ITEM", "COLOR", "TALLA", "CONFIGURACION", "ESTILO", "DESCRIPCION",
	"TEAM", "CATEGORIA", "CENTRO_COSTO", "CANTIDAD", "ORDEN_TRANSFERENCIA", "LINEA_ERP",
}

// WriteOperationCSV renders operation rows in the warehouse export layout.
func WriteOperationCSV(rows []domain.OperationRow) ([]byte, error) {
	var buf bytes.Buffer
	w := csv.NewWriter(&buf)
	if err := w.Write(operationCSVHeader); err != nil {
		return nil, err
	}
	for _, r := range rows {
		record := []string{
			r.Store, r.SKU, r.ItemNumber, r.ColorID, r.SizeID, r.ConfigurationID, r.StyleID, r.Description,
			r.Team, r.Category, r.CostCenter, strconv.FormatInt(r.ReplenishmentQty, 10),
			deref(r.ERPTransferOrderNumber), deref(r.ERPLineID),
		}
		if err := w.Write(record); err != nil {
			return nil, err
		}
	}
	w.Flush()
	return buf.Bytes(), w.Error()
}

func deref(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}

// ExportOperationCSV uploads the operation export and returns a download
// link.
func (s *ReplenishmentService) ExportOperationCSV(ctx context.Context, id string) (*domain.ExportResult, error) {
	if s.store == nil {
		return nil, domain.NewValidationError("storage", "el almacenamiento de archivos no está configurado")
	}

	rows, err := s.OperationRows(ctx, id)
	if err != nil {
		return nil, err
	}
	data, err := WriteOperationCSV(rows)
	if err != nil {
		return nil, fmt.Errorf("failed to render operation export: %w", err)
	}

	now := s.now()
	key := fmt.Sprintf("%s%s/%s.csv", exportPrefix, strings.ToLower(id), now.UTC().Format("20060102T150405Z"))
	if err := s.store.UploadObject(ctx, key, data, "text/csv"); err != nil {
		return nil, err
	}
	url, err := s.store.PresignedURL(ctx, key, s.expiry)
	if err != nil {
		return nil, err
	}

	log.Info().Str("replenishment_id", id).Str("key", key).Int("rows", len(rows)).Msg("replenishment: operation export uploaded")
	return &domain.ExportResult{
		Key:       key,
		URL:       url,
		Rows:      len(rows),
		ExpiresAt: now.Add(s.expiry),
	}, nil
}
