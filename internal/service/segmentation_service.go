package service

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"math"
	"strings"

	"github.com/rs/zerolog/log"

	"github.com/patagonia-core/stock-planning/internal/cache"
	"github.com/patagonia-core/stock-planning/internal/domain"
	"github.com/patagonia-core/stock-planning/internal/repository"
)

const defaultSegmentPageSize = 10

// DriveSource downloads segmentation files from Google Drive.
type DriveSource interface {
	DownloadFile(ctx context.Context, fileID string, w io.Writer) error
	FindFileByPath(ctx context.Context, filePath string) (string, error)
}

type SegmentationService struct {
	repo   repository.SegmentationRepository
	cache  cache.AggregationCache
	drive  DriveSource
	stores []string
}

func NewSegmentationService(repo repository.SegmentationRepository, cacheImpl cache.AggregationCache, drive DriveSource, stores []string) *SegmentationService {
	if cacheImpl == nil {
		cacheImpl = cache.NewNoopAggregationCache()
	}
	return &SegmentationService{repo: repo, cache: cacheImpl, drive: drive, stores: stores}
}

// Stores returns the configured store codes in their default priority.
func (s *SegmentationService) Stores() []string {
	return append([]string(nil), s.stores...)
}

// Upload replaces the segmentation table with records. Row numbers in the
// report are 1-based positions in records.
func (s *SegmentationService) Upload(ctx context.Context, records []domain.SegmentationRecord) (*domain.UploadReport, error) {
	rows := make([]SegmentRow, len(records))
	for i, rec := range records {
		rows[i] = SegmentRow{Row: i + 1, Record: rec}
	}
	return s.upload(ctx, rows, nil)
}

// UploadCSV parses a segmentation file and replaces the table with its valid
// rows.
func (s *SegmentationService) UploadCSV(ctx context.Context, r io.Reader) (*domain.UploadReport, error) {
	rows, rowErrs, err := ParseSegmentationCSV(r, s.stores)
	if err != nil {
		return nil, err
	}
	return s.upload(ctx, rows, rowErrs)
}

// ImportFromDrive downloads a segmentation CSV from Drive and uploads it.
func (s *SegmentationService) ImportFromDrive(ctx context.Context, fileID string) (*domain.UploadReport, error) {
	if s.drive == nil {
		return nil, domain.NewValidationError("drive", "la integración con Google Drive no está configurada")
	}
	if strings.TrimSpace(fileID) == "" {
		return nil, domain.NewValidationError("fileId", "debe indicar el archivo")
	}

	var buf bytes.Buffer
	if err := s.drive.DownloadFile(ctx, fileID, &buf); err != nil {
		return nil, fmt.Errorf("failed to download segmentation from drive: %w", err)
	}

	log.Info().Str("file_id", fileID).Int("bytes", buf.Len()).Msg("segmentation: downloaded from drive")
	return s.UploadCSV(ctx, &buf)
}

// ResolveDrivePath turns "Folder/file.csv" into a Drive file id.
func (s *SegmentationService) ResolveDrivePath(ctx context.Context, filePath string) (string, error) {
	if s.drive == nil {
		return "", domain.NewValidationError("drive", "la integración con Google Drive no está configurada")
	}
	return s.drive.FindFileByPath(ctx, filePath)
}

func (s *SegmentationService) upload(ctx context.Context, rows []SegmentRow, parseErrs []domain.RowError) (*domain.UploadReport, error) {
	report := &domain.UploadReport{
		Received: len(rows) + len(parseErrs),
		Errors:   append([]domain.RowError{}, parseErrs...),
	}
	if report.Received == 0 {
		return nil, domain.NewValidationError("records", "no se recibieron filas")
	}

	// Last row wins for a repeated (sku, delivery) key.
	type key struct{ sku, delivery string }
	index := make(map[key]int)
	valid := make([]domain.SegmentationRecord, 0, len(rows))
	duplicates := 0
	for _, row := range rows {
		rec, err := s.normalize(row.Record)
		if err != nil {
			report.Errors = append(report.Errors, domain.RowError{Row: row.Row, SKU: row.Record.SKU, Message: err.Error()})
			continue
		}
		k := key{rec.SKU, rec.DeliveryOption}
		if i, ok := index[k]; ok {
			valid[i] = rec
			duplicates++
			continue
		}
		index[k] = len(valid)
		valid = append(valid, rec)
	}

	if len(valid) == 0 {
		log.Warn().Int("received", report.Received).Int("errors", len(report.Errors)).Msg("segmentation: no valid rows, table left untouched")
		return report, nil
	}

	existing, err := s.repo.Replace(ctx, valid)
	if err != nil {
		return nil, fmt.Errorf("failed to replace segmentation: %w", err)
	}
	report.Created = len(valid) - existing
	report.Updated = existing + duplicates

	if err := s.cache.InvalidateDeliveryOptions(ctx); err != nil {
		log.Warn().Err(err).Msg("segmentation: cache invalidate delivery options failed")
	}

	log.Info().
		Int("received", report.Received).
		Int("created", report.Created).
		Int("updated", report.Updated).
		Int("errors", len(report.Errors)).
		Msg("segmentation: upload completed")
	return report, nil
}

// normalize trims keys, checks targets and fills stores missing from the row
// with zero.
func (s *SegmentationService) normalize(rec domain.SegmentationRecord) (domain.SegmentationRecord, error) {
	out := domain.SegmentationRecord{
		SKU:            strings.ReplaceAll(strings.TrimSpace(rec.SKU), "-", ""),
		DeliveryOption: strings.TrimSpace(rec.DeliveryOption),
		Targets:        make(map[string]float64, len(s.stores)),
	}
	if out.SKU == "" {
		return out, fmt.Errorf("el SKU es obligatorio")
	}
	if out.DeliveryOption == "" {
		return out, fmt.Errorf("el delivery es obligatorio")
	}

	for store, v := range rec.Targets {
		code := s.storeCode(store)
		if code == "" {
			return out, fmt.Errorf("tienda desconocida: %s", store)
		}
		if math.IsNaN(v) || math.IsInf(v, 0) || v < 0 {
			return out, fmt.Errorf("objetivo inválido para %s: %v", code, v)
		}
		out.Targets[code] = v
	}
	for _, store := range s.stores {
		if _, ok := out.Targets[store]; !ok {
			out.Targets[store] = 0
		}
	}
	return out, nil
}

func (s *SegmentationService) storeCode(name string) string {
	name = strings.TrimSpace(name)
	if len(s.stores) == 0 {
		return name
	}
	for _, store := range s.stores {
		if strings.EqualFold(store, name) {
			return store
		}
	}
	return ""
}

func (s *SegmentationService) Truncate(ctx context.Context) error {
	if err := s.repo.Truncate(ctx); err != nil {
		return err
	}
	if err := s.cache.InvalidateDeliveryOptions(ctx); err != nil {
		log.Warn().Err(err).Msg("segmentation: cache invalidate delivery options failed")
	}
	log.Info().Msg("segmentation: table truncated")
	return nil
}

func (s *SegmentationService) List(ctx context.Context, filter domain.SegmentFilter) (domain.PageResponse[domain.SegmentationRecord], error) {
	if filter.Page <= 0 {
		filter.Page = 1
	}
	if filter.PageSize <= 0 {
		filter.PageSize = defaultSegmentPageSize
	}

	items, err := s.repo.List(ctx, filter)
	if err != nil {
		return domain.PageResponse[domain.SegmentationRecord]{}, err
	}
	total, err := s.repo.Count(ctx, filter)
	if err != nil {
		return domain.PageResponse[domain.SegmentationRecord]{}, err
	}
	return domain.NewPageResponse(items, total, filter.Page, filter.PageSize), nil
}

func (s *SegmentationService) DeliveryOptions(ctx context.Context) ([]string, error) {
	if options, ok, err := s.cache.GetDeliveryOptions(ctx); err == nil && ok {
		return options, nil
	} else if err != nil {
		log.Warn().Err(err).Msg("segmentation: cache get delivery options failed")
	}

	options, err := s.repo.DeliveryOptions(ctx)
	if err != nil {
		return nil, err
	}

	if err := s.cache.SetDeliveryOptions(ctx, options); err != nil {
		log.Warn().Err(err).Msg("segmentation: cache set delivery options failed")
	}
	return options, nil
}

// SaveHistory snapshots the segmentation rows of deliveries under a saved
// replenishment.
func (s *SegmentationService) SaveHistory(ctx context.Context, replenishmentID string, deliveries []string) error {
	records, err := s.repo.ListByDeliveries(ctx, deliveries)
	if err != nil {
		return err
	}
	return s.repo.SaveHistory(ctx, replenishmentID, records)
}

func (s *SegmentationService) History(ctx context.Context, replenishmentID string) ([]domain.SegmentationHistoryRecord, error) {
	return s.repo.GetHistory(ctx, replenishmentID)
}
