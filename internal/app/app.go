// Package app wires configuration into the stores, clients and services
// shared by the HTTP server and the planner CLI.
package app

import (
	"context"
	"fmt"

	"github.com/rs/zerolog/log"

	"github.com/patagonia-core/stock-planning/internal/cache"
	"github.com/patagonia-core/stock-planning/internal/config"
	"github.com/patagonia-core/stock-planning/internal/drive"
	"github.com/patagonia-core/stock-planning/internal/erp"
	"github.com/patagonia-core/stock-planning/internal/repository"
	"github.com/patagonia-core/stock-planning/internal/repository/memory"
	"github.com/patagonia-core/stock-planning/internal/repository/postgres"
	whrepo "github.com/patagonia-core/stock-planning/internal/repository/warehouse"
	"github.com/patagonia-core/stock-planning/internal/service"
	"github.com/patagonia-core/stock-planning/internal/storage"
	"github.com/patagonia-core/stock-planning/internal/warehouse"
)

// DriverMemory keeps segmentation, replenishments and warehouse data in
// process. Used for local runs without databases.
const DriverMemory = "memory"

// App holds the services and the resources they own.
type App struct {
	Segmentation  *service.SegmentationService
	Aggregation   *service.AggregationService
	Replenishment *service.ReplenishmentService
	Transfer      *service.TransferService

	db     *postgres.DB
	pool   *warehouse.Pool
	closer []func()
}

// New builds every service from cfg. Optional integrations (Redis, MinIO,
// Drive) fall back to no-op or in-process versions when not configured.
func New(ctx context.Context, cfg *config.Config) (*App, error) {
	a := &App{}

	var (
		segments repository.SegmentationRepository
		runs     repository.ReplenishmentRepository
		agg      repository.Aggregator
	)

	if cfg.Database.Driver == DriverMemory {
		store := memory.NewStore()
		segments = memory.NewSegmentationRepository(store)
		runs = memory.NewReplenishmentRepository(store)
		log.Warn().Msg("using in-memory repositories, data is lost on exit")
	} else {
		db, err := postgres.NewDB(&cfg.Database)
		if err != nil {
			return nil, fmt.Errorf("failed to connect to database: %w", err)
		}
		a.db = db
		a.closer = append(a.closer, func() { _ = db.Close() })
		segments = postgres.NewSegmentationRepository(db, cfg.Planning.SegmentationChunk, cfg.Planning.Stores)
		runs = postgres.NewReplenishmentRepository(db)
	}

	if cfg.Warehouse.DSN == "" {
		agg = memory.NewWarehouse()
		log.Warn().Msg("WAREHOUSE_DSN not set, using an empty in-memory warehouse")
	} else {
		pool := warehouse.NewPool(warehouse.Config{
			DSN:             cfg.Warehouse.DSN,
			Timezone:        cfg.Warehouse.Timezone,
			MinConns:        cfg.Warehouse.MinConns,
			MaxConns:        cfg.Warehouse.MaxConns,
			MaxConnLifetime: cfg.Warehouse.MaxConnLifetime,
		})
		if err := pool.Open(ctx); err != nil {
			a.Close()
			return nil, fmt.Errorf("failed to open warehouse pool: %w", err)
		}
		a.pool = pool
		a.closer = append(a.closer, pool.Close)
		agg = whrepo.NewAggregator(pool, whrepo.Settings{
			Schema:             cfg.Warehouse.Schema,
			Stores:             cfg.Planning.Stores,
			CentralWarehouseID: cfg.Planning.CentralWarehouseID,
			SalesInvoicePrefix: cfg.Planning.SalesInvoicePrefix,
		})
	}

	aggCache := cache.NewNoopAggregationCache()
	if cfg.Cache.Enabled {
		c, err := cache.NewAggregationCache(cfg.Cache)
		if err != nil {
			log.Warn().Err(err).Msg("redis cache unavailable, continuing without cache")
		} else {
			aggCache = c
		}
	}

	var objectStorage storage.ObjectStorage
	if cfg.Storage.Enabled {
		client, err := storage.NewMinioClient(storage.MinioConfig{
			Endpoint:  cfg.Storage.Endpoint,
			AccessKey: cfg.Storage.AccessKey,
			SecretKey: cfg.Storage.SecretKey,
			Bucket:    cfg.Storage.Bucket,
			Region:    cfg.Storage.Region,
			UseSSL:    cfg.Storage.UseSSL,
		})
		if err != nil {
			a.Close()
			return nil, fmt.Errorf("failed to configure object storage: %w", err)
		}
		objectStorage = client
	} else {
		objectStorage = storage.NewMemoryStorage("http://localhost:" + cfg.Server.Port + "/files")
		log.Warn().Msg("STORAGE_ENABLED is false, exports are kept in memory")
	}

	var driveSource service.DriveSource
	if cfg.Drive.CredentialsJSON != "" {
		d, err := drive.NewService(ctx, cfg.Drive.CredentialsJSON)
		if err != nil {
			log.Warn().Err(err).Msg("google drive unavailable, drive import disabled")
		} else {
			driveSource = d
		}
	}

	erpClient := erp.NewClient(erp.Config{
		BaseURL:             cfg.ERP.BaseURL,
		TokenURL:            cfg.ERP.TokenURL,
		ClientID:            cfg.ERP.ClientID,
		ClientSecret:        cfg.ERP.ClientSecret,
		DataAreaID:          cfg.ERP.DataAreaID,
		ShippingWarehouseID: cfg.ERP.ShippingWarehouseID,
		RequestTimeout:      cfg.ERP.RequestTimeout,
		MaxAttempts:         cfg.ERP.MaxAttempts,
		Backoff:             cfg.ERP.RetryBackoff,
	})

	stores := cfg.Planning.Stores
	a.Segmentation = service.NewSegmentationService(segments, aggCache, driveSource, stores)
	a.Aggregation = service.NewAggregationService(agg, aggCache)
	a.Replenishment = service.NewReplenishmentService(segments, runs, agg, objectStorage, stores, cfg.Storage.PresignExpiry)
	a.Transfer = service.NewTransferService(runs, agg, erpClient, service.LineDefaults{
		InventoryStatusID:     cfg.ERP.InventoryStatusID,
		ShippingLocationID:    cfg.ERP.ShippingLocationID,
		SalesTaxGroupShipment: cfg.ERP.SalesTaxGroupShipment,
		SalesTaxGroupReceipt:  cfg.ERP.SalesTaxGroupReceipt,
		PriceType:             cfg.ERP.PriceType,
	})
	return a, nil
}

// Migrate creates the relational schema. It is a no-op for the in-memory
// driver.
func (a *App) Migrate(ctx context.Context) error {
	if a.db == nil {
		return nil
	}
	return a.db.Migrate(ctx)
}

// Close releases every resource New opened, newest first.
func (a *App) Close() {
	for i := len(a.closer) - 1; i >= 0; i-- {
		a.closer[i]()
	}
	a.closer = nil
}
