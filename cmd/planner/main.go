package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log"
	"os"
	"time"

	"github.com/joho/godotenv"
	"github.com/schollz/progressbar/v3"
	"github.com/urfave/cli/v2"

	"github.com/patagonia-core/stock-planning/internal/app"
	"github.com/patagonia-core/stock-planning/internal/config"
	"github.com/patagonia-core/stock-planning/internal/service"
	"github.com/patagonia-core/stock-planning/pkg/logger"
)

const appKey = "app"

func initApp(c *cli.Context) error {
	cfg := config.Load()
	logger.Setup(cfg.Server.Mode, c.String("log-level"))

	a, err := app.New(c.Context, cfg)
	if err != nil {
		return err
	}
	c.App.Metadata[appKey] = a
	return nil
}

func closeApp(c *cli.Context) error {
	if a, ok := c.App.Metadata[appKey].(*app.App); ok && a != nil {
		a.Close()
	}
	return nil
}

func fromContext(c *cli.Context) *app.App {
	return c.App.Metadata[appKey].(*app.App)
}

func printJSON(v any) error {
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

func parseDay(value string) (time.Time, error) {
	t, err := time.Parse("2006-01-02", value)
	if err != nil {
		return time.Time{}, fmt.Errorf("invalid date %q, expected YYYY-MM-DD", value)
	}
	return t, nil
}

func main() {
	if err := godotenv.Load(".env"); err != nil {
		log.Printf("warning: could not load .env file: %v", err)
	}

	idFlag := &cli.StringFlag{Name: "id", Usage: "Replenishment id", Required: true}

	cliApp := &cli.App{
		Name:     "planner",
		Usage:    "Operate the stock replenishment pipeline",
		Metadata: map[string]interface{}{},
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:    "log-level",
				Value:   "info",
				EnvVars: []string{"LOG_LEVEL"},
			},
		},
		Before: initApp,
		After:  closeApp,
		Commands: []*cli.Command{
			{
				Name:   "migrate",
				Usage:  "Create the segmentation and replenishment tables",
				Action: runMigrate,
			},
			{
				Name:  "segments",
				Usage: "Manage the segmentation table",
				Subcommands: []*cli.Command{
					{
						Name:  "upload",
						Usage: "Replace the segmentation with a CSV file",
						Flags: []cli.Flag{
							&cli.StringFlag{Name: "file", Aliases: []string{"f"}, Usage: "Segmentation CSV", Required: true},
						},
						Action: runSegmentsUpload,
					},
					{
						Name:  "import-drive",
						Usage: "Replace the segmentation with a CSV stored in Google Drive",
						Flags: []cli.Flag{
							&cli.StringFlag{Name: "file-id", Usage: "Drive file id"},
							&cli.StringFlag{Name: "path", Usage: "Drive path, e.g. Planning/segmentation.csv"},
						},
						Action: runSegmentsImportDrive,
					},
					{
						Name:   "truncate",
						Usage:  "Empty the segmentation table",
						Action: runSegmentsTruncate,
					},
				},
			},
			{
				Name:  "replenishment",
				Usage: "Calculate, push and export replenishments",
				Subcommands: []*cli.Command{
					{
						Name:  "calculate",
						Usage: "Run a calculation, optionally saving it",
						Flags: []cli.Flag{
							&cli.StringFlag{Name: "start", Usage: "Sales window start (YYYY-MM-DD)", Required: true},
							&cli.StringFlag{Name: "end", Usage: "Sales window end (YYYY-MM-DD)", Required: true},
							&cli.StringSliceFlag{Name: "delivery", Usage: "Delivery option, repeatable", Required: true},
							&cli.StringSliceFlag{Name: "store", Usage: "Store in priority order, repeatable; defaults to PLANNING_STORES"},
							&cli.BoolFlag{Name: "save", Usage: "Save the result"},
						},
						Action: runCalculate,
					},
					{
						Name:  "push",
						Usage: "Post the pending lines of a replenishment to the ERP",
						Flags: []cli.Flag{
							idFlag,
							&cli.StringSliceFlag{Name: "store", Usage: "Only push these stores"},
						},
						Action: runPush,
					},
					{
						Name:   "export",
						Usage:  "Upload the operation CSV and print its download link",
						Flags:  []cli.Flag{idFlag},
						Action: runExport,
					},
				},
			},
		},
	}

	if err := cliApp.Run(os.Args); err != nil {
		log.Fatal(err)
	}
}

func runMigrate(c *cli.Context) error {
	if err := fromContext(c).Migrate(c.Context); err != nil {
		return fmt.Errorf("failed to migrate: %w", err)
	}
	log.Println("Migration completed successfully!")
	return nil
}

func runSegmentsUpload(c *cli.Context) error {
	path := c.String("file")
	file, err := os.Open(path)
	if err != nil {
		return fmt.Errorf("failed to open file %s: %w", path, err)
	}
	defer file.Close()

	info, err := file.Stat()
	if err != nil {
		return fmt.Errorf("failed to stat file %s: %w", path, err)
	}
	bar := progressbar.DefaultBytes(info.Size(), "reading segmentation")

	report, err := fromContext(c).Segmentation.UploadCSV(c.Context, io.TeeReader(file, bar))
	_ = bar.Finish()
	if err != nil {
		return err
	}
	return printJSON(report)
}

func runSegmentsImportDrive(c *cli.Context) error {
	svc := fromContext(c).Segmentation
	fileID := c.String("file-id")
	if fileID == "" {
		if c.String("path") == "" {
			return fmt.Errorf("either --file-id or --path is required")
		}
		id, err := svc.ResolveDrivePath(c.Context, c.String("path"))
		if err != nil {
			return err
		}
		fileID = id
	}

	report, err := svc.ImportFromDrive(c.Context, fileID)
	if err != nil {
		return err
	}
	return printJSON(report)
}

func runSegmentsTruncate(c *cli.Context) error {
	return fromContext(c).Segmentation.Truncate(c.Context)
}

func runCalculate(c *cli.Context) error {
	start, err := parseDay(c.String("start"))
	if err != nil {
		return err
	}
	end, err := parseDay(c.String("end"))
	if err != nil {
		return err
	}

	req := service.CalculateRequest{
		StartDate:       start,
		EndDate:         end,
		DeliveryOptions: c.StringSlice("delivery"),
		StorePriority:   c.StringSlice("store"),
	}

	svc := fromContext(c).Replenishment
	if c.Bool("save") {
		result, err := svc.CalculateAndSave(c.Context, req)
		if err != nil {
			return err
		}
		return printJSON(result.Header)
	}

	result, err := svc.Calculate(c.Context, req)
	if err != nil {
		return err
	}
	return printJSON(result)
}

func runPush(c *cli.Context) error {
	stores := c.StringSlice("store")
	bar := progressbar.NewOptions(-1,
		progressbar.OptionSetDescription("pushing to ERP"),
		progressbar.OptionSpinnerType(14),
		progressbar.OptionClearOnFinish(),
	)

	done := make(chan struct{})
	go func() {
		ticker := time.NewTicker(200 * time.Millisecond)
		defer ticker.Stop()
		for {
			select {
			case <-done:
				return
			case <-ticker.C:
				_ = bar.Add(1)
			}
		}
	}()

	report, err := fromContext(c).Transfer.PushToERP(c.Context, c.String("id"), stores)
	close(done)
	_ = bar.Finish()
	if report != nil {
		if perr := printJSON(report); perr != nil {
			return perr
		}
	}
	if err != nil {
		return err
	}
	if !report.Complete() {
		return cli.Exit(fmt.Sprintf("%d stores or lines failed, rerun to retry them", report.Failed), 2)
	}
	return nil
}

func runExport(c *cli.Context) error {
	ctx, cancel := context.WithTimeout(c.Context, 2*time.Minute)
	defer cancel()

	result, err := fromContext(c).Replenishment.ExportOperationCSV(ctx, c.String("id"))
	if err != nil {
		return err
	}
	return printJSON(result)
}
