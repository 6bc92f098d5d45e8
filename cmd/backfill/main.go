package main

import (
	"context"
	"flag"
	"os"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	"github.com/fatih/color"
	"github.com/joho/godotenv"
	"github.com/olekukonko/tablewriter"

	"github.com/be-green/grab-cafe/internal/app"
	"github.com/be-green/grab-cafe/internal/config"
	"github.com/be-green/grab-cafe/internal/infrastructure/storage"
	"github.com/be-green/grab-cafe/internal/logging"
	"github.com/be-green/grab-cafe/internal/usecase"
	"github.com/be-green/grab-cafe/pkg/logger"
)

// lastKnownPage is where the listing's history ended when this tool
// was written; override with -end for newer data.
const lastKnownPage = 1529

func main() {
	_ = godotenv.Load()

	startPage := flag.Int("start", 1, "first listing page to scrape")
	endPage := flag.Int("end", lastKnownPage, "last listing page to scrape")
	delayMs := flag.Int("delay", 100, "pause between pages in milliseconds")
	flag.Parse()

	log := logger.New("backfill")

	cfg := config.Load()
	slogger := logging.New(cfg.Logging.Level)

	repository, err := storage.Open(cfg.Database.Path)
	if err != nil {
		log.Fatalf("open storage: %v", err)
	}
	defer repository.Close()

	pipeline := app.BuildPipeline(cfg, repository, slogger)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	color.Cyan("GradCafe historical backfill")
	color.Cyan("Pages %d to %d, database %s", *startPage, *endPage, cfg.Database.Path)

	progress := color.New(color.Faint)
	stats, err := pipeline.Backfill(ctx, usecase.BackfillRequest{
		StartPage: *startPage,
		EndPage:   *endPage,
		Delay:     time.Duration(*delayMs) * time.Millisecond,
		Progress: func(page, added, duplicates int) {
			if page%10 == 0 {
				progress.Printf("page %d: %d added, %d duplicates so far\n", page, added, duplicates)
			}
		},
	})
	if err != nil {
		color.Red("backfill stopped: %v", err)
	}

	printSummary(stats)

	if err != nil {
		os.Exit(1)
	}
}

func printSummary(stats usecase.BackfillStats) {
	color.Green("\nBackfill summary")

	table := tablewriter.NewWriter(os.Stdout)
	table.SetHeader([]string{"Pages scanned", "Added", "Duplicates"})
	table.Append([]string{
		strconv.Itoa(stats.PagesScanned),
		strconv.Itoa(stats.Added),
		strconv.Itoa(stats.Duplicates),
	})
	table.Render()
}
