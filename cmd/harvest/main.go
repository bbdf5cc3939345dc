package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/joho/godotenv"

	"ltd2-harvester/internal/db"
	"ltd2-harvester/internal/flatten"
	"ltd2-harvester/internal/harvest"
	"ltd2-harvester/internal/ltd2"
	"ltd2-harvester/internal/notify"
	"ltd2-harvester/internal/sink"
)

func main() {
	// Load .env file - try multiple locations
	envPaths := []string{".env", "../.env", "../../.env"}
	envLoaded := false
	for _, path := range envPaths {
		if err := godotenv.Load(path); err == nil {
			fmt.Printf("Loaded .env from: %s\n", path)
			envLoaded = true
			break
		}
	}
	if !envLoaded {
		log.Println("No .env file found, using environment variables")
	}

	// Parse flags
	after := flag.String("after", "", "Fetch matches after this date (e.g., '2023-01-01' or '2023-01-01 15:00:00')")
	before := flag.String("before", "", "Fetch matches before this date (defaults to now)")
	limit := flag.Int("limit", ltd2.MaxLimit, "Page size (API caps at 50)")
	details := flag.Bool("details", true, "Fetch per-player details (all twelve tables)")
	actions := flag.Bool("actions", false, "Emit builds as a Placed/Sold/Upgraded action log (requires -units and -upgrades)")
	queue := flag.String("queue", "", "Queue type filter (e.g., 'Normal', 'Classic')")
	version := flag.String("version", "", "Game version filter (e.g., 'v9.06')")
	store := flag.String("store", "csv", "Output sink: 'csv' or 'postgres'")
	outDir := flag.String("out", "data", "Output directory for CSV files")
	flushEvery := flag.Int("flush", 10, "Pages accumulated between sink flushes")
	delay := flag.Duration("delay", time.Second, "Pause between API requests")
	unitsPath := flag.String("units", "", "Unit catalog CSV path (for -actions)")
	upgradesPath := flag.String("upgrades", "", "Upgrades tree JSON path (for -actions)")
	flag.Parse()

	apiKey := strings.Trim(os.Getenv("LTD2_API_KEY"), "\"")
	if apiKey == "" {
		log.Fatal("LTD2_API_KEY environment variable not set")
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Handle graceful shutdown
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		<-sigChan
		fmt.Println("\n[Shutdown] Gracefully shutting down...")
		cancel()
	}()

	// Validate the key up front so a bad key fails before any state exists.
	validator := ltd2.NewKeyValidator()
	valid, err := validator.ValidateKey(ctx, apiKey)
	if err != nil {
		log.Fatalf("Failed to validate API key: %v", err)
	}
	if !valid {
		log.Fatal("API key rejected by the server")
	}

	client, err := ltd2.NewClient(apiKey)
	if err != nil {
		log.Fatalf("Failed to create client: %v", err)
	}

	opts := flatten.Options{
		IncludeDetails: *details,
		ActionLog:      *actions,
	}
	if *actions {
		if *unitsPath == "" || *upgradesPath == "" {
			log.Fatal("-actions requires -units and -upgrades")
		}
		catalog, err := loadCatalog(*unitsPath, *upgradesPath)
		if err != nil {
			log.Fatalf("Failed to load unit catalog: %v", err)
		}
		opts.Catalog = catalog
	}

	var out sink.Sink
	switch *store {
	case "csv":
		csvSink, err := sink.NewCSVSink(*outDir)
		if err != nil {
			log.Fatalf("Failed to create CSV sink: %v", err)
		}
		out = csvSink
		fmt.Printf("Writing CSV files to: %s\n", *outDir)
	case "postgres":
		database, err := db.New(ctx)
		if err != nil {
			log.Fatalf("Failed to connect to database: %v", err)
		}
		if err := database.EnsureSchema(ctx); err != nil {
			log.Fatalf("Failed to apply schema: %v", err)
		}
		out = db.NewStore(ctx, database)
		fmt.Println("Writing to Postgres")
	default:
		log.Fatalf("Unknown store %q, expected 'csv' or 'postgres'", *store)
	}
	cfg := harvest.Config{
		Limit:         *limit,
		QueueType:     *queue,
		Version:       *version,
		Flatten:       opts,
		FlushInterval: *flushEvery,
		RequestDelay:  *delay,
	}
	if *after != "" {
		t, err := parseDate(*after)
		if err != nil {
			log.Fatalf("Invalid -after date: %v", err)
		}
		cfg.DateAfter = t
	}
	if *before != "" {
		t, err := parseDate(*before)
		if err != nil {
			log.Fatalf("Invalid -before date: %v", err)
		}
		cfg.DateBefore = t
	}

	webhook := notify.NewWebhookClient(strings.Trim(os.Getenv("WEBHOOK_URL"), "\""))

	h := harvest.New(client, out, cfg)
	startTime := time.Now()

	runErr := h.Run(ctx)

	// Close before any exit path so the last batch reaches disk.
	if err := out.Close(); err != nil {
		log.Printf("Error closing sink: %v", err)
	}

	// Notifications use a fresh context; the run context may be cancelled.
	notifyCtx, notifyCancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer notifyCancel()

	if runErr != nil {
		if err := webhook.SendRunFailed(notifyCtx, runErr, h.Matches(), h.Cursor()); err != nil {
			log.Printf("Failed to send webhook: %v", err)
		}
		log.Fatalf("Harvest failed: %v", runErr)
	}

	runtime := time.Since(startTime)
	if err := webhook.SendRunCompleted(notifyCtx, h.Matches(), h.Requests(), runtime, h.Cursor()); err != nil {
		log.Printf("Failed to send webhook: %v", err)
	}

	fmt.Printf("\n=== Harvest Complete ===\n")
	fmt.Printf("Total time: %s\n", runtime.Round(time.Second))
	fmt.Printf("Matches: %d\n", h.Matches())
	fmt.Printf("Requests: %d\n", h.Requests())
}

func loadCatalog(unitsPath, upgradesPath string) (*flatten.Catalog, error) {
	units, err := os.Open(unitsPath)
	if err != nil {
		return nil, err
	}
	defer units.Close()

	upgrades, err := os.Open(upgradesPath)
	if err != nil {
		return nil, err
	}
	defer upgrades.Close()

	return flatten.LoadCatalog(units, upgrades)
}

// parseDate accepts a date with or without a time component.
func parseDate(s string) (time.Time, error) {
	layouts := []string{"2006-01-02 15:04:05", "2006-01-02"}
	for _, layout := range layouts {
		if t, err := time.ParseInLocation(layout, s, time.UTC); err == nil {
			return t, nil
		}
	}
	return time.Time{}, fmt.Errorf("unrecognized date %q, expected YYYY-MM-DD or 'YYYY-MM-DD HH:MM:SS'", s)
}
