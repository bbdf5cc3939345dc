// fetch grabs a single page of matches and prints the flattened tables,
// useful for eyeballing the data before a long harvest run.
package main

import (
	"context"
	"encoding/csv"
	"flag"
	"fmt"
	"log"
	"os"
	"strings"
	"time"

	"github.com/joho/godotenv"

	"ltd2-harvester/internal/flatten"
	"ltd2-harvester/internal/ltd2"
)

func main() {
	envPaths := []string{".env", "../.env", "../../.env"}
	for _, path := range envPaths {
		if err := godotenv.Load(path); err == nil {
			break
		}
	}

	after := flag.String("after", "", "Fetch matches after this date (e.g., '2023-01-01' or '2023-01-01 15:00:00')")
	before := flag.String("before", "", "Fetch matches before this date (defaults to now)")
	limit := flag.Int("limit", 10, "Number of matches to fetch (API caps at 50)")
	offset := flag.Int("offset", 0, "Result offset")
	details := flag.Bool("details", false, "Fetch per-player details")
	queue := flag.String("queue", "", "Queue type filter")
	version := flag.String("version", "", "Game version filter")
	table := flag.String("table", "matches", "Which table to print")
	flag.Parse()

	apiKey := strings.Trim(os.Getenv("LTD2_API_KEY"), "\"")
	if apiKey == "" {
		log.Fatal("LTD2_API_KEY environment variable not set")
	}

	client, err := ltd2.NewClient(apiKey)
	if err != nil {
		log.Fatalf("Failed to create client: %v", err)
	}

	req := ltd2.PageRequest{
		Limit:          *limit,
		Offset:         *offset,
		IncludeDetails: *details,
		QueueType:      *queue,
		Version:        *version,
	}
	if *after != "" {
		t, err := parseDate(*after)
		if err != nil {
			log.Fatalf("Invalid -after date: %v", err)
		}
		req.DateAfter = t
	}
	if *before != "" {
		t, err := parseDate(*before)
		if err != nil {
			log.Fatalf("Invalid -before date: %v", err)
		}
		req.DateBefore = t
	}

	ctx, cancel := context.WithTimeout(context.Background(), time.Minute)
	defer cancel()

	games, err := client.FetchPage(ctx, req)
	if err != nil {
		log.Fatalf("Fetch failed: %v", err)
	}
	fmt.Fprintf(os.Stderr, "Fetched %d matches\n", len(games))

	opts := flatten.Options{IncludeDetails: *details}
	d := flatten.NewDataset(opts)
	for i := range games {
		if err := flatten.Flatten(&games[i], d, opts); err != nil {
			log.Fatalf("Failed to flatten match %s: %v", games[i].ID, err)
		}
	}

	for _, t := range d.Tables() {
		if t.Name != *table {
			continue
		}
		w := csv.NewWriter(os.Stdout)
		if err := w.Write(t.Columns); err != nil {
			log.Fatalf("Failed to write output: %v", err)
		}
		if err := w.WriteAll(t.Records()); err != nil {
			log.Fatalf("Failed to write output: %v", err)
		}
		w.Flush()
		return
	}
	log.Fatalf("Unknown table %q", *table)
}

func parseDate(s string) (time.Time, error) {
	layouts := []string{"2006-01-02 15:04:05", "2006-01-02"}
	for _, layout := range layouts {
		if t, err := time.ParseInLocation(layout, s, time.UTC); err == nil {
			return t, nil
		}
	}
	return time.Time{}, fmt.Errorf("unrecognized date %q, expected YYYY-MM-DD or 'YYYY-MM-DD HH:MM:SS'", s)
}
