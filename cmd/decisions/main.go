package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/kimmove-blip/Stock-sub000/internal/infra"
	"github.com/kimmove-blip/Stock-sub000/internal/storage"
)

// decisions dumps the audit journal: what was approved, rejected or
// adjusted, and how each round trip ended.
func main() {
	var (
		mode  = flag.String("mode", "demo", "trading mode whose journal to read (live|demo)")
		limit = flag.Int("limit", 50, "number of recent decisions to show")
		id    = flag.String("id", "", "show the full history of one suggestion")
	)
	flag.Parse()

	dbPath := filepath.Join(infra.GetWorkspaceDir(), "data", strings.ToLower(*mode), "decisions.db")
	journal, err := storage.NewJournal(dbPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "open journal: %v\n", err)
		os.Exit(1)
	}
	defer journal.Close()

	ctx := context.Background()

	var rows []storage.Decision
	if *id != "" {
		rows, err = journal.BySuggestion(ctx, *id)
	} else {
		rows, err = journal.Recent(ctx, *limit)
	}
	if err != nil {
		fmt.Fprintf(os.Stderr, "read journal: %v\n", err)
		os.Exit(1)
	}

	if len(rows) == 0 {
		fmt.Println("no decisions recorded")
		return
	}

	for _, d := range rows {
		line := fmt.Sprintf("%s  %-8s %-16s %s",
			d.CreatedAt.Format("2006-01-02 15:04:05"), d.Action, d.Outcome, d.SuggestionID)
		if d.Quantity > 0 {
			line += fmt.Sprintf("  qty=%d price=%d", d.Quantity, d.Price)
		}
		if d.Forced {
			line += "  forced"
		}
		if d.Detail != "" {
			line += "  " + d.Detail
		}
		fmt.Println(line)
	}
}
