package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"os"
	"strconv"
	"strings"

	tea "github.com/charmbracelet/bubbletea"

	"bullscan/internal/backtest"
	"bullscan/internal/config"
	"bullscan/internal/dashboard"
	"bullscan/internal/domain"
	"bullscan/internal/screen"
	"bullscan/internal/store"
)

const version = "0.1.0"

func main() {
	flag.Usage = func() {
		fmt.Fprintf(os.Stderr, "Usage: bullscan-cli <command> [options]\n\n")
		fmt.Fprintf(os.Stderr, "Commands:\n")
		fmt.Fprintf(os.Stderr, "  version              Print the CLI version\n")
		fmt.Fprintf(os.Stderr, "  runs [n]             List the n most recent backtest runs (default 20)\n")
		fmt.Fprintf(os.Stderr, "  show <id> [winners]  Show a stored run, optionally winners only\n")
		fmt.Fprintf(os.Stderr, "  browse <id>          Page through a stored run interactively\n")
		fmt.Fprintf(os.Stderr, "  export <id> <file>   Write a stored run as CSV\n")
		fmt.Fprintf(os.Stderr, "  symbols              List symbols in the bar cache\n")
		fmt.Fprintf(os.Stderr, "\n")
	}

	if len(os.Args) < 2 {
		flag.Usage()
		os.Exit(1)
	}

	cmd, args := os.Args[1], os.Args[2:]
	if cmd == "version" {
		fmt.Printf("bullscan-cli %s\n", version)
		return
	}

	cfgPath := "config/bullscan.yaml"
	if p := os.Getenv("BULLSCAN_CONFIG"); p != "" {
		cfgPath = p
	}
	cfg, err := config.Load(cfgPath)
	if err != nil {
		log.Fatalf("failed to load config: %v", err)
	}
	ctx := context.Background()

	switch cmd {
	case "runs":
		limit := 20
		if len(args) > 0 {
			if limit, err = strconv.Atoi(args[0]); err != nil {
				log.Fatalf("invalid run count %q", args[0])
			}
		}
		db := openHistory(cfg)
		defer db.Close()
		runs, err := db.ListRuns(ctx, limit)
		if err != nil {
			log.Fatalf("listing runs: %v", err)
		}
		if len(runs) == 0 {
			fmt.Println("no runs recorded")
			return
		}
		fmt.Println(dashboard.RenderRuns(runs))

	case "show":
		run := loadRun(ctx, cfg, args)
		results := run.Results
		title := fmt.Sprintf("Run %d", run.ID)
		if len(args) > 1 && args[1] == "winners" {
			results = screen.Winners(results, screen.FromConfig(cfg.Screen))
			title += " winners"
		}
		fmt.Println(dashboard.RenderResults(title, results))

	case "browse":
		run := loadRun(ctx, cfg, args)
		winners := screen.Winners(run.Results, screen.FromConfig(cfg.Screen))
		p := tea.NewProgram(
			dashboard.NewBrowser(fmt.Sprintf("Run %d", run.ID), run.Results, winners),
			tea.WithAltScreen(),
			tea.WithMouseCellMotion(),
		)
		if _, err := p.Run(); err != nil {
			fmt.Fprintf(os.Stderr, "error: %v\n", err)
			os.Exit(1)
		}

	case "export":
		if len(args) < 2 {
			flag.Usage()
			os.Exit(1)
		}
		run := loadRun(ctx, cfg, args)
		f, err := os.Create(args[1])
		if err != nil {
			log.Fatalf("creating %s: %v", args[1], err)
		}
		if err := backtest.WriteCSV(f, run); err != nil {
			f.Close()
			log.Fatalf("writing %s: %v", args[1], err)
		}
		if err := f.Close(); err != nil {
			log.Fatalf("closing %s: %v", args[1], err)
		}
		fmt.Printf("wrote %d rows to %s\n", len(run.Results), args[1])

	case "symbols":
		symbols, err := store.NewParquetStore(cfg.Storage.DataDir).ListSymbols(ctx, string(domain.MarketUS))
		if err != nil {
			log.Fatalf("listing symbols: %v", err)
		}
		fmt.Println(strings.Join(symbols, "\n"))
		fmt.Fprintf(os.Stderr, "%s symbols cached\n", dashboard.FormatInt(len(symbols)))

	default:
		fmt.Fprintf(os.Stderr, "unknown command: %s\n\n", cmd)
		flag.Usage()
		os.Exit(1)
	}
}

func openHistory(cfg *config.Config) *store.SQLiteStore {
	if cfg.Storage.SQLitePath == "" {
		log.Fatalf("storage.sqlite_path is not configured")
	}
	db, err := store.NewSQLiteStore(cfg.Storage.SQLitePath)
	if err != nil {
		log.Fatalf("opening run history: %v", err)
	}
	return db
}

func loadRun(ctx context.Context, cfg *config.Config, args []string) *domain.Run {
	if len(args) < 1 {
		flag.Usage()
		os.Exit(1)
	}
	id, err := strconv.ParseInt(args[0], 10, 64)
	if err != nil {
		log.Fatalf("invalid run id %q", args[0])
	}
	db := openHistory(cfg)
	defer db.Close()
	run, err := db.GetRun(ctx, id)
	if err != nil {
		log.Fatalf("loading run: %v", err)
	}
	return run
}
