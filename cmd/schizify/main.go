// Package main provides the CLI that retrofits tombstone columns onto tables.
// Usage: schizify apply [--tables a,b] [--no-rule]
//        schizify revert [--tables a,b]
package main

import (
	"context"
	"fmt"
	"os"
	"strings"

	"tombstone/internal/config"
	"tombstone/internal/infrastructure/storage/postgres"
)

func main() {
	if len(os.Args) < 2 {
		printUsage()
		os.Exit(1)
	}

	ctx := context.Background()

	switch os.Args[1] {
	case "apply":
		run(ctx, true)
	case "revert":
		run(ctx, false)
	case "help", "--help", "-h":
		printUsage()
	default:
		fmt.Printf("Unknown command: %s\n", os.Args[1])
		printUsage()
		os.Exit(1)
	}
}

func printUsage() {
	fmt.Println(`Tombstone schema CLI

Usage:
  schizify <command> [options]

Commands:
  apply     Add deleted/deleted_at columns, an active-rows view and a
            DELETE rewrite rule to every table lacking them
  revert    Drop the view and tombstone columns
  help      Show this help

Options:
  --tables a,b   Limit the command to the listed tables
  --no-rule      (apply) Keep physical DELETE; only add columns and view

Environment Variables:
  DATABASE_URL                 PostgreSQL connection string (required)
  TOMBSTONE_EXCLUDED_TABLES    Tables apply never touches

Examples:
  schizify apply
  schizify apply --tables loans,payments --no-rule
  schizify revert --tables loans`)
}

type options struct {
	tables []string
	noRule bool
}

func parseOptions(args []string) (options, error) {
	var opts options
	for i := 0; i < len(args); i++ {
		switch args[i] {
		case "--tables":
			if i+1 >= len(args) {
				return opts, fmt.Errorf("--tables needs a value")
			}
			for _, t := range strings.Split(args[i+1], ",") {
				if t = strings.TrimSpace(t); t != "" {
					opts.tables = append(opts.tables, t)
				}
			}
			i++
		case "--no-rule":
			opts.noRule = true
		default:
			return opts, fmt.Errorf("unknown option %s", args[i])
		}
	}
	return opts, nil
}

func run(ctx context.Context, apply bool) {
	opts, err := parseOptions(os.Args[2:])
	if err != nil {
		fmt.Printf("Error: %v\n", err)
		os.Exit(1)
	}

	cfg, err := config.Load()
	if err != nil {
		fmt.Printf("Error: %v\n", err)
		os.Exit(1)
	}
	if cfg.DB.Driver != config.DriverPostgres {
		fmt.Println("Error: schizify requires DB_DRIVER=postgres")
		os.Exit(1)
	}

	poolCfg := postgres.DefaultPoolConfig(cfg.DB.URL)
	poolCfg.MaxConns = 2
	poolCfg.MinConns = 0
	poolCfg.ApplicationName = "tombstone-schizify"
	pool, err := postgres.NewPool(ctx, poolCfg)
	if err != nil {
		fmt.Printf("Error connecting to database: %v\n", err)
		os.Exit(1)
	}
	defer pool.Close()

	sc := postgres.DefaultSchizifyConfig()
	sc.ExcludedTables = cfg.SoftDelete.ExcludedTables
	sc.SkipRule = opts.noRule
	migrator := postgres.NewSchizify(postgres.NewTxManager(pool), sc)

	var changed []string
	if apply {
		changed, err = migrator.Apply(ctx, opts.tables...)
	} else {
		changed, err = migrator.Revert(ctx, opts.tables...)
	}
	if err != nil {
		fmt.Printf("Error: %v\n", err)
		os.Exit(1)
	}

	if len(changed) == 0 {
		fmt.Println("Nothing to do")
		return
	}
	for _, t := range changed {
		fmt.Printf("  %s\n", t)
	}
	fmt.Printf("%d table(s) updated\n", len(changed))
}
