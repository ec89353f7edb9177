package main

import (
	"context"
	"flag"
	"fmt"
	"log"

	"github.com/decarvalhoe/trading-bot-open-source-sub001/pkg/db"
)

// verify_schema applies migrations to a strategy store file and checks the
// expected tables and columns exist.
//
// Usage:
//   go run ./scripts/verify_schema -db ./data/engine.db

func main() {
	dbPath := flag.String("db", "./data/engine.db", "sqlite file to verify")
	flag.Parse()
	fmt.Printf("Verifying database at: %s\n", *dbPath)

	database, err := db.Open(context.Background(), *dbPath)
	if err != nil {
		log.Fatalf("Failed to open DB: %v", err)
	}
	defer database.Close()

	if err := db.ApplyMigrations(database); err != nil {
		log.Fatalf("Migrations failed: %v", err)
	}

	checks := map[string][]string{
		"strategies":          {"id", "strategy_type", "parameters", "enabled", "status", "last_error", "metadata"},
		"strategy_executions": {"strategy_id", "order_id", "payload"},
	}
	failed := false
	for _, table := range []string{"strategies", "strategy_executions"} {
		for _, column := range checks[table] {
			ok, err := db.ColumnExists(database, table, column)
			if err != nil {
				log.Fatalf("Query failed: %v", err)
			}
			if ok {
				fmt.Printf("ok   %s.%s\n", table, column)
			} else {
				fmt.Printf("MISSING %s.%s\n", table, column)
				failed = true
			}
		}
	}
	if failed {
		log.Fatal("schema verification failed")
	}
}
