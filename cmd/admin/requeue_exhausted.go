// One-shot operator tool: moves exhausted failures for a category back to
// awaiting_approval so they can be re-armed after a provider incident.
package main

import (
	"context"
	"fmt"
	"os"

	"github.com/harborline/payguard/internal/core/config"
	"github.com/harborline/payguard/internal/infra/storage/postgres"
)

func main() {
	if len(os.Args) < 2 {
		fmt.Println("usage: requeue_exhausted <category>")
		os.Exit(1)
	}
	category := os.Args[1]

	cfgPath := os.Getenv("PAYGUARD_CONFIG")
	if cfgPath == "" {
		cfgPath = "config.yaml"
	}
	cfg, err := config.Load(cfgPath)
	if err != nil {
		panic(err)
	}

	ctx := context.Background()
	db, err := postgres.NewDB(ctx, cfg.Database)
	if err != nil {
		panic(err)
	}
	defer db.Close()

	res, err := db.ExecContext(ctx,
		`UPDATE payment_failures
		 SET status = 'awaiting_approval', version = version + 1, updated_at = NOW()
		 WHERE status = 'exhausted' AND category = $1`,
		category)
	if err != nil {
		panic(err)
	}

	n, _ := res.RowsAffected()
	fmt.Printf("Requeued %d exhausted failures for category %s\n", n, category)
}
