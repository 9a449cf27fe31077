// Command laplink-cli performs operator tasks against the LapLink database,
// such as creating the first admin account.
package main

import (
	"context"
	"errors"
	"fmt"
	"log"
	"os"

	"github.com/dmitrijs2005/laplink/internal/admincli"
	"github.com/dmitrijs2005/laplink/internal/cryptox"
	"github.com/dmitrijs2005/laplink/internal/server/config"
	"github.com/dmitrijs2005/laplink/internal/server/repositories/repomanager"
	"github.com/spf13/pflag"
)

func main() {
	ctx := context.Background()

	// Environment and .env provide the defaults, flags override them.
	cfg, err := config.LoadConfig(nil)
	if err != nil {
		log.Fatalf("%v", err)
	}

	fs := pflag.NewFlagSet("laplink-cli", pflag.ExitOnError)
	fs.SetInterspersed(false)
	dsn := fs.String("dsn", cfg.DatabaseDSN, "PostgreSQL DSN")
	migrate := fs.Bool("migrate", true, "apply pending migrations before running the command")
	_ = fs.Parse(os.Args[1:])

	db, err := repomanager.Open(ctx, *dsn)
	if err != nil {
		log.Fatalf("%v", err)
	}
	defer db.Close()

	rm := repomanager.NewPostgresRepositoryManager()
	if *migrate {
		if err := rm.RunMigrations(ctx, db); err != nil {
			log.Fatalf("migrations: %v", err)
		}
	}

	app := admincli.NewApp(rm.Users(db), cryptox.NewHasher(0), os.Stdin, os.Stdout)
	if err := app.Run(ctx, fs.Args()); err != nil {
		if errors.Is(err, admincli.ErrUsage) {
			app.Usage()
		}
		fmt.Fprintln(os.Stderr, err)
		db.Close()
		os.Exit(1)
	}
}
