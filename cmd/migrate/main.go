// Command migrate applies, rolls back or reports the database schema
// migrations embedded in the binary.
package main

import (
	"context"
	"flag"
	"log"
	"os"

	"github.com/pressly/goose/v3"

	"inmapper.dev/authgate/internal/store/pg"
	"inmapper.dev/authgate/internal/store/pg/migrations"
)

func main() {
	dsn := flag.String("dsn", os.Getenv("AUTHGATE_PG_DSN"), "postgres DSN")
	flag.Parse()

	cmd := flag.Arg(0)
	if cmd == "" {
		cmd = "up"
	}
	if *dsn == "" {
		log.Fatal("database DSN is required (flag -dsn or AUTHGATE_PG_DSN)")
	}

	store, err := pg.Open(*dsn)
	if err != nil {
		log.Fatalf("open db: %v", err)
	}
	defer store.Close()

	goose.SetBaseFS(migrations.FS)
	if err := goose.SetDialect("pgx"); err != nil {
		log.Fatalf("set dialect: %v", err)
	}

	ctx := context.Background()
	switch cmd {
	case "up":
		err = goose.UpContext(ctx, store.DB(), ".")
	case "down":
		err = goose.DownContext(ctx, store.DB(), ".")
	case "status":
		err = goose.StatusContext(ctx, store.DB(), ".")
	default:
		log.Fatalf("unknown command %q (want up, down or status)", cmd)
	}
	if err != nil {
		log.Fatalf("%s: %v", cmd, err)
	}
}
