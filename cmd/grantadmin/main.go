// Command grantadmin promotes an existing account to admin. The first admin
// has to be bootstrapped out-of-band; there is deliberately no HTTP route
// for it.
package main

import (
	"context"
	"flag"
	"log"
	"os"

	"inmapper.dev/authgate/internal/auth"
	"inmapper.dev/authgate/internal/store/pg"
)

func main() {
	email := flag.String("email", "", "email of the account to promote")
	dsn := flag.String("dsn", os.Getenv("AUTHGATE_PG_DSN"), "postgres DSN")
	revoke := flag.Bool("revoke", false, "demote instead of promote")
	flag.Parse()

	if *email == "" {
		log.Fatal("-email is required")
	}
	if *dsn == "" {
		log.Fatal("database DSN is required (flag -dsn or AUTHGATE_PG_DSN)")
	}

	store, err := pg.Open(*dsn)
	if err != nil {
		log.Fatalf("open db: %v", err)
	}
	defer store.Close()

	ctx := context.Background()
	users := store.Users(ctx)
	user, err := users.FindByEmail(ctx, *email)
	if err != nil {
		log.Fatalf("find user: %v", err)
	}

	isAdmin := !*revoke
	if _, err := users.Update(ctx, user.ID, auth.UserUpdate{IsAdmin: &isAdmin}); err != nil {
		log.Fatalf("update user: %v", err)
	}
	if isAdmin {
		log.Printf("%s is now an admin", user.Email)
	} else {
		log.Printf("%s is no longer an admin", user.Email)
	}
}
