// officialctl provisions and maintains official accounts directly against the
// database. Account creation is administrative: there is no self-service
// registration path.
package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"os"
	"time"

	"fleetgov.org/internal/auth"
	"fleetgov.org/internal/store/pg"
)

func main() {
	log.SetFlags(0)
	dsn := flag.String("dsn", os.Getenv("FLEETGOV_PG_DSN"), "PostgreSQL DSN")
	flag.Parse()

	if *dsn == "" {
		log.Fatal("missing DSN: provide via -dsn or FLEETGOV_PG_DSN")
	}
	if len(flag.Args()) == 0 {
		log.Fatal("usage: officialctl [create|set-password|unlock|deactivate|activate] ...")
	}

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	store, err := pg.Open(*dsn)
	if err != nil {
		log.Fatalf("open db: %v", err)
	}
	defer store.Close()

	switch flag.Arg(0) {
	case "create":
		err = createOfficial(ctx, store, flag.Args()[1:])
	case "set-password":
		err = setPassword(ctx, store, flag.Args()[1:])
	case "unlock":
		err = setLockCleared(ctx, store, flag.Args()[1:])
	case "deactivate":
		err = setActive(ctx, store, flag.Args()[1:], false)
	case "activate":
		err = setActive(ctx, store, flag.Args()[1:], true)
	default:
		log.Fatalf("unknown command %q", flag.Arg(0))
	}
	if err != nil {
		log.Fatalf("officialctl %s: %v", flag.Arg(0), err)
	}
}

func createOfficial(ctx context.Context, store *pg.Store, args []string) error {
	fs := flag.NewFlagSet("create", flag.ExitOnError)
	var (
		pn       = fs.String("pn", "", "personal number (6-8 digits)")
		name     = fs.String("name", "", "full name")
		position = fs.String("position", "", "position title")
		jobGroup = fs.String("job-group", "", "job group")
		role     = fs.String("role", "", "role name")
		orgID    = fs.Int64("org", 0, "organization id")
		email    = fs.String("email", "", "email address")
		phone    = fs.String("phone", "", "phone number")
		channel  = fs.String("channel", "email", "verification channel: email or sms")
		password = fs.String("password", "", "initial password")
	)
	if err := fs.Parse(args); err != nil {
		return err
	}

	official, err := auth.NewOfficial(0, *pn, *name, *position, *jobGroup, auth.Role(*role), *orgID)
	if err != nil {
		return err
	}
	official.Email = *email
	official.Phone = *phone
	official.Channel = auth.Channel(*channel)
	if err := official.Validate(); err != nil {
		return err
	}
	if *password == "" {
		return fmt.Errorf("password is required")
	}
	hash, err := auth.HashPassword(*password)
	if err != nil {
		return err
	}

	if err := store.Officials().Create(ctx, official); err != nil {
		return err
	}
	if err := store.Credentials().SetPassword(ctx, official.ID, hash, time.Now().UTC()); err != nil {
		return err
	}
	fmt.Printf("created official %d (%s, %s)\n", official.ID, official.Name, official.Role)
	return nil
}

func setPassword(ctx context.Context, store *pg.Store, args []string) error {
	fs := flag.NewFlagSet("set-password", flag.ExitOnError)
	id := fs.Int64("id", 0, "official id")
	password := fs.String("password", "", "new password")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if *id <= 0 || *password == "" {
		return fmt.Errorf("id and password are required")
	}
	hash, err := auth.HashPassword(*password)
	if err != nil {
		return err
	}
	return store.Credentials().SetPassword(ctx, *id, hash, time.Now().UTC())
}

func setLockCleared(ctx context.Context, store *pg.Store, args []string) error {
	fs := flag.NewFlagSet("unlock", flag.ExitOnError)
	id := fs.Int64("id", 0, "official id")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if *id <= 0 {
		return fmt.Errorf("id is required")
	}
	return store.Credentials().ResetFailures(ctx, *id, time.Now().UTC())
}

func setActive(ctx context.Context, store *pg.Store, args []string, active bool) error {
	fs := flag.NewFlagSet("active", flag.ExitOnError)
	id := fs.Int64("id", 0, "official id")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if *id <= 0 {
		return fmt.Errorf("id is required")
	}
	if err := store.Officials().SetActive(ctx, *id, active); err != nil {
		return err
	}
	if !active {
		return store.Sessions().RevokeAll(ctx, *id)
	}
	return nil
}
