package main

import (
	"database/sql"
	"errors"
	"flag"
	"fmt"
	"log"
	"os"
	"strconv"

	"github.com/golang-migrate/migrate/v4"
	_ "github.com/lib/pq"

	"github.com/ignite/cadence-mailer/migrations"
)

const usage = `usage: migrate [up | down [n] | version | force <version>]`

func main() {
	flag.Usage = func() { fmt.Fprintln(os.Stderr, usage) }
	flag.Parse()

	dsn := os.Getenv("DATABASE_URL")
	if dsn == "" {
		log.Fatal("DATABASE_URL is required")
	}

	db, err := sql.Open("postgres", dsn)
	if err != nil {
		log.Fatalf("connect: %v", err)
	}
	defer db.Close()
	if err := db.Ping(); err != nil {
		log.Fatalf("ping: %v", err)
	}

	m, err := migrations.NewMigrator(db)
	if err != nil {
		log.Fatal(err)
	}

	cmd := flag.Arg(0)
	if cmd == "" {
		cmd = "up"
	}
	switch cmd {
	case "up":
		err = m.Up()
	case "down":
		steps := 1
		if a := flag.Arg(1); a != "" {
			if steps, err = strconv.Atoi(a); err != nil || steps < 1 {
				log.Fatalf("invalid step count %q", a)
			}
		}
		err = m.Steps(-steps)
	case "version":
		v, dirty, verr := m.Version()
		if errors.Is(verr, migrate.ErrNilVersion) {
			fmt.Println("no migrations applied")
			return
		}
		if verr != nil {
			log.Fatalf("version: %v", verr)
		}
		fmt.Printf("version %d (dirty=%t)\n", v, dirty)
		return
	case "force":
		v, perr := strconv.Atoi(flag.Arg(1))
		if perr != nil {
			log.Fatalf("force needs a version: %v", perr)
		}
		err = m.Force(v)
	default:
		flag.Usage()
		os.Exit(2)
	}

	if errors.Is(err, migrate.ErrNoChange) {
		log.Println("No pending migrations")
		return
	}
	if err != nil {
		log.Fatalf("%s: %v", cmd, err)
	}
	log.Printf("Migrations %s complete", cmd)
}
