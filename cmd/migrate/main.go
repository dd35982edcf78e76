// migrate applies the local session database migrations; go run ./cmd/migrate [-direction down].
package main

import (
	"errors"
	"flag"
	"fmt"
	"os"

	"gig-marketplace/client/internal/config"
	"gig-marketplace/client/internal/db/migrate"
)

func main() {
	direction := flag.String("direction", "up", "Migration direction: up or down")
	flag.Parse()

	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintln(os.Stderr, "config:", err)
		os.Exit(1)
	}
	if cfg.SessionBackend != config.SessionBackendSQLite {
		fmt.Fprintf(os.Stderr, "SESSION_BACKEND is %q; migrations only apply to sqlite\n", cfg.SessionBackend)
		os.Exit(1)
	}

	if err := migrate.Run(cfg.SessionDBPath, *direction); err != nil {
		if errors.Is(err, migrate.ErrNoChange) {
			return
		}
		fmt.Fprintln(os.Stderr, "migrate:", err)
		os.Exit(1)
	}
}
