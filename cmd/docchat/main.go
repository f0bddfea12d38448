// Command docchat crawls a documentation site, indexes it and answers
// questions about it.
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"

	"github.com/joho/godotenv"

	"github.com/custodia-labs/docchat/internal/adapters/driven/config/file"
	"github.com/custodia-labs/docchat/internal/adapters/driving/cli"
	"github.com/custodia-labs/docchat/internal/logger"
)

// version is set at build time with -ldflags "-X main.version=...".
var version = ""

func main() {
	os.Exit(run())
}

func run() int {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	home, err := file.DefaultDir()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: locating docchat home: %v\n", err)
		return 1
	}
	loadEnv(home)

	w, err := newWiring(home)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		return 1
	}

	cli.SetVersion(version)
	cli.SetConnector(w.connect)

	code := 0
	if err := cli.Execute(ctx); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		code = 1
	}
	if err := cli.Shutdown(); err != nil {
		logger.Warn("closing stores: %v", err)
	}
	return code
}

// loadEnv reads API keys from .env in the working directory and then the
// docchat home. Variables already set are never overridden.
func loadEnv(home string) {
	for _, path := range []string{".env", filepath.Join(home, ".env")} {
		if _, err := os.Stat(path); err != nil {
			continue
		}
		if err := godotenv.Load(path); err != nil {
			logger.Warn("reading %s: %v", path, err)
		}
	}
}
