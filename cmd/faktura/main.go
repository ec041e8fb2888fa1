package main

import (
	"os"

	"github.com/subosito/gotenv"

	"github.com/garyjia/faktura/internal/cli"
)

func main() {
	// A missing .env is fine; the environment and config file still apply
	_ = gotenv.Load()

	os.Exit(cli.Execute())
}
