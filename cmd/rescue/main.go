package main

import (
	"os"

	"github.com/joho/godotenv"

	"github.com/billingops/account-rescue-cli/cmd"
)

func main() {
	// A missing .env is fine; real deployments set RESCUE_* directly.
	_ = godotenv.Load()

	if err := cmd.Execute(); err != nil {
		os.Exit(1)
	}
}
