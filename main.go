package main

import (
	"github.com/joho/godotenv"

	"github.com/teemow/gmail-sender/cmd"
)

// version will be set by goreleaser during build
var version = "dev"

func main() {
	// A missing .env is fine; the environment and flags still apply
	_ = godotenv.Load()

	cmd.SetVersion(version)
	cmd.Execute()
}
