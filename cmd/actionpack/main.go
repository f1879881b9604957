package main

import (
	"github.com/dennishilgert/actionpack/cmd/actionpack/cmd"
	"github.com/joho/godotenv"
)

func main() {
	// Load environment variables from .env file for local development.
	godotenv.Load()

	cmd.Run()
}
