package main

import (
	"github.com/joho/godotenv"
)

func main() {
	// Optional .env for development overrides; absence is fine.
	_ = godotenv.Load()

	Execute()
}
