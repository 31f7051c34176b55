package main

import (
	"log/slog"
	"os"

	"github.com/egress-lab/evacsim/cmd/evacsim/commands"
	"github.com/joho/godotenv"
)

func main() {
	// Initialize structured logger with text format for readability
	logger := slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{
		Level: slog.LevelInfo,
	}))
	slog.SetDefault(logger)

	// Optional .env with credentials for local runs
	_ = godotenv.Load()

	commands.Execute()
}
