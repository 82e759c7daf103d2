package main

import (
	"context"
	"flag"
	"fmt"
	"os"

	"github.com/joho/godotenv"

	"orbix/internal/config"
	"orbix/internal/daemonrun"
)

func main() {
	configPath := flag.String("config", "", "Configuration file path")
	envFile := flag.String("env-file", ".env", "Optional dotenv file loaded before the config")
	logLevel := flag.String("log-level", "", "Override logging.level")
	flag.Parse()

	// Missing dotenv files are expected outside development.
	_ = godotenv.Load(*envFile)

	cfg, _, _, err := config.Load(*configPath)
	if err != nil {
		fmt.Fprintln(os.Stderr, "orbixd: load config:", err)
		os.Exit(1)
	}
	if err := daemonrun.Run(context.Background(), cfg, daemonrun.Options{LogLevel: *logLevel}); err != nil {
		fmt.Fprintln(os.Stderr, "orbixd:", err)
		os.Exit(1)
	}
}
