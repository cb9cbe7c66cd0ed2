package main

import (
	"context"
	"errors"
	"io/fs"
	"log"
	"os"

	"github.com/dmitrijs2005/promptmarket/internal/app"
	"github.com/dmitrijs2005/promptmarket/internal/config"
	"github.com/dmitrijs2005/promptmarket/internal/flagx"
	"github.com/dmitrijs2005/promptmarket/internal/logging"
	"github.com/joho/godotenv"
)

func main() {
	ctx := context.Background()

	if err := godotenv.Load(flagx.EnvFile(os.Args[1:])); err != nil && !errors.Is(err, fs.ErrNotExist) {
		log.Printf("env file: %v", err)
	}

	cfg, err := config.LoadConfig()
	if err != nil {
		log.Printf("%v", err)
		os.Exit(2)
	}

	logger := logging.New(cfg.LogLevel, cfg.LogFormat)

	a, err := app.New(ctx, cfg, logger)
	if err != nil {
		logger.Error(ctx, "init failed", "error", err)
		os.Exit(1)
	}

	if err := a.Run(ctx); err != nil {
		logger.Error(ctx, "app stopped with error", "error", err)
		os.Exit(1)
	}
}
