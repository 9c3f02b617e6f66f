package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"syscall"

	"github.com/m3rciful/tarotbot/internal/bot"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	path := os.Getenv("CONFIG_PATH")
	if path == "" {
		path = "config.yaml"
	}
	cfg, err := bot.LoadConfig(path)
	if err != nil {
		log.Fatal(err)
	}
	app, err := bot.New(ctx, cfg)
	if err != nil {
		log.Fatal(err)
	}
	runErr := app.Run(ctx)
	if err := app.Close(); err != nil {
		log.Printf("shutdown: %v", err)
	}
	if runErr != nil {
		log.Fatal(runErr)
	}
}
