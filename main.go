package main

import (
	"os"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"

	"transvoice/config"
	"transvoice/logger"
	"transvoice/server"
)

func main() {
	// .env is optional; real deployments set environment variables.
	_ = godotenv.Load()

	path := os.Getenv("TRANSVOICE_CONFIG")
	if path == "" {
		path = "config.yaml"
	}
	cfg, err := config.Load(path)
	if err != nil {
		logger.L.Error("failed to load configuration", "error", err, "path", path)
		os.Exit(1)
	}
	logger.SetLevel(cfg.LogLevel)

	srv, err := server.New(cfg)
	if err != nil {
		logger.L.Error("failed to assemble server", "error", err)
		os.Exit(1)
	}

	go func() {
		sig := make(chan os.Signal, 1)
		signal.Notify(sig, os.Interrupt, syscall.SIGTERM)
		<-sig
		logger.L.Info("shutting down")
		if err := srv.Shutdown(); err != nil {
			logger.L.Error("shutdown error", "error", err)
		}
	}()

	if err := srv.Listen(); err != nil {
		logger.L.Error("server stopped", "error", err)
		os.Exit(1)
	}
}
