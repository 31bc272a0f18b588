package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"syscall"

	"github.com/gin-gonic/gin"
	"github.com/joho/godotenv"

	"metaboqc/internal"
	"metaboqc/internal/config"
	"metaboqc/internal/container"
	"metaboqc/ui"
)

func main() {
	if err := godotenv.Load(); err != nil {
		log.Println("No .env file found, using environment")
	}

	appConfig, err := config.Load()
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}
	internal.DefaultLogger.SetLevel(internal.ParseLogLevel(appConfig.Log.Level))
	if internal.ParseLogLevel(appConfig.Log.Level) < internal.LogLevelDebug {
		gin.SetMode(gin.ReleaseMode)
	}

	if err := os.MkdirAll(appConfig.QC.OutputDir, 0o755); err != nil {
		log.Fatalf("Failed to create output directory: %v", err)
	}

	appContainer, err := container.New(appConfig)
	if err != nil {
		log.Fatalf("Failed to create container: %v", err)
	}
	defer appContainer.Shutdown()

	server, err := ui.NewServer(appContainer.Index, appConfig.QC.OutputDir)
	if err != nil {
		log.Fatalf("Failed to initialize server: %v", err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	log.Printf("Serving reports from %s on port %s", appConfig.QC.OutputDir, appConfig.Server.Port)
	if err := server.Start(ctx, ":"+appConfig.Server.Port, appConfig.Server); err != nil {
		log.Fatalf("Server failed: %v", err)
	}
}
