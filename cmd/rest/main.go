package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"lus-laboris-api/internal/bootstrap"
	"lus-laboris-api/internal/config"
	"lus-laboris-api/internal/server"
)

func main() {
	// 1. Load Configuration
	cfg := config.Load()

	// 2. Bootstrap Dependencies (Container)
	container := bootstrap.NewContainer(cfg)

	// 3. Start Background Services
	// Note: In a larger app, we might use an errgroup or supervisor here
	if err := container.JobService.Start(context.Background()); err != nil {
		log.Panicf("Unable to start job worker: %v", err)
	}
	go func() {
		log.Println("Background: Starting Evaluation Service...")
		if err := container.EvaluationService.Consume(context.Background()); err != nil {
			log.Printf("Background Evaluation Error: %v", err)
		}
	}()

	// 4. Initialize Server
	srv := server.New(cfg, container)

	// 5. Run Server
	go func() {
		if err := srv.Run(); err != nil {
			log.Panicf("Server stopped: %v", err)
		}
	}()

	// 6. Wait for shutdown signal, then drain
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	log.Println("Shutting down...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := srv.Shutdown(); err != nil {
		log.Printf("Server shutdown error: %v", err)
	}
	if err := container.EvaluationService.Shutdown(shutdownCtx); err != nil {
		log.Printf("Evaluation shutdown error: %v", err)
	}
	if err := container.TracerShutdown(shutdownCtx); err != nil {
		log.Printf("Tracer shutdown error: %v", err)
	}
	if container.NatsPublisher != nil {
		container.NatsPublisher.Close()
	}
	if err := container.Store.Close(); err != nil {
		log.Printf("Vector store close error: %v", err)
	}
	_ = container.Logger.Sync()

	log.Println("Shutdown complete")
}
