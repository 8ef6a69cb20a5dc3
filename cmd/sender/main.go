package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/dn36772386/qrmatrix/internal/config"
	"github.com/dn36772386/qrmatrix/internal/server"
	"github.com/dn36772386/qrmatrix/internal/utils"
)

func main() {
	configPath := flag.String("config", defaultConfigPath(), "Path to config.json")
	port := flag.Int("port", 0, "Listen port (overrides config)")
	logFile := flag.String("log", "", "Log file path (overrides config)")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		log.Fatalf("config: %v", err)
	}
	if *port != 0 {
		cfg.Port = *port
	}
	if *logFile != "" {
		cfg.LogFile = *logFile
	}

	logger, err := utils.NewLogger(cfg.LogFile)
	if err != nil {
		log.Fatalf("logger: %v", err)
	}
	defer logger.Close()
	go logger.RotateDaily()

	hub := server.NewHub()
	session := server.NewSession(cfg, logger, hub)
	handlers := server.NewHandlers(session)
	router := server.NewRouter(handlers, hub)

	srv := &http.Server{
		Addr:    fmt.Sprintf(":%d", cfg.Port),
		Handler: router,
	}

	go func() {
		ch := make(chan os.Signal, 1)
		signal.Notify(ch, syscall.SIGINT, syscall.SIGTERM)
		<-ch
		logger.Info("shutting down")
		session.Shutdown()
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = srv.Shutdown(ctx)
	}()

	logger.Info("qrmatrix sender listening on :%d (mode=%s fps=%d chunk=%d)",
		cfg.Port, cfg.DisplayMode, cfg.FPS, cfg.ChunkSize)
	if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		log.Fatalf("server: %v", err)
	}
}

// defaultConfigPath honors QRMATRIX_CONFIG, falling back to config.json
// in the working directory.
func defaultConfigPath() string {
	if p := os.Getenv("QRMATRIX_CONFIG"); p != "" {
		return p
	}
	return "config.json"
}
