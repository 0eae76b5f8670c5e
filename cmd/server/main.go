// Package main initializes and starts the GophStudy scheduling server,
// setting up configuration, logging, the database, the repository,
// the service, the handlers and optional TLS.
package main

import (
	"cmp"
	"context"
	"errors"
	"fmt"
	"os/signal"
	"syscall"
	"time"

	nethttp "net/http"

	"go.uber.org/zap"

	"github.com/atinyakov/GophStudy/internal/config"
	"github.com/atinyakov/GophStudy/internal/db"
	"github.com/atinyakov/GophStudy/internal/logger"
	"github.com/atinyakov/GophStudy/internal/repository"
	"github.com/atinyakov/GophStudy/internal/server/handler/http"
	"github.com/atinyakov/GophStudy/internal/service"
)

var (
	// version holds the build version set via ldflags.
	version string
	// buildDate holds the build timestamp set via ldflags.
	buildDate string
)

func main() {
	// Parse command-line, config file and environment configuration.
	options := config.Parse()

	fmt.Printf("Build version: %s\n", cmp.Or(version, "N/A"))
	fmt.Printf("Build date: %s\n", cmp.Or(buildDate, "N/A"))

	log := logger.New()
	defer func() { _ = log.Log.Sync() }()
	if err := log.Init(options.LogLevel); err != nil {
		log.Log.Fatal("failed to init logger", zap.Error(err))
	}
	zapLogger := log.Log

	loc, err := time.LoadLocation(options.Timezone)
	if err != nil {
		zapLogger.Fatal("invalid timezone", zap.String("tz", options.Timezone), zap.Error(err))
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	postgresDB, err := db.InitPostgres(options.DatabaseDSN)
	if err != nil {
		zapLogger.Fatal("cannot init database", zap.Error(err))
	}
	defer postgresDB.Close()

	db.StartReviewLogCleaner(ctx, postgresDB,
		time.Hour,
		options.ReviewRetention.Duration,
		zapLogger,
	)

	studyRepo := repository.NewPostgresStudyRepository(postgresDB)

	if options.CardsFile != "" {
		decks, err := db.ReadDecks(options.CardsFile)
		if err != nil {
			zapLogger.Fatal("cannot read decks", zap.Error(err))
		}
		for deckID, cards := range decks {
			if err := studyRepo.UpsertCards(ctx, deckID, cards); err != nil {
				zapLogger.Fatal("cannot load deck", zap.String("deck", deckID), zap.Error(err))
			}
			zapLogger.Info("deck loaded", zap.String("deck", deckID), zap.Int("cards", len(cards)))
		}
	}

	studyService := service.NewStudyService(studyRepo,
		service.WithKnowThreshold(options.KnowThreshold),
		service.WithClock(time.Now, loc),
	)

	studyHandler := &http.StudyHandler{StudyService: studyService, Log: zapLogger}
	router := http.NewRouter(studyHandler, zapLogger)

	server := &nethttp.Server{
		Addr:              options.Port,
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = server.Shutdown(shutdownCtx)
	}()

	if options.TLSCert != "" && options.TLSKey != "" {
		zapLogger.Info("starting HTTPS server", zap.String("addr", options.Port))
		err = server.ListenAndServeTLS(options.TLSCert, options.TLSKey)
	} else {
		zapLogger.Info("starting HTTP server", zap.String("addr", options.Port))
		err = server.ListenAndServe()
	}
	if err != nil && !errors.Is(err, nethttp.ErrServerClosed) {
		zapLogger.Fatal("server failed", zap.Error(err))
	}
}
