package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"

	httpapi "asset-pipeline/internal/http"
	"asset-pipeline/internal/http/handlers"
	"asset-pipeline/internal/infra"
	"asset-pipeline/internal/ledger"
	"asset-pipeline/internal/media"
	"asset-pipeline/internal/pipeline"
	"asset-pipeline/internal/providers/fashn"
	"asset-pipeline/internal/providers/taskpoll"
	"asset-pipeline/internal/providers/tripo"
	"asset-pipeline/internal/storage"
)

func main() {
	_ = godotenv.Load()

	cfg, err := infra.LoadConfig()
	if err != nil {
		panic(err)
	}
	logger := infra.NewLogger(cfg.AppEnv)

	store, err := storage.NewFileStore(cfg.StoragePath)
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to configure artifact storage")
	}

	errLedger := ledger.NewZerolog(&logger)
	httpClient := &http.Client{Timeout: cfg.RequestTimeout}
	poll := taskpoll.Config{Interval: cfg.PollInterval, MaxAttempts: cfg.MaxPollAttempts}

	var generator tripo.Generator
	if cfg.Enable3D {
		client, err := tripo.NewClient(tripo.Options{
			APIKey:       cfg.TripoAPIKey,
			BaseURL:      cfg.TripoBaseURL,
			ModelVersion: cfg.TripoModelVersion,
			HTTPClient:   httpClient,
			Logger:       &logger,
			Store:        store,
			Ledger:       errLedger,
			Poll:         poll,
			MaxRetries:   cfg.MaxRetries,
		})
		if err != nil {
			logger.Fatal().Err(err).Msg("failed to configure 3d generation client")
		}
		generator = client
	}

	var fitter fashn.Fitter
	if cfg.EnableFit {
		client, err := fashn.NewClient(fashn.Options{
			APIKey:     cfg.FashnAPIKey,
			BaseURL:    cfg.FashnBaseURL,
			HTTPClient: httpClient,
			Logger:     &logger,
			Store:      store,
			Ledger:     errLedger,
			Poll:       poll,
			MaxRetries: cfg.MaxRetries,
		})
		if err != nil {
			logger.Fatal().Err(err).Msg("failed to configure virtual fitting client")
		}
		fitter = client
	}

	var uploader media.Uploader
	if cfg.EnableUpload {
		client, err := media.NewClient(media.Options{
			BaseURL:     cfg.WordPressBaseURL,
			Username:    cfg.WordPressUsername,
			AppPassword: cfg.WordPressAppPassword,
			HTTPClient:  httpClient,
			Logger:      &logger,
			Ledger:      errLedger,
			MaxRetries:  cfg.MaxRetries,
		})
		if err != nil {
			logger.Fatal().Err(err).Msg("failed to configure media upload client")
		}
		uploader = client
	}

	pipe := pipeline.New(pipeline.Options{
		Generator:         generator,
		Fitter:            fitter,
		Uploader:          uploader,
		Ledger:            errLedger,
		Logger:            &logger,
		FitVariants:       cfg.FitVariants,
		UploadConcurrency: int64(cfg.MaxConcurrentUploads),
	})

	app := handlers.NewApp(pipe, &logger)
	router := httpapi.NewRouter(app)
	server := infra.NewHTTPServer(cfg, router)

	go func() {
		logger.Info().Msgf("API listening on :%s", cfg.Port)
		if err := server.Start(); err != nil && err != http.ErrServerClosed {
			logger.Fatal().Err(err).Msg("http server failed")
		}
	}()

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)
	<-stop

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Error().Err(err).Msg("failed to shutdown server")
	}
	logger.Info().Msg("server stopped")
}
