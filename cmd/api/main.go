package main

import (
	"context"
	"fmt"
	"log"
	"net"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"tcrbert-backend/cmd"
	"tcrbert-backend/internal/api"
	"tcrbert-backend/internal/chart"
	"tcrbert-backend/internal/config"
	"tcrbert-backend/internal/core"
	"tcrbert-backend/internal/storage"

	"github.com/caarlos0/env/v11"
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
)

type APIConfig struct {
	Port       int    `env:"PORT" envDefault:"5000"`
	DataConfig string `env:"DATA_CONFIG" envDefault:"data.json"`
	StaticDir  string `env:"STATIC_DIR"`

	ModelType          string        `env:"MODEL_TYPE" envDefault:"onnx"`
	ModelDir           string        `env:"MODEL_DIR" envDefault:"./model"`
	OnnxRuntimeDylib   string        `env:"ONNX_RUNTIME_DYLIB"`
	RemoteModelURL     string        `env:"REMOTE_MODEL_URL"`
	RemoteModelTimeout time.Duration `env:"REMOTE_MODEL_TIMEOUT" envDefault:"30s"`

	ModelBucket       string `env:"MODEL_BUCKET"`
	ModelPrefix       string `env:"MODEL_PREFIX"`
	StorageDir        string `env:"STORAGE_DIR"`
	S3EndpointURL     string `env:"S3_ENDPOINT_URL"`
	S3AccessKeyID     string `env:"AWS_ACCESS_KEY_ID"`
	S3SecretAccessKey string `env:"AWS_SECRET_ACCESS_KEY"`
	S3Region          string `env:"AWS_REGION" envDefault:"us-east-1"`

	BatchSize       int           `env:"BATCH_SIZE" envDefault:"32"`
	MaxWorkers      int           `env:"MAX_WORKERS" envDefault:"2"`
	CacheSizeBytes  int           `env:"CACHE_SIZE_BYTES" envDefault:"33554432"`
	CacheTTLSeconds int           `env:"CACHE_TTL_SECONDS" envDefault:"3600"`
	RequestTimeout  time.Duration `env:"REQUEST_TIMEOUT" envDefault:"60s"`
}

func createProvider(ctx context.Context, cfg APIConfig) (storage.Provider, error) {
	if cfg.StorageDir != "" {
		return storage.NewLocalProvider(cfg.StorageDir), nil
	}
	return storage.NewS3Provider(ctx, storage.S3ProviderConfig{
		S3EndpointURL:     cfg.S3EndpointURL,
		S3AccessKeyID:     cfg.S3AccessKeyID,
		S3SecretAccessKey: cfg.S3SecretAccessKey,
		S3Region:          cfg.S3Region,
	})
}

func fetchModel(cfg APIConfig) error {
	if cfg.ModelBucket == "" {
		return nil
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Minute)
	defer cancel()

	provider, err := createProvider(ctx, cfg)
	if err != nil {
		return fmt.Errorf("error creating storage provider: %w", err)
	}

	return storage.FetchModelArtifacts(ctx, provider, cfg.ModelBucket, cfg.ModelPrefix, cfg.ModelDir)
}

func loadModel(cfg APIConfig) (core.Model, error) {
	loaders := core.NewModelLoaders(cfg.RemoteModelURL, cfg.RemoteModelTimeout)

	loader, ok := loaders[core.ModelType(cfg.ModelType)]
	if !ok {
		return nil, fmt.Errorf("unsupported model type '%s'", cfg.ModelType)
	}

	return loader(cfg.ModelDir)
}

func createServer(cfg APIConfig, predictor *core.Predictor) *http.Server {
	r := chi.NewRouter()

	r.Use(cors.Handler(cors.Options{
		AllowedOrigins: []string{"*"},
		AllowedMethods: []string{"GET", "POST", "OPTIONS"},
		AllowedHeaders: []string{"*"},
		MaxAge:         300,
	}))
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)
	r.Use(middleware.Timeout(cfg.RequestTimeout))
	r.Use(api.NoCache)

	if cfg.StaticDir != "" {
		log.Printf("serving static files from %s", cfg.StaticDir)
		r.Handle("/static/*", http.StripPrefix("/static/", http.FileServer(http.Dir(cfg.StaticDir))))
	}

	service := api.NewPredictionService(predictor, chart.DefaultOptions())
	service.AddRoutes(r)

	return &http.Server{
		Addr:    fmt.Sprintf(":%d", cfg.Port),
		Handler: r,
	}
}

func main() {
	log.Println("Starting TCR-BERT API Server...")

	cmd.LoadEnvFile()

	var cfg APIConfig
	if err := env.Parse(&cfg); err != nil {
		log.Fatalf("error parsing config: %v", err)
	}

	if err := fetchModel(cfg); err != nil {
		log.Fatalf("could not fetch model artifacts: %v", err)
	}

	dataConfig, err := config.LoadDataConfig(cfg.DataConfig)
	if err != nil {
		log.Fatalf("could not load data config: %v", err)
	}

	if core.ModelType(cfg.ModelType) == core.Onnx {
		destroy, err := initOnnxRuntime(cfg.OnnxRuntimeDylib)
		if err != nil {
			log.Fatalf("%v", err)
		}
		defer destroy()
	}

	tokenizer, err := core.LoadTokenizer(filepath.Join(cfg.ModelDir, "tokenizer.json"))
	if err != nil {
		log.Fatalf("could not load tokenizer: %v", err)
	}
	defer tokenizer.Close()

	model, err := loadModel(cfg)
	if err != nil {
		log.Fatalf("could not load model: %v", err)
	}
	defer model.Release()

	predictor := core.NewPredictor(dataConfig, core.NewSentenceEncoder(tokenizer, dataConfig.Encoder), model, core.PredictorOptions{
		BatchSize:  cfg.BatchSize,
		MaxWorkers: cfg.MaxWorkers,
		Cache:      core.NewPredictionCache(cfg.CacheSizeBytes, time.Duration(cfg.CacheTTLSeconds)*time.Second),
	})

	server := createServer(cfg, predictor)

	ln, err := net.Listen("tcp", server.Addr)
	if err != nil {
		log.Fatalf("could not listen on %d: %v", cfg.Port, err)
	}

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)

	log.Printf("API server listening on port %d", cfg.Port)
	// Deferred releases of the model, tokenizer and runtime run only after
	// every in-flight request has drained.
	if err := cmd.RunServer(server, ln, quit, 30*time.Second); err != nil {
		log.Printf("server stopped with error: %v", err)
	}

	log.Println("Server stopped.")
}
