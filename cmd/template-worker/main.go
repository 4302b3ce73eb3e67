package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/aescanero/dago-adapters/pkg/llm"
	"github.com/aescanero/dago-libs/pkg/ports"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/aescanero/dago-node-template/internal/config"
	"github.com/aescanero/dago-node-template/internal/eval/cel"
	"github.com/aescanero/dago-node-template/internal/eval/template"
	"github.com/aescanero/dago-node-template/internal/helpers"
	"github.com/aescanero/dago-node-template/internal/loader"
	"github.com/aescanero/dago-node-template/internal/selector"
	"github.com/aescanero/dago-node-template/internal/worker"
)

var (
	// Version is set at build time
	Version = "dev"
	// BuildTime is set at build time
	BuildTime = "unknown"
)

func main() {
	// Load configuration
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load config: %v\n", err)
		os.Exit(1)
	}

	// Initialize logger
	logger, err := initLogger(cfg.LogLevel)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to initialize logger: %v\n", err)
		os.Exit(1)
	}
	defer func() { _ = logger.Sync() }()

	logger.Info("starting template worker",
		zap.String("version", Version),
		zap.String("build_time", BuildTime),
		zap.String("worker_id", cfg.WorkerID),
	)

	// Log configuration (without sensitive data)
	logger.Info("configuration loaded", zap.String("config", cfg.String()))

	// Initialize Redis client
	redisClient := redis.NewClient(&redis.Options{
		Addr:     cfg.RedisAddr,
		Password: cfg.RedisPassword,
		DB:       cfg.RedisDB,
	})

	// Test Redis connection
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := redisClient.Ping(ctx).Err(); err != nil {
		logger.Fatal("failed to connect to redis", zap.Error(err))
	}
	logger.Info("connected to redis", zap.String("addr", cfg.RedisAddr))

	// Initialize LLM client (optional, only needed for classification and completions)
	var llmClient ports.LLMClient
	if cfg.LLMAPIKey != "" {
		llmClient, err = initLLMClient(cfg, logger)
		if err != nil {
			logger.Warn("failed to initialize llm client (classification and completions will not be available)",
				zap.Error(err),
			)
			llmClient = nil
		} else {
			logger.Info("llm client initialized",
				zap.String("provider", cfg.LLMProvider),
				zap.String("model", cfg.LLMModel),
			)
		}
	} else {
		logger.Warn("llm api key not provided (classification and completions will not be available)")
	}
	complete := worker.NewLLMCompleter(llmClient, cfg.LLMModel)

	// Template sources
	var manifest *loader.Manifest
	if cfg.TemplateManifest != "" {
		manifest, err = loader.LoadManifest(cfg.TemplateManifest)
		if err != nil {
			logger.Fatal("failed to load template manifest", zap.Error(err))
		}
		logger.Info("template manifest loaded",
			zap.String("path", cfg.TemplateManifest),
			zap.Strings("templates", manifest.Names()),
		)
	}

	// Initialize template engine
	engine := initEngine(cfg, manifest, redisClient, logger)

	evaluator := cel.NewEvaluator(logger)
	if cfg.CELEnabled {
		if err := engine.RegisterHelper("cel", evaluator.Helper()); err != nil {
			logger.Fatal("failed to register cel helper", zap.Error(err))
		}
	}
	logger.Info("template engine initialized")

	// Initialize worker
	sel := selector.NewSelector(evaluator, engine, complete, logger)
	stateStore := worker.NewRedisStateStore(redisClient)
	processor := worker.NewProcessor(engine, sel, manifest, stateStore, complete, logger)
	w := worker.NewWorker(cfg, redisClient, processor, logger)

	// Start worker
	if err := w.Start(); err != nil {
		logger.Fatal("failed to start worker", zap.Error(err))
	}

	// Start health server
	healthServer := worker.NewHealthServer(cfg.HealthPort, redisClient, logger)
	if cfg.TemplateDir != "" {
		healthServer.AddCheck("template_dir", func(context.Context) error {
			_, err := os.Stat(cfg.TemplateDir)
			return err
		})
	}
	if err := healthServer.Start(); err != nil {
		logger.Fatal("failed to start health server", zap.Error(err))
	}

	// Wait for shutdown signal
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)

	logger.Info("template worker running, press Ctrl+C to stop")
	<-sigChan

	logger.Info("shutdown signal received, stopping worker")

	// Stop health server
	if err := healthServer.Stop(); err != nil {
		logger.Error("failed to stop health server", zap.Error(err))
	}

	// Stop worker
	if err := w.Stop(10 * time.Second); err != nil {
		logger.Warn("shutdown timeout exceeded, forcing exit", zap.Error(err))
	}

	// Close Redis connection
	if err := redisClient.Close(); err != nil {
		logger.Error("failed to close redis connection", zap.Error(err))
	}

	logger.Info("worker stopped")
}

// initEngine builds the template engine from configuration. Templates are
// looked up in the manifest, then the template directory, then Redis.
func initEngine(cfg *config.Config, manifest *loader.Manifest, redisClient *redis.Client, logger *zap.Logger) *template.Engine {
	chain := loader.Chain{}
	if manifest != nil {
		chain = append(chain, manifest)
	}
	if cfg.TemplateDir != "" {
		chain = append(chain, loader.NewFileLoader(cfg.TemplateDir, cfg.TemplateSuffix))
	}
	chain = append(chain, loader.NewRedisLoader(redisClient, cfg.TemplateRedisPrefix))

	escaper := template.NoEscape
	if cfg.HTMLEscape() {
		escaper = template.HTMLEscaper
	}

	engine := template.NewEngine(
		template.WithDelimiters(cfg.TemplateOpenDelim, cfg.TemplateCloseDelim),
		template.WithStrictMode(cfg.TemplateStrict),
		template.WithStringParams(cfg.TemplateStringParams),
		template.WithMaxDepth(cfg.TemplateMaxDepth),
		template.WithEscaper(escaper),
		template.WithLoader(chain),
		template.WithLogger(logger),
	)

	if err := helpers.Register(engine); err != nil {
		logger.Fatal("failed to register helpers", zap.Error(err))
	}

	if manifest != nil {
		if err := engine.RegisterPartials(manifest.Partials()); err != nil {
			logger.Fatal("failed to register manifest partials", zap.Error(err))
		}
	}

	return engine
}

// initLogger initializes the logger
func initLogger(level string) (*zap.Logger, error) {
	var zapLevel zapcore.Level
	switch level {
	case "debug":
		zapLevel = zapcore.DebugLevel
	case "info":
		zapLevel = zapcore.InfoLevel
	case "warn":
		zapLevel = zapcore.WarnLevel
	case "error":
		zapLevel = zapcore.ErrorLevel
	default:
		zapLevel = zapcore.InfoLevel
	}

	config := zap.Config{
		Level:            zap.NewAtomicLevelAt(zapLevel),
		Development:      false,
		Encoding:         "json",
		EncoderConfig:    zap.NewProductionEncoderConfig(),
		OutputPaths:      []string{"stdout"},
		ErrorOutputPaths: []string{"stderr"},
	}

	return config.Build()
}

// initLLMClient initializes the LLM client using dago-adapters
func initLLMClient(cfg *config.Config, logger *zap.Logger) (ports.LLMClient, error) {
	return llm.NewClient(&llm.Config{
		Provider: cfg.LLMProvider,
		APIKey:   cfg.LLMAPIKey,
		Logger:   logger.Named("llm"),
	})
}
