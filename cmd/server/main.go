package main

import (
	"context"
	"flag"
	"log"

	"casebrief-backend/config"
	"casebrief-backend/handlers"
	"casebrief-backend/repository"
	"casebrief-backend/service"
	"casebrief-backend/storage"

	"github.com/gin-gonic/gin"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/joho/godotenv"
)

func main() {
	configPath := flag.String("config", "config.yaml", "path to the YAML config file")
	flag.Parse()

	// Load .env file from project root (relative to cmd/server/)
	// Try current directory first, then project root
	if err := godotenv.Load(); err != nil {
		if err := godotenv.Load("../../.env"); err != nil {
			log.Printf("Warning: No .env file found, using environment variables")
		}
	}

	cfg, err := config.Load(*configPath)
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}
	if err := cfg.Validate(); err != nil {
		log.Fatalf("Invalid config: %v", err)
	}

	ctx := context.Background()

	// Initialize database connections
	db, err := initPostgres(ctx, cfg.Database.URL)
	if err != nil {
		log.Fatal("Failed to initialize Postgres:", err)
	}
	defer db.Close()

	// Initialize the case-record source
	caseSource, err := storage.NewStorage(ctx, cfg.StorageSettings())
	if err != nil {
		log.Fatalf("Failed to initialize storage: %v", err)
	}
	log.Printf("Storage initialized (%s)", cfg.Storage.Type)

	// Initialize repositories
	vectorRepo := repository.NewVectorRepository(db, cfg.Database.Dimension)
	responseRepo := repository.NewCaseResponseRepository(db)

	// Initialize models
	models, err := cfg.NewModels(ctx, true)
	if err != nil {
		log.Fatal("Failed to initialize models:", err)
	}
	defer models.Close()
	log.Printf("Models initialized (embedding: %s, llm: %s)", cfg.Embedding.Provider, cfg.LLM.Provider)

	// Initialize services
	retrievalService := service.NewRetrievalService(
		service.RetrievalWithEmbedder(models.Embedder),
		service.RetrievalWithIndex(vectorRepo),
		service.RetrievalWithCaseSource(caseSource),
		service.RetrievalWithWeights(cfg.Weights()),
		service.RetrievalWithFanOut(cfg.Retrieval.FanOut),
		service.RetrievalWithConcurrency(cfg.Retrieval.Concurrency),
	)

	synthesisService := service.NewSynthesisService(
		service.SynthesisWithGenerator(models.Generator),
		service.SynthesisWithTimeout(cfg.Synthesis.Timeout),
		service.SynthesisWithExcerptLimits(cfg.Synthesis.SummaryChars, cfg.Synthesis.ExcerptChars),
	)

	analysisService := service.NewAnalysisService(
		service.AnalysisWithRetriever(retrievalService),
		service.AnalysisWithSynthesizer(synthesisService),
		service.AnalysisWithResponseStore(responseRepo),
		service.AnalysisWithTopK(cfg.Retrieval.TopK),
	)

	draftService := service.NewDraftService(
		service.DraftWithResponseStore(responseRepo),
		service.DraftWithGenerator(models.Generator),
		service.DraftWithTimeout(cfg.Synthesis.Timeout),
	)

	// Initialize handlers
	caseHandler := handlers.NewCaseHandler(analysisService, draftService)

	// Setup Gin router
	r := gin.Default()
	caseHandler.Register(r)

	if n, err := vectorRepo.Count(ctx); err != nil {
		log.Printf("Warning: Failed to count indexed chunks: %v", err)
	} else {
		log.Printf("Vector index holds %d chunks", n)
	}

	// Start server
	log.Printf("Server starting on port %s", cfg.Server.Port)
	if err := r.Run(":" + cfg.Server.Port); err != nil {
		log.Fatal("Failed to start server:", err)
	}
}

func initPostgres(ctx context.Context, connString string) (*pgxpool.Pool, error) {
	pool, err := pgxpool.New(ctx, connString)
	if err != nil {
		return nil, err
	}

	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, err
	}

	// Enable pgvector extension
	_, err = pool.Exec(ctx, "CREATE EXTENSION IF NOT EXISTS vector")
	if err != nil {
		log.Printf("Warning: Failed to create pgvector extension: %v", err)
		log.Println("This may be normal if extension is already installed or requires superuser privileges")
	} else {
		log.Println("pgvector extension enabled")
	}

	log.Println("Postgres connection established with pgvector support")
	return pool, nil
}
