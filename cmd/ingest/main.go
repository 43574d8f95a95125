package main

import (
	"context"
	"flag"
	"log"
	"os"
	"os/signal"
	"time"

	"casebrief-backend/config"
	"casebrief-backend/repository"
	"casebrief-backend/service"
	"casebrief-backend/storage"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/joho/godotenv"
)

func main() {
	configPath := flag.String("config", "config.yaml", "path to the YAML config file")
	folder := flag.String("folder", "", "local folder of case records (overrides storage settings)")
	clearIndex := flag.Bool("clear", false, "truncate the vector index before ingesting")
	replace := flag.Bool("replace", false, "replace the chunks of each file instead of appending")
	flag.Parse()

	if err := godotenv.Load(); err != nil {
		if err := godotenv.Load("../../.env"); err != nil {
			log.Printf("Warning: No .env file found, using environment variables")
		}
	}

	cfg, err := config.Load(*configPath)
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}
	if *folder != "" {
		cfg.Storage.Type = string(storage.StorageTypeLocal)
		cfg.Storage.LocalPath = *folder
	}
	if err := cfg.Validate(); err != nil {
		log.Fatalf("Invalid config: %v", err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	pool, err := pgxpool.New(ctx, cfg.Database.URL)
	if err != nil {
		log.Fatalf("Failed to connect to database: %v", err)
	}
	defer pool.Close()

	// Verify table exists
	var tableExists bool
	err = pool.QueryRow(ctx, "SELECT EXISTS (SELECT FROM information_schema.tables WHERE table_name = 'case_chunks')").Scan(&tableExists)
	if err != nil {
		log.Fatalf("Failed to check table existence: %v", err)
	}
	if !tableExists {
		log.Fatal("case_chunks table does not exist. Please run: go run ./cmd/create-schema")
	}

	source, err := storage.NewStorage(ctx, cfg.StorageSettings())
	if err != nil {
		log.Fatalf("Failed to initialize storage: %v", err)
	}

	chunk, err := cfg.NewChunker()
	if err != nil {
		log.Fatalf("Failed to initialize chunker: %v", err)
	}

	models, err := cfg.NewModels(ctx, false)
	if err != nil {
		log.Fatalf("Failed to initialize embedder: %v", err)
	}
	defer models.Close()

	vectorRepo := repository.NewVectorRepository(pool, cfg.Database.Dimension)
	if *clearIndex {
		if err := vectorRepo.Clear(ctx); err != nil {
			log.Fatalf("Failed to clear vector index: %v", err)
		}
		log.Println("✓ Cleared existing chunks")
	}

	ingestService := service.NewIngestService(
		service.IngestWithSource(source),
		service.IngestWithChunker(chunk),
		service.IngestWithEmbedder(models.Embedder),
		service.IngestWithIndex(vectorRepo),
		service.IngestWithRateLimit(cfg.Ingest.RequestsPerSecond),
		service.IngestWithReplaceExisting(*replace || cfg.Ingest.ReplaceExisting),
	)

	start := time.Now()
	report, err := ingestService.Ingest(ctx)
	if err != nil {
		log.Fatalf("Ingestion failed: %v", err)
	}

	for _, f := range report.Failures {
		log.Printf("  ✗ %v", f)
	}
	log.Printf("✅ Ingestion finished in %s", time.Since(start).Round(time.Millisecond))
	log.Printf("   Files processed:   %d", report.FilesProcessed)
	log.Printf("   Files failed:      %d", report.FilesFailed)
	log.Printf("   Decisions skipped: %d", report.DecisionsSkipped)
	log.Printf("   Chunks written:    %d", report.ChunksWritten)

	if n, err := vectorRepo.Count(ctx); err == nil {
		log.Printf("   Index size:        %d", n)
	}
}
