package main

import (
	"context"
	"flag"
	"fmt"
	"log"

	"casebrief-backend/config"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/joho/godotenv"
)

func main() {
	configPath := flag.String("config", "config.yaml", "path to the YAML config file")
	reset := flag.Bool("reset", false, "drop existing tables first")
	flag.Parse()

	if err := godotenv.Load(); err != nil {
		log.Printf("Warning: No .env file found, using environment variables")
	}

	cfg, err := config.Load(*configPath)
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}
	if cfg.Database.Dimension <= 0 {
		log.Fatalf("Invalid vector dimension: %d", cfg.Database.Dimension)
	}

	ctx := context.Background()

	pool, err := pgxpool.New(ctx, cfg.Database.URL)
	if err != nil {
		log.Fatalf("Failed to connect to database: %v", err)
	}
	defer pool.Close()

	// Enable pgvector extension
	_, err = pool.Exec(ctx, "CREATE EXTENSION IF NOT EXISTS vector")
	if err != nil {
		log.Printf("Warning: Failed to create pgvector extension: %v", err)
	} else {
		log.Println("✓ pgvector extension enabled")
	}

	if *reset {
		for _, table := range []string{"case_chunks", "case_responses"} {
			if _, err := pool.Exec(ctx, "DROP TABLE IF EXISTS "+table+" CASCADE"); err != nil {
				log.Fatalf("Failed to drop table %s: %v", table, err)
			}
			log.Printf("✓ Dropped existing %s table (if any)", table)
		}
	}

	tables := []struct {
		name string
		sql  string
	}{
		{
			name: "case_chunks",
			sql: fmt.Sprintf(`
CREATE TABLE IF NOT EXISTS case_chunks (
    id UUID PRIMARY KEY DEFAULT gen_random_uuid(),
    document TEXT NOT NULL,
    metadata JSONB NOT NULL DEFAULT '{}'::jsonb,
    source_file TEXT NOT NULL DEFAULT '',
    embedding vector(%d) NOT NULL,
    created_at TIMESTAMPTZ DEFAULT NOW()
);`, cfg.Database.Dimension),
		},
		{
			name: "case_responses",
			sql: `
CREATE TABLE IF NOT EXISTS case_responses (
    case_id TEXT PRIMARY KEY,
    response_data TEXT NOT NULL,
    created_at TIMESTAMPTZ DEFAULT NOW()
);`,
		},
	}

	for _, t := range tables {
		if _, err := pool.Exec(ctx, t.sql); err != nil {
			log.Fatalf("Failed to create %s table: %v", t.name, err)
		}
		log.Printf("✓ Created %s table", t.name)
	}

	// Create indexes
	indexes := []struct {
		name string
		sql  string
	}{
		// Queries raise hnsw.ef_search per transaction to cover the retrieval pool
		{
			name: "Vector similarity search (HNSW)",
			sql: `CREATE INDEX IF NOT EXISTS idx_case_chunks_embedding_hnsw ON case_chunks
USING hnsw (embedding vector_cosine_ops)
WITH (m = 16, ef_construction = 64);`,
		},
		{
			name: "Source file filtering",
			sql:  "CREATE INDEX IF NOT EXISTS idx_case_chunks_source_file ON case_chunks(source_file);",
		},
		{
			name: "Case identifier filtering",
			sql:  "CREATE INDEX IF NOT EXISTS idx_case_chunks_identifier ON case_chunks((metadata->>'Identifier'));",
		},
	}

	for _, idx := range indexes {
		if _, err := pool.Exec(ctx, idx.sql); err != nil {
			log.Printf("Warning: Failed to create index %s: %v", idx.name, err)
		} else {
			log.Printf("✓ Created index: %s", idx.name)
		}
	}

	fmt.Println("\n✅ Database schema created successfully!")
	fmt.Println("   Tables: case_chunks, case_responses")
	fmt.Printf("   Embedding dimension: %d\n", cfg.Database.Dimension)
}
