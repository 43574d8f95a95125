package storage

import (
	"context"
	"errors"
	"fmt"
	"io"
	"path"
	"strings"
)

// ErrNotFound is returned when a case record does not exist in the backend
var ErrNotFound = errors.New("case record not found")

// Storage is a read-only source of raw case records
type Storage interface {
	// List returns the names of all case records, relative to the storage root
	List(ctx context.Context) ([]string, error)

	// Download opens one case record by the name List returned
	Download(ctx context.Context, name string) (io.ReadCloser, error)
}

// StorageType represents the storage backend type
type StorageType string

const (
	StorageTypeLocal StorageType = "local"
	StorageTypeS3    StorageType = "s3"
)

// StorageConfig holds configuration for storage
type StorageConfig struct {
	Type         StorageType
	LocalPath    string // For local storage
	S3Bucket     string // For S3 storage
	S3Prefix     string // Key prefix holding the case records
	S3Region     string
	S3Endpoint   string // Optional, for S3-compatible servers
	AWSAccessKey string
	AWSSecretKey string
}

// NewStorage creates a new storage instance based on configuration
func NewStorage(ctx context.Context, cfg StorageConfig) (Storage, error) {
	switch cfg.Type {
	case StorageTypeLocal, "":
		return NewLocalStorage(cfg.LocalPath)
	case StorageTypeS3:
		if cfg.S3Bucket == "" {
			return nil, errors.New("an S3 bucket is required for S3 storage")
		}
		return NewS3Storage(ctx, cfg)
	default:
		return nil, fmt.Errorf("unknown storage type: %s", cfg.Type)
	}
}

// ReadAll downloads a record fully
func ReadAll(ctx context.Context, s Storage, name string) ([]byte, error) {
	rc, err := s.Download(ctx, name)
	if err != nil {
		return nil, err
	}
	defer rc.Close()

	data, err := io.ReadAll(rc)
	if err != nil {
		return nil, fmt.Errorf("failed to read %s: %w", name, err)
	}
	return data, nil
}

// isCaseRecord reports whether a listed name looks like a case record
func isCaseRecord(name string) bool {
	return strings.EqualFold(path.Ext(name), ".json")
}
