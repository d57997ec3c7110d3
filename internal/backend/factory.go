package backend

import (
	"context"
	"fmt"
	"log/slog"

	"goalplanner/internal/goals/memory"
	"goalplanner/internal/goals/rest"
)

// DefaultFactory implements the Factory interface.
type DefaultFactory struct {
	logger *slog.Logger
}

func NewFactory(logger *slog.Logger) Factory {
	if logger == nil {
		logger = slog.Default()
	}
	return &DefaultFactory{logger: logger}
}

func (f *DefaultFactory) CreateBackend(ctx context.Context, config Config) (*BackendResult, error) {
	if err := config.Validate(); err != nil {
		return nil, err
	}

	switch config.Type {
	case RESTBackend:
		return f.createRESTBackend(config)
	case MemoryBackend:
		return f.createMemoryBackend(config)
	default:
		return nil, fmt.Errorf("unsupported backend type: %s", config.Type)
	}
}

func (f *DefaultFactory) createRESTBackend(config Config) (*BackendResult, error) {
	client, err := rest.New(config.APIURL, rest.WithTimeout(config.APITimeout))
	if err != nil {
		return nil, fmt.Errorf("failed to initialize goals API client: %w", err)
	}

	f.logger.Info("Initialized REST backend",
		"component", "backend",
		"api_url", config.APIURL,
		"timeout", config.APITimeout.String())

	return &BackendResult{Backend: client}, nil
}

func (f *DefaultFactory) createMemoryBackend(config Config) (*BackendResult, error) {
	dataDir := config.DataDirectory
	if dataDir == "" {
		dataDir = "data"
	}

	store := memory.NewFromFiles(dataDir)

	f.logger.Info("Initialized memory backend", "component", "backend", "data_directory", dataDir)

	return &BackendResult{Backend: store}, nil
}
