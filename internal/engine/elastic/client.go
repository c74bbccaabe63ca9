// Package elastic implements the engine facade over Elasticsearch 8.x.
package elastic

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	elasticsearch "github.com/elastic/go-elasticsearch/v8"
	"github.com/elastic/go-elasticsearch/v8/esapi"

	"github.com/paperdex/paperdex/internal/domain"
	"github.com/paperdex/paperdex/internal/engine"
)

// Compile-time check: Store implements engine.Engine.
var _ engine.Engine = (*Store)(nil)

// Config holds connection parameters for an Elasticsearch cluster.
type Config struct {
	Addresses []string
	Username  string
	Password  string
}

// Store implements engine.Engine via the official Elasticsearch client.
type Store struct {
	client *elasticsearch.Client
}

// NewStore creates an Elasticsearch store.
func NewStore(cfg Config) (*Store, error) {
	if len(cfg.Addresses) == 0 {
		return nil, fmt.Errorf("addresses is required")
	}

	client, err := elasticsearch.NewClient(elasticsearch.Config{
		Addresses: cfg.Addresses,
		Username:  cfg.Username,
		Password:  cfg.Password,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create client: %w", err)
	}

	return &Store{client: client}, nil
}

// Ping checks cluster connectivity.
func (s *Store) Ping(ctx context.Context) error {
	res, err := s.client.Ping(s.client.Ping.WithContext(ctx))
	if err != nil {
		return connectivityError(engine.OpPing, err)
	}
	defer res.Body.Close()

	if res.IsError() {
		return serviceError(engine.OpPing, res)
	}
	return nil
}

// Close releases the underlying transport. The HTTP client needs no
// explicit shutdown.
func (s *Store) Close() {}

// WaitForReady polls Ping until the cluster responds or timeout expires.
func (s *Store) WaitForReady(ctx context.Context, timeout time.Duration) error {
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	ticker := time.NewTicker(100 * time.Millisecond)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return fmt.Errorf("timeout waiting for engine: %w", ctx.Err())
		case <-ticker.C:
			if err := s.Ping(ctx); err == nil {
				return nil
			}
		}
	}
}

// connectivityError classifies a transport-level failure.
func connectivityError(op string, err error) error {
	return &engine.Error{Op: op, Err: fmt.Errorf("%w: %v", domain.ErrConnectivity, err)}
}

// serviceError classifies a non-2xx response, decoding the error body when present.
func serviceError(op string, res *esapi.Response) error {
	var body struct {
		Error struct {
			Type   string `json:"type"`
			Reason string `json:"reason"`
		} `json:"error"`
	}
	if err := json.NewDecoder(res.Body).Decode(&body); err == nil && body.Error.Type != "" {
		return &engine.Error{Op: op, Err: fmt.Errorf("%w: %s: %s", domain.ErrService, body.Error.Type, body.Error.Reason)}
	}
	return &engine.Error{Op: op, Err: fmt.Errorf("%w: %s", domain.ErrService, res.Status())}
}

// notFoundError maps a 404 response to domain.ErrNotFound.
func notFoundError(op, what string) error {
	return &engine.Error{Op: op, Err: fmt.Errorf("%w: %s", domain.ErrNotFound, what)}
}
