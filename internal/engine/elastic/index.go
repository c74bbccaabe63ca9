package elastic

import (
	"bytes"
	"context"
	"net/http"

	"github.com/paperdex/paperdex/internal/engine"
)

// IndexExists reports whether the index is present.
func (s *Store) IndexExists(ctx context.Context, name string) (bool, error) {
	res, err := s.client.Indices.Exists(
		[]string{name},
		s.client.Indices.Exists.WithContext(ctx),
	)
	if err != nil {
		return false, connectivityError(engine.OpIndexExists, err)
	}
	defer res.Body.Close()

	switch res.StatusCode {
	case http.StatusOK:
		return true, nil
	case http.StatusNotFound:
		return false, nil
	default:
		return false, serviceError(engine.OpIndexExists, res)
	}
}

// CreateIndex creates an index from the raw settings+mappings JSON body.
func (s *Store) CreateIndex(ctx context.Context, name string, mapping []byte) error {
	res, err := s.client.Indices.Create(
		name,
		s.client.Indices.Create.WithBody(bytes.NewReader(mapping)),
		s.client.Indices.Create.WithContext(ctx),
	)
	if err != nil {
		return connectivityError(engine.OpCreateIndex, err)
	}
	defer res.Body.Close()

	if res.IsError() {
		return serviceError(engine.OpCreateIndex, res)
	}
	return nil
}

// DeleteIndex removes an index.
func (s *Store) DeleteIndex(ctx context.Context, name string) error {
	res, err := s.client.Indices.Delete(
		[]string{name},
		s.client.Indices.Delete.WithContext(ctx),
	)
	if err != nil {
		return connectivityError(engine.OpDeleteIndex, err)
	}
	defer res.Body.Close()

	if res.StatusCode == http.StatusNotFound {
		return notFoundError(engine.OpDeleteIndex, name)
	}
	if res.IsError() {
		return serviceError(engine.OpDeleteIndex, res)
	}
	return nil
}

// Refresh makes recently written documents visible to reads.
func (s *Store) Refresh(ctx context.Context, name string) error {
	res, err := s.client.Indices.Refresh(
		s.client.Indices.Refresh.WithIndex(name),
		s.client.Indices.Refresh.WithContext(ctx),
	)
	if err != nil {
		return connectivityError(engine.OpRefresh, err)
	}
	defer res.Body.Close()

	if res.IsError() {
		return serviceError(engine.OpRefresh, res)
	}
	return nil
}
