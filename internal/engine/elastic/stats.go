package elastic

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/paperdex/paperdex/internal/domain"
	"github.com/paperdex/paperdex/internal/engine"
)

// statsResponse mirrors the subset of the index stats API the verifier reads.
type statsResponse struct {
	Indices map[string]struct {
		Primaries struct {
			Docs struct {
				Count int64 `json:"count"`
			} `json:"docs"`
			Store struct {
				SizeInBytes int64 `json:"size_in_bytes"`
			} `json:"store"`
		} `json:"primaries"`
	} `json:"indices"`
}

// catShardRow mirrors one row of the cat shards API in JSON format.
type catShardRow struct {
	PriRep string `json:"prirep"`
}

// Stats reads document count, store size, and shard counts for one index.
func (s *Store) Stats(ctx context.Context, index string) (domain.IndexStats, error) {
	res, err := s.client.Indices.Stats(
		s.client.Indices.Stats.WithIndex(index),
		s.client.Indices.Stats.WithContext(ctx),
	)
	if err != nil {
		return domain.IndexStats{}, connectivityError(engine.OpStats, err)
	}
	defer res.Body.Close()

	if res.IsError() {
		return domain.IndexStats{}, serviceError(engine.OpStats, res)
	}

	var body statsResponse
	if err := json.NewDecoder(res.Body).Decode(&body); err != nil {
		return domain.IndexStats{}, &engine.Error{Op: engine.OpStats, Err: fmt.Errorf("decode stats: %w", err)}
	}

	idx, ok := body.Indices[index]
	if !ok {
		return domain.IndexStats{}, notFoundError(engine.OpStats, index)
	}

	stats := domain.IndexStats{
		Documents:      idx.Primaries.Docs.Count,
		StoreSizeBytes: idx.Primaries.Store.SizeInBytes,
	}

	primaries, replicas, err := s.shardCounts(ctx, index)
	if err != nil {
		return domain.IndexStats{}, err
	}
	stats.PrimaryShards = primaries
	stats.ReplicaShards = replicas

	return stats, nil
}

func (s *Store) shardCounts(ctx context.Context, index string) (int, int, error) {
	res, err := s.client.Cat.Shards(
		s.client.Cat.Shards.WithIndex(index),
		s.client.Cat.Shards.WithFormat("json"),
		s.client.Cat.Shards.WithContext(ctx),
	)
	if err != nil {
		return 0, 0, connectivityError(engine.OpCatShards, err)
	}
	defer res.Body.Close()

	if res.IsError() {
		return 0, 0, serviceError(engine.OpCatShards, res)
	}

	var rows []catShardRow
	if err := json.NewDecoder(res.Body).Decode(&rows); err != nil {
		return 0, 0, &engine.Error{Op: engine.OpCatShards, Err: fmt.Errorf("decode shards: %w", err)}
	}

	var primaries, replicas int
	for _, row := range rows {
		switch row.PriRep {
		case "p":
			primaries++
		case "r":
			replicas++
		}
	}
	return primaries, replicas, nil
}
