package elastic

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/paperdex/paperdex/internal/domain"
	"github.com/paperdex/paperdex/internal/engine"
)

// repositoryBody is the wire form of a snapshot repository registration.
type repositoryBody struct {
	Type     string `json:"type"`
	Settings struct {
		Location string `json:"location"`
		Compress bool   `json:"compress"`
	} `json:"settings"`
}

// snapshotInfo mirrors one snapshot entry of the snapshot get API.
type snapshotInfo struct {
	Snapshot          string   `json:"snapshot"`
	State             string   `json:"state"`
	Indices           []string `json:"indices"`
	StartTimeInMillis int64    `json:"start_time_in_millis"`
	EndTimeInMillis   int64    `json:"end_time_in_millis"`
}

func (i snapshotInfo) toDomain() domain.Snapshot {
	s := domain.Snapshot{
		Name:    i.Snapshot,
		State:   domain.SnapshotState(i.State),
		Indices: i.Indices,
	}
	if i.StartTimeInMillis > 0 {
		s.StartTime = time.UnixMilli(i.StartTimeInMillis).UTC()
	}
	if i.EndTimeInMillis > 0 {
		s.EndTime = time.UnixMilli(i.EndTimeInMillis).UTC()
	}
	return s
}

// GetRepository reads a registered repository's settings. Returns
// domain.ErrNotFound for an unknown repository.
func (s *Store) GetRepository(ctx context.Context, name string) (domain.RepositoryConfig, error) {
	res, err := s.client.Snapshot.GetRepository(
		s.client.Snapshot.GetRepository.WithRepository(name),
		s.client.Snapshot.GetRepository.WithContext(ctx),
	)
	if err != nil {
		return domain.RepositoryConfig{}, connectivityError(engine.OpGetRepository, err)
	}
	defer res.Body.Close()

	if res.StatusCode == http.StatusNotFound {
		return domain.RepositoryConfig{}, notFoundError(engine.OpGetRepository, name)
	}
	if res.IsError() {
		return domain.RepositoryConfig{}, serviceError(engine.OpGetRepository, res)
	}

	// Settings values come back as strings from the engine.
	var body map[string]struct {
		Type     string            `json:"type"`
		Settings map[string]string `json:"settings"`
	}
	if err := json.NewDecoder(res.Body).Decode(&body); err != nil {
		return domain.RepositoryConfig{}, &engine.Error{Op: engine.OpGetRepository, Err: fmt.Errorf("decode repository: %w", err)}
	}

	repo, ok := body[name]
	if !ok {
		return domain.RepositoryConfig{}, notFoundError(engine.OpGetRepository, name)
	}

	return domain.RepositoryConfig{
		Type:     repo.Type,
		Location: repo.Settings["location"],
		Compress: repo.Settings["compress"] == "true",
	}, nil
}

// CreateRepository registers a snapshot repository.
func (s *Store) CreateRepository(ctx context.Context, name string, cfg domain.RepositoryConfig) error {
	var body repositoryBody
	body.Type = cfg.Type
	body.Settings.Location = cfg.Location
	body.Settings.Compress = cfg.Compress

	payload, err := json.Marshal(body)
	if err != nil {
		return &engine.Error{Op: engine.OpCreateRepository, Err: fmt.Errorf("encode repository: %w", err)}
	}

	res, err := s.client.Snapshot.CreateRepository(
		name,
		bytes.NewReader(payload),
		s.client.Snapshot.CreateRepository.WithContext(ctx),
	)
	if err != nil {
		return connectivityError(engine.OpCreateRepository, err)
	}
	defer res.Body.Close()

	if res.IsError() {
		return serviceError(engine.OpCreateRepository, res)
	}
	return nil
}

// CreateSnapshot starts a snapshot of the given indices (empty = all).
// With wait the call blocks until the snapshot reaches a terminal state
// and returns it; without wait it returns immediately as IN_PROGRESS.
func (s *Store) CreateSnapshot(
	ctx context.Context, repo, name string, indices []string, wait bool,
) (domain.Snapshot, error) {
	body := map[string]string{}
	if len(indices) > 0 {
		body["indices"] = strings.Join(indices, ",")
	}
	payload, err := json.Marshal(body)
	if err != nil {
		return domain.Snapshot{}, &engine.Error{Op: engine.OpCreateSnapshot, Err: fmt.Errorf("encode snapshot body: %w", err)}
	}

	res, err := s.client.Snapshot.Create(
		repo,
		name,
		s.client.Snapshot.Create.WithBody(bytes.NewReader(payload)),
		s.client.Snapshot.Create.WithWaitForCompletion(wait),
		s.client.Snapshot.Create.WithContext(ctx),
	)
	if err != nil {
		return domain.Snapshot{}, connectivityError(engine.OpCreateSnapshot, err)
	}
	defer res.Body.Close()

	if res.IsError() {
		return domain.Snapshot{}, serviceError(engine.OpCreateSnapshot, res)
	}

	if !wait {
		return domain.Snapshot{
			Name:    name,
			State:   domain.SnapshotInProgress,
			Indices: indices,
		}, nil
	}

	var resp struct {
		Snapshot snapshotInfo `json:"snapshot"`
	}
	if err := json.NewDecoder(res.Body).Decode(&resp); err != nil {
		return domain.Snapshot{}, &engine.Error{Op: engine.OpCreateSnapshot, Err: fmt.Errorf("decode snapshot: %w", err)}
	}
	return resp.Snapshot.toDomain(), nil
}

// ListSnapshots returns all snapshots in a repository. The backend does
// not guarantee ordering.
func (s *Store) ListSnapshots(ctx context.Context, repo string) ([]domain.Snapshot, error) {
	res, err := s.client.Snapshot.Get(
		repo,
		[]string{"_all"},
		s.client.Snapshot.Get.WithContext(ctx),
	)
	if err != nil {
		return nil, connectivityError(engine.OpListSnapshots, err)
	}
	defer res.Body.Close()

	if res.StatusCode == http.StatusNotFound {
		return nil, notFoundError(engine.OpListSnapshots, repo)
	}
	if res.IsError() {
		return nil, serviceError(engine.OpListSnapshots, res)
	}

	var resp struct {
		Snapshots []snapshotInfo `json:"snapshots"`
	}
	if err := json.NewDecoder(res.Body).Decode(&resp); err != nil {
		return nil, &engine.Error{Op: engine.OpListSnapshots, Err: fmt.Errorf("decode snapshots: %w", err)}
	}

	out := make([]domain.Snapshot, len(resp.Snapshots))
	for i, info := range resp.Snapshots {
		out[i] = info.toDomain()
	}
	return out, nil
}

// SnapshotStatus reads the current state of one snapshot.
func (s *Store) SnapshotStatus(ctx context.Context, repo, name string) (domain.Snapshot, error) {
	res, err := s.client.Snapshot.Get(
		repo,
		[]string{name},
		s.client.Snapshot.Get.WithContext(ctx),
	)
	if err != nil {
		return domain.Snapshot{}, connectivityError(engine.OpSnapshotStatus, err)
	}
	defer res.Body.Close()

	if res.StatusCode == http.StatusNotFound {
		return domain.Snapshot{}, notFoundError(engine.OpSnapshotStatus, repo+"/"+name)
	}
	if res.IsError() {
		return domain.Snapshot{}, serviceError(engine.OpSnapshotStatus, res)
	}

	var resp struct {
		Snapshots []snapshotInfo `json:"snapshots"`
	}
	if err := json.NewDecoder(res.Body).Decode(&resp); err != nil {
		return domain.Snapshot{}, &engine.Error{Op: engine.OpSnapshotStatus, Err: fmt.Errorf("decode snapshot: %w", err)}
	}
	if len(resp.Snapshots) == 0 {
		return domain.Snapshot{}, notFoundError(engine.OpSnapshotStatus, repo+"/"+name)
	}
	return resp.Snapshots[0].toDomain(), nil
}

// DeleteSnapshot removes a snapshot. The engine rejects deleting an
// in-progress snapshot with a conflict, surfaced as the typed error.
func (s *Store) DeleteSnapshot(ctx context.Context, repo, name string) error {
	res, err := s.client.Snapshot.Delete(
		repo,
		[]string{name},
		s.client.Snapshot.Delete.WithContext(ctx),
	)
	if err != nil {
		return connectivityError(engine.OpDeleteSnapshot, err)
	}
	defer res.Body.Close()

	if res.StatusCode == http.StatusNotFound {
		return notFoundError(engine.OpDeleteSnapshot, repo+"/"+name)
	}
	if res.StatusCode == http.StatusConflict {
		return &engine.Error{Op: engine.OpDeleteSnapshot, Err: domain.NewSnapshotInProgress(repo, name)}
	}
	if res.IsError() {
		return serviceError(engine.OpDeleteSnapshot, res)
	}
	return nil
}

// RestoreSnapshot restores indices from a snapshot, optionally renaming
// the restored indices so a live index is not clobbered.
func (s *Store) RestoreSnapshot(ctx context.Context, repo, name string, opts domain.RestoreOptions) error {
	body := map[string]string{}
	if len(opts.Indices) > 0 {
		body["indices"] = strings.Join(opts.Indices, ",")
	}
	if opts.RenamePattern != "" && opts.RenameReplacement != "" {
		body["rename_pattern"] = opts.RenamePattern
		body["rename_replacement"] = opts.RenameReplacement
	}
	payload, err := json.Marshal(body)
	if err != nil {
		return &engine.Error{Op: engine.OpRestoreSnapshot, Err: fmt.Errorf("encode restore body: %w", err)}
	}

	res, err := s.client.Snapshot.Restore(
		repo,
		name,
		s.client.Snapshot.Restore.WithBody(bytes.NewReader(payload)),
		s.client.Snapshot.Restore.WithWaitForCompletion(opts.Wait),
		s.client.Snapshot.Restore.WithContext(ctx),
	)
	if err != nil {
		return connectivityError(engine.OpRestoreSnapshot, err)
	}
	defer res.Body.Close()

	if res.StatusCode == http.StatusNotFound {
		return notFoundError(engine.OpRestoreSnapshot, repo+"/"+name)
	}
	if res.IsError() {
		return serviceError(engine.OpRestoreSnapshot, res)
	}
	return nil
}
