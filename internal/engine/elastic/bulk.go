package elastic

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"

	"github.com/paperdex/paperdex/internal/domain"
	"github.com/paperdex/paperdex/internal/domain/batch"
	"github.com/paperdex/paperdex/internal/engine"
)

// indexDoc is the write schema of one paper document.
type indexDoc struct {
	PaperID        string    `json:"paper_id"`
	Title          string    `json:"title"`
	Abstract       string    `json:"abstract"`
	Categories     []string  `json:"categories"`
	Authors        string    `json:"authors"`
	UpdateDate     string    `json:"update_date"`
	AbstractVector []float32 `json:"abstract_vector"`
}

func toIndexDoc(p domain.Paper) indexDoc {
	categories := p.Categories
	if categories == nil {
		categories = []string{}
	}
	return indexDoc{
		PaperID:        p.ID,
		Title:          p.Title,
		Abstract:       p.Abstract,
		Categories:     categories,
		Authors:        p.Authors,
		UpdateDate:     p.UpdateDate,
		AbstractVector: p.Vector,
	}
}

// bulkResponse mirrors the engine's bulk API response.
type bulkResponse struct {
	Errors bool `json:"errors"`
	Items  []map[string]struct {
		ID     string `json:"_id"`
		Status int    `json:"status"`
		Error  *struct {
			Type   string `json:"type"`
			Reason string `json:"reason"`
		} `json:"error"`
	} `json:"items"`
}

// BulkUpsert writes one batch of documents keyed by paper id. Index-action
// semantics: an existing id is overwritten, never duplicated. The report
// carries per-item outcomes; the returned error is non-nil only when the
// whole request failed.
func (s *Store) BulkUpsert(ctx context.Context, index string, docs []domain.Paper) (batch.Report, error) {
	var report batch.Report
	if len(docs) == 0 {
		return report, nil
	}

	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	for _, p := range docs {
		meta := map[string]map[string]string{"index": {"_id": p.ID}}
		if err := enc.Encode(meta); err != nil {
			return report, &engine.Error{Op: engine.OpBulk, Err: fmt.Errorf("encode action for %s: %w", p.ID, err)}
		}
		if err := enc.Encode(toIndexDoc(p)); err != nil {
			return report, &engine.Error{Op: engine.OpBulk, Err: fmt.Errorf("encode document %s: %w", p.ID, err)}
		}
	}

	res, err := s.client.Bulk(
		bytes.NewReader(buf.Bytes()),
		s.client.Bulk.WithIndex(index),
		s.client.Bulk.WithContext(ctx),
	)
	if err != nil {
		return report, connectivityError(engine.OpBulk, err)
	}
	defer res.Body.Close()

	if res.IsError() {
		return report, serviceError(engine.OpBulk, res)
	}

	var body bulkResponse
	if err := json.NewDecoder(res.Body).Decode(&body); err != nil {
		return report, &engine.Error{Op: engine.OpBulk, Err: fmt.Errorf("decode bulk response: %w", err)}
	}
	if len(body.Items) != len(docs) {
		return report, &engine.Error{Op: engine.OpBulk, Err: fmt.Errorf(
			"%w: bulk response carries %d items for %d documents",
			domain.ErrService, len(body.Items), len(docs),
		)}
	}

	for i, item := range body.Items {
		// Each item is keyed by the action name ("index").
		for _, detail := range item {
			id := detail.ID
			if id == "" {
				id = docs[i].ID
			}
			if detail.Error != nil {
				report.Add(batch.NewError(id, fmt.Errorf(
					"%w: %s: %s", domain.ErrService, detail.Error.Type, detail.Error.Reason,
				)))
			} else {
				report.Add(batch.NewOK(id))
			}
		}
	}

	return report, nil
}
