package corpus

import (
	"bufio"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
)

// Every 4th sample record carries a non-cs category so the filter stage
// has something to reject.
const sampleNonCSEvery = 4

var sampleCSCategories = []string{
	"cs.AI", "cs.CL", "cs.CV", "cs.LG", "cs.NE",
	"cs.DB", "cs.DC", "cs.SE", "cs.PL", "cs.CR",
}

var sampleNonCSCategories = []string{
	"math.CO", "physics.optics", "q-bio.NC", "stat.ME", "econ.EM",
}

var sampleTopics = [][3]string{
	{"deep learning", "neural networks", "training"},
	{"natural language processing", "transformers", "attention"},
	{"computer vision", "image classification", "convolutional"},
	{"distributed systems", "consensus", "replication"},
	{"database systems", "query optimization", "indexing"},
	{"machine learning", "gradient descent", "optimization"},
	{"reinforcement learning", "policy", "reward"},
	{"graph neural networks", "node embeddings", "aggregation"},
	{"knowledge graphs", "reasoning", "embeddings"},
	{"federated learning", "privacy", "aggregation"},
}

// WriteSample generates a deterministic synthetic raw snapshot of n records
// for offline runs and demos. Categories and topics round-robin; a fixed
// fraction of records is non-cs so the filter stage is exercised.
func (s *Store) WriteSample(n int) error {
	if err := os.MkdirAll(s.dataDir, 0o750); err != nil {
		return fmt.Errorf("mkdir %s: %w", s.dataDir, err)
	}

	path := s.RawPath()
	tmpPath := path + ".tmp"
	f, err := os.Create(filepath.Clean(tmpPath))
	if err != nil {
		return fmt.Errorf("create %s: %w", tmpPath, err)
	}

	w := bufio.NewWriter(f)
	enc := json.NewEncoder(w)

	for i := 0; i < n; i++ {
		if err := enc.Encode(sampleRecord(i)); err != nil {
			_ = f.Close()
			_ = os.Remove(tmpPath)
			return fmt.Errorf("encode sample record %d: %w", i, err)
		}
	}

	if err := w.Flush(); err != nil {
		_ = f.Close()
		return fmt.Errorf("flush %s: %w", tmpPath, err)
	}
	if err := f.Close(); err != nil {
		return fmt.Errorf("close %s: %w", tmpPath, err)
	}
	if err := os.Rename(tmpPath, path); err != nil {
		return fmt.Errorf("rename %s: %w", tmpPath, err)
	}
	return nil
}

func sampleRecord(i int) RawRecord {
	topic := sampleTopics[i%len(sampleTopics)]

	category := sampleCSCategories[i%len(sampleCSCategories)]
	if i%sampleNonCSEvery == sampleNonCSEvery-1 {
		category = sampleNonCSCategories[i%len(sampleNonCSCategories)]
	}

	return RawRecord{
		ID:    fmt.Sprintf("%04d.%05d", 2000+i/100, i%10000),
		Title: fmt.Sprintf("Advances in %s: A Study of %s and %s", topic[0], topic[1], topic[2]),
		Abstract: fmt.Sprintf(
			"This paper presents a comprehensive study of %s with focus on %s. "+
				"We propose a novel approach using %s that achieves state-of-the-art results. "+
				"Our method is evaluated on multiple benchmark datasets and demonstrates significant "+
				"improvements over existing baselines.",
			topic[0], topic[1], topic[2],
		),
		Categories: CategoryList{category},
		Authors: fmt.Sprintf("Author %d, Author %d, Author %d",
			i%5+1, (i+1)%5+1, (i+2)%5+1),
		UpdateDate: fmt.Sprintf("2023-%02d-%02d", i%12+1, i%28+1),
	}
}
