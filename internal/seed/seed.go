// Package seed loads dashboard datasets into a store, either from a JSON
// file or generated for demos.
package seed

import (
	"context"
	"encoding/json"
	"fmt"
	"io"

	"admindash/internal/record"
	"admindash/internal/storage"
)

// Dataset is the file format accepted by Load: one array per collection,
// with documents in any mix of wrapped and native encodings.
type Dataset struct {
	Users   []record.Document `json:"users"`
	Queries []record.Document `json:"queries"`
	Errors  []record.Document `json:"errors"`
}

func Load(r io.Reader) (*Dataset, error) {
	dec := json.NewDecoder(r)
	dec.UseNumber()
	var ds Dataset
	if err := dec.Decode(&ds); err != nil {
		return nil, fmt.Errorf("decode dataset: %w", err)
	}
	return &ds, nil
}

// Counts reports how many documents of each collection were written.
type Counts struct {
	Users   int
	Queries int
	Errors  int
}

// Apply upserts the dataset by _id, so seeding twice leaves one copy of
// every document.
func Apply(ctx context.Context, store storage.Store, ds *Dataset) (Counts, error) {
	batches := []struct {
		coll storage.Collection
		docs []record.Document
	}{
		{storage.Users, ds.Users},
		{storage.Queries, ds.Queries},
		{storage.Errors, ds.Errors},
	}
	for _, b := range batches {
		if len(b.docs) == 0 {
			continue
		}
		if err := store.Insert(ctx, b.coll, b.docs); err != nil {
			return Counts{}, fmt.Errorf("seed %s: %w", b.coll, err)
		}
	}
	return Counts{Users: len(ds.Users), Queries: len(ds.Queries), Errors: len(ds.Errors)}, nil
}
