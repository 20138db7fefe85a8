// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package refsource looks up bibliographic records for the candidate pool.
// Every record is keyed by its PubMed identifier, the identifier the
// citation placeholders carry.
package refsource

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"

	"golang.org/x/sync/errgroup"

	"github.com/pdiddy/manuscript-engine/pkg/types"
)

// ErrNotFound is returned by Fetch when the source holds no record for the
// identifier.
var ErrNotFound = errors.New("reference not found")

// Source is one bibliographic backend.
type Source interface {
	Name() string
	Search(ctx context.Context, query string) ([]types.ReferenceCandidate, error)
	Fetch(ctx context.Context, id string) (types.ReferenceCandidate, error)
}

// SearchOutput holds merged search results and per-source failures.
type SearchOutput struct {
	Candidates    []types.ReferenceCandidate
	DupsRemoved   int
	BackendErrors []string
}

// SearchAll runs the query against every source concurrently and merges
// the results in source order. A record already returned by an earlier
// source wins. A failing source is reported, not fatal, unless every
// source fails.
func SearchAll(ctx context.Context, query string, sources []Source, w io.Writer) (SearchOutput, error) {
	query = strings.TrimSpace(query)
	if query == "" {
		return SearchOutput{}, fmt.Errorf("query is empty")
	}
	if len(sources) == 0 {
		return SearchOutput{}, fmt.Errorf("no reference sources configured")
	}

	results := make([][]types.ReferenceCandidate, len(sources))
	errs := make([]error, len(sources))

	var g errgroup.Group
	for i, src := range sources {
		g.Go(func() error {
			results[i], errs[i] = src.Search(ctx, query)
			return nil
		})
	}
	_ = g.Wait()

	var out SearchOutput
	seen := make(map[string]bool)
	failed := 0
	for i, src := range sources {
		if errs[i] != nil {
			failed++
			out.BackendErrors = append(out.BackendErrors, fmt.Sprintf("%s: %v", src.Name(), errs[i]))
			fmt.Fprintf(w, "  %s: error: %v\n", src.Name(), errs[i])
			continue
		}
		fmt.Fprintf(w, "  %s: %d results\n", src.Name(), len(results[i]))
		for _, c := range results[i] {
			if seen[c.ID] {
				out.DupsRemoved++
				continue
			}
			seen[c.ID] = true
			out.Candidates = append(out.Candidates, c)
		}
	}
	if failed == len(sources) {
		return out, fmt.Errorf("all reference sources failed: %s", strings.Join(out.BackendErrors, "; "))
	}
	return out, ctx.Err()
}

// FetchOutput holds fetched records in request order and the identifiers
// no source knew.
type FetchOutput struct {
	Found   []types.ReferenceCandidate
	Missing []string
}

// FetchAll fetches every identifier with at most concurrency requests in
// flight. ErrNotFound is collected into Missing; any other error cancels
// the remaining fetches and is returned.
func FetchAll(ctx context.Context, src Source, ids []string, concurrency int, w io.Writer) (FetchOutput, error) {
	if concurrency <= 0 {
		concurrency = 1
	}

	records := make([]types.ReferenceCandidate, len(ids))
	missing := make([]bool, len(ids))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(concurrency)
	for i, id := range ids {
		g.Go(func() error {
			rec, err := src.Fetch(gctx, id)
			switch {
			case errors.Is(err, ErrNotFound):
				missing[i] = true
				return nil
			case err != nil:
				return fmt.Errorf("fetching %s from %s: %w", id, src.Name(), err)
			}
			records[i] = rec
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return FetchOutput{}, err
	}

	var out FetchOutput
	for i, id := range ids {
		if missing[i] {
			out.Missing = append(out.Missing, id)
			fmt.Fprintf(w, "  %s: not found\n", id)
			continue
		}
		out.Found = append(out.Found, records[i])
		fmt.Fprintf(w, "  %s: %s\n", id, records[i].Title)
	}
	return out, nil
}
