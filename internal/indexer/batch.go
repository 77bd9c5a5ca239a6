package indexer

import (
	"context"
	"fmt"
	"time"

	"github.com/oklog/ulid/v2"
	"golang.org/x/sync/errgroup"

	"github.com/bull/oncodoc/internal/source"
)

// DefaultWorkers is the batch concurrency when none is configured.
const DefaultWorkers = 4

// Status is the outcome of one report in a batch.
type Status struct {
	Index      int     `json:"index"`
	Source     string  `json:"source,omitempty"`
	DocumentID string  `json:"document_id,omitempty"`
	OK         bool    `json:"ok"`
	Error      string  `json:"error,omitempty"`
	Result     *Result `json:"result,omitempty"`
}

// FailedDoc represents a report that failed to process.
type FailedDoc struct {
	Source string `json:"source"`
	Reason string `json:"reason"`
}

// BatchResult contains statistics about a batch run. Statuses are in input
// order, so partial success is always distinguishable from total failure.
type BatchResult struct {
	RunID     string        `json:"run_id"`
	Total     int           `json:"total"`
	Succeeded int           `json:"succeeded"`
	Failed    []FailedDoc   `json:"failed,omitempty"`
	Statuses  []Status      `json:"statuses"`
	Revision  string        `json:"revision,omitempty"`
	Duration  time.Duration `json:"duration"`
}

// ProcessBatch processes sources concurrently. A failing report never
// aborts its siblings.
func (p *Pipeline) ProcessBatch(ctx context.Context, sources []Source) *BatchResult {
	return p.runBatch(ctx, len(sources), func(_ context.Context, i int) (Source, error) {
		return sources[i], nil
	}, func(i int) string {
		return sources[i].Source
	})
}

// IngestAll lists every report in src, fetches each and processes it as one
// batch. Fetch failures are reported per report like processing failures.
func (p *Pipeline) IngestAll(ctx context.Context, src source.Source) (*BatchResult, error) {
	paths, err := src.List(ctx)
	if err != nil {
		return nil, fmt.Errorf("list reports: %w", err)
	}
	p.logger.Info("Found reports", "source", src.Name(), "count", len(paths))

	result := p.runBatch(ctx, len(paths), func(ctx context.Context, i int) (Source, error) {
		return p.Fetch(ctx, src, paths[i])
	}, func(i int) string {
		return paths[i]
	})
	if rev, ok := src.(interface {
		LatestRevision(context.Context) (string, error)
	}); ok {
		if sha, err := rev.LatestRevision(ctx); err == nil {
			result.Revision = sha
		} else {
			p.logger.Warn("Failed to read source revision", "source", src.Name(), "error", err)
		}
	}
	return result, nil
}

// Fetch reads one report from src as a pipeline Source.
func (p *Pipeline) Fetch(ctx context.Context, src source.Source, relPath string) (Source, error) {
	r, err := src.Fetch(ctx, relPath)
	if err != nil {
		return Source{}, fmt.Errorf("fetch: %w", err)
	}
	s := Source{Text: r.Text, Source: r.Location}
	if len(r.Sections) > 0 {
		s.Sections = make(map[string]string, len(r.Sections))
		for _, sec := range r.Sections {
			s.Sections[sec.HeadingPath] = sec.Body
		}
	}
	if !r.ModTime.IsZero() {
		s.Timestamp = r.ModTime.UTC().Format(time.RFC3339)
	}
	return s, nil
}

func (p *Pipeline) runBatch(
	ctx context.Context,
	n int,
	load func(ctx context.Context, i int) (Source, error),
	label func(i int) string,
) *BatchResult {
	start := time.Now()
	result := &BatchResult{
		RunID:    ulid.Make().String(),
		Total:    n,
		Statuses: make([]Status, n),
	}
	p.logger.Info("Starting batch", "run_id", result.RunID, "reports", n, "workers", p.workers)

	var g errgroup.Group
	g.SetLimit(p.workers)
	for i := 0; i < n; i++ {
		g.Go(func() error {
			status := Status{Index: i, Source: label(i)}
			src, err := load(ctx, i)
			var res *Result
			if err == nil {
				res, err = p.Process(ctx, src)
			}
			if err != nil {
				status.Error = err.Error()
				p.logger.Warn("Failed to process report",
					"run_id", result.RunID, "source", status.Source, "error", err)
			} else {
				status.OK = true
				status.DocumentID = res.DocumentID
				status.Result = res
			}
			result.Statuses[i] = status
			return nil
		})
	}
	_ = g.Wait()

	for _, s := range result.Statuses {
		if s.OK {
			result.Succeeded++
			continue
		}
		result.Failed = append(result.Failed, FailedDoc{Source: s.Source, Reason: s.Error})
	}
	result.Duration = time.Since(start)
	p.logger.Info("Batch complete",
		"run_id", result.RunID,
		"successful", result.Succeeded,
		"failed", len(result.Failed),
		"duration", result.Duration,
	)
	return result
}
