package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"sync"

	"golang.org/x/sync/errgroup"

	"github.com/ripixel/fitglue-vision/pkg/domain/metadata"
	"github.com/ripixel/fitglue-vision/pkg/extraction"
	"github.com/ripixel/fitglue-vision/pkg/infrastructure/database"
)

// Extractor is satisfied by *extraction.Orchestrator.
type Extractor interface {
	Extract(ctx context.Context, req extraction.Request) *extraction.Result
}

// ResultStore is satisfied by *database.SQLiteStore.
type ResultStore interface {
	SaveResult(ctx context.Context, r *database.ResultRow) error
}

type batch struct {
	orchestrator Extractor
	results      ResultStore
	concurrency  int
	out          io.Writer

	mu sync.Mutex // serialises writes to out
}

type Summary struct {
	Total    int
	Degraded int
}

// line is one JSON output record.
type line struct {
	ImageRef      string          `json:"imageRef"`
	CorrelationID string          `json:"correlationId"`
	Domain        metadata.Domain `json:"domain"`
	Degraded      bool            `json:"degraded"`
	ErrorKind     string          `json:"errorKind,omitempty"`
	Error         string          `json:"error,omitempty"`
	Fallback      bool            `json:"fallback"`
	Attempts      int             `json:"attempts"`
	DurationMs    int64           `json:"durationMs"`
	Metadata      metadata.Record `json:"metadata"`
}

// Run extracts every ref. Extraction never fails; only output or storage
// errors abort the batch.
func (b *batch) Run(ctx context.Context, domain metadata.Domain, refs []string) (Summary, error) {
	limit := b.concurrency
	if limit <= 0 {
		limit = 1
	}
	g, gCtx := errgroup.WithContext(ctx)
	g.SetLimit(limit)

	var (
		sumMu   sync.Mutex
		summary = Summary{Total: len(refs)}
	)
	for _, ref := range refs {
		g.Go(func() error {
			res := b.orchestrator.Extract(gCtx, extraction.Request{ImageRef: ref, Domain: domain})
			if res.Degraded() {
				sumMu.Lock()
				summary.Degraded++
				sumMu.Unlock()
			}
			return b.emit(gCtx, ref, res)
		})
	}
	err := g.Wait()
	return summary, err
}

func (b *batch) emit(ctx context.Context, ref string, res *extraction.Result) error {
	l := line{
		ImageRef:      ref,
		CorrelationID: res.CorrelationID,
		Domain:        res.Domain,
		Degraded:      res.Degraded(),
		Fallback:      res.Fallback,
		Attempts:      res.Attempts,
		DurationMs:    res.Duration.Milliseconds(),
		Metadata:      res.Record,
	}
	if res.Failure != nil {
		l.ErrorKind = string(res.Failure.Kind)
		l.Error = res.Failure.Error()
	}

	md, err := json.Marshal(res.Record)
	if err != nil {
		return fmt.Errorf("encode metadata for %s: %w", ref, err)
	}
	if b.results != nil {
		row := &database.ResultRow{
			CorrelationID: res.CorrelationID,
			ImageRef:      ref,
			Domain:        string(res.Domain),
			Confidence:    res.Record.Confidence(),
			Degraded:      l.Degraded,
			Fallback:      res.Fallback,
			ErrorKind:     l.ErrorKind,
			Strategy:      res.Strategy,
			Attempts:      res.Attempts,
			MetadataJSON:  string(md),
			DurationMs:    l.DurationMs,
		}
		if err := b.results.SaveResult(ctx, row); err != nil {
			return err
		}
	}

	encoded, err := json.Marshal(l)
	if err != nil {
		return err
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	if _, err := fmt.Fprintf(b.out, "%s\n", encoded); err != nil {
		return err
	}
	slog.Debug("Result written", "image_ref", ref, "degraded", l.Degraded)
	return nil
}
