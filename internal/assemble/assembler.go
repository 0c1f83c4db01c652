// Package assemble drives a fetch plan to completion: segments are fetched
// by a bounded worker pool and written to the sink strictly in plan order.
package assemble

import (
	"context"
	"errors"
	"fmt"
	"io"

	"github.com/hashicorp/go-hclog"
	"golang.org/x/sync/errgroup"

	"github.com/famomatic/hlsv1/internal/fetch"
	"github.com/famomatic/hlsv1/internal/plan"
)

// DefaultConcurrency bounds parallel segment fetches per download.
const DefaultConcurrency = 4

// ProgressFunc is invoked after each segment is written, with the number of
// segments written so far and the plan total.
type ProgressFunc func(completed, total int)

// Config controls an Assembler.
type Config struct {
	Fetcher *fetch.Fetcher
	// Concurrency is the fetch fan-out width; DefaultConcurrency when <= 0.
	Concurrency int
	Logger      hclog.Logger
}

// Assembler executes fetch plans. It is safe to reuse across downloads; all
// per-plan state (key cache, reorder buffer) lives in Assemble.
type Assembler struct {
	fetcher     *fetch.Fetcher
	concurrency int
	log         hclog.Logger
}

func New(cfg Config) *Assembler {
	concurrency := cfg.Concurrency
	if concurrency <= 0 {
		concurrency = DefaultConcurrency
	}
	logger := cfg.Logger
	if logger == nil {
		logger = hclog.NewNullLogger()
	}
	return &Assembler{
		fetcher:     cfg.Fetcher,
		concurrency: concurrency,
		log:         logger.Named("assemble"),
	}
}

type segResult struct {
	index int
	data  []byte
}

// Assemble writes the init segment (if any) and then every task's bytes to w
// in plan order. Fetches run concurrently but only one write cursor exists;
// completed segments are buffered until their turn. The first failure aborts
// the whole assembly and is returned; the sink may then hold a partial
// stream and must be discarded by the caller.
func (a *Assembler) Assemble(ctx context.Context, p *plan.FetchPlan, w io.Writer, progress ProgressFunc) error {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	keys := fetch.NewKeyCache(a.fetcher)

	if p.InitSegmentURL != "" {
		a.log.Debug("fetching init segment", "url", p.InitSegmentURL)
		init, err := a.fetcher.FetchBytes(ctx, p.InitSegmentURL, nil)
		if err != nil {
			return fmt.Errorf("init segment: %w", err)
		}
		if _, err := w.Write(init); err != nil {
			return fmt.Errorf("write init segment: %w", err)
		}
	}

	total := len(p.Tasks)
	results := make(chan segResult, total)

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(a.concurrency)

	writeDone := make(chan error, 1)
	go func() {
		writeDone <- a.writeInOrder(ctx, cancel, results, total, w, progress)
	}()

	for i := range p.Tasks {
		task := p.Tasks[i]
		index := i
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			data, err := a.fetcher.FetchSegment(gctx, task, keys)
			if err != nil {
				return fmt.Errorf("segment %d: %w", index, err)
			}
			results <- segResult{index: index, data: data}
			return nil
		})
	}

	fetchErr := g.Wait()
	if fetchErr != nil {
		cancel()
	}
	writeErr := <-writeDone

	// Prefer the root cause over cancellations it triggered.
	if fetchErr != nil && !errors.Is(fetchErr, context.Canceled) {
		return fetchErr
	}
	if writeErr != nil && !errors.Is(writeErr, context.Canceled) {
		return writeErr
	}
	if err := ctx.Err(); err != nil {
		return err
	}
	return nil
}

// writeInOrder receives out-of-order results and advances a single write
// cursor, buffering segments that arrive early. cancel stops the fetch pool
// when a write fails.
func (a *Assembler) writeInOrder(ctx context.Context, cancel context.CancelFunc, results <-chan segResult, total int, w io.Writer, progress ProgressFunc) error {
	pending := make(map[int][]byte)
	next := 0
	written := 0
	for written < total {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case res := <-results:
			pending[res.index] = res.data
			for {
				data, ok := pending[next]
				if !ok {
					break
				}
				if _, err := w.Write(data); err != nil {
					cancel()
					return fmt.Errorf("write segment %d: %w", next, err)
				}
				delete(pending, next)
				next++
				written++
				if progress != nil {
					progress(written, total)
				}
			}
		}
	}
	return nil
}
