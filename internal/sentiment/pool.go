package sentiment

import (
	"context"
	"sync"
	"time"

	"review-pulse/internal/domain/review"
	"review-pulse/internal/pkg/ids"
)

// Outcome aggregates one batch run. Failed counts reviews whose
// classification errored; they stay unannotated and are retried on the
// next run.
type Outcome struct {
	Annotations []review.Annotation
	Succeeded   int
	Failed      int
	Errors      []error
}

// Pool classifies reviews with bounded parallelism. A per-review
// failure is recorded and skipped, never fatal to the batch.
type Pool struct {
	classifier Classifier
	workers    int

	mu     sync.RWMutex
	rate   <-chan time.Time
	ticker *time.Ticker
}

func NewPool(classifier Classifier, workers int) *Pool {
	if workers <= 0 {
		workers = 1
	}
	return &Pool{classifier: classifier, workers: workers}
}

// SetRateLimit caps classification calls per second. Zero disables the
// limit.
func (p *Pool) SetRateLimit(rps int) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.ticker != nil {
		p.ticker.Stop()
		p.ticker = nil
		p.rate = nil
	}
	if rps <= 0 {
		return
	}
	t := time.NewTicker(time.Second / time.Duration(rps))
	p.ticker = t
	p.rate = t.C
}

func (p *Pool) Close() {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.ticker != nil {
		p.ticker.Stop()
		p.ticker = nil
		p.rate = nil
	}
}

type taskResult struct {
	annotation *review.Annotation
	err        error
}

// Process runs the full batch and blocks until every review has been
// attempted or the context is cancelled.
func (p *Pool) Process(ctx context.Context, reviews []review.Review) Outcome {
	out := Outcome{}
	if len(reviews) == 0 {
		return out
	}

	tasks := make(chan review.Review)
	results := make(chan taskResult, len(reviews))

	var wg sync.WaitGroup
	wg.Add(p.workers)
	for i := 0; i < p.workers; i++ {
		go func() {
			defer wg.Done()
			for rv := range tasks {
				p.mu.RLock()
				rate := p.rate
				p.mu.RUnlock()
				if rate != nil {
					select {
					case <-ctx.Done():
						results <- taskResult{err: ctx.Err()}
						continue
					case <-rate:
					}
				}
				results <- p.classifyOne(ctx, rv)
			}
		}()
	}

	go func() {
		defer close(tasks)
		for _, rv := range reviews {
			select {
			case <-ctx.Done():
				return
			case tasks <- rv:
			}
		}
	}()

	go func() {
		wg.Wait()
		close(results)
	}()

	for res := range results {
		if res.err != nil {
			out.Failed++
			out.Errors = append(out.Errors, res.err)
			continue
		}
		out.Succeeded++
		out.Annotations = append(out.Annotations, *res.annotation)
	}
	// Reviews never dispatched because of cancellation still count as
	// failed attempts for this run.
	if missed := len(reviews) - out.Succeeded - out.Failed; missed > 0 {
		out.Failed += missed
		if err := ctx.Err(); err != nil {
			out.Errors = append(out.Errors, err)
		}
	}
	return out
}

func (p *Pool) classifyOne(ctx context.Context, rv review.Review) taskResult {
	verdict, err := p.classifier.Classify(ctx, rv)
	if err != nil {
		return taskResult{err: err}
	}
	return taskResult{annotation: &review.Annotation{
		ID:          ids.New(),
		ReviewID:    rv.ID,
		OwnerID:     rv.OwnerID,
		LocationID:  rv.LocationID,
		Sentiment:   verdict.Sentiment,
		Score:       verdict.Score,
		Confidence:  verdict.Confidence,
		Keywords:    verdict.Keywords,
		Topics:      verdict.Topics,
		Summary:     verdict.Summary,
		ProcessedAt: time.Now().UTC(),
	}}
}
