package score

import (
	"runtime"
	"sync"
)

// WorkItem holds one query's evidence ready for scoring.
type WorkItem struct {
	Seq      int
	QueryID  string
	Evidence QueryEvidence
}

// WorkResult holds the score for a single query.
type WorkResult struct {
	Seq     int
	QueryID string
	Result  *Result
	Err     error
}

// ParallelScore scores work items using a pool of workers. Scoring of
// distinct queries shares only the read-only taxonomy store, so no
// synchronization beyond the channels is needed. Results arrive in
// completion order; use OrderedCollect to consume them in sequence order.
// If workers is 0, runtime.NumCPU() is used.
func (e *Engine) ParallelScore(items <-chan WorkItem, workers int) <-chan WorkResult {
	if workers <= 0 {
		workers = runtime.NumCPU()
	}

	results := make(chan WorkResult, 2*workers)

	var wg sync.WaitGroup
	wg.Add(workers)

	for range workers {
		go func() {
			defer wg.Done()
			for item := range items {
				r, err := e.Score(item.QueryID, item.Evidence)
				results <- WorkResult{
					Seq:     item.Seq,
					QueryID: item.QueryID,
					Result:  r,
					Err:     err,
				}
			}
		}()
	}

	go func() {
		wg.Wait()
		close(results)
	}()

	return results
}

// OrderedCollect calls fn for each result in sequence-number order. It
// buffers out-of-order results in a pending map and emits them as soon as
// the next expected sequence number is available. Blocks until the results
// channel is closed.
func OrderedCollect(results <-chan WorkResult, fn func(WorkResult) error) error {
	pending := make(map[int]WorkResult)
	nextSeq := 0

	for r := range results {
		pending[r.Seq] = r

		for {
			rr, ok := pending[nextSeq]
			if !ok {
				break
			}
			delete(pending, nextSeq)
			nextSeq++
			if err := fn(rr); err != nil {
				// Drain remaining results to unblock workers.
				for range results {
				}
				return err
			}
		}
	}

	return nil
}
