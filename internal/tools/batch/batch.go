package batch

import (
	"context"
	"encoding/json"
)

// Result statuses.
const (
	StatusSuccess = "success"
	StatusError   = "error"
)

// Result represents the result of a single id in a batch
type Result struct {
	ID     int64           `json:"id"`
	Status string          `json:"status"`
	Result json.RawMessage `json:"result,omitempty"`
	Error  string          `json:"error,omitempty"`
}

// Summary is the aggregated outcome of a batch.
type Summary struct {
	Total      int      `json:"total"`
	Successful int      `json:"successful"`
	Failed     int      `json:"failed"`
	Results    []Result `json:"results"`
}

// Unique returns ids with duplicates removed, keeping first occurrences.
func Unique(ids []int64) []int64 {
	seen := make(map[int64]bool, len(ids))
	out := make([]int64, 0, len(ids))
	for _, id := range ids {
		if seen[id] {
			continue
		}
		seen[id] = true
		out = append(out, id)
	}
	return out
}

// Process calls fn for each id in order. Once ctx is done the remaining ids
// are reported as errors without calling fn.
func Process(ctx context.Context, ids []int64, fn func(ctx context.Context, id int64) (json.RawMessage, error)) []Result {
	results := make([]Result, 0, len(ids))

	for _, id := range ids {
		if err := ctx.Err(); err != nil {
			results = append(results, NewErrorResult(id, err))
			continue
		}
		res, err := fn(ctx, id)
		if err != nil {
			results = append(results, NewErrorResult(id, err))
			continue
		}
		results = append(results, NewSuccessResult(id, res))
	}

	return results
}

// Summarize counts successes and failures.
func Summarize(results []Result) Summary {
	s := Summary{
		Total:   len(results),
		Results: results,
	}
	for _, r := range results {
		if r.Status == StatusSuccess {
			s.Successful++
		} else {
			s.Failed++
		}
	}
	return s
}

// NewSuccessResult creates a success result
func NewSuccessResult(id int64, record json.RawMessage) Result {
	return Result{
		ID:     id,
		Status: StatusSuccess,
		Result: record,
	}
}

// NewErrorResult creates an error result
func NewErrorResult(id int64, err error) Result {
	return Result{
		ID:     id,
		Status: StatusError,
		Error:  err.Error(),
	}
}
