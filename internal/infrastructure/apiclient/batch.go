package apiclient

import (
	"context"
	"encoding/json"
	"net/http"
	"sync"
)

// BatchItem is one request of a batch
type BatchItem struct {
	Endpoint string
	Method   string
	Body     any
	Options  *Options
}

// BatchResult is either Data or an inline error for Endpoint
type BatchResult struct {
	Endpoint string
	Data     json.RawMessage
	Err      error
}

// MarshalJSON renders a failure as {"error": ..., "endpoint": ...} and a
// success as the raw payload.
func (r BatchResult) MarshalJSON() ([]byte, error) {
	if r.Err != nil {
		return json.Marshal(struct {
			Error    string `json:"error"`
			Endpoint string `json:"endpoint"`
		}{r.Err.Error(), r.Endpoint})
	}
	if r.Data == nil {
		return []byte("null"), nil
	}
	return r.Data, nil
}

// BatchRequest runs every item concurrently. Results keep input order and
// individual failures never fail the batch.
func (c *Connector) BatchRequest(ctx context.Context, items []BatchItem) []BatchResult {
	results := make([]BatchResult, len(items))

	var wg sync.WaitGroup
	for i, item := range items {
		wg.Add(1)
		go func(i int, item BatchItem) {
			defer wg.Done()
			method := item.Method
			if method == "" {
				method = http.MethodGet
			}
			data, err := c.Request(ctx, item.Endpoint, method, item.Body, item.Options)
			results[i] = BatchResult{Endpoint: item.Endpoint, Data: data, Err: err}
		}(i, item)
	}
	wg.Wait()

	return results
}
