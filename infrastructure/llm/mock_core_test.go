package llm

import (
	"context"
	"fmt"
	"sync"
	"time"
)

// fakeCore is a scripted CoreLLM. Errors pop from the front of errs; once
// errs is empty every call succeeds.
type fakeCore struct {
	mu sync.Mutex

	response  string
	tokensIn  int
	tokensOut int
	model     string
	delay     time.Duration
	errs      []error
	always    error

	calls    int
	lastOpts map[string]any
	lastCtx  context.Context
}

func newFakeCore() *fakeCore {
	return &fakeCore{
		response:  `{"summary_markdown":"ok"}`,
		tokensIn:  12,
		tokensOut: 30,
		model:     "gpt-4o-mini",
	}
}

func (f *fakeCore) DoRequest(ctx context.Context, prompt string, opts map[string]any) (string, int, int, error) {
	f.mu.Lock()
	f.calls++
	f.lastOpts = opts
	f.lastCtx = ctx
	delay := f.delay
	var err error
	switch {
	case f.always != nil:
		err = f.always
	case len(f.errs) > 0:
		err = f.errs[0]
		f.errs = f.errs[1:]
	}
	f.mu.Unlock()

	if delay > 0 {
		select {
		case <-time.After(delay):
		case <-ctx.Done():
			return "", 0, 0, ctx.Err()
		}
	}
	if err != nil {
		return "", 0, 0, err
	}
	if prompt == "" {
		return "", 0, 0, fmt.Errorf("empty prompt")
	}
	return f.response, f.tokensIn, f.tokensOut, nil
}

func (f *fakeCore) GetModel() string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.model
}

func (f *fakeCore) SetModel(model string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.model = model
}

func (f *fakeCore) callCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls
}

// recordingCollector captures metrics keyed by name and a chosen label.
type recordingCollector struct {
	mu         sync.Mutex
	counters   map[string]float64
	histograms map[string]int
	labels     []map[string]string
}

func newRecordingCollector() *recordingCollector {
	return &recordingCollector{
		counters:   map[string]float64{},
		histograms: map[string]int{},
	}
}

func (r *recordingCollector) RecordLatency(op string, d time.Duration, labels map[string]string) {
	r.RecordHistogram(op, d.Seconds(), labels)
}

func (r *recordingCollector) RecordCounter(metric string, v float64, labels map[string]string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	key := metric
	if s, ok := labels["status"]; ok {
		key += "/" + s
	}
	if tt, ok := labels["token_type"]; ok {
		key += "/" + tt
	}
	r.counters[key] += v
	r.labels = append(r.labels, labels)
}

func (r *recordingCollector) RecordGauge(string, float64, map[string]string) {}

func (r *recordingCollector) RecordHistogram(metric string, _ float64, labels map[string]string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.histograms[metric+"/"+labels["status"]]++
}
