package pipeline

import (
	"context"
	"sync"

	"contentfactory/internal/realtime"
	"contentfactory/internal/workflow"
)

type resumeCall struct {
	sessionID int64
	url       string
	decision  workflow.Decision
}

type fakeEngine struct {
	mu        sync.Mutex
	starts    []workflow.StartRequest
	startErrs []error
	resumes   []resumeCall
	publishes []workflow.PublishRequest
	result    workflow.Result
}

func newFakeEngine() *fakeEngine {
	return &fakeEngine{result: workflow.Result{Outcome: workflow.OutcomeSuccess, StatusCode: 200}}
}

func (f *fakeEngine) Start(ctx context.Context, req workflow.StartRequest) workflow.Result {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.starts = append(f.starts, req)
	f.startErrs = append(f.startErrs, ctx.Err())
	return f.result
}

func (f *fakeEngine) Resume(_ context.Context, sessionID int64, url string, d workflow.Decision) workflow.Result {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.resumes = append(f.resumes, resumeCall{sessionID: sessionID, url: url, decision: d})
	return f.result
}

func (f *fakeEngine) Publish(_ context.Context, req workflow.PublishRequest) workflow.Result {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.publishes = append(f.publishes, req)
	return f.result
}

type recordingPublisher struct {
	mu     sync.Mutex
	events []realtime.Event
}

func (r *recordingPublisher) Publish(ev realtime.Event) {
	r.mu.Lock()
	r.events = append(r.events, ev)
	r.mu.Unlock()
}

func (r *recordingPublisher) names() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]string, len(r.events))
	for i, ev := range r.events {
		out[i] = ev.Name
	}
	return out
}

func (r *recordingPublisher) count(name string) int {
	n := 0
	for _, got := range r.names() {
		if got == name {
			n++
		}
	}
	return n
}

type staticLocator string

func (l staticLocator) URL(key string) (string, error) {
	return string(l) + "/" + key, nil
}
