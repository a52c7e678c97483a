package handlers

import (
	"context"
	"encoding/json"
	"sync"
	"time"

	"github.com/flowgate/flowgate/types"
)

type fakeCRM struct {
	mu sync.Mutex

	leads map[string]*LeadRef

	findErr    error
	upsertErr  error
	noteErr    error
	taskErr    error
	writeCalls int
	notes      []string
	tasks      []string
}

func newFakeCRM() *fakeCRM {
	return &fakeCRM{leads: map[string]*LeadRef{}}
}

func (f *fakeCRM) FindLeadByEmail(ctx context.Context, email string) (*LeadRef, bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.findErr != nil {
		return nil, false, f.findErr
	}
	lead, ok := f.leads[email]
	return lead, ok, nil
}

func (f *fakeCRM) UpsertLeadByEmail(ctx context.Context, email string, fields map[string]any) (*LeadRef, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.upsertErr != nil {
		return nil, f.upsertErr
	}
	f.writeCalls++
	lead := &LeadRef{ID: "lead-" + email, Email: email}
	f.leads[email] = lead
	return lead, nil
}

func (f *fakeCRM) CreateNote(ctx context.Context, leadID, title, body string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.noteErr != nil {
		return f.noteErr
	}
	f.writeCalls++
	f.notes = append(f.notes, title)
	return nil
}

func (f *fakeCRM) CreateTask(ctx context.Context, leadID, subject string, due time.Time, priority, body string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.taskErr != nil {
		return f.taskErr
	}
	f.writeCalls++
	f.tasks = append(f.tasks, subject)
	return nil
}

type fakeLLM struct {
	raw json.RawMessage
	err error
}

func (f *fakeLLM) Extract(ctx context.Context, systemPrompt, userPrompt string, schema any) (json.RawMessage, error) {
	return f.raw, f.err
}

type fakeNotifier struct {
	mu    sync.Mutex
	calls []string
}

func (f *fakeNotifier) Notify(ctx context.Context, title, body, severity string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls = append(f.calls, severity+":"+title)
	return nil
}

type fakeEnrichment struct {
	contact    map[string]any
	contactErr error
	company    map[string]any
	companyErr error
	logoURL    string
	logoErr    error
}

func (f *fakeEnrichment) LookupContact(ctx context.Context, email string) (map[string]any, error) {
	return f.contact, f.contactErr
}

func (f *fakeEnrichment) ScrapeCompanySite(ctx context.Context, domain string) (map[string]any, error) {
	return f.company, f.companyErr
}

func (f *fakeEnrichment) FetchLogoURL(ctx context.Context, domain string) (string, error) {
	return f.logoURL, f.logoErr
}

func depErr(code types.ErrorCode, retryable bool) error {
	e := types.NewError(code, string(code))
	return e.WithRetryable(retryable)
}
