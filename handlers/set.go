package handlers

import (
	"context"

	"github.com/flowgate/flowgate/types"
)

// Func is the shape every Handler implements (spec.md §4.11): a pure
// function of the Event and the outbound Clients to an Outcome.
type Func func(ctx context.Context, ev *types.Event, clients *Clients) types.Outcome

func key(source types.Source, eventType string) string {
	return string(source) + ":" + eventType
}

// Set is the static (source, event_type) -> Handler dispatch table of
// spec.md §4.8 step 4.
type Set struct {
	handlers map[string]Func
	clients  *Clients
}

// New returns the dispatch table wired to clients, pre-registered with
// every handler this repository implements.
func New(clients *Clients) *Set {
	s := &Set{handlers: make(map[string]Func), clients: clients}
	s.register(types.SourceCalendar, "booked", HandleCalendarBooked)
	s.register(types.SourceCalendar, "canceled", HandleCalendarCanceled)
	s.register(types.SourceCalendar, "rescheduled", HandleCalendarRescheduled)
	s.register(types.SourceMeetingTranscript, "completed", HandleMeetingCompleted)
	s.register(types.SourceSupportTag, "tag_added", HandleSupportTagAdded)
	s.register(types.SourceSupportCompany, "company_updated", HandleSupportCompanyUpdated)
	s.register(types.SourceManualEnrich, "enrich_request", HandleManualEnrichRequest)
	return s
}

func (s *Set) register(source types.Source, eventType string, fn Func) {
	s.handlers[key(source, eventType)] = fn
}

// Dispatch looks up and invokes the handler for ev's (source, event_type).
// The bool return is false when no handler is registered.
func (s *Set) Dispatch(ctx context.Context, ev *types.Event) (types.Outcome, bool) {
	fn, ok := s.handlers[key(ev.Source, ev.EventType)]
	if !ok {
		return types.Outcome{}, false
	}
	return fn(ctx, ev, s.clients), true
}
