// sim/eventstream.go
// Copyright(c) 2022-2025 vice contributors, licensed under the GNU Public License, Version 3.
// SPDX: GPL-3.0-only

package sim

import (
	"fmt"
	"log/slog"
	"maps"
	"runtime"
	"slices"
	"sync"
	"time"

	av "github.com/mmp/flightmode/aviation"
	"github.com/mmp/flightmode/log"
	"github.com/mmp/flightmode/nav"
)

// EventStream is a pub/sub channel for events from running scenarios.
// Scenarios may run concurrently and post from multiple goroutines.
type EventStream struct {
	mu            sync.Mutex
	events        []Event
	subscriptions map[*EventsSubscription]any
	warnedLong    bool
	done          chan struct{}
	lg            *log.Logger
}

type EventsSubscription struct {
	stream *EventStream
	// offset is offset in the EventStream stream array up to which the
	// subscriber has consumed events so far.
	offset int
	source string
}

func (e *EventsSubscription) LogValue() slog.Value {
	return slog.GroupValue(
		slog.Int("offset", e.offset),
		slog.String("source", e.source))
}

func NewEventStream(lg *log.Logger) *EventStream {
	es := &EventStream{
		subscriptions: make(map[*EventsSubscription]any),
		done:          make(chan struct{}),
		lg:            lg,
	}
	go es.monitor()
	return es
}

// Subscribe registers a new subscriber to the stream. Only events posted
// after the call are reported to it.
func (e *EventStream) Subscribe() *EventsSubscription {
	// Record the subscriber's callsite, so that we can more easily debug
	// subscribers that aren't consuming events.
	_, fn, line, _ := runtime.Caller(1)

	e.mu.Lock()
	defer e.mu.Unlock()

	sub := &EventsSubscription{
		stream: e,
		offset: len(e.events),
		source: fmt.Sprintf("%s:%d", fn, line),
	}
	e.subscriptions[sub] = nil
	return sub
}

func (e *EventStream) monitor() {
	tick := time.NewTicker(5 * time.Second)
	defer tick.Stop()

	for {
		select {
		case <-e.done:
			return
		case <-tick.C:
		}

		e.mu.Lock()
		e.compact()
		if len(e.events) > 1000 && !e.warnedLong {
			// It's likely that one of the subscribers is out to lunch if
			// the stream has grown this long.
			e.lg.Warn("Long EventStream", slog.Int("length", len(e.events)),
				log.AnyPointerSlice("subscriptions", slices.Collect(maps.Keys(e.subscriptions))))
			e.warnedLong = true
		}
		e.mu.Unlock()
	}
}

// Unsubscribe removes a subscriber from the subscriber list
func (e *EventsSubscription) Unsubscribe() {
	e.stream.mu.Lock()
	defer e.stream.mu.Unlock()

	if _, ok := e.stream.subscriptions[e]; !ok {
		e.stream.lg.Errorf("Attempted to unsubscribe invalid subscription: %+v", e)
	}
	delete(e.stream.subscriptions, e)
}

// Post adds an event to the event stream.
func (e *EventStream) Post(event Event) {
	e.mu.Lock()
	defer e.mu.Unlock()

	e.lg.Debug("posted event", slog.Any("event", event))

	// Ignore the event if no one's paying attention.
	if len(e.subscriptions) > 0 {
		e.events = append(e.events, event)
	}
}

// Get returns all of the events from the stream since the last time Get
// was called for the subscription.
func (e *EventsSubscription) Get() []Event {
	e.stream.mu.Lock()
	defer e.stream.mu.Unlock()

	if _, ok := e.stream.subscriptions[e]; !ok {
		e.stream.lg.Errorf("Attempted to get with unregistered subscription: %+v", e)
		return nil
	}

	events := slices.Clone(e.stream.events[e.offset:])
	e.offset = len(e.stream.events)
	return events
}

func (e *EventStream) Destroy() {
	e.mu.Lock()
	defer e.mu.Unlock()

	select {
	case <-e.done:
	default:
		close(e.done)
	}
	clear(e.subscriptions)
}

// compact reclaims storage for events that all subscribers have seen.
func (e *EventStream) compact() {
	minOffset := len(e.events)
	for sub := range e.subscriptions {
		minOffset = min(minOffset, sub.offset)
	}

	if minOffset > cap(e.events)/2 {
		n := len(e.events) - minOffset

		copy(e.events, e.events[minOffset:])
		e.events = e.events[:n]

		for sub := range e.subscriptions {
			sub.offset -= minOffset
		}

		e.warnedLong = false // reset this after a successful compact.
	}
}

// implements slog.LogValuer
func (e *EventStream) LogValue() slog.Value {
	e.mu.Lock()
	defer e.mu.Unlock()

	items := []slog.Attr{slog.Int("len", len(e.events)), slog.Int("cap", cap(e.events))}
	if len(e.events) > 0 {
		items = append(items, slog.Any("last_element", e.events[len(e.events)-1]))
	}
	items = append(items, log.AnyPointerSlice("subscriptions", slices.Collect(maps.Keys(e.subscriptions))))
	return slog.GroupValue(items...)
}

// ModeChangeSink returns a nav.ModeChangeSink that posts mode changes for
// the named scenario along with the vehicle's location at the time.
func (e *EventStream) ModeChangeSink(scenario string, pos nav.PositionSource) nav.ModeChangeSink {
	return &modeChangePoster{stream: e, scenario: scenario, pos: pos}
}

type modeChangePoster struct {
	stream   *EventStream
	scenario string
	pos      nav.PositionSource
}

func (p *modeChangePoster) PostModeChange(mc nav.ModeChange) {
	p.stream.Post(Event{
		Type:     ModeChangeEvent,
		Scenario: p.scenario,
		Time:     mc.Time,
		Change:   mc,
		Location: p.pos.Location(),
	})
}

///////////////////////////////////////////////////////////////////////////

type EventType int

const (
	ModeChangeEvent EventType = iota
	ClimbCompleteEvent
	TouchdownEvent
	StatusMessageEvent
	NumEventTypes
)

func (t EventType) String() string {
	return []string{"ModeChange", "ClimbComplete", "Touchdown", "StatusMessage"}[t]
}

type Event struct {
	Type     EventType
	Scenario string
	Time     nav.Millis
	Change   nav.ModeChange // ModeChangeEvent
	Location av.Location
	Message  string
}

func (e *Event) String() string {
	switch e.Type {
	case ModeChangeEvent:
		return fmt.Sprintf("%s: [%s] t=%.1fs %s -> %s (%s) at %s", e.Type, e.Scenario,
			float32(e.Time)/1000, e.Change.From, e.Change.To, e.Change.Reason, e.Location)
	default:
		return fmt.Sprintf("%s: [%s] t=%.1fs %s at %s", e.Type, e.Scenario, float32(e.Time)/1000,
			e.Message, e.Location)
	}
}

func (e Event) LogValue() slog.Value {
	attrs := []slog.Attr{slog.String("type", e.Type.String()), slog.Uint64("time_ms", uint64(e.Time))}
	if e.Scenario != "" {
		attrs = append(attrs, slog.String("scenario", e.Scenario))
	}
	if e.Type == ModeChangeEvent {
		attrs = append(attrs, slog.Any("change", e.Change))
	}
	if !e.Location.IsZero() {
		attrs = append(attrs, slog.Any("location", e.Location))
	}
	if e.Message != "" {
		attrs = append(attrs, slog.String("message", e.Message))
	}
	return slog.GroupValue(attrs...)
}
