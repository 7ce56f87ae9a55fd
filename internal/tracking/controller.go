package tracking

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"strings"
	"sync"
	"time"

	"backend-railjourney/internal/filter"
	"backend-railjourney/internal/station"
	"backend-railjourney/internal/track"

	"github.com/google/uuid"
)

const DefaultIntervalSec = 5

// Broadcaster fans accepted samples out to live viewers.
type Broadcaster interface {
	Broadcast(sessionID string, payload []byte)
}

// StationSource supplies the reference stations used for pass detection.
type StationSource interface {
	List(ctx context.Context) ([]station.Station, error)
}

type Option func(*Controller)

func WithBroadcaster(b Broadcaster) Option {
	return func(c *Controller) { c.hub = b }
}

func WithStations(src StationSource) Option {
	return func(c *Controller) { c.stations = src }
}

func WithDetector(d station.Detector) Option {
	return func(c *Controller) { c.detector = d }
}

func WithFilter(s filter.Settings) Option {
	return func(c *Controller) { c.settings = s }
}

func WithDefaultInterval(sec int) Option {
	return func(c *Controller) {
		if sec > 0 {
			c.defaultInterval = sec
		}
	}
}

func WithClock(now func() time.Time) Option {
	return func(c *Controller) { c.now = now }
}

// Controller owns the session life cycle and enforces that at most one
// session records at a time. The active session's fixes, pauses and stop
// all run on that session's recorder goroutine, in submission order.
type Controller struct {
	store           Store
	hub             Broadcaster
	stations        StationSource
	detector        station.Detector
	defaultInterval int
	now             func() time.Time

	mu     sync.Mutex
	active *recorder

	settingsMu sync.RWMutex
	settings   filter.Settings

	// analysisMu serializes writes to sessions not held by a recorder.
	analysisMu sync.Mutex
}

func NewController(store Store, opts ...Option) *Controller {
	c := &Controller{
		store:           store,
		detector:        station.NewDetector(station.DefaultRadiusM),
		defaultInterval: DefaultIntervalSec,
		now:             time.Now,
		settings:        filter.DefaultSettings(),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

type recorder struct {
	id    string
	inbox chan func() bool
	done  chan struct{}

	// owned by the run goroutine
	session Session
	state   State
	last    *track.Sample
	acc     track.Accumulator
}

func newRecorder(s Session, state State, samples []track.Sample) *recorder {
	r := &recorder{
		id:      s.ID,
		inbox:   make(chan func() bool),
		done:    make(chan struct{}),
		session: s,
		state:   state,
	}
	for _, smp := range samples {
		r.acc.Add(smp)
	}
	if n := len(samples); n > 0 {
		last := samples[n-1]
		r.last = &last
	}
	return r
}

// run executes queued operations until one of them returns true.
func (r *recorder) run() {
	defer close(r.done)
	for fn := range r.inbox {
		if fn() {
			return
		}
	}
}

// exec runs fn on the recorder goroutine and waits for it to finish.
func (r *recorder) exec(ctx context.Context, fn func() bool) error {
	finished := make(chan struct{})
	op := func() bool {
		defer close(finished)
		return fn()
	}
	select {
	case r.inbox <- op:
	case <-r.done:
		return ErrNoActiveSession
	case <-ctx.Done():
		return ctx.Err()
	}
	<-finished
	return nil
}

func (r *recorder) status() Status {
	s := r.session
	return Status{
		State:         r.state,
		Session:       &s,
		AcceptedCount: r.acc.Count(),
		LiveDistanceM: r.acc.DistanceM(),
	}
}

func (c *Controller) current() *recorder {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.active
}

// attach must be called with c.mu held.
func (c *Controller) attach(s Session, state State, samples []track.Sample) {
	r := newRecorder(s, state, samples)
	c.active = r
	go r.run()
}

func (c *Controller) detach(r *recorder) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.active == r {
		c.active = nil
	}
}

// Start creates a new session and begins recording. It fails with
// ErrSessionActive while another session is held, and with a
// *RecoverableSessionError when an orphaned active session exists.
func (c *Controller) Start(ctx context.Context, in StartInput) (Session, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.active != nil {
		return Session{}, ErrSessionActive
	}
	orphans, err := c.store.ActiveSessions(ctx)
	if err != nil {
		return Session{}, fmt.Errorf("scan active sessions: %w", err)
	}
	if len(orphans) > 0 {
		return Session{}, &RecoverableSessionError{Session: orphans[0]}
	}

	now := c.now()
	interval := in.IntervalSec
	if interval <= 0 {
		interval = c.defaultInterval
	}
	name := strings.TrimSpace(in.Name)
	if name == "" {
		name = "Journey " + now.Format("2006-01-02 15:04")
	}

	sess, err := c.store.CreateSession(ctx, Session{
		ID:          uuid.NewString(),
		Name:        name,
		StartedAt:   now,
		IntervalSec: interval,
		IsActive:    true,
	})
	if err != nil {
		return Session{}, err
	}
	c.attach(sess, StateRecording, nil)
	return sess, nil
}

func (c *Controller) Pause(ctx context.Context) (Status, error) {
	return c.transition(ctx, StateRecording, StatePaused)
}

func (c *Controller) Resume(ctx context.Context) (Status, error) {
	return c.transition(ctx, StatePaused, StateRecording)
}

func (c *Controller) transition(ctx context.Context, from, to State) (Status, error) {
	r := c.current()
	if r == nil {
		return Status{}, ErrNoActiveSession
	}
	var st Status
	var terr error
	err := r.exec(ctx, func() bool {
		if r.state != from {
			terr = fmt.Errorf("%w: %s to %s", ErrInvalidTransition, r.state, to)
			return false
		}
		r.state = to
		st = r.status()
		return false
	})
	if err != nil {
		return Status{}, err
	}
	return st, terr
}

// Stop finalizes the active session: end time, statistics and station
// passes are written before it returns.
func (c *Controller) Stop(ctx context.Context) (Analysis, error) {
	r := c.current()
	if r == nil {
		return Analysis{}, ErrNoActiveSession
	}
	var out Analysis
	var serr error
	err := r.exec(ctx, func() bool {
		end := c.now()
		sess := r.session
		sess.EndedAt = &end
		sess.IsActive = false
		out, serr = c.finalize(ctx, sess)
		if serr != nil {
			return false
		}
		r.state = StateStopped
		return true
	})
	if err != nil {
		return Analysis{}, err
	}
	if serr != nil {
		return Analysis{}, serr
	}
	c.detach(r)
	return out, nil
}

// SubmitFix runs one raw fix through the location filter and appends it to
// the active session when accepted. Fixes arriving while paused, or stamped
// before the last accepted sample, are dropped.
func (c *Controller) SubmitFix(ctx context.Context, fix track.Fix) (FixResult, error) {
	r := c.current()
	if r == nil {
		return FixResult{}, ErrNoActiveSession
	}
	var res FixResult
	var ferr error
	err := r.exec(ctx, func() bool {
		res, ferr = c.record(ctx, r, fix)
		return false
	})
	if err != nil {
		return FixResult{}, err
	}
	return res, ferr
}

func (c *Controller) record(ctx context.Context, r *recorder, fix track.Fix) (FixResult, error) {
	if r.state == StatePaused {
		return FixResult{Reason: ReasonPaused}, nil
	}
	if fix.RecordedAt.IsZero() {
		fix.RecordedAt = c.now()
	}
	if r.last != nil && fix.RecordedAt.Before(r.last.RecordedAt) {
		return FixResult{Reason: ReasonOutOfOrder}, nil
	}

	decision := c.Filter().Accept(fix, r.last)
	if !decision.Accepted {
		return FixResult{Reason: decision.Reason}, nil
	}

	stored, err := c.store.AppendSample(ctx, track.NewSample(r.id, fix))
	if err != nil {
		return FixResult{}, fmt.Errorf("append sample: %w", err)
	}
	r.last = &stored
	r.acc.Add(stored)

	if c.hub != nil {
		if payload, err := json.Marshal(stored); err == nil {
			c.hub.Broadcast(r.id, payload)
		}
	}
	return FixResult{Accepted: true, Reason: filter.ReasonAccepted, Sample: &stored}, nil
}

// State reports the held session's state, or StateIdle.
func (c *Controller) State(ctx context.Context) (Status, error) {
	r := c.current()
	if r == nil {
		return Status{State: StateIdle}, nil
	}
	var st Status
	err := r.exec(ctx, func() bool {
		st = r.status()
		return false
	})
	if errors.Is(err, ErrNoActiveSession) {
		return Status{State: StateIdle}, nil
	}
	return st, err
}

func (c *Controller) Active(ctx context.Context) (Session, bool) {
	st, err := c.State(ctx)
	if err != nil || st.Session == nil {
		return Session{}, false
	}
	return *st.Session, true
}

// CheckRecovery looks for a session left active by an abnormal shutdown.
// It returns a *RecoverableSessionError for the most recent one, or nil.
func (c *Controller) CheckRecovery(ctx context.Context) error {
	var held string
	if r := c.current(); r != nil {
		held = r.id
	}
	orphans, err := c.store.ActiveSessions(ctx)
	if err != nil {
		return fmt.Errorf("scan active sessions: %w", err)
	}
	for _, s := range orphans {
		if s.ID == held {
			continue
		}
		return &RecoverableSessionError{Session: s}
	}
	return nil
}

// ResumeRecovered re-attaches an orphaned session in the paused state.
func (c *Controller) ResumeRecovered(ctx context.Context, id string) (Session, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.active != nil {
		return Session{}, ErrSessionActive
	}
	sess, err := c.store.GetSession(ctx, id)
	if err != nil {
		return Session{}, err
	}
	if !sess.IsActive || sess.EndedAt != nil {
		return Session{}, ErrSessionFinalized
	}
	samples, err := c.store.Samples(ctx, id)
	if err != nil {
		return Session{}, err
	}
	c.attach(sess, StatePaused, samples)
	log.Printf("tracking: re-attached session %s with %d samples", id, len(samples))
	return sess, nil
}

// FinalizeRecovered stops an orphaned session. Its end time is the last
// recorded sample, or the start time when nothing was recorded.
func (c *Controller) FinalizeRecovered(ctx context.Context, id string) (Analysis, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.active != nil && c.active.id == id {
		return Analysis{}, fmt.Errorf("%w: session %s is held, use stop", ErrInvalidTransition, id)
	}
	c.analysisMu.Lock()
	defer c.analysisMu.Unlock()

	sess, err := c.store.GetSession(ctx, id)
	if err != nil {
		return Analysis{}, err
	}
	if !sess.IsActive || sess.EndedAt != nil {
		return Analysis{}, ErrSessionFinalized
	}
	last, err := c.store.LastSample(ctx, id)
	if err != nil {
		return Analysis{}, err
	}
	end := sess.StartedAt
	if last != nil {
		end = last.RecordedAt
	}
	sess.EndedAt = &end
	sess.IsActive = false
	return c.finalize(ctx, sess)
}

// Analyze re-runs station detection and statistics on a finalized session.
// A completed analysis is returned as stored unless force is set.
func (c *Controller) Analyze(ctx context.Context, id string, force bool) (Analysis, error) {
	c.analysisMu.Lock()
	defer c.analysisMu.Unlock()

	sess, err := c.store.GetSession(ctx, id)
	if err != nil {
		return Analysis{}, err
	}
	if !sess.Finalized() {
		return Analysis{}, fmt.Errorf("%w: session %s is not finalized", ErrInvalidTransition, id)
	}
	if sess.StationAnalysisCompleted && !force {
		events, err := c.store.PassEvents(ctx, id)
		if err != nil {
			return Analysis{}, err
		}
		return Analysis{Session: sess, Events: nonNil(events)}, nil
	}
	return c.finalize(ctx, sess)
}

// finalize derives statistics and pass events from the stored samples and
// writes them along with sess.
func (c *Controller) finalize(ctx context.Context, sess Session) (Analysis, error) {
	samples, err := c.store.Samples(ctx, sess.ID)
	if err != nil {
		return Analysis{}, fmt.Errorf("load samples: %w", err)
	}
	var stations []station.Station
	if c.stations != nil {
		if stations, err = c.stations.List(ctx); err != nil {
			return Analysis{}, fmt.Errorf("load stations: %w", err)
		}
	}

	events := c.detector.Detect(sess.ID, samples, stations)
	if err := c.store.ReplacePassEvents(ctx, sess.ID, events); err != nil {
		return Analysis{}, fmt.Errorf("store pass events: %w", err)
	}

	stats := track.Summarize(samples)
	at := c.now()
	sess.TotalDistanceM = stats.DistanceM
	sess.AverageSpeedMps = stats.AverageSpeedMps
	sess.StationAnalysisCompleted = true
	sess.StationAnalysisAt = &at
	if err := c.store.UpdateSession(ctx, sess); err != nil {
		return Analysis{}, fmt.Errorf("store session: %w", err)
	}
	return Analysis{Session: sess, Events: nonNil(events)}, nil
}

func (c *Controller) Rename(ctx context.Context, id, name string) (Session, error) {
	name = strings.TrimSpace(name)
	return c.edit(ctx, id, func(s *Session) error {
		if name == "" {
			return fmt.Errorf("%w: name is empty", ErrInvalidEdit)
		}
		s.Name = name
		return nil
	})
}

func (c *Controller) SetInterval(ctx context.Context, id string, sec int) (Session, error) {
	return c.edit(ctx, id, func(s *Session) error {
		if sec <= 0 {
			return fmt.Errorf("%w: interval must be positive", ErrInvalidEdit)
		}
		s.IntervalSec = sec
		return nil
	})
}

// edit applies a user edit. The held session is edited on its recorder so
// the in-memory copy stays current.
func (c *Controller) edit(ctx context.Context, id string, apply func(*Session) error) (Session, error) {
	if r := c.current(); r != nil && r.id == id {
		var out Session
		var eerr error
		err := r.exec(ctx, func() bool {
			next := r.session
			if eerr = apply(&next); eerr != nil {
				return false
			}
			if eerr = c.store.UpdateSession(ctx, next); eerr != nil {
				return false
			}
			r.session = next
			out = next
			return false
		})
		if err == nil {
			return out, eerr
		}
		if !errors.Is(err, ErrNoActiveSession) {
			return Session{}, err
		}
	}

	c.analysisMu.Lock()
	defer c.analysisMu.Unlock()

	sess, err := c.store.GetSession(ctx, id)
	if err != nil {
		return Session{}, err
	}
	if err := apply(&sess); err != nil {
		return Session{}, err
	}
	if err := c.store.UpdateSession(ctx, sess); err != nil {
		return Session{}, err
	}
	return sess, nil
}

// Delete removes a session that is not currently held.
func (c *Controller) Delete(ctx context.Context, id string) error {
	if r := c.current(); r != nil && r.id == id {
		return ErrSessionActive
	}
	return c.store.DeleteSession(ctx, id)
}

func (c *Controller) Session(ctx context.Context, id string) (Session, error) {
	return c.store.GetSession(ctx, id)
}

func (c *Controller) Sessions(ctx context.Context) ([]Session, error) {
	return c.store.ListSessions(ctx)
}

// Samples returns the session's samples in timestamp order.
func (c *Controller) Samples(ctx context.Context, id string) ([]track.Sample, error) {
	if _, err := c.store.GetSession(ctx, id); err != nil {
		return nil, err
	}
	samples, err := c.store.Samples(ctx, id)
	if err != nil {
		return nil, err
	}
	return track.SortByTime(samples), nil
}

// PassEvents returns the session's events in display order.
func (c *Controller) PassEvents(ctx context.Context, id string) ([]station.PassEvent, error) {
	if _, err := c.store.GetSession(ctx, id); err != nil {
		return nil, err
	}
	events, err := c.store.PassEvents(ctx, id)
	if err != nil {
		return nil, err
	}
	return nonNil(events), nil
}

func (c *Controller) Summary(ctx context.Context, id string) (Summary, error) {
	sess, err := c.store.GetSession(ctx, id)
	if err != nil {
		return Summary{}, err
	}
	samples, err := c.store.Samples(ctx, id)
	if err != nil {
		return Summary{}, err
	}
	events, err := c.store.PassEvents(ctx, id)
	if err != nil {
		return Summary{}, err
	}
	return Summary{Session: sess, Stats: track.Summarize(samples), PassEvents: len(events)}, nil
}

func (c *Controller) Filter() filter.Settings {
	c.settingsMu.RLock()
	defer c.settingsMu.RUnlock()
	return c.settings
}

// UpdateFilter changes the filter for subsequent fixes. Nil leaves a value
// unchanged; out-of-range values are clamped.
func (c *Controller) UpdateFilter(thresholdM, minDistanceM *float64) filter.Settings {
	c.settingsMu.Lock()
	defer c.settingsMu.Unlock()
	if thresholdM != nil {
		c.settings.SetThreshold(*thresholdM)
	}
	if minDistanceM != nil {
		c.settings.SetMinDistance(*minDistanceM)
	}
	return c.settings
}

// Close releases the held session without finalizing it; it stays active in
// storage and is offered for recovery on the next start.
func (c *Controller) Close() {
	c.mu.Lock()
	r := c.active
	c.active = nil
	c.mu.Unlock()
	if r == nil {
		return
	}
	_ = r.exec(context.Background(), func() bool { return true })
	<-r.done
}

func nonNil(events []station.PassEvent) []station.PassEvent {
	if events == nil {
		return []station.PassEvent{}
	}
	return events
}
