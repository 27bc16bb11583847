package engine

import (
	"context"
	"fmt"
	"log"
	"time"

	"go.opentelemetry.io/otel/metric"

	"github.com/neonvoidvibes/align/internal/llm"
	"github.com/neonvoidvibes/align/internal/scoring"
	"github.com/neonvoidvibes/align/internal/store"
)

// Store is everything a run reads and writes. *store.DB implements it.
type Store interface {
	GetMessage(id string) (*store.Message, error)
	MarkProcessed(id string) error

	LatestRawValues() (scoring.Day, scoring.Values, bool, error)
	RawValuesForDays(days []scoring.Day) (scoring.History, error)
	PutRawValues(day scoring.Day, values scoring.Values) error

	PutSnapshot(snap scoring.Snapshot) error
}

// State is a stage of one analysis run.
type State int

const (
	Idle State = iota
	FetchingContext
	ResolvingValues
	PersistingRaw
	Scoring
	PersistingScores
	Done
	Failed
)

func (s State) String() string {
	switch s {
	case Idle:
		return "idle"
	case FetchingContext:
		return "fetching-context"
	case ResolvingValues:
		return "resolving-values"
	case PersistingRaw:
		return "persisting-raw"
	case Scoring:
		return "scoring"
	case PersistingScores:
		return "persisting-scores"
	case Done:
		return "done"
	case Failed:
		return "failed"
	default:
		return fmt.Sprintf("state(%d)", int(s))
	}
}

// RunResult describes what one run did.
type RunResult struct {
	MessageID   string
	State       State
	FailedIn    State  // stage that failed, when State is Failed
	Skipped     bool   // ended without scoring
	Reason      string // why the run was skipped
	Day         scoring.Day
	DaysElapsed int
	Inferred    scoring.Values
	Raw         scoring.Values
	Snapshot    *scoring.Snapshot
}

// Engine runs the message → values → scores pipeline.
type Engine struct {
	Store    Store
	Registry *scoring.Registry
	Inferrer *Inferrer

	now     func() time.Time
	metrics instruments
}

// Option configures an Engine.
type Option func(*options)

type options struct {
	meterProvider metric.MeterProvider
}

// WithMeterProvider records run counters on mp instead of the global provider.
func WithMeterProvider(mp metric.MeterProvider) Option {
	return func(o *options) { o.meterProvider = mp }
}

// New creates an Engine. client may be nil, in which case every run decays.
func New(st Store, reg *scoring.Registry, client llm.Client, opts ...Option) *Engine {
	var o options
	for _, opt := range opts {
		opt(&o)
	}
	e := &Engine{
		Store:    st,
		Registry: reg,
		now:      time.Now,
		metrics:  newInstruments(o.meterProvider),
	}
	e.Inferrer = &Inferrer{
		LLM:      client,
		Registry: reg,
		OnFailure: func(error) {
			e.metrics.inferenceFailed(context.Background())
		},
	}
	return e
}

type run struct {
	res *RunResult
}

func (r *run) to(s State) {
	log.Printf("analyze %s: %s -> %s", r.res.MessageID, r.res.State, s)
	r.res.State = s
}

func (r *run) fail(err error) (*RunResult, error) {
	r.res.FailedIn = r.res.State
	r.res.State = Failed
	return r.res, fmt.Errorf("analyze %s (%s): %w", r.res.MessageID, r.res.FailedIn, err)
}

func (r *run) skip(reason string) (*RunResult, error) {
	log.Printf("analyze %s: skipped: %s", r.res.MessageID, reason)
	r.res.Skipped = true
	r.res.Reason = reason
	r.res.State = Done
	return r.res, nil
}

// Analyze runs the full pipeline for one message and persists the day's raw
// row and score snapshot. Cancellation through ctx is honoured only until the
// raw row is about to be written; after that the run completes or fails on
// storage errors alone.
func (e *Engine) Analyze(ctx context.Context, messageID string) (*RunResult, error) {
	res, err := e.analyze(ctx, messageID)
	switch {
	case err != nil:
		e.metrics.run(ctx, "failed")
	case res.Skipped:
		e.metrics.run(ctx, "skipped")
	default:
		e.metrics.run(ctx, "done")
	}
	return res, err
}

func (e *Engine) analyze(ctx context.Context, messageID string) (*RunResult, error) {
	r := &run{res: &RunResult{MessageID: messageID, State: Idle}}

	r.to(FetchingContext)
	msg, err := e.Store.GetMessage(messageID)
	if err != nil {
		return r.fail(err)
	}
	if msg == nil {
		return r.skip("message not found")
	}
	if msg.Processed() || !msg.UserAuthored() {
		if err := e.Store.MarkProcessed(messageID); err != nil {
			return r.fail(err)
		}
		if msg.Processed() {
			return r.skip("already processed")
		}
		return r.skip("not user-authored")
	}

	lastDay, last, ok, err := e.Store.LatestRawValues()
	if err != nil {
		return r.fail(err)
	}
	day := scoring.DayOf(msg.CreatedAt, e.Registry.Location())
	elapsed := 0
	if ok {
		elapsed = day.DaysSince(lastDay)
		if elapsed < 0 {
			log.Printf("analyze %s: message day %s precedes last recorded day %s, not decaying", messageID, day, lastDay)
			elapsed = 0
		}
	}
	r.res.Day = day
	r.res.DaysElapsed = elapsed

	r.to(ResolvingValues)
	inferred := e.Inferrer.Infer(ctx, msg.Content, last)
	resolved := scoring.Resolve(e.Registry, inferred, last, elapsed)
	r.res.Inferred = inferred
	r.res.Raw = resolved

	if err := ctx.Err(); err != nil {
		return r.fail(fmt.Errorf("cancelled before persisting: %w", err))
	}

	r.to(PersistingRaw)
	if err := e.Store.PutRawValues(day, resolved); err != nil {
		return r.fail(err)
	}

	r.to(Scoring)
	history, err := e.Store.RawValuesForDays(scoring.PriorDays(day))
	if err != nil {
		return r.fail(err)
	}
	snap := scoring.Score(e.Registry, day, resolved, history)
	snap.ComputedAt = e.now()

	r.to(PersistingScores)
	if err := e.Store.PutSnapshot(snap); err != nil {
		return r.fail(err)
	}
	r.res.Snapshot = &snap
	if err := e.Store.MarkProcessed(messageID); err != nil {
		return r.fail(err)
	}

	r.to(Done)
	log.Printf("analyze %s: %s score=%d priority=%s", messageID, day, snap.DisplayScore, snap.Priority)
	return r.res, nil
}
