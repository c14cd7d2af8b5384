package executor

import (
	"context"
	"fmt"
	"hash/fnv"
	"sort"
	"sync"
	"time"

	"github.com/roach88/memoracle/internal/oracle"
)

// SimulatedWorkload models one query in the simulated engine.
type SimulatedWorkload struct {
	// PeakMB is the typical peak memory of the query.
	PeakMB oracle.Megabytes

	// JitterMB bounds the run-to-run variance of the peak in either direction.
	JitterMB oracle.Megabytes

	// FailWith, when set, makes every execution fail with this message.
	FailWith string

	// Latency delays the result, honouring context cancellation.
	Latency time.Duration
}

// Simulated is a deterministic in-process engine.
//
// Each query's peak memory is PeakMB plus a jitter derived from a hash of the
// query text, the options and the seed, so the same trial always consumes
// the same amount regardless of execution order. A query whose peak exceeds
// the session's mem_limit fails with MemLimitExceeded.
//
// Simulated is safe for concurrent use.
type Simulated struct {
	seed      uint64
	workloads map[string]SimulatedWorkload // keyed by query text

	mu       sync.Mutex
	open     int
	requests []Request
}

// NewSimulated creates a simulated engine keyed by query text.
func NewSimulated(seed uint64, workloads map[string]SimulatedWorkload) *Simulated {
	w := make(map[string]SimulatedWorkload, len(workloads))
	for q, sw := range workloads {
		w[q] = sw
	}
	return &Simulated{seed: seed, workloads: w}
}

// NewSimulatedFromReference models every reference workload with its
// threshold as peak and the given jitter.
func NewSimulatedFromReference(ref *oracle.Reference, jitter oracle.Megabytes, seed uint64) *Simulated {
	workloads := make(map[string]SimulatedWorkload, ref.Table.Len())
	for _, id := range ref.Table.IDs() {
		w, _ := ref.Table.Workload(id)
		workloads[w.Query] = SimulatedWorkload{PeakMB: w.MinMB, JitterMB: jitter}
	}
	return NewSimulated(seed, workloads)
}

// Name implements Executor.
func (s *Simulated) Name() string { return "simulated" }

// Open implements Executor.
func (s *Simulated) Open(ctx context.Context) (Session, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	s.mu.Lock()
	s.open++
	s.mu.Unlock()
	return &simSession{engine: s}, nil
}

// OpenSessions returns the number of sessions not yet closed.
func (s *Simulated) OpenSessions() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.open
}

// Requests returns a copy of every request executed so far.
func (s *Simulated) Requests() []Request {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]Request, len(s.requests))
	copy(out, s.requests)
	return out
}

// PeakFor returns the memory the engine would consume for req.
func (s *Simulated) PeakFor(req Request) (oracle.Megabytes, bool) {
	w, ok := s.workloads[req.QueryText]
	if !ok {
		return 0, false
	}
	return w.PeakMB + s.jitter(req, w.JitterMB), true
}

func (s *Simulated) jitter(req Request, bound oracle.Megabytes) oracle.Megabytes {
	if bound <= 0 {
		return 0
	}
	h := fnv.New64a()
	fmt.Fprintf(h, "%d\x00%s", s.seed, req.QueryText)
	keys := make([]string, 0, len(req.Options))
	for k := range req.Options {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		fmt.Fprintf(h, "\x00%s=%s", k, req.Options[k])
	}
	span := uint64(2*bound + 1)
	return oracle.Megabytes(h.Sum64()%span) - bound
}

type simSession struct {
	engine *Simulated
	closed bool
}

func (ss *simSession) Execute(ctx context.Context, req Request) (*ResultSet, error) {
	if ss.closed {
		return nil, fmt.Errorf("simulated: session closed")
	}

	e := ss.engine
	e.mu.Lock()
	e.requests = append(e.requests, Request{QueryText: req.QueryText, Options: copyOptions(req.Options)})
	e.mu.Unlock()

	w, ok := e.workloads[req.QueryText]
	if !ok {
		return nil, &ExecError{Message: "AnalysisException: could not resolve query"}
	}

	if w.Latency > 0 {
		timer := time.NewTimer(w.Latency)
		defer timer.Stop()
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-timer.C:
		}
	}

	if w.FailWith != "" {
		return nil, &ExecError{Message: w.FailWith}
	}

	limit := oracle.Unbounded
	if raw, ok := req.Options[OptionMemLimit]; ok {
		parsed, err := oracle.ParseMegabytes(raw)
		if err != nil {
			return nil, &ExecError{Message: fmt.Sprintf("Invalid query option: %s: %v", OptionMemLimit, err), Err: err}
		}
		limit = parsed
	}

	peak, _ := e.PeakFor(req)
	if !limit.IsUnbounded() && peak > limit {
		return nil, &ExecError{Message: fmt.Sprintf(
			"%s: query needed %dMB, limit is %dMB", MemLimitExceeded, peak, limit)}
	}
	return &ResultSet{Columns: []string{"result"}, Rows: 1}, nil
}

func (ss *simSession) Close() error {
	if ss.closed {
		return nil
	}
	ss.closed = true
	ss.engine.mu.Lock()
	ss.engine.open--
	ss.engine.mu.Unlock()
	return nil
}

func copyOptions(opts map[string]string) map[string]string {
	out := make(map[string]string, len(opts))
	for k, v := range opts {
		out[k] = v
	}
	return out
}
