//
// Copyright (c) 2026 Markku Rossi
//
// All rights reserved.
//

// Package dispatch runs the job queues of a plan. Each party runs its
// queue in order. The jobs of an MPC group are started after all
// peers have reached the group's rendezvous barrier.
package dispatch

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/cockroachdb/errors"
	"github.com/hashicorp/go-multierror"
	"github.com/markkurossi/conclave/job"
	"github.com/markkurossi/conclave/log"
	"github.com/markkurossi/conclave/p2p"
	"github.com/markkurossi/conclave/types"
	"golang.org/x/sync/errgroup"
)

// Reason specifies why a job did not complete.
type Reason int

// Dispatch failure reasons.
const (
	JobFailed Reason = iota
	DependencyFailed
	RendezvousTimeout
	RendezvousAborted
)

// Reasons define the reason names.
var Reasons = map[Reason]string{
	JobFailed:         "job failed",
	DependencyFailed:  "dependency failed",
	RendezvousTimeout: "rendezvous timeout",
	RendezvousAborted: "rendezvous aborted",
}

func (r Reason) String() string {
	name, ok := Reasons[r]
	if ok {
		return name
	}
	return fmt.Sprintf("{Reason %d}", int(r))
}

// DispatchError reports a job that did not complete.
type DispatchError struct {
	Party  types.PartyID
	Job    string
	Reason Reason
	Err    error
}

func (e *DispatchError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("dispatch: party %d: %s: %s: %s",
			e.Party, e.Job, e.Reason, e.Err)
	}
	return fmt.Sprintf("dispatch: party %d: %s: %s", e.Party, e.Job, e.Reason)
}

func (e *DispatchError) Unwrap() error {
	return e.Err
}

// Dispatcher runs one party's job queue.
type Dispatcher struct {
	Plan      *job.Plan
	Party     types.PartyID
	Runner    Runner
	Network   p2p.Network
	Addresses map[types.PartyID]string
	Timeout   time.Duration
	Logger    log.Logger
	Metrics   *Metrics
}

// step holds the jobs of one job group. The jobs of a step are run
// concurrently.
type step struct {
	name string
	jobs []*job.Job
}

func (s *step) rendezvous() *job.Job {
	for _, j := range s.jobs {
		if j.Rendezvous {
			return j
		}
	}
	return nil
}

func (d *Dispatcher) steps() []*step {
	var result []*step
	for _, j := range d.Plan.Queue(d.Party) {
		if len(result) == 0 || result[len(result)-1].name != j.Name {
			result = append(result, &step{
				name: j.Name,
			})
		}
		s := result[len(result)-1]
		s.jobs = append(s.jobs, j)
	}
	return result
}

// Run runs the party's queue. A job whose dependency did not complete
// is skipped. If the skipped job has a rendezvous, the party aborts
// the rendezvous so that its peers do not wait for it. The jobs that
// do not depend on the failed jobs are run. Run returns all
// DispatchErrors of the party.
//
// A job that depends on another party's job waits on a handoff
// barrier that the party leads. The producing party joins the
// barrier in the background once its job has completed or failed, so
// the producer's queue does not wait for the consumer.
func (d *Dispatcher) Run(ctx context.Context) error {
	logger := d.Logger
	if logger == nil {
		logger = log.Nop()
	}
	r := &run{
		d:      d,
		logger: logger.With("party", d.Party),
		failed: make(map[string]bool),
	}

	var handoffs sync.WaitGroup
	for _, s := range d.steps() {
		r.step(ctx, s)

		for _, j := range s.jobs {
			completed := !r.failed[j.ID]
			for _, consumer := range d.Plan.Handoffs(j.ID).Array() {
				handoffs.Add(1)
				go func() {
					defer handoffs.Done()
					r.announce(ctx, j, consumer, completed)
				}()
			}
		}
	}
	handoffs.Wait()

	return r.result.ErrorOrNil()
}

// run holds the state of one Dispatcher.Run.
type run struct {
	d      *Dispatcher
	logger log.Logger
	m      sync.Mutex
	failed map[string]bool
	result *multierror.Error
}

func (r *run) fail(s *step, reason Reason, err error) {
	for _, j := range s.jobs {
		r.failed[j.ID] = true
		status := StatusFailed
		if reason == DependencyFailed {
			status = StatusSkipped
		}
		r.d.Metrics.job(r.d.Party, status)
		r.result = multierror.Append(r.result, &DispatchError{
			Party:  r.d.Party,
			Job:    j.ID,
			Reason: reason,
			Err:    err,
		})
	}
}

func (r *run) step(ctx context.Context, s *step) {
	d := r.d
	logger := r.logger

	reason := DependencyFailed
	var depErr error
	var remote []*job.Job
	seen := make(map[string]bool)
	for _, j := range s.jobs {
		for _, dep := range j.DependsOn {
			if r.failed[dep] && depErr == nil {
				depErr = errors.Newf("%s did not complete", dep)
			}
			dj, ok := d.Plan.Job(dep)
			if ok && dj.Party != d.Party && !seen[dep] {
				seen[dep] = true
				remote = append(remote, dj)
			}
		}
	}

	// Receive the other parties' outputs. After the first failure the
	// remaining producers are released with an abort.
	for _, dj := range remote {
		barrier, err := d.handoff(dj, d.Party, logger)
		if err != nil {
			if depErr == nil {
				depErr = err
				reason = RendezvousAborted
			}
			continue
		}
		if depErr != nil {
			if err := barrier.Abort(ctx); err != nil {
				logger.Warnw("handoff abort failed", "job", dj.ID,
					"err", err)
			}
			continue
		}
		start := time.Now()
		err = barrier.Wait(ctx)
		d.Metrics.handoff(d.Party, time.Since(start))
		if err != nil {
			var abort *p2p.AbortError
			switch {
			case errors.As(err, &abort):
				depErr = errors.Newf("%s did not complete", dj.ID)
			case errors.Is(err, p2p.ErrTimeout):
				depErr = err
				reason = RendezvousTimeout
			default:
				depErr = err
				reason = RendezvousAborted
			}
			logger.Warnw("handoff failed", "job", dj.ID, "err", err)
			continue
		}
		logger.Debugw("handoff received", "job", dj.ID,
			"from", dj.Party)
	}

	if rj := s.rendezvous(); rj != nil {
		barrier, err := d.barrier(rj, logger)
		if err != nil {
			r.fail(s, RendezvousAborted, err)
			return
		}
		if depErr != nil {
			logger.Warnw("aborting rendezvous", "job", s.name,
				"err", depErr)
			if err := barrier.Abort(ctx); err != nil {
				logger.Warnw("rendezvous abort failed", "job", s.name,
					"err", err)
			}
			r.fail(s, reason, depErr)
			return
		}
		start := time.Now()
		err = barrier.Wait(ctx)
		d.Metrics.rendezvous(d.Party, time.Since(start))
		if err != nil {
			reason := RendezvousAborted
			if errors.Is(err, p2p.ErrTimeout) {
				reason = RendezvousTimeout
			}
			logger.Errorw("rendezvous failed", "job", s.name,
				"reason", reason, "err", err)
			r.fail(s, reason, err)
			return
		}
	} else if depErr != nil {
		for _, j := range s.jobs {
			logger.Infow("job skipped", "job", j.ID, "backend", j.Backend)
		}
		r.fail(s, reason, depErr)
		return
	}

	var g errgroup.Group
	for _, j := range s.jobs {
		g.Go(func() error {
			logger.Infow("job started", "job", j.ID, "backend", j.Backend)
			err := d.Runner.Run(ctx, j)

			r.m.Lock()
			defer r.m.Unlock()
			if err != nil {
				logger.Errorw("job failed", "job", j.ID,
					"backend", j.Backend, "err", err)
				r.failed[j.ID] = true
				d.Metrics.job(d.Party, StatusFailed)
				r.result = multierror.Append(r.result, &DispatchError{
					Party:  d.Party,
					Job:    j.ID,
					Reason: JobFailed,
					Err:    err,
				})
				return nil
			}
			logger.Infow("job finished", "job", j.ID, "backend", j.Backend)
			d.Metrics.job(d.Party, StatusOK)
			return nil
		})
	}
	g.Wait()
}

// announce tells the consumer whether the producer job completed.
func (r *run) announce(ctx context.Context, j *job.Job,
	consumer types.PartyID, completed bool) {

	barrier, err := r.d.handoff(j, consumer, r.logger)
	if err != nil {
		r.logger.Warnw("handoff not announced", "job", j.ID,
			"consumer", consumer, "err", err)
		return
	}
	if completed {
		err = barrier.Wait(ctx)
	} else {
		err = barrier.Abort(ctx)
	}
	if err != nil {
		r.logger.Warnw("handoff announce failed", "job", j.ID,
			"consumer", consumer, "err", err)
		return
	}
	r.logger.Debugw("handoff announced", "job", j.ID,
		"consumer", consumer, "completed", completed)
}

// handoff creates the barrier that passes the producer job's output
// to the consumer party. The consumer leads the barrier.
func (d *Dispatcher) handoff(producer *job.Job, consumer types.PartyID,
	logger log.Logger) (*p2p.Barrier, error) {

	addr, ok := d.Addresses[consumer]
	if !ok {
		return nil, errors.Newf("no handoff address for party %d", consumer)
	}
	return &p2p.Barrier{
		Network: d.Network,
		Address: addr,
		Session: d.Plan.Session,
		Job:     fmt.Sprintf("%s>p%d", producer.ID, consumer),
		Party:   d.Party,
		Leader:  consumer,
		Peers:   types.NewParties(producer.Party, consumer),
		Timeout: d.Timeout,
		Logger:  logger,
	}, nil
}

func (d *Dispatcher) barrier(j *job.Job, logger log.Logger) (
	*p2p.Barrier, error) {

	addr, ok := d.Addresses[j.Coordinator]
	if !ok {
		return nil, errors.Newf("no rendezvous address for party %d",
			j.Coordinator)
	}
	return &p2p.Barrier{
		Network: d.Network,
		Address: addr,
		Session: d.Plan.Session,
		Job:     j.Name,
		Party:   d.Party,
		Leader:  j.Coordinator,
		Peers:   j.Peers,
		Timeout: d.Timeout,
		Logger:  logger,
	}, nil
}

// Results hold the per-party dispatch results.
type Results map[types.PartyID]error

// Err returns the combined error of all parties, or nil if all
// parties completed their queues.
func (r Results) Err() error {
	var result *multierror.Error
	for _, party := range r.parties() {
		if err := r[party]; err != nil {
			result = multierror.Append(result, err)
		}
	}
	return result.ErrorOrNil()
}

func (r Results) parties() []types.PartyID {
	var ids []types.PartyID
	for party := range r {
		ids = append(ids, party)
	}
	return types.NewParties(ids...).Array()
}

// RunAll runs the queues of all parties of the plan concurrently. The
// factory creates the dispatcher of a party. A party's failure does
// not cancel the other parties.
func RunAll(ctx context.Context, plan *job.Plan,
	factory func(party types.PartyID) *Dispatcher) Results {

	results := make(Results)
	var m sync.Mutex
	var g errgroup.Group

	for _, party := range plan.Parties().Array() {
		d := factory(party)
		g.Go(func() error {
			err := d.Run(ctx)
			m.Lock()
			results[party] = err
			m.Unlock()
			return nil
		})
	}
	g.Wait()

	return results
}
