//
// Copyright (c) 2026 Markku Rossi
//
// All rights reserved.
//

package p2p

import (
	"context"
	"fmt"
	"time"

	"github.com/cockroachdb/errors"
	"github.com/markkurossi/conclave/log"
	"github.com/markkurossi/conclave/types"
)

// Barrier message status codes.
const (
	StatusReady  byte = 1
	StatusAbort  byte = 2
	StatusReject byte = 3
)

const (
	defaultTimeout = 30 * time.Second
	retryDelay     = 50 * time.Millisecond
)

var (
	// ErrTimeout is returned when the barrier is not reached within
	// the barrier timeout.
	ErrTimeout = errors.New("p2p: rendezvous timeout")
	// ErrRejected is returned when the leader rejects a peer's
	// hello.
	ErrRejected = errors.New("p2p: rendezvous rejected")
)

// AbortError reports that a party announced that it will not run the
// job.
type AbortError struct {
	Job   string
	Party types.PartyID
}

func (e *AbortError) Error() string {
	return fmt.Sprintf("p2p: %s: rendezvous aborted by party %d",
		e.Job, e.Party)
}

// Barrier synchronizes the start of a multi-party job. The leader
// listens at Address and the other peers connect to it. Each peer
// sends a hello with its readiness, and the leader replies once all
// peers have checked in. The barrier fails if any peer aborts or if
// the peers do not check in within Timeout.
type Barrier struct {
	Network Network
	Address string
	Session string
	Job     string
	Party   types.PartyID
	Leader  types.PartyID
	Peers   types.Parties
	Timeout time.Duration
	Logger  log.Logger
}

// Wait announces that the party is ready to run the job and waits
// until all peers are ready.
func (b *Barrier) Wait(ctx context.Context) error {
	return b.run(ctx, StatusReady)
}

// Abort announces that the party will not run the job. It returns
// after the leader has acknowledged the abort, or on timeout.
func (b *Barrier) Abort(ctx context.Context) error {
	err := b.run(ctx, StatusAbort)
	var abort *AbortError
	if errors.As(err, &abort) {
		return nil
	}
	return err
}

func (b *Barrier) run(ctx context.Context, status byte) error {
	if !b.Peers.Contains(b.Party) || !b.Peers.Contains(b.Leader) {
		return errors.Newf("p2p: %s: party %d or leader %d not in peers %s",
			b.Job, b.Party, b.Leader, b.Peers)
	}
	if b.Logger == nil {
		b.Logger = log.Nop()
	}
	timeout := b.Timeout
	if timeout <= 0 {
		timeout = defaultTimeout
	}
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	var err error
	if b.Party == b.Leader {
		err = b.lead(ctx, status)
	} else {
		err = b.join(ctx, status)
	}
	if err != nil && ctx.Err() == context.DeadlineExceeded {
		return errors.Wrapf(ErrTimeout, "%s: party %d after %s",
			b.Job, b.Party, timeout)
	}
	return err
}

func (b *Barrier) lead(ctx context.Context, status byte) error {
	l, err := b.Network.Listen(b.Address)
	if err != nil {
		return errors.Wrapf(err, "p2p: %s: listen", b.Job)
	}
	defer l.Close()

	var aborted types.PartyID
	if status == StatusAbort {
		aborted = b.Party
	}
	pending := b.Peers.Subtract(types.NewParties(b.Party))
	conns := make(map[types.PartyID]*Conn)
	defer func() {
		for _, c := range conns {
			c.Close()
		}
	}()

	for len(conns) < pending.Len() {
		c, err := l.Accept(ctx)
		if err != nil {
			return err
		}
		party, st, err := b.hello(ctx, c)
		if err != nil {
			c.Close()
			if ctx.Err() != nil {
				return err
			}
			b.Logger.Warnw("rendezvous hello failed",
				"job", b.Job, "err", err)
			continue
		}
		if !pending.Contains(party) || conns[party] != nil {
			b.Logger.Warnw("rendezvous peer rejected",
				"job", b.Job, "peer", party)
			c.SendByte(StatusReject)
			c.Flush()
			c.Close()
			continue
		}
		conns[party] = c
		if st == StatusAbort && aborted == 0 {
			aborted = party
		}
		b.Logger.Debugw("rendezvous peer ready",
			"job", b.Job, "peer", party, "status", st)
	}

	reply := StatusReady
	if aborted != 0 {
		reply = StatusAbort
	}
	for _, party := range pending.Array() {
		c := conns[party]
		if err := c.SendByte(reply); err != nil {
			return err
		}
		if err := c.SendUint32(int(aborted)); err != nil {
			return err
		}
		if err := c.Flush(); err != nil {
			return err
		}
	}
	if aborted != 0 {
		return &AbortError{
			Job:   b.Job,
			Party: aborted,
		}
	}
	return nil
}

// hello reads the peer's hello message. Peers from a different
// session or job are reported with StatusReject.
func (b *Barrier) hello(ctx context.Context, c *Conn) (
	types.PartyID, byte, error) {

	stop := context.AfterFunc(ctx, func() {
		c.Close()
	})
	defer stop()

	session, err := c.ReceiveString()
	if err != nil {
		return 0, 0, err
	}
	job, err := c.ReceiveString()
	if err != nil {
		return 0, 0, err
	}
	party, err := c.ReceiveUint32()
	if err != nil {
		return 0, 0, err
	}
	status, err := c.ReceiveByte()
	if err != nil {
		return 0, 0, err
	}
	if session != b.Session || job != b.Job {
		c.SendByte(StatusReject)
		c.Flush()
		return 0, 0, errors.Newf("unexpected hello for session %s job %s",
			session, job)
	}
	return types.PartyID(party), status, nil
}

func (b *Barrier) join(ctx context.Context, status byte) error {
	for {
		c, err := b.Network.Dial(ctx, b.Address)
		if err == nil {
			err = b.handshake(ctx, c, status)
			b.Logger.Debugw("rendezvous handshake", "job", b.Job,
				"leader", b.Leader, "bytes", c.Stats.Sum(), "err", err)
			c.Close()
			var abort *AbortError
			if err == nil || errors.As(err, &abort) {
				return err
			}
		}
		b.Logger.Debugw("rendezvous retry",
			"job", b.Job, "leader", b.Leader, "err", err)
		select {
		case <-ctx.Done():
			return err
		case <-time.After(retryDelay):
		}
	}
}

// handshake sends the hello to the leader and reads its reply. The
// leader rejects the hello if it is running a barrier for another
// job. The join retries failed handshakes until the barrier times
// out.
func (b *Barrier) handshake(ctx context.Context, c *Conn, status byte) error {
	stop := context.AfterFunc(ctx, func() {
		c.Close()
	})
	defer stop()

	if err := c.SendString(b.Session); err != nil {
		return err
	}
	if err := c.SendString(b.Job); err != nil {
		return err
	}
	if err := c.SendUint32(int(b.Party)); err != nil {
		return err
	}
	if err := c.SendByte(status); err != nil {
		return err
	}
	if err := c.Flush(); err != nil {
		return err
	}

	reply, err := c.ReceiveByte()
	if err != nil {
		return err
	}
	switch reply {
	case StatusReady:
		return nil
	case StatusAbort:
		party, err := c.ReceiveUint32()
		if err != nil {
			return err
		}
		return &AbortError{
			Job:   b.Job,
			Party: types.PartyID(party),
		}
	case StatusReject:
		return errors.Wrapf(ErrRejected, "%s: party %d", b.Job, b.Party)
	default:
		return errors.Newf("p2p: %s: invalid rendezvous reply %d",
			b.Job, reply)
	}
}
