//
// Copyright (c) 2026 Markku Rossi
//
// All rights reserved.
//

package p2p

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/cockroachdb/errors"
	"github.com/markkurossi/conclave/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func barriers(nw Network, session string, timeout time.Duration,
	parties ...types.PartyID) []*Barrier {

	peers := types.NewParties(parties...)
	var result []*Barrier
	for _, p := range parties {
		result = append(result, &Barrier{
			Network: nw,
			Address: "leader",
			Session: session,
			Job:     "test-0-mpc1_2_3",
			Party:   p,
			Leader:  peers.Min(),
			Peers:   peers,
			Timeout: timeout,
		})
	}
	return result
}

func runAll(bs []*Barrier, abort map[types.PartyID]bool) []error {
	result := make([]error, len(bs))
	var wg sync.WaitGroup
	for idx, b := range bs {
		wg.Add(1)
		go func(idx int, b *Barrier) {
			defer wg.Done()
			if abort[b.Party] {
				result[idx] = b.Abort(context.Background())
			} else {
				result[idx] = b.Wait(context.Background())
			}
		}(idx, b)
	}
	wg.Wait()
	return result
}

func TestBarrierReady(t *testing.T) {
	nw := NewMemNetwork()
	for _, err := range runAll(barriers(nw, "s1", time.Second, 1, 2, 3), nil) {
		assert.NoError(t, err)
	}
}

func TestBarrierAbort(t *testing.T) {
	for _, aborter := range []types.PartyID{1, 3} {
		nw := NewMemNetwork()
		errs := runAll(barriers(nw, "s1", time.Second, 1, 2, 3),
			map[types.PartyID]bool{aborter: true})

		for idx, err := range errs {
			party := types.PartyID(idx + 1)
			if party == aborter {
				assert.NoError(t, err)
				continue
			}
			var abort *AbortError
			require.True(t, errors.As(err, &abort), "party %d: %v", party, err)
			assert.Equal(t, aborter, abort.Party)
		}
	}
}

func TestBarrierTimeout(t *testing.T) {
	nw := NewMemNetwork()
	bs := barriers(nw, "s1", 100*time.Millisecond, 1, 2, 3)

	// Party 3 never shows up.
	errs := runAll(bs[:2], nil)
	for _, err := range errs {
		assert.ErrorIs(t, err, ErrTimeout)
	}
}

func TestBarrierLeaderMissing(t *testing.T) {
	nw := NewMemNetwork()
	bs := barriers(nw, "s1", 100*time.Millisecond, 1, 2)

	err := bs[1].Wait(context.Background())
	assert.ErrorIs(t, err, ErrTimeout)
}

func TestBarrierStaleSession(t *testing.T) {
	nw := NewMemNetwork()
	current := barriers(nw, "current", 200*time.Millisecond, 1, 2)
	stale := barriers(nw, "stale", 200*time.Millisecond, 1, 2)

	errs := runAll([]*Barrier{current[0], stale[1]}, nil)
	assert.ErrorIs(t, errs[0], ErrTimeout)
	assert.ErrorIs(t, errs[1], ErrTimeout)
}

func TestBarrierInvalidPeers(t *testing.T) {
	nw := NewMemNetwork()
	b := barriers(nw, "s1", time.Second, 1, 2)[0]
	b.Party = 5
	assert.Error(t, b.Wait(context.Background()))
}

func TestBarrierTCP(t *testing.T) {
	l, err := (&TCPNetwork{}).Listen("127.0.0.1:0")
	require.NoError(t, err)
	addr := l.(*tcpListener).Addr().String()
	require.NoError(t, l.Close())

	bs := barriers(&TCPNetwork{}, "s1", 2*time.Second, 1, 2)
	for _, b := range bs {
		b.Address = addr
	}
	for _, err := range runAll(bs, nil) {
		assert.NoError(t, err)
	}
}
