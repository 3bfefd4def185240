package terrain

import (
	"context"
	"sync"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRunnerLatestWins(t *testing.T) {
	const size = 512

	started := make(chan struct{})
	proceed := make(chan struct{})
	var startOnce, proceedOnce sync.Once
	var firstBatches atomic.Int32

	pl := NewPipeline(nil)
	pl.SetProgress(func(p Params, stage Stage, done, total int) {
		switch p.Seed {
		case 1:
			firstBatches.Add(1)
			startOnce.Do(func() {
				close(started)
				<-proceed
			})
		case 2:
			// the second run only gets here after it has cancelled the first
			proceedOnce.Do(func() { close(proceed) })
		}
	})
	runner := NewRunner(pl, nil)

	first := boundaryParams()
	first.Seed = 1
	first.Level = 2
	second := first
	second.Seed = 2

	var wg sync.WaitGroup
	var m1, m2 *Model
	var err1, err2 error

	wg.Add(1)
	go func() {
		defer wg.Done()
		m1, err1 = runner.Submit(context.Background(), first, size, size)
	}()

	<-started

	wg.Add(1)
	go func() {
		defer wg.Done()
		m2, err2 = runner.Submit(context.Background(), second, size, size)
	}()

	wg.Wait()

	assert.Nil(t, m1)
	assert.ErrorIs(t, err1, ErrCancelled)
	assert.Equal(t, int32(1), firstBatches.Load(), "first run must stop within one row batch")

	require.NoError(t, err2)
	require.NotNil(t, m2)
	assert.Equal(t, int64(2), m2.Seed())
	assert.Same(t, m2, runner.Current())
}

func TestRunnerSequentialRunsUpdateCurrent(t *testing.T) {
	runner := NewRunner(nil, nil)
	assert.Nil(t, runner.Current())

	p := boundaryParams()
	a, err := runner.Submit(context.Background(), p, 8, 8)
	require.NoError(t, err)
	assert.Same(t, a, runner.Current())

	p.Seed = 9
	b, err := runner.Submit(context.Background(), p, 8, 8)
	require.NoError(t, err)
	assert.Same(t, b, runner.Current())
}

func TestRunnerInvalidKeepsCurrent(t *testing.T) {
	runner := NewRunner(nil, nil)
	good, err := runner.Submit(context.Background(), boundaryParams(), 4, 4)
	require.NoError(t, err)

	bad := boundaryParams()
	bad.Scale = -1
	_, err = runner.Submit(context.Background(), bad, 4, 4)
	assert.ErrorIs(t, err, ErrInvalidParameter)
	assert.Same(t, good, runner.Current())
}

func TestRunnerCancel(t *testing.T) {
	pl := NewPipeline(nil)
	runner := NewRunner(pl, nil)

	inFlight := make(chan struct{})
	var once sync.Once
	pl.SetProgress(func(Params, Stage, int, int) {
		once.Do(func() {
			runner.Cancel()
			close(inFlight)
		})
	})

	m, err := runner.Submit(context.Background(), boundaryParams(), 64, 64)
	<-inFlight
	assert.Nil(t, m)
	assert.ErrorIs(t, err, ErrCancelled)
	assert.Nil(t, runner.Current())
}

func TestRunnerBeginOrderDecidesLatest(t *testing.T) {
	runner := NewRunner(nil, nil)

	first := boundaryParams()
	first.Seed = 1
	second := first
	second.Seed = 2

	older := runner.Begin(context.Background())
	newer := runner.Begin(context.Background())

	// the newer ticket runs to completion before the older one starts
	m2, err := runner.Run(newer, second, 16, 16)
	require.NoError(t, err)
	assert.Equal(t, int64(2), m2.Seed())

	m1, err := runner.Run(older, first, 16, 16)
	assert.Nil(t, m1)
	assert.ErrorIs(t, err, ErrCancelled)
	assert.Same(t, m2, runner.Current())
}

func TestRunnerConcurrentTicketsKeepArrivalOrder(t *testing.T) {
	for i := 0; i < 50; i++ {
		runner := NewRunner(nil, nil)
		p := boundaryParams()

		var wg sync.WaitGroup
		errs := make([]error, 2)
		for seed := int64(1); seed <= 2; seed++ {
			ticket := runner.Begin(context.Background())
			p.Seed = seed
			wg.Add(1)
			go func(p Params) {
				defer wg.Done()
				_, errs[p.Seed-1] = runner.Run(ticket, p, 16, 16)
			}(p)
		}
		wg.Wait()

		assert.ErrorIs(t, errs[0], ErrCancelled)
		require.NoError(t, errs[1])
		require.NotNil(t, runner.Current())
		assert.Equal(t, int64(2), runner.Current().Seed())
	}
}
