package storage

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"admindash/internal/metrics"
)

func TestLazyOpensOnce(t *testing.T) {
	backing := openTestStore(t)
	var opens atomic.Int32
	l := NewLazy(func(context.Context) (Store, error) {
		opens.Add(1)
		return backing, nil
	})

	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := l.Count(context.Background(), Users, Filter{})
			assert.NoError(t, err)
		}()
	}
	wg.Wait()
	assert.Equal(t, int32(1), opens.Load())
}

func TestLazyRetriesAfterFailure(t *testing.T) {
	backing := openTestStore(t)
	fail := true
	calls := 0
	l := NewLazy(func(context.Context) (Store, error) {
		calls++
		if fail {
			return nil, errors.New("connection refused")
		}
		return backing, nil
	})

	err := l.Ping(context.Background())
	var se *StoreError
	require.ErrorAs(t, err, &se)
	assert.Equal(t, "connect", se.Op)

	fail = false
	require.NoError(t, l.Ping(context.Background()))
	require.NoError(t, l.Ping(context.Background()))
	assert.Equal(t, 2, calls)
}

func TestLazyCloseWithoutOpen(t *testing.T) {
	l := NewLazy(func(context.Context) (Store, error) {
		t.Fatal("opener must not run")
		return nil, nil
	})
	assert.NoError(t, l.Close(context.Background()))
}

func TestInstrumentCountsFailuresButNotMisses(t *testing.T) {
	m := metrics.New()
	s := Instrument(openTestStore(t), m)
	ctx := context.Background()

	_, err := s.FindByID(ctx, Users, "missing")
	require.ErrorIs(t, err, ErrNotFound)
	_, err = s.Count(ctx, Users, Filter{Equals: map[string]string{"nickname": "x"}})
	require.Error(t, err)

	assert.Equal(t, 0.0, testutil.ToFloat64(m.StoreErrors.WithLabelValues("find_by_id", "users")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.StoreErrors.WithLabelValues("count", "users")))
	assert.Equal(t, 2, testutil.CollectAndCount(m.StoreOps))
}
