package pipeline

import (
	"context"
	"testing"

	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nvr-ai/camdetect/dispatch"
)

func TestFutureContinuationsRunOnlyOnDrain(t *testing.T) {
	q := dispatch.New()
	f := NewFuture[int](q)

	var got []int
	f.Then(func(v int) { got = append(got, v) }, nil)

	_, _, ok := f.Result()
	assert.False(t, ok)

	require.True(t, f.Resolve(42))
	assert.False(t, f.Resolve(7), "a future resolves once")
	assert.False(t, f.Reject(errors.New("late")))
	assert.Empty(t, got)

	f.Then(func(v int) { got = append(got, v+1) }, nil)
	assert.Equal(t, 2, q.Drain())
	assert.Equal(t, []int{42, 43}, got)

	v, err, ok := f.Result()
	assert.True(t, ok)
	assert.NoError(t, err)
	assert.Equal(t, 42, v)
}

func TestFutureReject(t *testing.T) {
	q := dispatch.New()
	f := NewFuture[string](q)
	boom := errors.New("boom")

	var gotErr error
	valueCalled := false
	f.Then(func(string) { valueCalled = true }, func(err error) { gotErr = err })
	f.Then(nil, nil)

	require.True(t, f.Reject(boom))
	q.Drain()
	assert.False(t, valueCalled)
	assert.Equal(t, boom, gotErr)

	_, err := f.Wait(context.Background())
	assert.Equal(t, boom, err)

	select {
	case <-f.Done():
	default:
		t.Fatal("done channel should be closed")
	}
}

func TestFutureWaitHonorsContext(t *testing.T) {
	f := NewFuture[int](dispatch.New())
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := f.Wait(ctx)
	assert.True(t, errors.Is(err, context.Canceled))
}
