package cluster

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLocalQueue_PutGet(t *testing.T) {
	c := NewLocalClient()
	q := c.Queue("trial-1")

	require.NoError(t, q.Put(context.Background(), []byte("hello")))
	payload, err := q.Get(context.Background(), time.Second)
	require.NoError(t, err)
	assert.Equal(t, []byte("hello"), payload)
}

func TestLocalQueue_GetTimesOut(t *testing.T) {
	c := NewLocalClient()
	q := c.Queue("empty")

	_, err := q.Get(context.Background(), 10*time.Millisecond)
	assert.ErrorIs(t, err, context.DeadlineExceeded)
}

func TestLocalQueue_SameNameSharesState(t *testing.T) {
	c := NewLocalClient()
	require.NoError(t, c.Queue("q").Put(context.Background(), []byte("x")))
	payload, err := c.Queue("q").Get(context.Background(), time.Second)
	require.NoError(t, err)
	assert.Equal(t, []byte("x"), payload)
}

func TestLocalVariable_SetThenGet(t *testing.T) {
	c := NewLocalClient()
	v := c.Variable("stop-flag")

	require.NoError(t, v.Set(context.Background(), []byte("1")))
	value, err := v.Get(context.Background())
	require.NoError(t, err)
	assert.Equal(t, []byte("1"), value)
}

func TestLocalVariable_GetBlocksUntilSet(t *testing.T) {
	c := NewLocalClient()
	v := c.Variable("task-state")

	done := make(chan []byte, 1)
	go func() {
		value, err := v.Get(context.Background())
		require.NoError(t, err)
		done <- value
	}()

	time.Sleep(10 * time.Millisecond)
	require.NoError(t, v.Set(context.Background(), []byte("running")))

	select {
	case value := <-done:
		assert.Equal(t, []byte("running"), value)
	case <-time.After(time.Second):
		t.Fatal("Get never unblocked")
	}
}

func TestLocalClient_SubmitRunsWorkFunc(t *testing.T) {
	c := NewLocalClient()
	future, err := c.Submit(context.Background(), TaskContext{TrialID: 1}, func(ctx context.Context, task TaskContext) error {
		return nil
	})
	require.NoError(t, err)
	assert.NoError(t, future.Wait(context.Background()))
	assert.True(t, future.Done())
}
