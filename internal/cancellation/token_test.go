package cancellation

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestToken_InitiallyLive(t *testing.T) {
	tok := New()
	assert.False(t, tok.Cancelled())
	require.NoError(t, tok.Check())
}

func TestToken_Cancel(t *testing.T) {
	tok := New()
	tok.Cancel()
	assert.True(t, tok.Cancelled())
	assert.ErrorIs(t, tok.Check(), ErrCancelled)

	select {
	case <-tok.Done():
	default:
		t.Fatal("Done() channel should be closed after Cancel")
	}
}

func TestToken_CancelIdempotent(t *testing.T) {
	tok := New()
	tok.Cancel()
	require.NotPanics(t, func() {
		tok.Cancel()
		tok.Cancel()
	})
}

func TestToken_ConcurrentCancel(t *testing.T) {
	tok := New()
	done := make(chan struct{})
	for i := 0; i < 16; i++ {
		go func() {
			tok.Cancel()
			done <- struct{}{}
		}()
	}
	for i := 0; i < 16; i++ {
		select {
		case <-done:
		case <-time.After(time.Second):
			t.Fatal("timed out waiting for concurrent Cancel calls")
		}
	}
	assert.True(t, tok.Cancelled())
}

func TestToken_ZeroValueUsable(t *testing.T) {
	var tok Token
	assert.False(t, tok.Cancelled())
	tok.Cancel()
	assert.True(t, tok.Cancelled())
}
