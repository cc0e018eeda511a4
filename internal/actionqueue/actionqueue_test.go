package actionqueue

import (
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/satori-rtm/rtmclient/internal/rtmerr"
)

func TestPushUserFailsWhenFull(t *testing.T) {
	q := New(2)
	require.NoError(t, q.PushUser("a"))
	require.NoError(t, q.PushUser("b"))

	err := q.PushUser("c")
	assert.True(t, errors.Is(err, rtmerr.ErrQueueFull))
}

func TestInternalSignalsNeverFail(t *testing.T) {
	q := New(1)
	require.NoError(t, q.PushUser("a"))
	assert.NotPanics(t, func() {
		for i := 0; i < 1000; i++ {
			q.PushInternal(i)
		}
	})
}

func TestPopPrefersInternalOverUser(t *testing.T) {
	q := New(4)
	require.NoError(t, q.PushUser("user"))
	q.PushInternal("internal")

	a, ok := q.Pop()
	require.True(t, ok)
	assert.Equal(t, "internal", a)

	a, ok = q.Pop()
	require.True(t, ok)
	assert.Equal(t, "user", a)
}

func TestPopBlocksUntilPush(t *testing.T) {
	q := New(4)
	done := make(chan Action, 1)
	go func() {
		a, ok := q.Pop()
		if ok {
			done <- a
		}
	}()

	time.Sleep(10 * time.Millisecond)
	q.PushInternal("signal")

	select {
	case a := <-done:
		assert.Equal(t, "signal", a)
	case <-time.After(time.Second):
		t.Fatal("Pop did not return after push")
	}
}

func TestCloseUnblocksPop(t *testing.T) {
	q := New(4)
	done := make(chan bool, 1)
	go func() {
		_, ok := q.Pop()
		done <- ok
	}()

	time.Sleep(10 * time.Millisecond)
	q.Close()

	select {
	case ok := <-done:
		assert.False(t, ok)
	case <-time.After(time.Second):
		t.Fatal("Close did not unblock Pop")
	}
}
