package messenger

import (
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSendReceiveRoundTrip(t *testing.T) {
	m := New[int]()

	s, ok := m.Send(0, 42)
	require.True(t, ok)
	assert.EqualValues(t, 1, s)

	payload, news, ok := m.Receive(0)
	require.True(t, ok)
	assert.Equal(t, 42, payload)
	assert.EqualValues(t, 1, news)
}

func TestReceiveBlocksUntilSend(t *testing.T) {
	m := New[string]()
	var wg sync.WaitGroup
	wg.Add(1)

	var got string
	go func() {
		defer wg.Done()
		payload, _, ok := m.Receive(0)
		if ok {
			got = payload
		}
	}()

	time.Sleep(10 * time.Millisecond) // let the receiver park on the condvar
	_, ok := m.Send(0, "hello")
	require.True(t, ok)

	wg.Wait()
	assert.Equal(t, "hello", got)
}

// TestSingleSlotInvariant checks that after Send(0) returns 1, Receive(0)
// observes {1, payload}, and a second Receive presenting the now-current
// state 1 blocks until another Send rather than re-observing the frame.
func TestSingleSlotInvariant(t *testing.T) {
	m := New[int]()

	news, ok := m.Send(0, 7)
	require.True(t, ok)
	require.EqualValues(t, 1, news)

	payload, s1, ok := m.Receive(0)
	require.True(t, ok)
	assert.Equal(t, 7, payload)
	assert.EqualValues(t, 1, s1)

	done := make(chan struct{})
	go func() {
		m.Receive(1) // presents the now-current state; must block
		close(done)
	}()

	select {
	case <-done:
		t.Fatal("second Receive at the current state returned without a new Send")
	case <-time.After(20 * time.Millisecond):
	}

	m.Terminate()
	<-done
}

func TestTerminateWakesBlockedCallers(t *testing.T) {
	m := New[int]()
	var wg sync.WaitGroup
	wg.Add(2)

	var sendOK, recvOK bool
	go func() {
		defer wg.Done()
		_, sendOK = m.Send(99, 0) // never matches, would block forever otherwise
	}()
	go func() {
		defer wg.Done()
		_, _, recvOK = m.Receive(0)
	}()

	time.Sleep(10 * time.Millisecond)
	m.Terminate()

	wg.Wait()
	assert.False(t, sendOK)
	assert.False(t, recvOK)
}

func TestGetStateDoesNotBlock(t *testing.T) {
	m := New[int]()
	assert.EqualValues(t, 0, m.GetState())
	m.Send(0, 1)
	assert.EqualValues(t, 1, m.GetState())
}
