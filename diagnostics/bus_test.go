package diagnostics

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type received struct {
	level   Level
	message string
}

func TestPublishFiltersByMinLevel(t *testing.T) {
	bus := New("Test")
	var got []received
	unsubscribe := bus.Subscribe(func(sender string, level Level, message string) {
		require.Equal(t, "Test", sender)
		got = append(got, received{level, message})
	}, LevelWarning)
	defer unsubscribe()

	bus.Publish(LevelError, "blablabla")
	bus.Publish(3, "too quiet")
	pop := bus.PushContext("spam")
	bus.Publish(LevelWarning, "inside")
	pop()
	bus.Publish(6, "after")

	require.Equal(t, []received{
		{LevelError, "blablabla"},
		{LevelWarning, "spam: inside"},
		{6, "after"},
	}, got)
}

func TestContextNesting(t *testing.T) {
	bus := New("Test")
	var last string
	unsubscribe := bus.Subscribe(func(_ string, _ Level, message string) {
		last = message
	}, 0)
	defer unsubscribe()

	popX := bus.PushContext("X")
	bus.Publish(0, "m1")
	assert.Equal(t, "X: m1", last)

	popY := bus.PushContext("Y")
	bus.Publish(0, "m2")
	assert.Equal(t, "X: Y: m2", last)

	popY()
	popX()
	bus.Publish(0, "m3")
	assert.Equal(t, "m3", last)
}

func TestUnsubscribeIsIdempotent(t *testing.T) {
	bus := New("Test")
	var firstCount, secondCount int
	unsubFirst := bus.Subscribe(func(string, Level, string) { firstCount++ }, 0)
	unsubSecond := bus.Subscribe(func(string, Level, string) { secondCount++ }, 0)

	unsubFirst()
	unsubFirst() // idempotent: must not disturb the second subscription

	bus.Publish(0, "hello")
	assert.Equal(t, 0, firstCount)
	assert.Equal(t, 1, secondCount)

	unsubSecond()
	bus.Publish(0, "hello again")
	assert.Equal(t, 1, secondCount)
}

func TestMinLevel(t *testing.T) {
	bus := New("Test")
	require.Equal(t, levelInfinity, bus.MinLevel())
	unsubA := bus.Subscribe(func(string, Level, string) {}, 5)
	defer unsubA()
	require.Equal(t, Level(5), bus.MinLevel())
	unsubB := bus.Subscribe(func(string, Level, string) {}, 2)
	defer unsubB()
	require.Equal(t, Level(2), bus.MinLevel())
}

func TestChainRepublishesUnderOriginalSender(t *testing.T) {
	upstream := New("Upstream")
	downstream := New("Downstream")
	var sender string
	var level Level
	unsubscribe := downstream.Subscribe(func(s string, l Level, _ string) {
		sender = s
		level = l
	}, 0)
	defer unsubscribe()

	unchain := upstream.Subscribe(downstream.Chain(), 0)
	defer unchain()

	upstream.Publish(LevelError, "boom")
	assert.Equal(t, "Upstream", sender)
	assert.Equal(t, LevelError, level)
}
