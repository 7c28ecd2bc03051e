package events_test

import (
	"testing"

	"github.com/purplix/backend/internal/purplix/events"
	"github.com/stretchr/testify/require"
)

func TestHub(t *testing.T) {
	h := events.NewHub[string](2)

	a, cancelA := h.Subscribe("survey-1")
	b, cancelB := h.Subscribe("survey-1")
	other, cancelOther := h.Subscribe("survey-2")
	defer cancelOther()

	require.Equal(t, 2, h.Publish("survey-1", "x"))
	require.Equal(t, "x", <-a)
	require.Equal(t, "x", <-b)
	require.Empty(t, other)

	cancelB()
	cancelB() // idempotent
	_, open := <-b
	require.False(t, open)
	require.Equal(t, 1, h.Subscribers("survey-1"))

	// a's buffer holds two; the third publish is dropped, not blocked.
	require.Equal(t, 1, h.Publish("survey-1", "1"))
	require.Equal(t, 1, h.Publish("survey-1", "2"))
	require.Equal(t, 0, h.Publish("survey-1", "3"))
	require.Equal(t, "1", <-a)
	require.Equal(t, "2", <-a)

	cancelA()
	require.Zero(t, h.Subscribers("survey-1"))
	require.Zero(t, h.Publish("nobody", "x"))
}
