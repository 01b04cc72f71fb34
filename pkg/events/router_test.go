package events

import (
	"bytes"
	"context"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"
)

func TestRouter_InMemoryRoundTrip(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	r, err := BuildRouter(ctx, DefaultSettings(), zerolog.Nop())
	require.NoError(t, err)

	got := make(chan EngagementEvent, 1)
	r.AddEngagementHandler("test-sink", func(ev EngagementEvent) error {
		got <- ev
		return nil
	})

	done := make(chan error, 1)
	go func() { done <- r.Run(ctx) }()

	select {
	case <-r.Running():
	case <-time.After(5 * time.Second):
		t.Fatal("router did not start")
	}

	want := EngagementEvent{
		RequestID:    "req-1",
		Coordinate:   "Ocean.Mystery",
		Mode:         "manifest",
		Fallback:     true,
		PromptTokens: 42,
		DurationMS:   7,
		At:           time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC),
	}
	require.NoError(t, r.PublishEngagement(context.Background(), want))

	select {
	case ev := <-got:
		require.Equal(t, want.RequestID, ev.RequestID)
		require.Equal(t, want.Coordinate, ev.Coordinate)
		require.Equal(t, want.Mode, ev.Mode)
		require.True(t, ev.Fallback)
		require.Equal(t, 42, ev.PromptTokens)
		require.True(t, want.At.Equal(ev.At))
	case <-time.After(5 * time.Second):
		t.Fatal("engagement event not delivered")
	}

	require.NoError(t, r.Close())
	cancel()
	select {
	case <-done:
	case <-time.After(10 * time.Second):
		t.Fatal("router did not stop")
	}
}

func TestNewLogHandler(t *testing.T) {
	var buf bytes.Buffer
	logger := zerolog.New(&buf)

	require.NoError(t, NewLogHandler(logger)(EngagementEvent{RequestID: "r", Coordinate: "Forest", Mode: "explore"}))
	require.Contains(t, buf.String(), `"coordinate":"Forest"`)
	require.Contains(t, buf.String(), `"message":"engagement"`)
}
