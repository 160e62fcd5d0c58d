package main

import (
	"context"
	"io"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestReadLines_ClosesOnEOF(t *testing.T) {
	lines := readLines(context.Background(), strings.NewReader("on\nbri 40\n"))

	for _, want := range []string{"on", "bri 40"} {
		got, ok := nextLine(context.Background(), lines)
		require.True(t, ok)
		assert.Equal(t, want, got)
	}
	_, ok := nextLine(context.Background(), lines)
	assert.False(t, ok)
}

func TestNextLine_ReturnsWhenContextEnds(t *testing.T) {
	pr, pw := io.Pipe()
	t.Cleanup(func() { _ = pw.Close() })

	ctx, cancel := context.WithCancel(context.Background())
	lines := readLines(ctx, pr)

	done := make(chan bool, 1)
	go func() {
		_, ok := nextLine(ctx, lines)
		done <- ok
	}()

	cancel()
	select {
	case ok := <-done:
		assert.False(t, ok)
	case <-time.After(2 * time.Second):
		t.Fatalf("input loop ignored cancellation while stdin was idle")
	}
}
