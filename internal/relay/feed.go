package relay

import (
	"strings"
	"sync/atomic"
)

const defaultFeedSize = 256

// LogFeed is an io.Writer that turns each write into one log line queued for
// broadcast. Writes never block: when the queue is full the line is dropped.
type LogFeed struct {
	lines   chan string
	dropped atomic.Int64
}

func NewLogFeed(size int) *LogFeed {
	if size <= 0 {
		size = defaultFeedSize
	}
	return &LogFeed{lines: make(chan string, size)}
}

// Write implements io.Writer for the logger mirror.
func (f *LogFeed) Write(p []byte) (int, error) {
	f.Publish(strings.TrimRight(string(p), "\r\n"))
	return len(p), nil
}

// Publish queues one line.
func (f *LogFeed) Publish(line string) {
	if line == "" {
		return
	}
	select {
	case f.lines <- line:
	default:
		f.dropped.Add(1)
	}
}

// Dropped reports how many lines were discarded because nobody drained the feed.
func (f *LogFeed) Dropped() int64 { return f.dropped.Load() }

func (f *LogFeed) Lines() <-chan string { return f.lines }
