package session

import (
	"bufio"
	"errors"
	"io"
	"log/slog"
	"os"
	"strings"
	"time"
)

const (
	pumpInitialBuf = 64 * 1024
	pumpMaxBuf     = 1024 * 1024
)

// runPump drains one output channel line by line into out, tagging each
// line with the channel name and a per-pump sequence number starting at
// 1. Malformed bytes are replaced with U+FFFD rather than aborting.
// Returns when the channel hits EOF or a read error, which is reported
// through logf rather than failing the session.
func runPump(r io.Reader, channel string, out chan<- OutputChunk, logf func(slog.Level, string)) {
	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, pumpInitialBuf), pumpMaxBuf)

	var seq uint64
	for scanner.Scan() {
		seq++
		out <- OutputChunk{
			Channel:   channel,
			Text:      strings.ToValidUTF8(scanner.Text(), "�"),
			Seq:       seq,
			Timestamp: time.Now(),
		}
	}

	if err := scanner.Err(); err != nil {
		// A closed pipe here means the drain timeout fired because an
		// orphaned descendant kept the write end open.
		if errors.Is(err, os.ErrClosed) {
			logf(slog.LevelWarn, channel+" pipe abandoned by surviving descendant")
			return
		}
		logf(slog.LevelWarn, channel+" read error: "+err.Error())
	}
}
