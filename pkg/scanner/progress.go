package scanner

import (
	"context"
	"sync/atomic"
	"time"

	"github.com/dustin/go-humanize"

	"github.com/mediascout/mediascout/pkg/logger"
)

// Event is one progress notification from a running scan.
type Event struct {
	TaskID     string
	Stage      string
	Show       string
	Processed  int
	Total      int
	ETA        time.Duration
	FilesFound int
	BytesFound int64
	Message    string
}

// ProgressSink receives scan progress events.
type ProgressSink interface {
	Publish(ctx context.Context, event Event)
}

// progress counts completed show reconciliations during one run and
// projects the remaining time from the pace so far.
type progress struct {
	total int
	start time.Time
	done  atomic.Int64
}

func newProgress(total int) *progress {
	return &progress{total: total, start: time.Now()}
}

// step records one finished show and returns the counts for its event.
func (p *progress) step() (processed, total int, eta time.Duration) {
	n := int(p.done.Add(1))
	if n < p.total {
		elapsed := time.Since(p.start)
		eta = elapsed / time.Duration(n) * time.Duration(p.total-n)
	}
	return n, p.total, eta
}

// LogSink writes progress events to the structured log.
type LogSink struct{}

func (LogSink) Publish(ctx context.Context, event Event) {
	log := logger.FromCtx(ctx).With("task", event.TaskID, "stage", event.Stage)
	if event.Show != "" {
		log = log.With("show", event.Show)
	}
	if event.Total > 0 {
		log = log.With("progress", humanize.Comma(int64(event.Processed))+"/"+humanize.Comma(int64(event.Total)))
		if event.ETA > 0 {
			log = log.With("eta", event.ETA.Round(time.Second).String())
		}
	}

	if event.FilesFound > 0 {
		log.Infow(event.Message,
			"files", humanize.Comma(int64(event.FilesFound)),
			"size", humanize.Bytes(uint64(event.BytesFound)))
		return
	}

	log.Info(event.Message)
}
