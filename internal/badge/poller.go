// Package badge refreshes a user's total unread count on a fixed cadence.
// The job is bound to a session lifetime: Stop releases it on teardown.
package badge

import (
	"context"
	"io"
	"log/slog"
	"sync"
	"time"

	"github.com/kgellert/lagoon-messenger/internal/lib/logger/sl"
	"github.com/kgellert/lagoon-messenger/internal/rooms"
)

const defaultInterval = 30 * time.Second

type Poller struct {
	dir      *rooms.Directory
	userID   string
	interval time.Duration
	onCount  func(int64)
	log      *slog.Logger

	stop     chan struct{}
	stopOnce sync.Once
}

func New(dir *rooms.Directory, userID string, interval time.Duration, onCount func(int64), log *slog.Logger) *Poller {
	if interval <= 0 {
		interval = defaultInterval
	}
	if log == nil {
		log = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	return &Poller{
		dir:      dir,
		userID:   userID,
		interval: interval,
		onCount:  onCount,
		log:      log,
		stop:     make(chan struct{}),
	}
}

// Start refreshes once immediately, then on every tick until Stop.
func (p *Poller) Start() {
	go func() {
		ticker := time.NewTicker(p.interval)
		defer ticker.Stop()

		p.refresh()

		for {
			select {
			case <-p.stop:
				return
			case <-ticker.C:
				p.refresh()
			}
		}
	}()
}

// Stop cancels the job. Safe to call more than once.
func (p *Poller) Stop() {
	p.stopOnce.Do(func() {
		close(p.stop)
	})
}

func (p *Poller) refresh() {
	ctx, cancel := context.WithTimeout(context.Background(), p.interval)
	defer cancel()

	total, err := p.dir.UnreadTotal(ctx, p.userID)
	if err != nil {
		p.log.Error("unread badge refresh failed", sl.Err(err))
		return
	}
	p.onCount(total)
}
