package engine

import (
	"context"
	"time"

	"github.com/activecm/flowsentry/pkg/metrics"
	"github.com/activecm/flowsentry/util"
	log "github.com/sirupsen/logrus"
)

type watched struct {
	name   string
	paths  []string
	reload func() error
	stamp  time.Time
}

// Watcher reloads files when their modification time changes
type Watcher struct {
	interval time.Duration
	items    []*watched
	metrics  *metrics.Metrics
	log      *log.Logger
}

// NewWatcher creates a watcher polling every interval. m may be nil.
func NewWatcher(interval time.Duration, m *metrics.Metrics, logger *log.Logger) *Watcher {
	return &Watcher{interval: interval, metrics: m, log: logger}
}

// Watch registers reload to be called when any of paths changes
func (w *Watcher) Watch(name string, paths []string, reload func() error) {
	w.items = append(w.items, &watched{
		name:   name,
		paths:  paths,
		reload: reload,
		stamp:  newest(paths),
	})
}

func newest(paths []string) time.Time {
	var t time.Time
	for _, p := range paths {
		if m := util.ModTime(p); m.After(t) {
			t = m
		}
	}
	return t
}

// Check reloads every changed item once. A failed reload is logged and
// not retried until the files change again.
func (w *Watcher) Check() {
	for _, item := range w.items {
		stamp := newest(item.paths)
		if stamp.Equal(item.stamp) {
			continue
		}
		item.stamp = stamp

		err := item.reload()
		if w.metrics != nil {
			w.metrics.Reloaded(item.name, err)
		}
		if err != nil {
			w.log.WithFields(log.Fields{
				"resource": item.name,
				"error":    err.Error(),
			}).Warn("Reload failed, keeping the active version")
			continue
		}
		w.log.WithFields(log.Fields{
			"resource": item.name,
		}).Info("Reloaded")
	}
}

// Run polls until ctx is cancelled
func (w *Watcher) Run(ctx context.Context) {
	if len(w.items) == 0 || w.interval <= 0 {
		return
	}
	ticker := time.NewTicker(w.interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			w.Check()
		}
	}
}
