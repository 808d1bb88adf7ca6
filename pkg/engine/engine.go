// Package engine drives the detectors over a stream of flow records.
package engine

import (
	"context"
	"errors"
	"io"
	"sync/atomic"
	"time"

	"github.com/activecm/flowsentry/config"
	"github.com/activecm/flowsentry/pkg/blacklist"
	"github.com/activecm/flowsentry/pkg/bruteforce"
	"github.com/activecm/flowsentry/pkg/detector"
	"github.com/activecm/flowsentry/pkg/dnstunnel"
	"github.com/activecm/flowsentry/pkg/flow"
	"github.com/activecm/flowsentry/pkg/metrics"
	"github.com/activecm/flowsentry/pkg/report"
	"github.com/activecm/flowsentry/pkg/signature"
	"github.com/activecm/flowsentry/pkg/whitelist"
	log "github.com/sirupsen/logrus"
)

// statusEvery is the number of flows between two status snapshots
const statusEvery = 1024

// Status is a snapshot of the loop published for the status server
type Status struct {
	Flows    uint64         `json:"flows"`
	LastFlow time.Time      `json:"last_flow"`
	Tracked  map[string]int `json:"tracked"`
}

// Engine owns the detectors. Run must not be called concurrently.
type Engine struct {
	config    *config.Store
	whitelist *whitelist.Holder
	blacklist *blacklist.Holder
	detectors []detector.Detector
	metrics   *metrics.Metrics
	log       *log.Logger

	flows  uint64
	last   time.Time
	status atomic.Pointer[Status]
}

// Detectors creates every detector. Disabled detectors ignore flows
// until a reloaded configuration enables them.
func Detectors(sender report.Sender, logger *log.Logger) []detector.Detector {
	return []detector.Detector{
		bruteforce.New(signature.SSH(), sender, logger),
		bruteforce.New(signature.RDP(), sender, logger),
		bruteforce.New(signature.TELNET(), sender, logger),
		dnstunnel.New(sender, logger),
		blacklist.New(sender, logger),
	}
}

// New creates an engine. The list holders may be nil.
func New(store *config.Store, wl *whitelist.Holder, bl *blacklist.Holder,
	detectors []detector.Detector, m *metrics.Metrics, logger *log.Logger) *Engine {

	e := &Engine{
		config:    store,
		whitelist: wl,
		blacklist: bl,
		detectors: detectors,
		metrics:   m,
		log:       logger,
	}
	e.publish()
	return e
}

// env loads the current snapshots. It is called between flows only.
func (e *Engine) env() detector.Env {
	env := detector.Env{Config: e.config.Load()}
	if e.whitelist != nil {
		env.Whitelist = e.whitelist.Current()
	}
	if e.blacklist != nil {
		env.Blacklist = e.blacklist.Current()
	}
	return env
}

// Run feeds every record of src to the detectors until the stream ends
// or ctx is cancelled, then flushes the detectors. A stream error other
// than the end of the stream stops the loop without flushing.
func (e *Engine) Run(ctx context.Context, src flow.Source) error {
	for {
		if ctx.Err() != nil {
			break
		}
		rec, err := src.Next(ctx)
		if err == io.EOF || errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
			break
		}
		if err != nil {
			e.publish()
			return err
		}
		e.Process(rec)
	}

	e.Flush()
	return nil
}

// Process hands one record to every detector and runs the checks that
// are due at its time
func (e *Engine) Process(rec *flow.Record) {
	env := e.env()
	e.flows++
	if e.metrics != nil {
		e.metrics.FlowRead()
	}
	if rec.TimeLast.After(e.last) {
		e.last = rec.TimeLast
	}

	for _, d := range e.detectors {
		outcome := d.Process(env, rec)
		if e.metrics != nil {
			e.metrics.ObserveFlow(d.Name(), outcome)
		}
	}
	for _, d := range e.detectors {
		d.Tick(env, e.last)
	}

	if e.flows%statusEvery == 0 {
		e.publish()
	}
}

// Flush ends the attacks in progress in every detector
func (e *Engine) Flush() {
	env := e.env()
	for _, d := range e.detectors {
		d.Flush(env, e.last)
	}
	e.publish()

	e.log.WithFields(log.Fields{
		"flows":     e.flows,
		"last_flow": e.last,
	}).Info("Detection finished")
}

// Status returns the last published snapshot
func (e *Engine) Status() *Status {
	return e.status.Load()
}

func (e *Engine) publish() {
	s := &Status{
		Flows:    e.flows,
		LastFlow: e.last,
		Tracked:  make(map[string]int, len(e.detectors)),
	}
	for _, d := range e.detectors {
		n := d.Tracked()
		s.Tracked[d.Name()] = n
		if e.metrics != nil {
			e.metrics.SetTracked(d.Name(), n)
		}
	}
	e.status.Store(s)
}
