// Package engine runs the launcher model for the daemon: the UI loop, the
// event consumer and the collectors.
package engine

import (
	"context"
	"errors"
	"time"

	"github.com/sirupsen/logrus"
	"golang.org/x/sync/errgroup"

	"github.com/grovetools/launcher/internal/daemon/collector"
	"github.com/grovetools/launcher/internal/daemon/store"
	"github.com/grovetools/launcher/internal/launcher"
	"github.com/grovetools/launcher/pkg/models"
)

// Engine owns the model and feeds it events from the collectors.
type Engine struct {
	model      *launcher.Model
	store      *store.Store
	collectors []collector.Collector
	logger     *logrus.Entry
	startedAt  time.Time
}

// New creates a new Engine and attaches st as the model's consumer.
func New(m *launcher.Model, st *store.Store, logger *logrus.Entry) *Engine {
	m.Attach(st)
	return &Engine{
		model:     m,
		store:     st,
		logger:    logger,
		startedAt: time.Now(),
	}
}

// Register adds a collector to the engine.
func (e *Engine) Register(c collector.Collector) {
	e.collectors = append(e.collectors, c)
}

// Start runs the UI loop, the collectors and the first load, and blocks
// until ctx is canceled. A failing collector is logged and does not stop
// the engine.
func (e *Engine) Start(ctx context.Context) error {
	events := make(chan models.Event, 100)
	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		err := e.model.UI().Run(gctx)
		if errors.Is(err, context.Canceled) {
			return nil
		}
		return err
	})

	g.Go(func() error {
		for {
			select {
			case <-gctx.Done():
				return nil
			case ev := <-events:
				e.Dispatch(gctx, ev)
			}
		}
	})

	for _, c := range e.collectors {
		col := c
		g.Go(func() error {
			log := e.logger.WithField("collector", col.Name())
			log.Info("Starting collector")
			if err := col.Run(gctx, e.store, events); err != nil {
				log.WithError(err).Error("Collector failed")
			}
			return nil
		})
	}

	if err := e.model.StartLoader(gctx, true); err != nil {
		e.logger.WithError(err).Error("Initial load failed to start")
	}

	return g.Wait()
}

// Dispatch hands one event to the model and logs a rejected one.
func (e *Engine) Dispatch(ctx context.Context, ev models.Event) error {
	err := e.model.OnEvent(ctx, ev)
	if err != nil {
		e.logger.WithError(err).WithField("event", string(ev.Type)).Warn("Event rejected")
	}
	return err
}

// Model returns the launcher model.
func (e *Engine) Model() *launcher.Model {
	return e.model
}

// Store returns the engine's bound view.
func (e *Engine) Store() *store.Store {
	return e.store
}

// StartedAt returns when the engine was created.
func (e *Engine) StartedAt() time.Time {
	return e.startedAt
}

// State summarizes the model and the bound view for clients.
func (e *Engine) State() models.StateResponse {
	d := e.model.DumpState()
	bound := e.store.Get()
	consumer := e.model.Consumer()
	return models.StateResponse{
		LoaderPhase:       d.Phase,
		WorkspaceLoaded:   d.WorkspaceLoaded,
		AllAppsLoaded:     d.AllAppsLoaded,
		LoadingWorkspace:  d.LoadingWorkspace,
		WorkspaceItems:    len(d.Workspace),
		Apps:              len(d.AllApps),
		BoundItems:        len(bound.Items),
		BoundApps:         len(bound.Apps),
		Mismatches:        len(d.Mismatches),
		ConsumerAttached:  consumer.Attached(),
		ConsumerGen:       consumer.Generation,
		Locale:            d.Locale,
		Region:            d.Region,
		StartedAt:         e.startedAt,
		LastBindCompleted: bound.LastBindCompleted,
	}
}
