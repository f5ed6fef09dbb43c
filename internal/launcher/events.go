package launcher

import (
	"context"

	"github.com/grovetools/launcher/errors"
	"github.com/grovetools/launcher/internal/dispatcher"
	"github.com/grovetools/launcher/internal/sink"
	"github.com/grovetools/launcher/pkg/collation"
	"github.com/grovetools/launcher/pkg/models"
	"github.com/grovetools/launcher/state"
)

// OnEvent routes an inbound notification.
func (m *Model) OnEvent(ctx context.Context, ev models.Event) error {
	switch ev.Type {
	case models.EventPackageAdded, models.EventPackageChanged, models.EventPackageRemoved,
		models.EventExternalAppsAvailable, models.EventExternalAppsUnavailable,
		models.EventLocaleChanged, models.EventConfigurationChanged, models.EventSearchablesChanged:
	default:
		return errors.New(errors.ErrCodeUnknownEvent, "unknown event type: "+string(ev.Type)).
			WithDetail("type", string(ev.Type))
	}
	if err := ev.Validate(); err != nil {
		return errors.Wrap(err, errors.ErrCodeInvalidInput, "invalid event")
	}

	log := m.logger.WithField("event", string(ev.Type))
	log.Debug("Event received")

	switch ev.Type {
	case models.EventPackageAdded:
		op := OpAdd
		if ev.Replacing {
			op = OpUpdate
		}
		return m.EnqueuePackageUpdated(PackageUpdate{Op: op, Packages: []string{ev.Package}})

	case models.EventPackageChanged:
		return m.EnqueuePackageUpdated(PackageUpdate{Op: OpUpdate, Packages: []string{ev.Package}})

	case models.EventPackageRemoved:
		if ev.Replacing {
			// The matching add arrives as an update.
			return nil
		}
		return m.EnqueuePackageUpdated(PackageUpdate{Op: OpRemove, Packages: []string{ev.Package}})

	case models.EventExternalAppsAvailable:
		if err := m.EnqueuePackageUpdated(PackageUpdate{Op: OpAdd, Packages: ev.Packages}); err != nil {
			return err
		}
		return m.StartLoaderFromBackground(ctx)

	case models.EventExternalAppsUnavailable:
		return m.EnqueuePackageUpdated(PackageUpdate{Op: OpUnavailable, Packages: ev.Packages})

	case models.EventLocaleChanged:
		m.setLocale(ev.Locale)
		return m.ForceReload(ctx)

	case models.EventConfigurationChanged:
		m.mu.Lock()
		prev := m.region
		m.region = ev.Region
		m.mu.Unlock()
		m.persist(state.KeyRegion, ev.Region)
		if prev != ev.Region {
			log.WithField("region", ev.Region).Info("Region changed")
			return m.ForceReload(ctx)
		}
		return nil

	case models.EventSearchablesChanged:
		m.deliver(ctx, m.slot.Current(), dispatcher.CategoryNormal, "searchables_changed", func(cb sink.Callbacks) {
			cb.BindSearchablesChanged()
		})
	}
	return nil
}

func (m *Model) setLocale(locale string) {
	m.collatorMu.Lock()
	m.collator = collation.New(locale)
	m.collatorMu.Unlock()
	m.persist(state.KeyLocale, locale)
	m.logger.WithField("locale", locale).Info("Locale changed")
}

func (m *Model) persist(key, value string) {
	if m.prefs == nil {
		return
	}
	if err := m.prefs.Set(key, value); err != nil {
		m.logger.WithError(err).WithField("key", key).Warn("Failed to persist setting")
	}
}
