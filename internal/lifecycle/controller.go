// Package lifecycle applies admin actions to leads: status transitions,
// the saved flag and recorded responses.
package lifecycle

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"

	"leadhunt-engine/internal/domain"
	"leadhunt-engine/internal/logging"
	"leadhunt-engine/internal/metrics"
	"leadhunt-engine/internal/store"
)

var ErrTerminalStatus = errors.New("lead is in a terminal status")

// Notifier is a downstream collaborator told about every applied change.
type Notifier interface {
	Notify(ctx context.Context, ev domain.LeadEvent) error
}

type Options struct {
	// AllowTerminalReopen is read on every transition so config reloads apply.
	AllowTerminalReopen func() bool
	Now                 func() time.Time
	Logger              *zap.Logger
	NotifyTimeout       time.Duration
}

type Controller struct {
	repo     store.Repository
	notifier Notifier
	opts     Options
	log      *zap.Logger
	wg       sync.WaitGroup
}

func New(repo store.Repository, n Notifier, opts Options) *Controller {
	if opts.AllowTerminalReopen == nil {
		opts.AllowTerminalReopen = func() bool { return false }
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}
	if opts.NotifyTimeout <= 0 {
		opts.NotifyTimeout = 10 * time.Second
	}
	return &Controller{
		repo:     repo,
		notifier: n,
		opts:     opts,
		log:      logging.OrNop(opts.Logger).Named("lifecycle"),
	}
}

func (c *Controller) guard(from, to domain.Status) error {
	if from.Terminal() && from != to && !c.opts.AllowTerminalReopen() {
		return fmt.Errorf("%w: %s cannot move to %s", ErrTerminalStatus, from, to)
	}
	return nil
}

// Transition moves a lead to the named status. A request for the current
// status is a no-op and reports changed=false.
func (c *Controller) Transition(ctx context.Context, id int64, status, reason string) (domain.Lead, bool, error) {
	to, err := domain.ParseStatus(status)
	if err != nil {
		return domain.Lead{}, false, err
	}
	return c.apply(ctx, id, to, reason, c.guard)
}

// apply runs one guarded status change and reports it when something moved.
func (c *Controller) apply(ctx context.Context, id int64, to domain.Status, reason string, guard store.TransitionGuard) (domain.Lead, bool, error) {
	ch, changed, err := c.repo.SetStatus(ctx, id, to, reason, c.opts.Now(), guard)
	if err != nil {
		return domain.Lead{}, false, err
	}
	l, err := c.repo.Get(ctx, id)
	if err != nil {
		return domain.Lead{}, false, err
	}
	if changed {
		metrics.ObserveTransition(string(ch.From), string(ch.To))
		c.log.Info("status changed",
			zap.Int64("lead_id", id),
			zap.String("from", string(ch.From)),
			zap.String("to", string(ch.To)))
		c.notify(domain.LeadEvent{Type: domain.EventLeadStatus, Lead: &l, Change: &ch, At: ch.At})
	}
	return l, changed, nil
}

func (c *Controller) Dismiss(ctx context.Context, id int64, reason string) (domain.Lead, bool, error) {
	return c.Transition(ctx, id, string(domain.StatusDismissed), reason)
}

func (c *Controller) Save(ctx context.Context, id int64, saved bool) (domain.Lead, error) {
	l, err := c.repo.SetSaved(ctx, id, saved)
	if err != nil {
		return domain.Lead{}, err
	}
	c.notify(domain.LeadEvent{Type: domain.EventLeadSaved, Lead: &l, At: c.opts.Now().UTC()})
	return l, nil
}

var errNotNew = errors.New("lead is past new")

// Respond records that the contractor answered a lead. A new lead becomes
// contacted; later statuses are left alone. The check and the change happen
// in one repository call so a concurrent transition is never overwritten.
func (c *Controller) Respond(ctx context.Context, id int64, message string) (domain.Lead, error) {
	onlyNew := func(from, _ domain.Status) error {
		if from != domain.StatusNew {
			return errNotNew
		}
		return nil
	}
	l, _, err := c.apply(ctx, id, domain.StatusContacted, "response sent", onlyNew)
	if errors.Is(err, errNotNew) {
		l, err = c.repo.Get(ctx, id)
	}
	if err != nil {
		return domain.Lead{}, err
	}
	c.notify(domain.LeadEvent{Type: domain.EventLeadResponse, Lead: &l, Message: message, At: c.opts.Now().UTC()})
	return l, nil
}

func (c *Controller) notify(ev domain.LeadEvent) {
	if c.notifier == nil {
		return
	}
	c.wg.Add(1)
	go func() {
		defer c.wg.Done()
		defer func() {
			if r := recover(); r != nil {
				c.log.Error("notifier panic", zap.String("event", ev.Type), zap.Any("panic", r))
			}
		}()
		ctx, cancel := context.WithTimeout(context.Background(), c.opts.NotifyTimeout)
		defer cancel()
		if err := c.notifier.Notify(ctx, ev); err != nil {
			c.log.Warn("notify failed", zap.String("event", ev.Type), zap.Error(err))
		}
	}()
}

// Wait blocks until in-flight notifications finish.
func (c *Controller) Wait() {
	c.wg.Wait()
}
