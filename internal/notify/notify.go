// Package notify fans lead events out to downstream collaborators.
package notify

import (
	"context"
	"errors"

	"leadhunt-engine/internal/domain"
	"leadhunt-engine/internal/lifecycle"
)

// Multi delivers to every notifier and joins their errors.
type Multi []lifecycle.Notifier

func (m Multi) Notify(ctx context.Context, ev domain.LeadEvent) error {
	var errs []error
	for _, n := range m {
		if n == nil {
			continue
		}
		if err := n.Notify(ctx, ev); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}
