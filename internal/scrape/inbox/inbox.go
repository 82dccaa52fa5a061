// Package inbox turns website contact-form notifications delivered to an
// IMAP mailbox into postings.
package inbox

import (
	"context"
	"fmt"

	"github.com/emersion/go-imap/v2"
	"go.uber.org/zap"

	"leadhunt-engine/internal/domain"
	"leadhunt-engine/internal/logging"
	"leadhunt-engine/internal/scrape/types"
	"leadhunt-engine/internal/secrets"
)

type Adapter struct {
	Dial     Dialer
	Password func(src domain.Source) (string, error)
	log      *zap.Logger
}

func New(logger *zap.Logger) *Adapter {
	return &Adapter{
		Dial: DialIMAP,
		Password: func(src domain.Source) (string, error) {
			return secrets.GetIMAPPassword(secrets.IMAPKeyringAccount(src))
		},
		log: logging.OrNop(logger).Named("inbox"),
	}
}

func (a *Adapter) Kind() string { return "imap" }

// Fetch reads unseen form mails. Mails that parse are marked \Seen by the
// returned Finalize, so a failed ingestion leaves them for the next run.
func (a *Adapter) Fetch(ctx context.Context, src domain.Source) (types.ScrapeResult, error) {
	res := types.ScrapeResult{Source: src.Name}

	pw, err := a.Password(src)
	if err != nil {
		return res, err
	}
	mb, err := a.Dial(ctx, src, pw)
	if err != nil {
		return res, err
	}
	msgs, err := mb.Unseen(ctx, src.IMAP.Subject, src.MaxResults)
	mb.Close()
	if err != nil {
		return res, err
	}

	var parsed []imap.UID
	for _, m := range msgs {
		pm := parseMessage(m.Raw)
		if pm.Subject == "" {
			pm.Subject = m.Subject
		}
		if pm.Date.IsZero() {
			pm.Date = m.Date
		}
		p, ok := formPosting(pm, pm.Subject)
		if !ok {
			a.log.Debug("skipping non-form mail", zap.String("source", src.Name), zap.String("subject", pm.Subject))
			continue
		}
		p.ExternalID = fmt.Sprintf("imap:%s:%d", src.Name, m.UID)
		res.Postings = append(res.Postings, p)
		parsed = append(parsed, m.UID)
	}

	if len(parsed) > 0 {
		res.Finalize = func(ctx context.Context) error {
			mb, err := a.Dial(ctx, src, pw)
			if err != nil {
				return err
			}
			defer mb.Close()
			return mb.MarkSeen(parsed)
		}
	}
	return res, nil
}
