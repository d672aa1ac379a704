// Package poller watches a mailbox for new messages, extracts image
// attachments, and hands them to a processing callback. A persisted
// cursor gives at-most-once delivery across process restarts.
package poller

import (
	"context"
	"crypto/tls"
	"fmt"
	"log/slog"
	"time"

	"github.com/emersion/go-imap"
	"github.com/emersion/go-imap/client"
	"github.com/emersion/go-message"

	"github.com/kaigo-tools/attendrelay/internal/config"
	"github.com/kaigo-tools/attendrelay/internal/retry"
)

// AuthError means the mail server rejected the configured credentials.
// Not retried automatically.
type AuthError struct {
	Err error
}

func (e *AuthError) Error() string { return fmt.Sprintf("mailbox authentication failed: %v", e.Err) }
func (e *AuthError) Unwrap() error { return e.Err }

// ConnectivityError is a network-level mail server failure, retried with
// backoff by the run loop.
type ConnectivityError struct {
	Err error
}

func (e *ConnectivityError) Error() string { return fmt.Sprintf("mailbox connection: %v", e.Err) }
func (e *ConnectivityError) Unwrap() error { return e.Err }

// Session is the slice of the IMAP client the poller consumes. Satisfied
// by *client.Client.
type Session interface {
	UidSearch(criteria *imap.SearchCriteria) ([]uint32, error)
	UidFetch(seqset *imap.SeqSet, items []imap.FetchItem, ch chan *imap.Message) error
	Noop() error
	Logout() error
}

// DialFunc establishes an authenticated session with the inbox selected.
type DialFunc func() (Session, error)

// Dial returns a DialFunc for the configured IMAP server. The mailbox is
// selected read-only; the poller never mutates message flags.
func Dial(cfg config.IMAP) DialFunc {
	return func() (Session, error) {
		address := fmt.Sprintf("%s:%d", cfg.Server, cfg.Port)

		c, err := client.DialTLS(address, &tls.Config{ServerName: cfg.Server})
		if err != nil {
			return nil, &ConnectivityError{Err: err}
		}

		if err := c.Login(cfg.Username, cfg.Password); err != nil {
			_ = c.Logout()
			return nil, &AuthError{Err: err}
		}

		if _, err := c.Select(cfg.Folder, true); err != nil {
			_ = c.Logout()
			return nil, &ConnectivityError{Err: fmt.Errorf("select %s: %w", cfg.Folder, err)}
		}

		return c, nil
	}
}

// Mail is one discovered message with its image attachments.
type Mail struct {
	UID         uint32
	Subject     string
	From        string
	Attachments []Attachment
}

// Handler processes one discovered message. A handler error is logged and
// never aborts the poll loop.
type Handler func(ctx context.Context, mail Mail) error

// Poller drives the discovery loop.
type Poller struct {
	dial      DialFunc
	cursor    *CursorStore
	reconnect retry.Policy
	logger    *slog.Logger

	session Session
}

// New creates a Poller. The reconnect policy bounds how long an unhealthy
// connection is retried before the loop reports fatal.
func New(dial DialFunc, cursor *CursorStore, reconnect retry.Policy, logger *slog.Logger) *Poller {
	if logger == nil {
		logger = slog.Default()
	}
	return &Poller{dial: dial, cursor: cursor, reconnect: reconnect, logger: logger}
}

// Connect establishes the mailbox session.
func (p *Poller) Connect() error {
	s, err := p.dial()
	if err != nil {
		return err
	}
	p.session = s
	return nil
}

// Close logs out from the mail server.
func (p *Poller) Close() {
	if p.session != nil {
		_ = p.session.Logout()
		p.session = nil
	}
}

// Poll lists messages with UID above the persisted cursor. When new mail
// exists, the new maximum UID is persisted BEFORE any body is fetched:
// a crash after the cursor write loses at most this batch, a crash before
// it reprocesses safely. No new mail means no side effects at all.
func (p *Poller) Poll(ctx context.Context) ([]Mail, error) {
	if p.session == nil {
		return nil, &ConnectivityError{Err: fmt.Errorf("not connected")}
	}

	cursor, err := p.cursor.Load()
	if err != nil {
		return nil, err
	}

	seq := new(imap.SeqSet)
	seq.AddRange(cursor+1, 0) // 0 means "*"
	criteria := imap.NewSearchCriteria()
	criteria.Uid = seq

	uids, err := p.session.UidSearch(criteria)
	if err != nil {
		return nil, &ConnectivityError{Err: fmt.Errorf("uid search: %w", err)}
	}

	// Servers answer "n:*" with the last message even when its UID is
	// below n, so filter explicitly.
	fresh := uids[:0]
	maxUID := cursor
	for _, uid := range uids {
		if uid > cursor {
			fresh = append(fresh, uid)
			if uid > maxUID {
				maxUID = uid
			}
		}
	}

	if len(fresh) == 0 {
		return nil, nil
	}

	if err := p.cursor.Store(maxUID); err != nil {
		return nil, fmt.Errorf("persist cursor: %w", err)
	}
	p.logger.Info("New mail discovered", "count", len(fresh), "cursor", maxUID)

	return p.fetch(fresh)
}

func (p *Poller) fetch(uids []uint32) ([]Mail, error) {
	seqset := new(imap.SeqSet)
	seqset.AddNum(uids...)

	section := &imap.BodySectionName{}
	items := []imap.FetchItem{imap.FetchEnvelope, imap.FetchUid, section.FetchItem()}

	messages := make(chan *imap.Message, len(uids))
	if err := p.session.UidFetch(seqset, items, messages); err != nil {
		return nil, &ConnectivityError{Err: fmt.Errorf("uid fetch: %w", err)}
	}

	var mails []Mail
	for msg := range messages {
		body := msg.GetBody(section)
		if body == nil {
			p.logger.Warn("Message has no body", "uid", msg.Uid)
			continue
		}

		entity, err := message.Read(body)
		if err != nil {
			p.logger.Warn("Failed to parse MIME message", "uid", msg.Uid, "error", err)
			continue
		}

		mail := Mail{
			UID:         msg.Uid,
			Attachments: extractImageAttachments(entity),
		}
		if msg.Envelope != nil {
			mail.Subject = msg.Envelope.Subject
			if len(msg.Envelope.From) > 0 && msg.Envelope.From[0] != nil {
				mail.From = msg.Envelope.From[0].Address()
			}
		}

		mails = append(mails, mail)
	}

	return mails, nil
}

// Run polls the mailbox every interval until ctx is cancelled or the
// reconnect budget is exhausted. A single message's processing error never
// aborts the loop.
func (p *Poller) Run(ctx context.Context, interval time.Duration, handler Handler) error {
	for {
		select {
		case <-ctx.Done():
			p.logger.Info("Poller stopped")
			return nil
		default:
		}

		if err := p.ensureSession(ctx); err != nil {
			if ctx.Err() != nil {
				return nil
			}
			return fmt.Errorf("mailbox reconnect exhausted: %w", err)
		}

		mails, err := p.Poll(ctx)
		if err != nil {
			p.logger.Error("Poll failed", "error", err)
			// Force a reconnect on the next iteration.
			p.Close()
		}

		for _, mail := range mails {
			if len(mail.Attachments) == 0 {
				p.logger.Debug("Message has no image attachments", "uid", mail.UID, "subject", mail.Subject)
				continue
			}
			if err := handler(ctx, mail); err != nil {
				p.logger.Error("Message processing failed", "uid", mail.UID, "error", err)
			}
		}

		select {
		case <-ctx.Done():
			p.logger.Info("Poller stopped")
			return nil
		case <-time.After(interval):
		}
	}
}

// ensureSession health-checks the current session with a NOOP and
// reconnects with bounded backoff when it is gone or unhealthy.
func (p *Poller) ensureSession(ctx context.Context) error {
	if p.session != nil {
		if err := p.session.Noop(); err == nil {
			return nil
		}
		p.logger.Warn("Mailbox connection unhealthy, reconnecting")
		p.Close()
	}

	return p.reconnect.Do(ctx, "mailbox connect", func() error {
		return p.Connect()
	})
}
