package poller

import (
	"bytes"
	"context"
	"fmt"
	"log/slog"
	"path/filepath"
	"testing"

	"github.com/emersion/go-imap"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kaigo-tools/attendrelay/internal/retry"
)

type fakeIMAP struct {
	uids      []uint32
	searchErr error
	fetchErr  error
	messages  []*imap.Message
	noopErr   error

	searches  int
	fetches   int
	loggedOut bool
}

func (f *fakeIMAP) UidSearch(_ *imap.SearchCriteria) ([]uint32, error) {
	f.searches++
	return f.uids, f.searchErr
}

func (f *fakeIMAP) UidFetch(_ *imap.SeqSet, _ []imap.FetchItem, ch chan *imap.Message) error {
	f.fetches++
	for _, m := range f.messages {
		ch <- m
	}
	close(ch)
	return f.fetchErr
}

func (f *fakeIMAP) Noop() error   { return f.noopErr }
func (f *fakeIMAP) Logout() error { f.loggedOut = true; return nil }

func newTestPoller(t *testing.T, fake *fakeIMAP) (*Poller, *CursorStore) {
	t.Helper()
	store := NewCursorStore(filepath.Join(t.TempDir(), "cursor.json"))
	p := New(func() (Session, error) { return fake, nil }, store, retry.Policy{MaxAttempts: 1}, slog.Default())
	require.NoError(t, p.Connect())
	return p, store
}

func TestPoll_NoNewMailIsIdempotent(t *testing.T) {
	fake := &fakeIMAP{uids: nil}
	p, store := newTestPoller(t, fake)
	require.NoError(t, store.Store(10))

	for i := 0; i < 2; i++ {
		mails, err := p.Poll(context.Background())
		require.NoError(t, err)
		assert.Empty(t, mails)
	}

	cursor, err := store.Load()
	require.NoError(t, err)
	assert.Equal(t, uint32(10), cursor, "no-op polls must not move the cursor")
	assert.Equal(t, 0, fake.fetches, "no-op polls must not fetch")
}

func TestPoll_ServerEchoOfLastUIDIsNotNewMail(t *testing.T) {
	// Servers answer "n:*" with the last message even when its UID is
	// below n.
	fake := &fakeIMAP{uids: []uint32{10}}
	p, store := newTestPoller(t, fake)
	require.NoError(t, store.Store(10))

	mails, err := p.Poll(context.Background())
	require.NoError(t, err)
	assert.Empty(t, mails)

	cursor, _ := store.Load()
	assert.Equal(t, uint32(10), cursor)
}

func TestPoll_CursorAdvancesBeforeFetch(t *testing.T) {
	// The cursor write happens before bodies are fetched, so a fetch
	// failure must not roll it back: at-most-once delivery.
	fake := &fakeIMAP{
		uids:     []uint32{11, 12, 15},
		fetchErr: fmt.Errorf("connection reset"),
	}
	p, store := newTestPoller(t, fake)
	require.NoError(t, store.Store(10))

	_, err := p.Poll(context.Background())
	require.Error(t, err)

	cursor, lerr := store.Load()
	require.NoError(t, lerr)
	assert.Equal(t, uint32(15), cursor, "cursor must equal the max UID even when processing fails")
}

func TestPoll_FetchesNewMessagesWithAttachments(t *testing.T) {
	raw := `Content-Type: multipart/mixed; boundary="xyz"

--xyz
Content-Type: image/jpeg
Content-Disposition: attachment; filename="form.jpg"

jpegdata

--xyz--`

	section := &imap.BodySectionName{}
	msg := &imap.Message{
		Uid: 11,
		Envelope: &imap.Envelope{
			Subject: "attendance form",
			From:    []*imap.Address{{MailboxName: "agency", HostName: "example.com"}},
		},
		Body: map[*imap.BodySectionName]imap.Literal{
			section: bytes.NewBufferString(raw),
		},
	}

	fake := &fakeIMAP{uids: []uint32{11}, messages: []*imap.Message{msg}}
	p, store := newTestPoller(t, fake)

	mails, err := p.Poll(context.Background())
	require.NoError(t, err)
	require.Len(t, mails, 1)

	assert.Equal(t, uint32(11), mails[0].UID)
	assert.Equal(t, "attendance form", mails[0].Subject)
	assert.Equal(t, "agency@example.com", mails[0].From)
	require.Len(t, mails[0].Attachments, 1)
	assert.Equal(t, "form.jpg", mails[0].Attachments[0].Filename)

	cursor, _ := store.Load()
	assert.Equal(t, uint32(11), cursor)
}

func TestRun_HandlerErrorDoesNotAbortLoop(t *testing.T) {
	raw := `Content-Type: multipart/mixed; boundary="b"

--b
Content-Type: image/png
Content-Disposition: attachment; filename="a.png"

data

--b--`

	section := &imap.BodySectionName{}
	fake := &fakeIMAP{
		uids: []uint32{1, 2},
		messages: []*imap.Message{
			{Uid: 1, Body: map[*imap.BodySectionName]imap.Literal{section: bytes.NewBufferString(raw)}},
			{Uid: 2, Body: map[*imap.BodySectionName]imap.Literal{
				&imap.BodySectionName{}: bytes.NewBufferString(raw),
			}},
		},
	}
	p, _ := newTestPoller(t, fake)

	ctx, cancel := context.WithCancel(context.Background())

	var handled []uint32
	handler := func(_ context.Context, mail Mail) error {
		handled = append(handled, mail.UID)
		if len(handled) == 2 {
			cancel()
		}
		return fmt.Errorf("boom")
	}

	err := p.Run(ctx, 0, handler)
	require.NoError(t, err)
	assert.Equal(t, []uint32{1, 2}, handled, "both messages must be attempted despite handler errors")
}

func TestRun_ReconnectExhaustionIsFatal(t *testing.T) {
	dialErr := fmt.Errorf("dial tcp: refused")
	p := New(
		func() (Session, error) { return nil, &ConnectivityError{Err: dialErr} },
		NewCursorStore(filepath.Join(t.TempDir(), "cursor.json")),
		retry.Policy{MaxAttempts: 2, BaseDelay: 0},
		slog.Default(),
	)

	err := p.Run(context.Background(), 0, func(context.Context, Mail) error { return nil })
	require.Error(t, err)
	assert.Contains(t, err.Error(), "reconnect exhausted")
}
