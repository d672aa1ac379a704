package replay

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kaigo-tools/attendrelay/internal/extract"
)

type fakeSession struct {
	loginErr error
	reg      *fakeRegistration
	closed   bool

	facilitiesOpened []string
}

func (s *fakeSession) Login(context.Context) error { return s.loginErr }

func (s *fakeSession) ReceiptPage(context.Context) (ReceiptPage, error) {
	return &fakeReceipt{s: s}, nil
}

func (s *fakeSession) Close() error {
	s.closed = true
	return nil
}

type fakeReceipt struct {
	s *fakeSession
}

func (r *fakeReceipt) OpenFacility(_ context.Context, label string) (FacilityPage, error) {
	r.s.facilitiesOpened = append(r.s.facilitiesOpened, label)
	return &fakeFacility{s: r.s}, nil
}

type fakeFacility struct {
	s *fakeSession
}

func (f *fakeFacility) OpenScheduleRegistration(context.Context) (RegistrationPage, error) {
	return f.s.reg, nil
}

type fakeRegistration struct {
	months  []string
	users   []string
	entries []Entry

	findErr         map[string]error
	validationQueue [][]string
	dismissed       int
	returns         int
}

func (r *fakeRegistration) SelectMonth(_ context.Context, eraYear int, month time.Month) error {
	r.months = append(r.months, fmt.Sprintf("%d/%d", eraYear, int(month)))
	return nil
}

func (r *fakeRegistration) FindUser(_ context.Context, name string) error {
	r.users = append(r.users, name)
	if err := r.findErr[name]; err != nil {
		return err
	}
	return nil
}

func (r *fakeRegistration) SubmitEntry(_ context.Context, entry Entry) error {
	r.entries = append(r.entries, entry)
	return nil
}

func (r *fakeRegistration) ValidationErrors(context.Context) ([]string, error) {
	if len(r.validationQueue) == 0 {
		return nil, nil
	}
	msgs := r.validationQueue[0]
	r.validationQueue = r.validationQueue[1:]
	return msgs, nil
}

func (r *fakeRegistration) DismissErrors(context.Context) error {
	r.dismissed++
	return nil
}

func (r *fakeRegistration) Return(context.Context) error {
	r.returns++
	return nil
}

var testRoutes = Routes{"メディヴィレッジ群馬HOME": "障害福祉サービス", "セカンドハウス前橋": "訪問介護"}

func testRecord(name string) extract.AttendanceRecord {
	return extract.AttendanceRecord{
		PersonName:             name,
		ServiceDate:            time.Date(2025, 8, 15, 0, 0, 0, 0, time.UTC),
		Start:                  "11:30",
		End:                    "14:30",
		FacilityName:           "メディヴィレッジ群馬HOME",
		DisabilitySupportHours: 4.5,
	}
}

func newTestEngine(session *fakeSession) *Engine {
	factory := func(context.Context) (Session, error) { return session, nil }
	return NewEngine(factory, testRoutes, 2018, nil)
}

func TestRun_ReplaysRecordsInOrder(t *testing.T) {
	session := &fakeSession{reg: &fakeRegistration{}}
	engine := newTestEngine(session)

	res, err := engine.Run(context.Background(), "batch-1",
		[]extract.AttendanceRecord{testRecord("平井 里沙"), testRecord("田中 太郎")})
	require.NoError(t, err)

	assert.Equal(t, 2, res.Succeeded)
	assert.Equal(t, []string{"平井 里沙", "田中 太郎"}, session.reg.users)

	// Same facility: navigated once, returned to the page between records.
	assert.Equal(t, []string{"障害福祉サービス"}, session.facilitiesOpened)
	assert.Equal(t, 1, session.reg.returns)

	// Era-converted year: 2025 - 2018 = 7.
	assert.Equal(t, []string{"7/8", "7/8"}, session.reg.months)

	assert.True(t, session.closed, "session must be torn down after the batch")
}

func TestRun_FacilityChangeReentersReceiptMenu(t *testing.T) {
	session := &fakeSession{reg: &fakeRegistration{}}
	engine := newTestEngine(session)

	second := testRecord("田中 太郎")
	second.FacilityName = "セカンドハウス前橋"

	res, err := engine.Run(context.Background(), "batch-1",
		[]extract.AttendanceRecord{testRecord("平井 里沙"), second})
	require.NoError(t, err)

	assert.Equal(t, 2, res.Succeeded)
	// A facility change navigates the receipt menu again instead of
	// reusing the previous facility's registration page.
	assert.Equal(t, []string{"障害福祉サービス", "訪問介護"}, session.facilitiesOpened)
	assert.Equal(t, 0, session.reg.returns)
}

func TestRun_OvernightRecordSubmitsTwice(t *testing.T) {
	session := &fakeSession{reg: &fakeRegistration{}}
	engine := newTestEngine(session)

	rec := testRecord("田中 太郎")
	rec.ServiceDate = time.Date(2025, 8, 16, 0, 0, 0, 0, time.UTC)
	rec.Start = "20:00"
	rec.End = "08:00"

	res, err := engine.Run(context.Background(), "batch-1", []extract.AttendanceRecord{rec})
	require.NoError(t, err)
	assert.Equal(t, 1, res.Succeeded)

	entries := session.reg.entries
	require.Len(t, entries, 2)

	assert.Equal(t, "2000", entries[0].Start)
	assert.Equal(t, "2400", entries[0].End)
	assert.Equal(t, 16, entries[0].Date.Day())

	assert.Equal(t, "0000", entries[1].Start)
	assert.Equal(t, "0800", entries[1].End)
	assert.Equal(t, 17, entries[1].Date.Day())

	// Support quantities are carried unchanged on both halves.
	assert.Equal(t, 4.5, entries[0].DisabilitySupportHours)
	assert.Equal(t, 4.5, entries[1].DisabilitySupportHours)
	assert.Equal(t, CategoryPhysicalSupport, entries[1].Category)
}

func TestRun_UnmappedFacilitySkipsOnlyThatRecord(t *testing.T) {
	session := &fakeSession{reg: &fakeRegistration{}}
	engine := newTestEngine(session)

	unmapped := testRecord("平井 里沙")
	unmapped.FacilityName = "未知の事業所"

	res, err := engine.Run(context.Background(), "batch-1",
		[]extract.AttendanceRecord{unmapped, testRecord("田中 太郎")})
	require.NoError(t, err)

	assert.Equal(t, 1, res.Skipped)
	assert.Equal(t, 1, res.Succeeded)
	assert.Equal(t, []string{"田中 太郎"}, session.reg.users, "the sibling record must still be processed")

	require.Len(t, res.Failures, 1)
	var rerr *RoutingError
	assert.ErrorAs(t, res.Failures[0].Err, &rerr)
}

func TestRun_ValidationBannerMarksFailedAndContinues(t *testing.T) {
	reg := &fakeRegistration{validationQueue: [][]string{{"実施日が不正です"}}}
	session := &fakeSession{reg: reg}
	engine := newTestEngine(session)

	res, err := engine.Run(context.Background(), "batch-1",
		[]extract.AttendanceRecord{testRecord("平井 里沙"), testRecord("田中 太郎")})
	require.NoError(t, err)

	assert.Equal(t, 1, res.Failed)
	assert.Equal(t, 1, res.Succeeded)
	assert.Equal(t, 1, reg.dismissed, "the error dialog must be dismissed")
	assert.Equal(t, []string{"平井 里沙", "田中 太郎"}, reg.users, "no early batch termination")

	require.Len(t, res.Failures, 1)
	var verr *ValidationError
	require.ErrorAs(t, res.Failures[0].Err, &verr)
	assert.Equal(t, []string{"実施日が不正です"}, verr.Messages)
}

func TestRun_LoginFailureIsBatchFatal(t *testing.T) {
	session := &fakeSession{
		loginErr: &AuthError{Reason: "still on login page after submit"},
		reg:      &fakeRegistration{},
	}
	engine := newTestEngine(session)

	res, err := engine.Run(context.Background(), "batch-1",
		[]extract.AttendanceRecord{testRecord("平井 里沙")})
	require.Error(t, err)

	var aerr *AuthError
	assert.ErrorAs(t, err, &aerr)
	assert.Equal(t, 0, res.Succeeded)
	assert.True(t, session.closed, "teardown is unconditional")
}

func TestRun_UserNotFoundFailsRecordOnly(t *testing.T) {
	reg := &fakeRegistration{findErr: map[string]error{"平井 里沙": &LookupError{Name: "平井 里沙"}}}
	session := &fakeSession{reg: reg}
	engine := newTestEngine(session)

	res, err := engine.Run(context.Background(), "batch-1",
		[]extract.AttendanceRecord{testRecord("平井 里沙"), testRecord("田中 太郎")})
	require.NoError(t, err)

	assert.Equal(t, 1, res.Failed)
	assert.Equal(t, 1, res.Succeeded)
	assert.Len(t, reg.entries, 1, "only the found user's record is submitted")
}

func TestRun_InvalidRecordSkippedWithoutRemoteInteraction(t *testing.T) {
	session := &fakeSession{reg: &fakeRegistration{}}
	engine := newTestEngine(session)

	invalid := testRecord("平井 里沙")
	invalid.End = ""

	noQuantity := testRecord("田中 太郎")
	noQuantity.DisabilitySupportHours = 0

	res, err := engine.Run(context.Background(), "batch-1",
		[]extract.AttendanceRecord{invalid, noQuantity})
	require.NoError(t, err)

	assert.Equal(t, 2, res.Skipped)
	assert.Empty(t, session.reg.users)
	assert.Empty(t, session.reg.entries)
}

func TestRun_EmptyBatchCreatesNoSession(t *testing.T) {
	called := false
	factory := func(context.Context) (Session, error) {
		called = true
		return nil, fmt.Errorf("should not be called")
	}
	engine := NewEngine(factory, testRoutes, 2018, nil)

	res, err := engine.Run(context.Background(), "batch-1", nil)
	require.NoError(t, err)
	assert.Equal(t, 0, res.Total)
	assert.False(t, called)
}
