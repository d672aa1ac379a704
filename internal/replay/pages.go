package replay

import (
	"context"
	"time"
)

// The replay engine drives the remote scheduling UI through a small
// page-object capability set, one interface per logical remote page, so
// the state machine never touches selector details.

// Session is an authenticated, navigable handle to the remote system.
// Owned exclusively by the engine for the duration of one batch and torn
// down unconditionally at the end of it.
type Session interface {
	// Login submits corporate code, user ID, and password. Returns an
	// *AuthError when the login page does not go away.
	Login(ctx context.Context) error

	// ReceiptPage navigates to the top page from which facility menus
	// are reachable.
	ReceiptPage(ctx context.Context) (ReceiptPage, error)

	// Close releases the session and its underlying browser resources.
	Close() error
}

// ReceiptPage is the post-login top page.
type ReceiptPage interface {
	// OpenFacility follows the menu link with the given label.
	OpenFacility(ctx context.Context, menuLabel string) (FacilityPage, error)
}

// FacilityPage is a facility's landing page.
type FacilityPage interface {
	// OpenScheduleRegistration reveals the nested menu and opens the
	// schedule registration page. The returned page remembers its own
	// location so the engine can come back to it between records.
	OpenScheduleRegistration(ctx context.Context) (RegistrationPage, error)
}

// Entry is one concrete form submission on the registration page. It
// carries only the quantities the service-hours field consumes; other
// record fields stay on the record.
type Entry struct {
	Date     time.Time
	Start    string // "HHMM"
	End      string // "HHMM"
	Category ServiceCategory

	DisabilitySupportHours     float64
	SevereComprehensiveSupport float64
	SevereVisitation           float64
}

// RegistrationPage is the schedule registration page for one facility.
// Its state is local to the selected month and user, so the engine
// re-selects both per record.
type RegistrationPage interface {
	// SelectMonth picks the calendar month. The year is given in the
	// remote system's era, not Gregorian.
	SelectMonth(ctx context.Context, eraYear int, month time.Month) error

	// FindUser locates the target person by name and opens their
	// schedule. Returns a *LookupError when the person cannot be found.
	FindUser(ctx context.Context, name string) error

	// SubmitEntry files one entry as an actual-performance record.
	SubmitEntry(ctx context.Context, entry Entry) error

	// ValidationErrors reads the error banner left by the previous
	// submission, if any.
	ValidationErrors(ctx context.Context) ([]string, error)

	// DismissErrors closes the validation-error dialog.
	DismissErrors(ctx context.Context) error

	// Return navigates back to the registration page so the next record
	// starts from a known state.
	Return(ctx context.Context) error
}

// SessionFactory creates one Session per batch.
type SessionFactory func(ctx context.Context) (Session, error)
