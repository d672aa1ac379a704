// Package replay reproduces structured attendance records as entries in
// the remote scheduling system by driving its multi-step UI, one browser
// session per batch.
package replay

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/kaigo-tools/attendrelay/internal/extract"
)

// Engine replays batches of attendance records. One session is created
// per Run, used strictly sequentially, and torn down unconditionally.
type Engine struct {
	newSession SessionFactory
	routes     Routes
	eraOffset  int
	logger     *slog.Logger
}

// NewEngine builds a replay engine. eraOffset converts Gregorian years to
// the remote calendar's era (era_year = gregorian_year - eraOffset).
func NewEngine(factory SessionFactory, routes Routes, eraOffset int, logger *slog.Logger) *Engine {
	if logger == nil {
		logger = slog.Default()
	}
	return &Engine{newSession: factory, routes: routes, eraOffset: eraOffset, logger: logger}
}

// RecordFailure describes one record that was skipped or rejected.
type RecordFailure struct {
	Index  int
	Record extract.AttendanceRecord
	Err    error
}

// BatchResult summarizes one Run.
type BatchResult struct {
	Total     int
	Succeeded int
	Skipped   int
	Failed    int
	Failures  []RecordFailure
}

// invalidRecordError marks a record that failed local validation before
// any remote interaction. Skipped, never fatal.
type invalidRecordError struct {
	reason error
}

func (e *invalidRecordError) Error() string { return e.reason.Error() }
func (e *invalidRecordError) Unwrap() error { return e.reason }

// setupError marks a navigation failure that leaves the session in an
// unusable state. Fatal for the remaining batch.
type setupError struct {
	err error
}

func (e *setupError) Error() string { return e.err.Error() }
func (e *setupError) Unwrap() error { return e.err }

// Run logs in, replays every record in order, and closes the session.
// Login and navigation-setup failures abort the batch; per-record
// failures are recorded and the batch continues.
func (e *Engine) Run(ctx context.Context, batchID string, records []extract.AttendanceRecord) (BatchResult, error) {
	res := BatchResult{Total: len(records)}
	if len(records) == 0 {
		return res, nil
	}

	log := e.logger.With("batch_id", batchID)

	session, err := e.newSession(ctx)
	if err != nil {
		return res, fmt.Errorf("create remote session: %w", err)
	}
	defer func() {
		// Teardown failure is logged, never re-raised: cleanup must not
		// crash the poller loop.
		if cerr := session.Close(); cerr != nil {
			log.Warn("Session teardown failed", "error", cerr)
		}
	}()

	if err := session.Login(ctx); err != nil {
		return res, fmt.Errorf("login: %w", err)
	}

	receipt, err := session.ReceiptPage(ctx)
	if err != nil {
		return res, fmt.Errorf("open receipt page: %w", err)
	}

	st := &batchState{receipt: receipt}

	for i, rec := range records {
		rlog := log.With("record", i, "person", rec.PersonName)

		err := e.processRecord(ctx, rlog, st, rec)
		if err == nil {
			res.Succeeded++
			rlog.Info("Record replayed")
			continue
		}

		res.Failures = append(res.Failures, RecordFailure{Index: i, Record: rec, Err: err})

		var se *setupError
		if errors.As(err, &se) {
			res.Failed++
			rlog.Error("Batch navigation failed, aborting remaining records", "error", err)
			return res, fmt.Errorf("batch navigation: %w", err)
		}

		if isSkip(err) {
			res.Skipped++
			rlog.Warn("Record skipped", "error", err)
		} else {
			res.Failed++
			rlog.Error("Record failed", "error", err)
		}
	}

	return res, nil
}

// isSkip reports whether the error means the record could never have been
// submitted (as opposed to being rejected by the remote system).
func isSkip(err error) bool {
	var inv *invalidRecordError
	var route *RoutingError
	return errors.As(err, &inv) || errors.As(err, &route)
}

// batchState tracks which facility's registration page is currently open
// so consecutive records for the same facility reuse it.
type batchState struct {
	receipt  ReceiptPage
	facility string
	reg      RegistrationPage
}

// registration returns the registration page for a facility, navigating
// receipt → facility → registration when the facility changes and
// returning to the page's known state otherwise.
func (st *batchState) registration(ctx context.Context, facility, menuLabel string) (RegistrationPage, error) {
	if st.reg != nil && st.facility == facility {
		if err := st.reg.Return(ctx); err != nil {
			return nil, err
		}
		return st.reg, nil
	}

	fac, err := st.receipt.OpenFacility(ctx, menuLabel)
	if err != nil {
		return nil, err
	}
	reg, err := fac.OpenScheduleRegistration(ctx)
	if err != nil {
		return nil, err
	}

	st.reg = reg
	st.facility = facility
	return reg, nil
}

func (e *Engine) processRecord(ctx context.Context, log *slog.Logger, st *batchState, rec extract.AttendanceRecord) error {
	if err := rec.Validate(); err != nil {
		return &invalidRecordError{reason: err}
	}

	category, err := CategoryFor(rec)
	if err != nil {
		return &invalidRecordError{reason: err}
	}

	menuLabel, err := e.routes.Resolve(rec.FacilityName)
	if err != nil {
		return err
	}

	reg, err := st.registration(ctx, rec.FacilityName, menuLabel)
	if err != nil {
		return &setupError{err: err}
	}

	eraYear := rec.ServiceDate.Year() - e.eraOffset
	if err := reg.SelectMonth(ctx, eraYear, rec.ServiceDate.Month()); err != nil {
		// Month selection failure degrades to a warning; the submission
		// step fails on its own if the calendar is wrong.
		log.Warn("Month selection failed", "era_year", eraYear, "error", err)
	}

	if err := reg.FindUser(ctx, rec.PersonName); err != nil {
		return err
	}

	subs, err := SplitShift(rec.ServiceDate, rec.Start, rec.End)
	if err != nil {
		return &invalidRecordError{reason: err}
	}

	for _, sub := range subs {
		entry := Entry{
			Date:                       sub.Date,
			Start:                      sub.Start,
			End:                        sub.End,
			Category:                   category,
			DisabilitySupportHours:     rec.DisabilitySupportHours,
			SevereComprehensiveSupport: rec.SevereComprehensiveSupport,
			SevereVisitation:           rec.SevereVisitation,
		}

		if err := reg.SubmitEntry(ctx, entry); err != nil {
			return fmt.Errorf("submit %s %s-%s: %w", sub.Date.Format("2006-01-02"), sub.Start, sub.End, err)
		}

		messages, verr := reg.ValidationErrors(ctx)
		if verr != nil {
			log.Warn("Could not read validation banner", "error", verr)
		}
		if len(messages) > 0 {
			if derr := reg.DismissErrors(ctx); derr != nil {
				log.Warn("Could not dismiss error dialog", "error", derr)
			}
			return &ValidationError{Messages: messages}
		}
	}

	return nil
}
