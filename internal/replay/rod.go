package replay

import (
	"context"
	"fmt"
	"log/slog"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/go-rod/rod"
	"github.com/go-rod/rod/lib/launcher"
	"github.com/go-rod/rod/lib/proto"
)

// Selectors and link labels observed on the remote scheduling system.
const (
	selCorporateCode = `input[id="form:corporation_id"]`
	selLoginUser     = `input[id="form:member_login_id"]`
	selLoginPassword = `input[id="form:password"]`
	selLoginButton   = `input[id="form:logn_nochklogin"]`

	selYearSelect  = `select[id="form:year"]`
	selMonthSelect = `select[id="form:month"]`

	selServiceKind  = `select[id="form:service_kind"]`
	selActualRadio  = `input[id="form:plan_actual:1"]`
	selStartTime    = `input[id="form:start_time"]`
	selEndTime      = `input[id="form:end_time"]`
	selServiceHours = `input[id="form:service_hours"]`
	selRegisterBtn  = `input[id="form:register"]`

	selErrorItems = `.errorList li`
	selErrorClose = `.errorList input[type="button"]`

	// loginURLMarker is present in the login page URL and gone once the
	// session is authenticated.
	loginURLMarker = "COM020102"

	scheduleMenuText         = "スケジュール"
	scheduleRegistrationText = "スケジュール登録"

	categoryOptionPhysical = "身体"
	categoryOptionSevere   = "重度"
)

// SessionConfig configures one browser-backed remote session.
type SessionConfig struct {
	LoginURL      string
	CorporateCode string
	Username      string
	Password      string
	Headless      bool

	// OpTimeout bounds each selector wait and navigation. Default 15s.
	OpTimeout time.Duration

	Logger *slog.Logger
}

func (c *SessionConfig) defaults() {
	if c.OpTimeout <= 0 {
		c.OpTimeout = 15 * time.Second
	}
	if c.Logger == nil {
		c.Logger = slog.Default()
	}
}

// NewRodFactory returns a SessionFactory that launches a local Chrome via
// rod, one browser per batch.
func NewRodFactory(cfg SessionConfig) SessionFactory {
	cfg.defaults()

	return func(ctx context.Context) (Session, error) {
		l := launcher.New().Headless(cfg.Headless)

		u, err := l.Launch()
		if err != nil {
			return nil, fmt.Errorf("launch browser: %w", err)
		}

		browser := rod.New().ControlURL(u)
		if err := browser.Connect(); err != nil {
			l.Cleanup()
			return nil, fmt.Errorf("connect browser: %w", err)
		}

		page, err := browser.Page(proto.TargetCreateTarget{})
		if err != nil {
			browser.Close()
			l.Cleanup()
			return nil, fmt.Errorf("create page: %w", err)
		}

		return &rodSession{cfg: cfg, lnch: l, browser: browser, page: page}, nil
	}
}

type rodSession struct {
	cfg     SessionConfig
	lnch    *launcher.Launcher
	browser *rod.Browser
	page    *rod.Page
}

func (s *rodSession) op(ctx context.Context) *rod.Page {
	return s.page.Context(ctx).Timeout(s.cfg.OpTimeout)
}

func (s *rodSession) Login(ctx context.Context) error {
	log := s.cfg.Logger
	page := s.op(ctx)

	if err := page.Navigate(s.cfg.LoginURL); err != nil {
		return fmt.Errorf("open login page: %w", err)
	}
	if err := page.WaitLoad(); err != nil {
		return fmt.Errorf("load login page: %w", err)
	}

	fields := []struct{ sel, value string }{
		{selCorporateCode, s.cfg.CorporateCode},
		{selLoginUser, s.cfg.Username},
		{selLoginPassword, s.cfg.Password},
	}
	for _, f := range fields {
		if err := fill(page, f.sel, f.value); err != nil {
			return err
		}
	}

	if err := click(page, selLoginButton); err != nil {
		return err
	}

	// Success is the login marker disappearing from the URL.
	deadline := time.Now().Add(s.cfg.OpTimeout)
	for {
		info, err := s.page.Context(ctx).Info()
		if err == nil && !strings.Contains(info.URL, loginURLMarker) {
			log.Info("Login successful", "url", info.URL)
			return nil
		}
		if time.Now().After(deadline) {
			return &AuthError{Reason: "still on login page after submit"}
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(500 * time.Millisecond):
		}
	}
}

func (s *rodSession) ReceiptPage(ctx context.Context) (ReceiptPage, error) {
	if err := s.op(ctx).WaitLoad(); err != nil {
		return nil, fmt.Errorf("load receipt page: %w", err)
	}

	info, err := s.page.Context(ctx).Info()
	if err != nil {
		return nil, fmt.Errorf("read receipt page URL: %w", err)
	}

	return &rodReceiptPage{s: s, url: info.URL}, nil
}

func (s *rodSession) Close() error {
	var err error
	if s.page != nil {
		if cerr := s.page.Close(); cerr != nil {
			err = cerr
		}
	}
	if s.browser != nil {
		if cerr := s.browser.Close(); cerr != nil && err == nil {
			err = cerr
		}
	}
	if s.lnch != nil {
		s.lnch.Cleanup()
	}
	return err
}

type rodReceiptPage struct {
	s *rodSession
	// url is the page's own location. The shared browser tab is on the
	// previous facility's pages when the engine switches facilities, so
	// OpenFacility navigates back before looking for the menu link.
	url string
}

func (p *rodReceiptPage) OpenFacility(ctx context.Context, menuLabel string) (FacilityPage, error) {
	page := p.s.op(ctx)

	if err := page.Navigate(p.url); err != nil {
		return nil, fmt.Errorf("return to receipt page: %w", err)
	}
	if err := page.WaitLoad(); err != nil {
		return nil, fmt.Errorf("load receipt page: %w", err)
	}

	link, err := page.ElementR("a", regexp.QuoteMeta(menuLabel))
	if err != nil {
		return nil, fmt.Errorf("facility menu %q: %w", menuLabel, err)
	}
	if err := link.Click(proto.InputMouseButtonLeft, 1); err != nil {
		return nil, fmt.Errorf("open facility %q: %w", menuLabel, err)
	}
	if err := page.WaitLoad(); err != nil {
		return nil, fmt.Errorf("load facility page: %w", err)
	}

	return &rodFacilityPage{s: p.s}, nil
}

type rodFacilityPage struct {
	s *rodSession
}

func (p *rodFacilityPage) OpenScheduleRegistration(ctx context.Context) (RegistrationPage, error) {
	page := p.s.op(ctx)

	// The registration link only becomes clickable after its parent menu
	// is hovered.
	menu, err := page.ElementR("a, span", scheduleMenuText)
	if err != nil {
		return nil, fmt.Errorf("schedule menu: %w", err)
	}
	if err := menu.Hover(); err != nil {
		return nil, fmt.Errorf("hover schedule menu: %w", err)
	}

	link, err := page.ElementR("a", scheduleRegistrationText)
	if err != nil {
		return nil, fmt.Errorf("schedule registration link: %w", err)
	}
	if err := link.Click(proto.InputMouseButtonLeft, 1); err != nil {
		return nil, fmt.Errorf("open schedule registration: %w", err)
	}
	if err := page.WaitLoad(); err != nil {
		return nil, fmt.Errorf("load schedule registration: %w", err)
	}

	info, err := p.s.page.Context(ctx).Info()
	if err != nil {
		return nil, fmt.Errorf("read registration page URL: %w", err)
	}

	return &rodRegistrationPage{s: p.s, url: info.URL}, nil
}

type rodRegistrationPage struct {
	s *rodSession
	// url is the page's own location, used to come back between records.
	url string
}

func (p *rodRegistrationPage) SelectMonth(ctx context.Context, eraYear int, month time.Month) error {
	page := p.s.op(ctx)

	if err := selectOption(page, selYearSelect, fmt.Sprintf(`%d`, eraYear)); err != nil {
		return err
	}
	if err := selectOption(page, selMonthSelect, fmt.Sprintf(`%d`, int(month))); err != nil {
		return err
	}
	return page.WaitLoad()
}

func (p *rodRegistrationPage) FindUser(ctx context.Context, name string) error {
	page := p.s.op(ctx)
	target := normalizeName(name)

	// Structural search over the listing's link texts first.
	links, err := page.Elements("table a")
	if err == nil {
		for _, link := range links {
			txt, terr := link.Text()
			if terr != nil {
				continue
			}
			if strings.Contains(normalizeName(txt), target) {
				if err := link.Click(proto.InputMouseButtonLeft, 1); err != nil {
					return fmt.Errorf("open user %q: %w", name, err)
				}
				return page.WaitLoad()
			}
		}
	}

	// Fallback: page-wide text search.
	res, err := page.Search(name)
	if err != nil || res.First == nil {
		return &LookupError{Name: name}
	}
	if err := res.First.Click(proto.InputMouseButtonLeft, 1); err != nil {
		return &LookupError{Name: name}
	}
	return page.WaitLoad()
}

func (p *rodRegistrationPage) SubmitEntry(ctx context.Context, entry Entry) error {
	page := p.s.op(ctx)

	option := categoryOptionPhysical
	if entry.Category == CategorySevereComprehensive {
		option = categoryOptionSevere
	}
	if err := selectOption(page, selServiceKind, option); err != nil {
		return err
	}

	// Actual-performance record, not a plan.
	if err := click(page, selActualRadio); err != nil {
		return err
	}

	// The exact calendar day cell for the submission date.
	day, err := page.ElementR("td a", fmt.Sprintf(`^%d$`, entry.Date.Day()))
	if err != nil {
		return fmt.Errorf("calendar day %d: %w", entry.Date.Day(), err)
	}
	if err := day.Click(proto.InputMouseButtonLeft, 1); err != nil {
		return fmt.Errorf("select calendar day %d: %w", entry.Date.Day(), err)
	}

	if err := fill(page, selStartTime, entry.Start); err != nil {
		return err
	}
	if err := fill(page, selEndTime, entry.End); err != nil {
		return err
	}
	if err := fill(page, selServiceHours, formatQuantity(entry)); err != nil {
		return err
	}

	if err := click(page, selRegisterBtn); err != nil {
		return err
	}
	return page.WaitLoad()
}

func (p *rodRegistrationPage) ValidationErrors(ctx context.Context) ([]string, error) {
	items, err := p.s.page.Context(ctx).Elements(selErrorItems)
	if err != nil {
		return nil, fmt.Errorf("read validation banner: %w", err)
	}

	var messages []string
	for _, item := range items {
		txt, terr := item.Text()
		if terr != nil {
			continue
		}
		if txt = strings.TrimSpace(txt); txt != "" {
			messages = append(messages, txt)
		}
	}
	return messages, nil
}

func (p *rodRegistrationPage) DismissErrors(ctx context.Context) error {
	btn, err := p.s.op(ctx).Element(selErrorClose)
	if err != nil {
		return fmt.Errorf("error dialog close button: %w", err)
	}
	return btn.Click(proto.InputMouseButtonLeft, 1)
}

func (p *rodRegistrationPage) Return(ctx context.Context) error {
	page := p.s.op(ctx)
	if err := page.Navigate(p.url); err != nil {
		return fmt.Errorf("return to registration page: %w", err)
	}
	return page.WaitLoad()
}

func fill(page *rod.Page, sel, value string) error {
	el, err := page.Element(sel)
	if err != nil {
		return fmt.Errorf("field %s: %w", sel, err)
	}
	if err := el.Input(value); err != nil {
		return fmt.Errorf("fill %s: %w", sel, err)
	}
	return nil
}

func click(page *rod.Page, sel string) error {
	el, err := page.Element(sel)
	if err != nil {
		return fmt.Errorf("element %s: %w", sel, err)
	}
	if err := el.Click(proto.InputMouseButtonLeft, 1); err != nil {
		return fmt.Errorf("click %s: %w", sel, err)
	}
	return nil
}

func selectOption(page *rod.Page, sel, optionPattern string) error {
	el, err := page.Element(sel)
	if err != nil {
		return fmt.Errorf("select %s: %w", sel, err)
	}
	if err := el.Select([]string{optionPattern}, true, rod.SelectorTypeRegex); err != nil {
		return fmt.Errorf("select option %q in %s: %w", optionPattern, sel, err)
	}
	return nil
}

// normalizeName folds case and strips ASCII and full-width spaces so the
// listing match tolerates OCR spacing differences.
func normalizeName(s string) string {
	s = strings.ToLower(s)
	s = strings.ReplaceAll(s, " ", "")
	s = strings.ReplaceAll(s, "　", "")
	return s
}

func formatQuantity(entry Entry) string {
	q := entry.DisabilitySupportHours
	if entry.Category == CategorySevereComprehensive {
		q = entry.SevereComprehensiveSupport
		if q == 0 {
			q = entry.SevereVisitation
		}
	}
	return strconv.FormatFloat(q, 'f', -1, 64)
}
