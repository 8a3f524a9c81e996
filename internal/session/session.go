// Package session persists the authenticated credential bundle between runs.
package session

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"clubprogress/internal/components/assert"
	"clubprogress/internal/components/telemetry"
	"clubprogress/internal/model"
)

const (
	report_store_load  = "store.load"
	report_store_save  = "store.save"
	report_store_clear = "store.clear"
)

type Cookie struct {
	Name   string `json:"name"`
	Value  string `json:"value"`
	Domain string `json:"domain"`
	Path   string `json:"path,omitempty"`
}

// Record is the credential bundle produced by a login. It is only ever invalidated
// by time.
type Record struct {
	Cookies                []Cookie           `json:"cookies"`
	UserAgent              string             `json:"user_agent"`
	UserId                 string             `json:"user_id"`
	ClubId                 string             `json:"club_id"`
	DashboardClubId        *string            `json:"dashboard_club_id"`
	MemberEnrollmentStatus []model.Enrollment `json:"member_enrollment_status"`
	Timestamp              Time               `json:"timestamp"`
	Expires                Time               `json:"expires"`
}

// Valid reports whether the record has not expired at now. A record without an
// expiry is never valid.
func (r *Record) Valid(now time.Time) bool {
	if r.Expires.IsZero() {
		return false
	}
	return now.Before(r.Expires.Time)
}

// Usable reports whether the record carries the identifiers fetching depends on.
func (r *Record) Usable() bool {
	return r.UserId != "" && r.ClubId != ""
}

// Cookie returns the value of the named cookie.
func (r *Record) Cookie(name string) (string, bool) {
	for _, c := range r.Cookies {
		if c.Name == name {
			return c.Value, true
		}
	}
	return "", false
}

// Store reads and writes a single session file.
type Store struct {
	path string
	tel  telemetry.API
}

func NewStore(path string, tel telemetry.API) Store {
	assert.NotEmptyStr(path)
	return Store{
		path: path,
		tel:  telemetry.NewScopedAPI("session", tel),
	}
}

func (s Store) Path() string {
	return s.path
}

// Load reads the session file regardless of expiry.
func (s Store) Load() (*Record, error) {
	buff, err := os.ReadFile(s.path)
	if err != nil {
		return nil, err
	}
	var rec Record
	err = json.Unmarshal(buff, &rec)
	if err != nil {
		return nil, fmt.Errorf("parse session file: %w", err)
	}
	return &rec, nil
}

// LoadValid returns the stored record if it is still valid at now. Every failure
// (missing file, bad content, expiry) is reported as "no session".
func (s Store) LoadValid(now time.Time) (*Record, bool) {
	rec, err := s.Load()
	if errors.Is(err, os.ErrNotExist) {
		s.tel.ReportDebug("no stored session", s.path)
		return nil, false
	}
	if err != nil {
		s.tel.ReportWarning(report_store_load, err, s.path)
		return nil, false
	}
	if !rec.Valid(now) {
		s.tel.ReportInfo("stored session expired", telemetry.KV{Key: "expires", Value: rec.Expires.Time})
		return nil, false
	}
	return rec, true
}

func (s Store) Save(rec *Record) error {
	buff, err := json.MarshalIndent(rec, "", "  ")
	if err != nil {
		s.tel.ReportBroken(report_store_save, fmt.Errorf("json marshal: %w", err))
		return err
	}
	err = os.MkdirAll(filepath.Dir(s.path), 0700)
	if err != nil {
		s.tel.ReportBroken(report_store_save, err, s.path)
		return err
	}
	err = os.WriteFile(s.path, buff, 0600)
	if err != nil {
		s.tel.ReportBroken(report_store_save, err, s.path)
		return err
	}
	return nil
}

// Clear removes the session file, a missing file is not an error.
func (s Store) Clear() error {
	err := os.Remove(s.path)
	if err != nil && !errors.Is(err, os.ErrNotExist) {
		s.tel.ReportWarning(report_store_clear, err, s.path)
		return err
	}
	return nil
}
