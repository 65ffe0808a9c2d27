// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package requests

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"
	"time"
)

// Category is the top-level choice on the request form.
type Category string

const (
	CategoryAbsence  Category = "absence"
	CategoryOvertime Category = "overtime"
)

// ParseCategory accepts the English names and the Italian form labels.
func ParseCategory(raw string) (Category, error) {
	switch strings.ToLower(strings.TrimSpace(raw)) {
	case "absence", "assenza":
		return CategoryAbsence, nil
	case "overtime", "straordinari", "straordinario":
		return CategoryOvertime, nil
	}
	return "", fmt.Errorf("unknown request category %q", raw)
}

// Sub-types offered on the form.
const (
	SubTypeHoliday  = "ferie"
	SubTypeSick     = "malattia"
	SubTypeROL      = "rol"
	SubTypeWedding  = "congedo"
	SubTypeDaytime  = "diurno"
	SubTypeNight    = "notturno"
	SubTypeHolidays = "festivo"
)

// Option is a selectable sub-type with its label.
type Option struct {
	Value string
	Label string
}

// AbsenceOptions and OvertimeOptions are the sub-types per category.
var (
	AbsenceOptions = []Option{
		{SubTypeHoliday, "Ferie"},
		{SubTypeSick, "Malattia"},
		{SubTypeROL, "Permesso ROL"},
		{SubTypeWedding, "Congedo Matrimoniale"},
	}
	OvertimeOptions = []Option{
		{SubTypeDaytime, "Straordinario Diurno"},
		{SubTypeNight, "Straordinario Notturno"},
		{SubTypeHolidays, "Straordinario Festivo"},
	}
)

// Options returns the sub-types offered for a category.
func Options(category Category) []Option {
	if category == CategoryOvertime {
		return OvertimeOptions
	}
	return AbsenceOptions
}

// Working day bounds applied to all-day and sick requests.
const (
	DayStartHour = 9
	DayEndHour   = 18
)

// ValidationError is a form input problem with a message fit to show
// the user as is.
type ValidationError struct {
	Message string
}

func (e *ValidationError) Error() string { return e.Message }

// DraftInput is the request form as the user filled it in. StartDate
// and EndDate are calendar days; only their date part is used.
type DraftInput struct {
	Category  Category
	SubType   string
	StartDate time.Time
	EndDate   time.Time
	StartTime string
	EndTime   string
	AllDay    bool
	UserID    int64
}

// BuildDraft validates the form and produces a pending draft record.
//
// Sick leave and all-day requests span the working day. Otherwise the
// given HH:MM times are applied to the start and end days; for a single
// day the end time may not precede the start time.
func BuildDraft(input DraftInput) (Record, error) {
	subType := strings.TrimSpace(input.SubType)
	if subType == "" {
		return Record{}, &ValidationError{Message: "Seleziona una motivazione!"}
	}
	if input.StartDate.IsZero() || input.EndDate.IsZero() {
		return Record{}, &ValidationError{Message: "Date non valide!"}
	}
	if input.UserID <= 0 {
		return Record{}, &ValidationError{Message: "Impossibile inviare la richiesta: utente non disponibile"}
	}

	kind, permitType := classify(input.Category, subType)

	var start, end time.Time
	if kind == KindSick || input.AllDay {
		start = atTime(input.StartDate, DayStartHour, 0)
		end = atTime(input.EndDate, DayEndHour, 0)
	} else {
		startHour, startMinute, okStart := ParseClock(input.StartTime)
		endHour, endMinute, okEnd := ParseClock(input.EndTime)
		if !okStart || !okEnd {
			return Record{}, &ValidationError{Message: "Inserisci orari validi nel formato HH:MM"}
		}
		start = atTime(input.StartDate, startHour, startMinute)
		end = atTime(input.EndDate, endHour, endMinute)
		if sameDay(input.StartDate, input.EndDate) && end.Before(start) {
			return Record{}, &ValidationError{Message: "L'orario di fine deve essere successivo a quello di inizio"}
		}
	}
	if end.Before(start) {
		return Record{}, &ValidationError{Message: "La data di fine deve essere successiva o uguale a quella di inizio"}
	}

	record := Record{
		UserID:     input.UserID,
		Kind:       kind,
		Start:      start,
		End:        end,
		Status:     StatusPending,
		PermitType: permitType,
	}
	return record, nil
}

// classify maps the form choice to a kind. Sub-types are matched by
// keyword so labels like "ferie estive" still land on holiday.
func classify(category Category, subType string) (Kind, string) {
	if category == CategoryOvertime {
		return KindOvertime, ""
	}
	lower := strings.ToLower(subType)
	switch {
	case strings.Contains(lower, SubTypeHoliday):
		return KindHoliday, ""
	case strings.Contains(lower, SubTypeSick):
		return KindSick, ""
	}
	return KindPermit, subType
}

var clockPattern = regexp.MustCompile(`^(\d{1,2}):(\d{2})$`)

// ParseClock parses "H:MM" or "HH:MM" in 24-hour form.
func ParseClock(value string) (hour, minute int, ok bool) {
	match := clockPattern.FindStringSubmatch(strings.TrimSpace(value))
	if match == nil {
		return 0, 0, false
	}
	hour, _ = strconv.Atoi(match[1])
	minute, _ = strconv.Atoi(match[2])
	if hour > 23 || minute > 59 {
		return 0, 0, false
	}
	return hour, minute, true
}

// SnapToHalfHour rounds a picked time to the nearest half hour the way
// the time picker does: minutes below 15 go down to :00, below 45 to
// :30, anything later to the next hour.
func SnapToHalfHour(t time.Time) time.Time {
	truncated := time.Date(t.Year(), t.Month(), t.Day(), t.Hour(), 0, 0, 0, t.Location())
	switch minutes := t.Minute(); {
	case minutes < 15:
		return truncated
	case minutes < 45:
		return truncated.Add(30 * time.Minute)
	default:
		return truncated.Add(time.Hour)
	}
}

// SnapClock snaps an HH:MM value with SnapToHalfHour. A time that
// would round past midnight stays at 23:30. Values that do not parse
// are returned unchanged with ok false.
func SnapClock(value string) (snapped string, ok bool) {
	hour, minute, ok := ParseClock(value)
	if !ok {
		return value, false
	}
	picked := time.Date(2000, 1, 1, hour, minute, 0, 0, time.UTC)
	rounded := SnapToHalfHour(picked)
	if rounded.Day() != picked.Day() {
		return "23:30", true
	}
	return FormatClock(rounded), true
}

// FormatClock renders a time as HH:MM.
func FormatClock(t time.Time) string { return t.Format("15:04") }

func atTime(day time.Time, hour, minute int) time.Time {
	return time.Date(day.Year(), day.Month(), day.Day(), hour, minute, 0, 0, day.Location())
}

func sameDay(a, b time.Time) bool {
	ay, am, ad := a.Date()
	by, bm, bd := b.Date()
	return ay == by && am == bm && ad == bd
}
