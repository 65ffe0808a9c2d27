// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package requests

import "time"

// FormatDate renders dd/mm/yyyy, adding HH:MM when the instant is not
// midnight. The zero time renders as a placeholder.
func FormatDate(t time.Time) string {
	if t.IsZero() {
		return "--/--/----"
	}
	if t.Hour() == 0 && t.Minute() == 0 {
		return t.Format("02/01/2006")
	}
	return t.Format("02/01/2006 15:04")
}

// FormatRange renders a record's span for list rows.
func FormatRange(r Record) string {
	return FormatDate(r.Start) + " - " + FormatDate(r.End)
}

// ParseDay parses a calendar day given on the command line or in a
// form, in local time.
func ParseDay(text string) (time.Time, error) {
	for _, layout := range []string{"2006-01-02", "02/01/2006"} {
		if day, err := time.ParseInLocation(layout, text, time.Local); err == nil {
			return day, nil
		}
	}
	return time.Time{}, &ValidationError{Message: "Date non valide!"}
}
