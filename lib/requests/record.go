// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package requests

import (
	"fmt"
	"strings"
	"time"
)

// Kind discriminates the request variants.
type Kind string

const (
	KindHoliday  Kind = "holiday"
	KindPermit   Kind = "permit"
	KindSick     Kind = "sick"
	KindOvertime Kind = "overtime"
)

// Kinds lists every variant in display order.
var Kinds = []Kind{KindHoliday, KindPermit, KindSick, KindOvertime}

// ParseKind accepts the English kind names and the Italian labels the
// backend uses for its discriminant.
func ParseKind(raw string) (Kind, error) {
	switch strings.ToLower(strings.TrimSpace(raw)) {
	case "holiday", "ferie":
		return KindHoliday, nil
	case "permit", "permesso", "permessi":
		return KindPermit, nil
	case "sick", "malattia":
		return KindSick, nil
	case "overtime", "straordinario", "straordinari":
		return KindOvertime, nil
	}
	return "", fmt.Errorf("unknown request kind %q", raw)
}

// Label is the user-facing name of the kind.
func (k Kind) Label() string {
	switch k {
	case KindHoliday:
		return "Ferie"
	case KindPermit:
		return "Permesso"
	case KindSick:
		return "Malattia"
	case KindOvertime:
		return "Straordinario"
	}
	return string(k)
}

// Status is the approval state of a request.
type Status string

const (
	StatusPending   Status = "pending"
	StatusApproved  Status = "approved"
	StatusRejected  Status = "rejected"
	StatusCancelled Status = "cancelled"
)

// ParseStatus is case-insensitive and accepts Italian spellings. An
// empty value is pending.
func ParseStatus(raw string) (Status, error) {
	switch strings.ToLower(strings.TrimSpace(raw)) {
	case "", "pending", "in attesa", "attesa":
		return StatusPending, nil
	case "approved", "approvato", "approvata":
		return StatusApproved, nil
	case "rejected", "rifiutato", "rifiutata", "respinto", "respinta":
		return StatusRejected, nil
	case "cancelled", "canceled", "annullato", "annullata":
		return StatusCancelled, nil
	}
	return "", fmt.Errorf("unknown approval status %q", raw)
}

// Label is the user-facing name of the status.
func (s Status) Label() string {
	switch s {
	case StatusPending:
		return "In attesa"
	case StatusApproved:
		return "Approvato"
	case StatusRejected:
		return "Rifiutato"
	case StatusCancelled:
		return "Annullato"
	}
	return string(s)
}

// Record is one request. ID zero marks a draft not yet accepted by the
// server.
type Record struct {
	ID     int64
	UserID int64
	Kind   Kind
	Start  time.Time
	End    time.Time
	Status Status

	// PermitType is set only for KindPermit (e.g. "rol", "congedo").
	PermitType string

	// MedicalCertificateRef is meaningful only for KindSick and may
	// be empty until a certificate is attached.
	MedicalCertificateRef string
}

// IsDraft reports whether the record has not been persisted yet.
func (r Record) IsDraft() bool { return r.ID == 0 }

// Validate checks that the variant fields match the kind and the range
// is ordered.
func (r Record) Validate() error {
	switch r.Kind {
	case KindHoliday, KindOvertime:
		if r.PermitType != "" || r.MedicalCertificateRef != "" {
			return fmt.Errorf("%s request carries variant fields of another kind", r.Kind)
		}
	case KindPermit:
		if r.PermitType == "" {
			return fmt.Errorf("permit request without permit type")
		}
		if r.MedicalCertificateRef != "" {
			return fmt.Errorf("permit request carries a medical certificate")
		}
	case KindSick:
		if r.PermitType != "" {
			return fmt.Errorf("sick leave request carries a permit type")
		}
	default:
		return fmt.Errorf("unknown request kind %q", r.Kind)
	}
	if r.End.Before(r.Start) {
		return fmt.Errorf("request ends before it starts")
	}
	return nil
}

// Patch is an edit of an existing record: the range and the status.
type Patch struct {
	ID     int64
	Start  time.Time
	End    time.Time
	Status Status
}

// Validate rejects a patch whose end precedes its start.
func (p Patch) Validate() error {
	if p.ID == 0 {
		return &ValidationError{Message: "missing request id"}
	}
	if p.End.Before(p.Start) {
		return &ValidationError{Message: "La data di fine deve essere successiva o uguale a quella di inizio"}
	}
	return nil
}

// Apply returns r with the patch's range and status.
func (p Patch) Apply(r Record) Record {
	r.Start = p.Start
	r.End = p.End
	r.Status = p.Status
	return r
}

// ListKey names one of the request lists the backend serves.
type ListKey string

const (
	// ListSent holds the requests the user submitted.
	ListSent ListKey = "sent"

	// ListReceived holds the requests awaiting the user's review.
	ListReceived ListKey = "received"
)

// Validate rejects unknown list keys.
func (k ListKey) Validate() error {
	switch k {
	case ListSent, ListReceived:
		return nil
	}
	return fmt.Errorf("unknown request list %q", k)
}
