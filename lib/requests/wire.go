// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package requests

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
	"time"
)

// WireLayout is the timestamp format the backend expects: local wall
// clock, no zone designator, so the server does not shift the day.
const WireLayout = "2006-01-02T15:04:05"

// incomingLayouts are tried in order when decoding timestamps.
var incomingLayouts = []string{
	WireLayout,
	"2006-01-02T15:04:05.999999999",
	time.RFC3339Nano,
	"2006-01-02 15:04:05",
	"2006-01-02",
}

// Field spellings accepted on decode, in priority order.
var (
	idFields          = []string{"idRichiesta", "id_richiesta", "IdRichiesta", "id"}
	userIDFields      = []string{"id_utente", "IdUtente", "idUtente", "userId"}
	startFields       = []string{"dataInizio", "data_inizio", "DataInizio"}
	endFields         = []string{"dataFine", "data_fine", "DataFine"}
	statusFields      = []string{"StatoApprovazione", "stato_approvazione", "statoApprovazione"}
	permitTypeFields  = []string{"tipo_permesso", "TipoPermesso", "tipoPermesso"}
	certificateFields = []string{"certificato_medico", "CertificatoMedico", "certificatoMedico"}
	kindFields        = []string{"tipo_richiesta", "TipoRichiesta", "tipoRichiesta"}
)

// wireRecord is the outgoing shape.
type wireRecord struct {
	ID                 int64   `json:"id_richiesta"`
	UserID             int64   `json:"id_utente"`
	Start              string  `json:"data_inizio"`
	End                string  `json:"data_fine"`
	Status             Status  `json:"stato_approvazione"`
	Kind               Kind    `json:"tipo_richiesta"`
	PermitType         *string `json:"tipo_permesso,omitempty"`
	MedicalCertificate *string `json:"certificato_medico,omitempty"`
}

// MarshalJSON encodes the record in the backend's shape. Variant
// fields appear only for their kind.
func (r Record) MarshalJSON() ([]byte, error) {
	wire := wireRecord{
		ID:     r.ID,
		UserID: r.UserID,
		Start:  r.Start.Format(WireLayout),
		End:    r.End.Format(WireLayout),
		Status: r.Status,
		Kind:   r.Kind,
	}
	switch r.Kind {
	case KindPermit:
		permitType := r.PermitType
		wire.PermitType = &permitType
	case KindSick:
		certificate := r.MedicalCertificateRef
		wire.MedicalCertificate = &certificate
	}
	return json.Marshal(wire)
}

// UnmarshalJSON decodes a record in any of the accepted spellings. The
// kind comes from an explicit discriminant when present, else from the
// variant field that is present, else holiday. Both variant fields
// without a discriminant is an error.
func (r *Record) UnmarshalJSON(data []byte) error {
	var fields map[string]json.RawMessage
	if err := json.Unmarshal(data, &fields); err != nil {
		return fmt.Errorf("decoding request: %w", err)
	}

	var decoded Record
	var err error
	if decoded.ID, err = intField(fields, idFields); err != nil {
		return err
	}
	if decoded.UserID, err = intField(fields, userIDFields); err != nil {
		return err
	}
	if decoded.Start, err = timeField(fields, startFields); err != nil {
		return err
	}
	if decoded.End, err = timeField(fields, endFields); err != nil {
		return err
	}

	rawStatus, _, err := stringField(fields, statusFields)
	if err != nil {
		return err
	}
	if decoded.Status, err = ParseStatus(rawStatus); err != nil {
		// Keep statuses this client does not know about visible
		// rather than failing the whole list.
		decoded.Status = Status(strings.ToLower(strings.TrimSpace(rawStatus)))
	}

	permitType, hasPermit, err := stringField(fields, permitTypeFields)
	if err != nil {
		return err
	}
	certificate, hasCertificate, err := stringField(fields, certificateFields)
	if err != nil {
		return err
	}
	rawKind, hasKind, err := stringField(fields, kindFields)
	if err != nil {
		return err
	}

	switch {
	case hasKind && rawKind != "":
		if decoded.Kind, err = ParseKind(rawKind); err != nil {
			return err
		}
	case hasPermit && hasCertificate:
		return fmt.Errorf("decoding request %d: both permit type and medical certificate present without a request type", decoded.ID)
	case hasPermit:
		decoded.Kind = KindPermit
	case hasCertificate:
		decoded.Kind = KindSick
	default:
		decoded.Kind = KindHoliday
	}
	switch decoded.Kind {
	case KindPermit:
		decoded.PermitType = permitType
	case KindSick:
		decoded.MedicalCertificateRef = certificate
	}

	*r = decoded
	return nil
}

// DecodeList decodes a JSON array of records. A null body is an empty
// list.
func DecodeList(data []byte) ([]Record, error) {
	if len(bytes.TrimSpace(data)) == 0 || bytes.Equal(bytes.TrimSpace(data), []byte("null")) {
		return []Record{}, nil
	}
	var records []Record
	if err := json.Unmarshal(data, &records); err != nil {
		return nil, err
	}
	if records == nil {
		records = []Record{}
	}
	return records, nil
}

// lookup returns the first present, non-null field among names.
func lookup(fields map[string]json.RawMessage, names []string) (json.RawMessage, string, bool) {
	for _, name := range names {
		raw, ok := fields[name]
		if !ok || bytes.Equal(bytes.TrimSpace(raw), []byte("null")) {
			continue
		}
		return raw, name, true
	}
	return nil, "", false
}

// intField accepts JSON numbers and numeric strings. Absent is zero.
func intField(fields map[string]json.RawMessage, names []string) (int64, error) {
	raw, name, ok := lookup(fields, names)
	if !ok {
		return 0, nil
	}
	var number json.Number
	if err := json.Unmarshal(raw, &number); err == nil {
		if value, err := number.Int64(); err == nil {
			return value, nil
		}
	}
	var text string
	if err := json.Unmarshal(raw, &text); err == nil {
		if value, err := strconv.ParseInt(strings.TrimSpace(text), 10, 64); err == nil {
			return value, nil
		}
	}
	return 0, fmt.Errorf("field %s: expected an integer, got %s", name, raw)
}

// stringField returns the field's text and whether it was present.
func stringField(fields map[string]json.RawMessage, names []string) (string, bool, error) {
	raw, name, ok := lookup(fields, names)
	if !ok {
		return "", false, nil
	}
	var text string
	if err := json.Unmarshal(raw, &text); err != nil {
		return "", true, fmt.Errorf("field %s: expected a string, got %s", name, raw)
	}
	return text, true, nil
}

// timeField parses a timestamp in local time. Absent is the zero time.
func timeField(fields map[string]json.RawMessage, names []string) (time.Time, error) {
	text, present, err := stringField(fields, names)
	if err != nil || !present || strings.TrimSpace(text) == "" {
		return time.Time{}, err
	}
	return ParseTimestamp(text)
}

// ParseTimestamp parses the timestamp spellings the backend emits.
// Values without a zone are interpreted in the local time zone.
func ParseTimestamp(text string) (time.Time, error) {
	text = strings.TrimSpace(text)
	for _, layout := range incomingLayouts {
		if value, err := time.ParseInLocation(layout, text, time.Local); err == nil {
			return value, nil
		}
	}
	return time.Time{}, fmt.Errorf("unrecognized timestamp %q", text)
}
