// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package apiclient

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/bureau-foundation/timeoff/lib/requests"
	"github.com/bureau-foundation/timeoff/lib/session"
)

const profilePath = "/Auth/microsoft-login"

// kindPaths maps each request kind to the collection that owns it.
var kindPaths = map[requests.Kind]string{
	requests.KindHoliday:  "/holidays",
	requests.KindPermit:   "/permits",
	requests.KindSick:     "/sick-leaves",
	requests.KindOvertime: "/overtime",
}

// KindPath returns the collection path for a kind.
func KindPath(kind requests.Kind) (string, error) {
	path, ok := kindPaths[kind]
	if !ok {
		return "", fmt.Errorf("no endpoint for request kind %q", kind)
	}
	return path, nil
}

type profileResponse struct {
	ID      json.RawMessage `json:"idUtente"`
	Name    string          `json:"nome"`
	Surname string          `json:"cognome"`
	Email   string          `json:"email"`
	Role    string          `json:"ruolo"`
}

// FetchProfile returns the profile of the user the current access
// token belongs to.
func (c *Client) FetchProfile(ctx context.Context) (*session.User, error) {
	var response profileResponse
	if err := c.do(ctx, http.MethodGet, profilePath, nil, nil, &response); err != nil {
		return nil, err
	}
	id, err := parseID(response.ID)
	if err != nil {
		return nil, fmt.Errorf("profile: %w", err)
	}
	return &session.User{
		ID:      id,
		Name:    response.Name,
		Surname: response.Surname,
		Email:   response.Email,
		Role:    session.ParseRole(response.Role),
	}, nil
}

// parseID accepts the user id as a JSON number or numeric string.
func parseID(raw json.RawMessage) (int64, error) {
	text := strings.Trim(strings.TrimSpace(string(raw)), `"`)
	if text == "" || text == "null" {
		return 0, nil
	}
	id, err := strconv.ParseInt(text, 10, 64)
	if err != nil {
		return 0, fmt.Errorf("user id %s is not an integer", raw)
	}
	return id, nil
}

// ListRequests fetches one request list. A non-zero day narrows the
// list to requests overlapping it.
func (c *Client) ListRequests(ctx context.Context, list requests.ListKey, day time.Time) ([]requests.Record, error) {
	if err := list.Validate(); err != nil {
		return nil, err
	}
	var query url.Values
	if !day.IsZero() {
		query = url.Values{"date": {day.Format("2006-01-02")}}
	}
	var raw json.RawMessage
	if err := c.do(ctx, http.MethodGet, "/requests/"+string(list), query, nil, &raw); err != nil {
		return nil, err
	}
	records, err := requests.DecodeList(raw)
	if err != nil {
		return nil, fmt.Errorf("decoding %s requests: %w", list, err)
	}
	return records, nil
}

// CreateRequest submits a draft to the collection of its kind and
// returns the stored record. The kind of the result is the draft's
// kind regardless of how the server spells its response.
func (c *Client) CreateRequest(ctx context.Context, draft requests.Record) (requests.Record, error) {
	if err := draft.Validate(); err != nil {
		return requests.Record{}, err
	}
	path, err := KindPath(draft.Kind)
	if err != nil {
		return requests.Record{}, err
	}
	var raw json.RawMessage
	if err := c.do(ctx, http.MethodPost, path, nil, draft, &raw); err != nil {
		return requests.Record{}, err
	}

	created := draft
	if len(strings.TrimSpace(string(raw))) > 0 && string(raw) != "null" {
		var stored requests.Record
		if err := json.Unmarshal(raw, &stored); err != nil {
			return requests.Record{}, fmt.Errorf("decoding created request: %w", err)
		}
		created.ID = stored.ID
		if stored.Status != "" {
			created.Status = stored.Status
		}
		if draft.Kind == requests.KindSick && stored.MedicalCertificateRef != "" {
			created.MedicalCertificateRef = stored.MedicalCertificateRef
		}
	}
	return created, nil
}

// UpdateRequest replaces a stored record in the collection of its kind.
func (c *Client) UpdateRequest(ctx context.Context, record requests.Record) error {
	path, err := KindPath(record.Kind)
	if err != nil {
		return err
	}
	return c.do(ctx, http.MethodPut, path+"/"+strconv.FormatInt(record.ID, 10), nil, record, nil)
}

// DeleteRequest removes a record from the collection of its kind.
func (c *Client) DeleteRequest(ctx context.Context, kind requests.Kind, id int64) error {
	path, err := KindPath(kind)
	if err != nil {
		return err
	}
	return c.do(ctx, http.MethodDelete, path+"/"+strconv.FormatInt(id, 10), nil, nil, nil)
}
