package session

import (
	"bytes"
	"encoding/json"
	"strconv"
	"strings"
	"time"
)

// Identity is the signed-in user.
type Identity struct {
	Token       string    `json:"token"`
	UserID      string    `json:"user_id"`
	Email       string    `json:"email"`
	DisplayName string    `json:"display_name,omitempty"`
	ThemePref   string    `json:"theme_pref,omitempty"`
	SignedInAt  time.Time `json:"signed_in_at"`
}

// Valid reports whether the identity can authorize requests.
func (i Identity) Valid() bool {
	return strings.TrimSpace(i.Token) != ""
}

// Profile is the auth service's view of the user.
type Profile struct {
	ID          string    `json:"id"`
	Email       string    `json:"email"`
	DisplayName string    `json:"display_name"`
	ThemePref   string    `json:"theme_pref"`
	CreatedAt   time.Time `json:"created_at"`
}

// flexID decodes identifiers sent either as strings or numbers.
type flexID string

func (f *flexID) UnmarshalJSON(data []byte) error {
	trimmed := bytes.TrimSpace(data)
	if bytes.Equal(trimmed, []byte("null")) {
		*f = ""
		return nil
	}
	if len(trimmed) > 0 && trimmed[0] == '"' {
		var s string
		if err := json.Unmarshal(trimmed, &s); err != nil {
			return err
		}
		*f = flexID(s)
		return nil
	}
	var n json.Number
	if err := json.Unmarshal(trimmed, &n); err != nil {
		return err
	}
	*f = flexID(n.String())
	return nil
}

type userWire struct {
	ID          flexID `json:"id"`
	UserID      flexID `json:"user_id"`
	Email       string `json:"email"`
	DisplayName string `json:"display_name"`
	ThemePref   string `json:"theme_pref"`
	CreatedAt   string `json:"created_at"`
}

// authWire covers both identity envelopes the auth service emits: flat
// {token,user_id,email,display_name} and nested {token,user:{id,...}}.
type authWire struct {
	Token string    `json:"token"`
	User  *userWire `json:"user"`
	userWire
}

func (w authWire) profile() Profile {
	flat := w.userWire
	var nested userWire
	if w.User != nil {
		nested = *w.User
	}
	p := Profile{
		ID:          firstNonEmpty(string(flat.UserID), string(flat.ID), string(nested.ID), string(nested.UserID)),
		Email:       firstNonEmpty(flat.Email, nested.Email),
		DisplayName: firstNonEmpty(flat.DisplayName, nested.DisplayName),
		ThemePref:   firstNonEmpty(flat.ThemePref, nested.ThemePref),
	}
	p.CreatedAt = parseTime(firstNonEmpty(flat.CreatedAt, nested.CreatedAt))
	return p
}

func (w authWire) identity(now time.Time) Identity {
	p := w.profile()
	return Identity{
		Token:       strings.TrimSpace(w.Token),
		UserID:      p.ID,
		Email:       p.Email,
		DisplayName: p.DisplayName,
		ThemePref:   p.ThemePref,
		SignedInAt:  now.UTC(),
	}
}

func firstNonEmpty(values ...string) string {
	for _, value := range values {
		if trimmed := strings.TrimSpace(value); trimmed != "" {
			return trimmed
		}
	}
	return ""
}

func parseTime(value string) time.Time {
	if value == "" {
		return time.Time{}
	}
	for _, layout := range []string{time.RFC3339Nano, "2006-01-02T15:04:05.999999999"} {
		if ts, err := time.Parse(layout, value); err == nil {
			return ts
		}
	}
	if secs, err := strconv.ParseInt(value, 10, 64); err == nil {
		return time.Unix(secs, 0).UTC()
	}
	return time.Time{}
}
