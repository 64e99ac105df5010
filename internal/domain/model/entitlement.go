package model

import (
	"bytes"
	"encoding/json"
	"strconv"
	"strings"
	"time"
)

// Plan defaults applied when checkout notes omit a value.
const (
	DefaultPlanName   = "Unknown"
	DefaultPlanPrice  = "0"
	DefaultExpiryDays = 60
	DefaultPlanForm   = "Unknown"
	DefaultValidity   = 6 * 30 * 24 * time.Hour
)

// Entitlement is the premium plan granted by a paid order.
type Entitlement struct {
	Plan             string     `json:"plan"`
	PlanTitle        string     `json:"planTitle,omitempty"`
	Price            string     `json:"price"`
	ExpiryDays       int        `json:"expiry"`
	PurchasedDate    *time.Time `json:"purchasedDate,omitempty"`
	ExpiryDate       time.Time  `json:"expiryDate"`
	IsPaymentPending bool       `json:"isPaymentPending"`
	Form             string     `json:"form"`
	OrderID          string     `json:"orderId"`
}

// PlanDetails is the serialized plan blob stored in order notes at checkout.
// Numeric fields arrive as either JSON numbers or strings.
type PlanDetails struct {
	Plan       string     `json:"plan"`
	Price      flexString `json:"price"`
	Expiry     flexInt    `json:"expiry"`
	ExpiryDate flexTime   `json:"expiryDate"`
	Form       string     `json:"form"`
}

// ParsePlanDetails decodes the planDetails note. An empty note yields a zero value.
func ParsePlanDetails(raw string) (PlanDetails, error) {
	var d PlanDetails
	if strings.TrimSpace(raw) == "" {
		return d, nil
	}
	err := json.Unmarshal([]byte(raw), &d)
	return d, err
}

// DerivePlan builds the entitlement for a paid order from its notes.
// An unparsable planDetails falls back to customerPlan with the defaults.
func DerivePlan(orderID string, notes OrderNotes, now time.Time) *Entitlement {
	details, err := ParsePlanDetails(notes.PlanDetails())
	if err != nil {
		details = PlanDetails{Plan: notes.CustomerPlan()}
	}

	e := &Entitlement{
		Plan:             firstNonEmpty(details.Plan, notes.CustomerPlan(), DefaultPlanName),
		PlanTitle:        firstNonEmpty(notes.PlanTitle(), notes.CustomerPlan()),
		Price:            firstNonEmpty(string(details.Price), DefaultPlanPrice),
		ExpiryDays:       int(details.Expiry),
		ExpiryDate:       time.Time(details.ExpiryDate),
		Form:             firstNonEmpty(details.Form, DefaultPlanForm),
		IsPaymentPending: false,
		OrderID:          orderID,
	}
	if e.ExpiryDays <= 0 {
		e.ExpiryDays = DefaultExpiryDays
	}
	if e.ExpiryDate.IsZero() {
		e.ExpiryDate = now.Add(DefaultValidity)
	}
	purchased := now
	e.PurchasedDate = &purchased
	return e
}

func firstNonEmpty(vs ...string) string {
	for _, v := range vs {
		if strings.TrimSpace(v) != "" {
			return v
		}
	}
	return ""
}

type flexString string

func (f *flexString) UnmarshalJSON(b []byte) error {
	b = bytes.TrimSpace(b)
	if bytes.Equal(b, []byte("null")) {
		return nil
	}
	if len(b) > 0 && b[0] == '"' {
		var s string
		if err := json.Unmarshal(b, &s); err != nil {
			return err
		}
		*f = flexString(s)
		return nil
	}
	*f = flexString(b)
	return nil
}

type flexInt int

func (f *flexInt) UnmarshalJSON(b []byte) error {
	b = bytes.TrimSpace(b)
	if bytes.Equal(b, []byte("null")) {
		return nil
	}
	s := strings.Trim(string(b), `"`)
	if s == "" {
		return nil
	}
	n, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return err
	}
	*f = flexInt(n)
	return nil
}

type flexTime time.Time

var planDateLayouts = []string{time.RFC3339Nano, "2006-01-02T15:04:05", "2006-01-02"}

func (f *flexTime) UnmarshalJSON(b []byte) error {
	b = bytes.TrimSpace(b)
	if bytes.Equal(b, []byte("null")) {
		return nil
	}
	if len(b) > 0 && b[0] != '"' {
		ms, err := strconv.ParseInt(string(b), 10, 64)
		if err != nil {
			return err
		}
		*f = flexTime(time.UnixMilli(ms).UTC())
		return nil
	}
	var s string
	if err := json.Unmarshal(b, &s); err != nil {
		return err
	}
	if s == "" {
		return nil
	}
	for _, layout := range planDateLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			*f = flexTime(t)
			return nil
		}
	}
	return &time.ParseError{Layout: time.RFC3339, Value: s}
}
