package models

import (
	"bytes"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
)

const dateOnlyLayout = "2006-01-02"

// Timestamp decodes RFC 3339 timestamps as well as the bare YYYY-MM-DD
// values that HTML date inputs produce. An empty string decodes to the zero
// time.
type Timestamp struct {
	time.Time
}

func (t *Timestamp) UnmarshalJSON(data []byte) error {
	if bytes.Equal(data, []byte("null")) {
		return nil
	}
	var raw string
	if err := json.Unmarshal(data, &raw); err != nil {
		return fmt.Errorf("timestamp must be a string: %w", err)
	}
	if raw == "" {
		t.Time = time.Time{}
		return nil
	}
	if parsed, err := time.Parse(time.RFC3339Nano, raw); err == nil {
		t.Time = parsed.UTC()
		return nil
	}
	parsed, err := time.Parse(dateOnlyLayout, raw)
	if err != nil {
		return fmt.Errorf("invalid date %q, want RFC 3339 or YYYY-MM-DD", raw)
	}
	t.Time = parsed
	return nil
}

// Ptr returns nil for a missing or empty value.
func (t *Timestamp) Ptr() *time.Time {
	if t == nil || t.IsZero() {
		return nil
	}
	v := t.Time
	return &v
}

// MedicalRecord is a single visit or diagnosis entry owned by one user.
type MedicalRecord struct {
	ID           uuid.UUID  `json:"id"`
	UserID       uuid.UUID  `json:"userId"`
	Date         time.Time  `json:"date"`
	Diagnosis    string     `json:"diagnosis"`
	Medications  string     `json:"medications"`
	Doctor       string     `json:"doctor"`
	Hospital     string     `json:"hospital"`
	FollowUpDate *time.Time `json:"followUpDate,omitempty"`
	Notes        string     `json:"notes"`
	CreatedAt    time.Time  `json:"createdAt"`
	UpdatedAt    time.Time  `json:"updatedAt"`
}

type MedicalRecordParams struct {
	Date         *Timestamp `json:"date"`
	Diagnosis    string     `json:"diagnosis"`
	Medications  string     `json:"medications"`
	Doctor       string     `json:"doctor"`
	Hospital     string     `json:"hospital"`
	FollowUpDate *Timestamp `json:"followUpDate"`
	Notes        string     `json:"notes"`
}

// LabReport is an uploaded test result. Results is free-form JSON, the
// dashboard stores a fileUrl in it.
type LabReport struct {
	ID         uuid.UUID      `json:"id"`
	UserID     uuid.UUID      `json:"userId"`
	TestName   string         `json:"testName"`
	ReportDate time.Time      `json:"reportDate"`
	Results    map[string]any `json:"results"`
	Notes      string         `json:"notes"`
	CreatedAt  time.Time      `json:"createdAt"`
}

type LabReportParams struct {
	TestName   string         `json:"testName"`
	ReportDate *Timestamp     `json:"reportDate"`
	Results    map[string]any `json:"results"`
	Notes      string         `json:"notes"`
}
