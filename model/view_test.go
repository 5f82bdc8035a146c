package model

import (
	"errors"
	"testing"
	"time"
)

func TestFilters_Validate(t *testing.T) {
	tests := []struct {
		name    string
		f       Filters
		wantErr bool
	}{
		{"empty", Filters{}, false},
		{"all", Filters{Status: FilterAll, Priority: FilterAll, Assignee: FilterAll}, false},
		{"overdue", Filters{Status: FilterOverdue}, false},
		{"in progress", Filters{Status: "IN_PROGRESS"}, false},
		{"emergency priority", Filters{Priority: "EMERGENCY"}, false},
		{"unknown status", Filters{Status: "CLOSED"}, true},
		{"unknown priority", Filters{Priority: "URGENT"}, true},
		{"reversed range", Filters{DateRange: DateRange{
			Start: time.Date(2024, 2, 1, 0, 0, 0, 0, time.UTC),
			End:   time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC),
		}}, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.f.Validate()
			if (err != nil) != tt.wantErr {
				t.Fatalf("Validate() error = %v, wantErr %v", err, tt.wantErr)
			}
			if err != nil && !errors.Is(err, ErrKindValidation) {
				t.Errorf("error %v is not a validation error", err)
			}
		})
	}
}

func TestParseSort(t *testing.T) {
	s, err := ParseSort("createdAt", "")
	if err != nil || s.Key != SortCreatedAt || s.Direction != Asc {
		t.Errorf("ParseSort(createdAt, \"\") = %+v, %v", s, err)
	}
	s, err = ParseSort("asset", "DESC")
	if err != nil || s.Direction != Desc {
		t.Errorf("ParseSort(asset, DESC) = %+v, %v", s, err)
	}
	if _, err := ParseSort("cost", "asc"); err == nil {
		t.Error("ParseSort(cost) should fail")
	}
	if _, err := ParseSort("title", "sideways"); err == nil {
		t.Error("ParseSort(title, sideways) should fail")
	}
}

func TestNewBoard_has_every_bucket(t *testing.T) {
	b := NewBoard()
	for _, s := range Statuses {
		bucket, ok := b[s]
		if !ok || bucket == nil || len(bucket) != 0 {
			t.Errorf("bucket %s = %v, present %v", s, bucket, ok)
		}
	}
}

func TestStatus_Label(t *testing.T) {
	if got := StatusInProgress.Label(); got != "IN PROGRESS" {
		t.Errorf("Label() = %q", got)
	}
	if Status("CLOSED").Valid() {
		t.Error("CLOSED should not be a valid status")
	}
}
