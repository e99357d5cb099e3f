package domain

import "testing"

func TestSubtitleRecordValidate(t *testing.T) {
	year := 2001
	base := SubtitleRecord{
		Title: "spirited away",
		Year:  &year,
		File:  FileRef{FileID: "file-1", FileName: "spirited.srt", FileSize: 42},
		Kind:  MediaMovie,
	}
	if err := base.Validate(); err != nil {
		t.Fatalf("valid record rejected: %v", err)
	}

	tests := []struct {
		name   string
		mutate func(*SubtitleRecord)
	}{
		{"missing title", func(r *SubtitleRecord) { r.Title = "" }},
		{"missing file id", func(r *SubtitleRecord) { r.File.FileID = "" }},
		{"negative size", func(r *SubtitleRecord) { r.File.FileSize = -1 }},
		{"year too small", func(r *SubtitleRecord) { y := 1200; r.Year = &y }},
		{"bad kind", func(r *SubtitleRecord) { r.Kind = MediaKind("cartoon") }},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			record := base
			tc.mutate(&record)
			if err := record.Validate(); err == nil {
				t.Error("expected validation error")
			}
		})
	}
}

func TestSubtitleRecordValidate_NilYear(t *testing.T) {
	record := SubtitleRecord{
		Title: "old movie",
		File:  FileRef{FileID: "file-2"},
	}
	if err := record.Validate(); err != nil {
		t.Fatalf("record without year rejected: %v", err)
	}
}

func TestRequestStatusTransitions(t *testing.T) {
	tests := []struct {
		from RequestStatus
		to   RequestStatus
		ok   bool
	}{
		{RequestPending, RequestApproved, true},
		{RequestPending, RequestRejected, true},
		{RequestApproved, RequestFulfilled, true},
		{RequestPending, RequestFulfilled, false},
		{RequestApproved, RequestRejected, false},
		{RequestRejected, RequestApproved, false},
		{RequestFulfilled, RequestPending, false},
		{RequestRejected, RequestFulfilled, false},
	}
	for _, tc := range tests {
		if got := tc.from.CanTransitionTo(tc.to); got != tc.ok {
			t.Errorf("%s -> %s: got %v, want %v", tc.from, tc.to, got, tc.ok)
		}
	}
}

func TestRequestStatusValid(t *testing.T) {
	for _, s := range []RequestStatus{RequestPending, RequestApproved, RequestRejected, RequestFulfilled} {
		if !s.Valid() {
			t.Errorf("%s should be valid", s)
		}
	}
	if RequestStatus("done").Valid() {
		t.Error("unknown status should not be valid")
	}
	if RequestStatus("").Valid() {
		t.Error("empty status should not be valid")
	}
}
