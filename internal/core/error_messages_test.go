package core

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"testing"

	"github.com/JonMunkholm/colcompare/internal/sheet"
)

func TestMapError(t *testing.T) {
	tests := []struct {
		name        string
		err         error
		wantCode    string
		wantMessage string
	}{
		{
			name: "nil error returns empty",
			err:  nil,
		},
		{
			name:        "load error keeps file name",
			err:         &sheet.LoadError{Name: "a.xls", Cause: errors.New("zip: not a valid zip file")},
			wantCode:    "FILE002",
			wantMessage: "Could not read Excel file: a.xls. Ensure it's a valid .xlsx or .xls file.",
		},
		{
			name:        "column not found keeps column and source",
			err:         fmt.Errorf("compare: %w", &ColumnNotFoundError{Column: "ID", Source: "b.xlsx"}),
			wantCode:    "COL001",
			wantMessage: "Column 'ID' not found in b.xlsx.",
		},
		{
			name:        "empty column",
			err:         ErrEmptyColumn,
			wantCode:    "COL002",
			wantMessage: "Column name must be provided",
		},
		{
			name:        "max bytes error",
			err:         &http.MaxBytesError{Limit: 10},
			wantCode:    "FILE001",
			wantMessage: "File exceeds the maximum upload size",
		},
		{
			name:        "too large by text",
			err:         errors.New("multipart: request body too large"),
			wantCode:    "FILE001",
			wantMessage: "File exceeds the maximum upload size",
		},
		{
			name:        "missing multipart file",
			err:         http.ErrMissingFile,
			wantCode:    "FILE004",
			wantMessage: "Both files must be selected",
		},
		{
			name:        "invalid type",
			err:         fmt.Errorf("file1: %w", ErrInvalidFileType),
			wantCode:    "FILE003",
			wantMessage: "Invalid file type. Only .xlsx and .xls files are allowed.",
		},
		{
			name:        "busy",
			err:         ErrTooManyComparisons,
			wantCode:    "CMP001",
			wantMessage: "System is busy processing other comparisons",
		},
		{
			name:        "cancelled",
			err:         context.Canceled,
			wantCode:    "CMP002",
			wantMessage: "Request was cancelled",
		},
		{
			name:        "deadline",
			err:         fmt.Errorf("load: %w", context.DeadlineExceeded),
			wantCode:    "CMP003",
			wantMessage: "Request timed out",
		},
		{
			name:        "unexpected keeps detail",
			err:         &UnexpectedError{Cause: errors.New("disk on fire")},
			wantCode:    "ERR000",
			wantMessage: "An unexpected error occurred: disk on fire",
		},
		{
			name:        "rate limit by text, case insensitive",
			err:         errors.New("RATE LIMIT exceeded"),
			wantCode:    "RATE001",
			wantMessage: "Too many requests",
		},
		{
			name:        "unknown error returns default",
			err:         errors.New("some random internal error"),
			wantCode:    "ERR000",
			wantMessage: "An unexpected error occurred",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := MapError(tt.err)
			if got.Code != tt.wantCode {
				t.Errorf("MapError() code = %q, want %q", got.Code, tt.wantCode)
			}
			if got.Message != tt.wantMessage {
				t.Errorf("MapError() message = %q, want %q", got.Message, tt.wantMessage)
			}
		})
	}
}

func TestFormatUserError(t *testing.T) {
	result := FormatUserError(ErrTooManyComparisons)

	expected := "System is busy processing other comparisons (Code: CMP001). Please wait a moment and try again"
	if result != expected {
		t.Errorf("FormatUserError() = %q, want %q", result, expected)
	}

	column := FormatUserError(&ColumnNotFoundError{Column: "ID", Source: "a.xlsx"})
	wantColumn := "Column 'ID' not found in a.xlsx (Code: COL001). Check the header row; column names are case-sensitive"
	if column != wantColumn {
		t.Errorf("FormatUserError() = %q, want %q", column, wantColumn)
	}

	if got := FormatUserError(nil); got != "" {
		t.Errorf("FormatUserError(nil) = %q, want empty", got)
	}
}

func TestIsUserFacing(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want bool
	}{
		{name: "nil error is not user facing", err: nil, want: false},
		{name: "column error is user facing", err: &ColumnNotFoundError{Column: "x", Source: "y"}, want: true},
		{name: "unknown error is not user facing", err: errors.New("random internal error xyz"), want: false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := IsUserFacing(tt.err); got != tt.want {
				t.Errorf("IsUserFacing() = %v, want %v", got, tt.want)
			}
		})
	}
}
