package core

// error_messages.go maps technical errors to user-facing messages with
// codes for support reference.
//
// # File Errors (FILE001-FILE099)
//
//	FILE001 - File too large: request exceeds the upload size ceiling
//	FILE002 - Unreadable workbook: neither decoder could read the file
//	FILE003 - Invalid file type: extension not in the allow-list
//	FILE004 - No file: a file part was missing or had no name
//
// # Column Errors (COL001-COL099)
//
//	COL001 - Column not found in one of the workbooks
//	COL002 - Column name was not provided
//
// # Comparison Errors (CMP001-CMP099)
//
//	CMP001 - System busy: all comparison slots are taken
//	CMP002 - Request cancelled
//	CMP003 - Request timed out
//
// # Rate Limiting (RATE001)
//
//	RATE001 - Too many requests from one client
//
// # Default (ERR000)
//
// Fallback when nothing matches. Check the logs for the technical error.
//
// Typed errors are matched first with errors.As/errors.Is. Remaining errors
// are matched case-insensitively by substring; the first pattern wins.

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"

	"github.com/JonMunkholm/colcompare/internal/sheet"
)

// UserMessage provides user-friendly error information with actionable guidance.
type UserMessage struct {
	Message string // What happened (user-friendly)
	Action  string // What to do about it
	Code    string // Error code for support reference
}

// Sentinel input errors raised by the upload layer.
var (
	ErrNoFile          = errors.New("no file provided")
	ErrInvalidFileType = errors.New("invalid file type")
)

var (
	msgTooLarge = UserMessage{
		Message: "File exceeds the maximum upload size",
		Action:  "Upload smaller workbooks",
		Code:    "FILE001",
	}
	msgNoFile = UserMessage{
		Message: "Both files must be selected",
		Action:  "Choose a workbook for each side of the comparison",
		Code:    "FILE004",
	}
	msgInvalidType = UserMessage{
		Message: "Invalid file type. Only .xlsx and .xls files are allowed.",
		Action:  "Save the workbook as .xlsx or .xls and try again",
		Code:    "FILE003",
	}
	msgEmptyColumn = UserMessage{
		Message: "Column name must be provided",
		Action:  "Enter the header of the column to compare",
		Code:    "COL002",
	}
	msgBusy = UserMessage{
		Message: "System is busy processing other comparisons",
		Action:  "Please wait a moment and try again",
		Code:    "CMP001",
	}
	msgCancelled = UserMessage{
		Message: "Request was cancelled",
		Action:  "Please try again",
		Code:    "CMP002",
	}
	msgTimeout = UserMessage{
		Message: "Request timed out",
		Action:  "Try smaller workbooks or try again later",
		Code:    "CMP003",
	}
)

// errorPattern defines a pattern to match and its corresponding user message.
type errorPattern struct {
	pattern string
	msg     UserMessage
}

// errorPatterns catch errors that arrive as plain text, e.g. from the
// multipart parser. Order matters: specific before general.
var errorPatterns = []errorPattern{
	{pattern: "request body too large", msg: msgTooLarge},
	{pattern: "file too large", msg: msgTooLarge},
	{pattern: "no such file", msg: msgNoFile},
	{pattern: "no file provided", msg: msgNoFile},
	{pattern: "invalid file type", msg: msgInvalidType},
	{pattern: "context canceled", msg: msgCancelled},
	{pattern: "context deadline exceeded", msg: msgTimeout},
	{pattern: "timeout", msg: msgTimeout},
	{
		pattern: "rate limit",
		msg: UserMessage{
			Message: "Too many requests",
			Action:  "Please wait a moment before trying again",
			Code:    "RATE001",
		},
	},
}

// defaultMessage is returned when no pattern matches (ERR000).
var defaultMessage = UserMessage{
	Message: "An unexpected error occurred",
	Action:  "Please try again or contact support",
	Code:    "ERR000",
}

// MapError converts a technical error to a user-friendly message.
// Comparison taxonomy errors keep their own text, since it names the
// file or column involved.
func MapError(err error) UserMessage {
	if err == nil {
		return UserMessage{}
	}

	var (
		loadErr   *sheet.LoadError
		columnErr *ColumnNotFoundError
		unexpErr  *UnexpectedError
		tooLarge  *http.MaxBytesError
	)
	switch {
	case errors.As(err, &tooLarge):
		return msgTooLarge
	case errors.As(err, &loadErr):
		return UserMessage{
			Message: loadErr.Error(),
			Action:  "Open the file in a spreadsheet program and re-save it as .xlsx",
			Code:    "FILE002",
		}
	case errors.As(err, &columnErr):
		return UserMessage{
			Message: columnErr.Error(),
			Action:  "Check the header row; column names are case-sensitive",
			Code:    "COL001",
		}
	case errors.Is(err, ErrEmptyColumn):
		return msgEmptyColumn
	case errors.Is(err, ErrNoFile):
		return msgNoFile
	case errors.Is(err, ErrInvalidFileType):
		return msgInvalidType
	case errors.Is(err, ErrTooManyComparisons):
		return msgBusy
	case errors.Is(err, context.Canceled):
		return msgCancelled
	case errors.Is(err, context.DeadlineExceeded):
		return msgTimeout
	case errors.As(err, &unexpErr):
		return UserMessage{
			Message: unexpErr.Error(),
			Action:  defaultMessage.Action,
			Code:    defaultMessage.Code,
		}
	}

	errStr := strings.ToLower(err.Error())
	for _, ep := range errorPatterns {
		if strings.Contains(errStr, ep.pattern) {
			return ep.msg
		}
	}

	return defaultMessage
}

// FormatUserError creates a formatted error string for display.
// The format is: "Message (Code: XXX). Action"
func FormatUserError(err error) string {
	msg := MapError(err)
	if msg.Message == "" {
		return ""
	}
	return fmt.Sprintf("%s (Code: %s). %s", strings.TrimSuffix(msg.Message, "."), msg.Code, msg.Action)
}

// IsUserFacing reports whether err maps to a specific message rather
// than the ERR000 fallback.
func IsUserFacing(err error) bool {
	if err == nil {
		return false
	}
	return MapError(err).Code != defaultMessage.Code
}
