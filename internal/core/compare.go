package core

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"path/filepath"
	"runtime/debug"
	"slices"
	"strings"

	"github.com/JonMunkholm/colcompare/internal/logging"
	"github.com/JonMunkholm/colcompare/internal/sheet"
)

// Source identifies one side of a comparison. Reader takes precedence
// over Path when both are set.
type Source struct {
	Name   string        // display name used in messages; defaults to the base of Path
	Path   string        // workbook on disk
	Reader io.ReadSeeker // workbook already in hand
}

func (s Source) displayName() string {
	if s.Name != "" {
		return s.Name
	}
	return filepath.Base(s.Path)
}

// Result is the outcome of a comparison. Either Err is set and both
// lists are nil, or Err is nil and both lists are non-nil and sorted.
type Result struct {
	UniqueToFirst  []string
	UniqueToSecond []string
	Err            error
}

// OK reports whether the comparison succeeded.
func (r Result) OK() bool { return r.Err == nil }

// Message returns the user-facing error text, or "" on success.
func (r Result) Message() string {
	if r.Err == nil {
		return ""
	}
	return r.Err.Error()
}

// Report is a successful comparison labelled with its inputs. It is the
// body of the JSON API response and of the command line's --json output.
type Report struct {
	Column         string   `json:"column"`
	File1Name      string   `json:"file1_name"`
	File2Name      string   `json:"file2_name"`
	UniqueToFirst  []string `json:"unique_to_first"`
	UniqueToSecond []string `json:"unique_to_second"`
}

// Comparator computes the values of one column unique to each of two workbooks.
type Comparator struct {
	loader *sheet.Loader
}

// NewComparator returns a comparator reading workbooks through loader.
// A nil loader uses the default decoder chain.
func NewComparator(loader *sheet.Loader) *Comparator {
	if loader == nil {
		loader = sheet.NewLoader()
	}
	return &Comparator{loader: loader}
}

// Compare loads both sources, checks the column exists in each (first
// source first) and diffs the normalized values. It never panics; every
// failure is reported through Result.Err.
func (c *Comparator) Compare(ctx context.Context, first, second Source, column string) (res Result) {
	logger := logging.WithFields(ctx, "column", column)

	defer func() {
		if p := recover(); p != nil {
			res = c.fail(logger, fmt.Errorf("panic: %v", p), debug.Stack())
		}
	}()

	if column == "" {
		return c.fail(logger, ErrEmptyColumn, nil)
	}

	t1, err := c.load(ctx, first)
	if err != nil {
		return c.fail(logger, err, nil)
	}
	t2, err := c.load(ctx, second)
	if err != nil {
		return c.fail(logger, err, nil)
	}

	return c.compareTables(ctx, logger, t1, t2, column)
}

// CompareTables runs validation, normalization and diffing on tables that
// are already loaded.
func (c *Comparator) CompareTables(ctx context.Context, first, second *sheet.Table, column string) Result {
	logger := logging.WithFields(ctx, "column", column)
	if column == "" {
		return c.fail(logger, ErrEmptyColumn, nil)
	}
	return c.compareTables(ctx, logger, first, second, column)
}

func (c *Comparator) compareTables(ctx context.Context, logger *slog.Logger, first, second *sheet.Table, column string) Result {
	col1, ok := first.Column(column)
	if !ok {
		return c.fail(logger, &ColumnNotFoundError{Column: column, Source: first.Name()}, nil)
	}
	col2, ok := second.Column(column)
	if !ok {
		return c.fail(logger, &ColumnNotFoundError{Column: column, Source: second.Name()}, nil)
	}

	if err := ctx.Err(); err != nil {
		return c.fail(logger, err, nil)
	}

	set1, set2 := Normalize(col1), Normalize(col2)
	res := Result{
		UniqueToFirst:  Difference(set1, set2),
		UniqueToSecond: Difference(set2, set1),
	}

	logger.Info("comparison successful",
		"first", first.Name(),
		"second", second.Name(),
		"unique_to_first", len(res.UniqueToFirst),
		"unique_to_second", len(res.UniqueToSecond),
	)
	return res
}

func (c *Comparator) load(ctx context.Context, src Source) (*sheet.Table, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	name := src.displayName()
	if src.Reader != nil {
		return c.loader.Load(ctx, name, src.Reader)
	}
	return c.loader.LoadFileAs(ctx, src.Path, name)
}

// fail converts err into a failed Result. Taxonomy errors pass through;
// anything else is wrapped in *UnexpectedError and logged with full detail.
func (c *Comparator) fail(logger *slog.Logger, err error, stack []byte) Result {
	var (
		loadErr   *sheet.LoadError
		columnErr *ColumnNotFoundError
	)
	switch {
	case errors.As(err, &loadErr), errors.As(err, &columnErr), errors.Is(err, ErrEmptyColumn):
		logger.Error("comparison failed", "error", err)
		return Result{Err: err}
	}

	attrs := []any{"error", err, "error_type", fmt.Sprintf("%T", err)}
	if cause := errors.Unwrap(err); cause != nil {
		attrs = append(attrs, "cause", cause.Error())
	}
	if stack != nil {
		attrs = append(attrs, "stack", string(stack))
	}
	logger.Error("unexpected error during comparison", attrs...)
	return Result{Err: &UnexpectedError{Cause: err}}
}

// NormalizedSet is the set of distinct trimmed values of a column.
type NormalizedSet map[string]struct{}

// Normalize drops null cells, trims surrounding whitespace from the rest
// and collapses duplicates.
func Normalize(col sheet.Column) NormalizedSet {
	set := make(NormalizedSet, len(col.Cells))
	for _, cell := range col.Cells {
		if cell.Null {
			continue
		}
		set[strings.TrimSpace(cell.Text)] = struct{}{}
	}
	return set
}

// Difference returns the members of a not in b in ascending code-point
// order. The result is never nil.
func Difference(a, b NormalizedSet) []string {
	out := make([]string, 0)
	for v := range a {
		if _, ok := b[v]; !ok {
			out = append(out, v)
		}
	}
	slices.Sort(out)
	return out
}
