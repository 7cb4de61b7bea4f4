package sheet

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/JonMunkholm/colcompare/internal/logging"
)

// LoadError reports a workbook that no decoder could read.
type LoadError struct {
	Name  string // display name of the source
	Cause error  // every decoder's failure, joined
}

func (e *LoadError) Error() string {
	return fmt.Sprintf("Could not read Excel file: %s. Ensure it's a valid .xlsx or .xls file.", e.Name)
}

func (e *LoadError) Unwrap() error { return e.Cause }

// Loader decodes workbooks by trying its decoders in order.
type Loader struct {
	decoders []Decoder
}

// NewLoader returns a loader trying decoders in the given order.
// With no decoders it uses DefaultDecoders.
func NewLoader(decoders ...Decoder) *Loader {
	if len(decoders) == 0 {
		decoders = DefaultDecoders()
	}
	return &Loader{decoders: decoders}
}

// LoadFileAs opens path and loads it under the given display name.
func (l *Loader) LoadFileAs(ctx context.Context, path, name string) (*Table, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open %s: %w", name, err)
	}
	defer f.Close()

	return l.Load(ctx, name, f)
}

// Load decodes r. The stream is rewound before every decoder attempt.
// A workbook that opens but holds no rows yields a table with no columns.
// When every decoder fails the error is a *LoadError.
func (l *Loader) Load(ctx context.Context, name string, r io.ReadSeeker) (*Table, error) {
	logger := logging.WithFields(ctx, "file", name)

	var errs []error
	for _, d := range l.decoders {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		if _, err := r.Seek(0, io.SeekStart); err != nil {
			return nil, fmt.Errorf("rewind %s: %w", name, err)
		}

		rows, err := d.Decode(r)
		if err != nil {
			logger.Warn("decoder failed", "decoder", d.Name(), "error", err)
			errs = append(errs, fmt.Errorf("%s: %w", d.Name(), err))
			continue
		}

		// The header is the first row with any content.
		for len(rows) > 0 && isEmptyRow(rows[0]) {
			rows = rows[1:]
		}
		if len(rows) == 0 {
			logger.Info("workbook has no rows", "decoder", d.Name())
			return NewTable(name, nil, nil), nil
		}

		t := NewTable(name, rows[0], rows[1:])
		logger.Info("workbook loaded",
			"decoder", d.Name(),
			"columns", len(rows[0]),
			"rows", t.Rows(),
		)
		return t, nil
	}

	cause := errors.Join(errs...)
	logger.Error("all decoders failed", "error", cause)
	return nil, &LoadError{Name: name, Cause: cause}
}
