package web

import (
	"context"
	"errors"
	"fmt"
	"mime/multipart"
	"net/http"
	"strings"

	"github.com/JonMunkholm/colcompare/internal/core"
	"github.com/JonMunkholm/colcompare/internal/logging"
	"github.com/JonMunkholm/colcompare/internal/upload"
	"github.com/JonMunkholm/colcompare/internal/web/templates"
)

// Form field names shared by the HTML form and the JSON API.
const (
	fieldFile1  = "file1"
	fieldFile2  = "file2"
	fieldColumn = "columnName"
)

// errMissingPart means a file field was absent from the request entirely,
// as opposed to present with no file chosen.
var errMissingPart = fmt.Errorf("both file parts are required: %w", core.ErrNoFile)

type healthResponse struct {
	Status      string             `json:"status"`
	Comparisons core.LimiterStatus `json:"comparisons"`
}

// compareForm is a validated submission.
type compareForm struct {
	column string
	files  [2]*multipart.FileHeader
}

// handleIndex renders the upload form and any pending flash message.
func (s *Server) handleIndex(w http.ResponseWriter, r *http.Request) {
	s.renderIndex(w, r, http.StatusOK, templates.IndexParams{Flash: consumeFlash(w, r)})
}

// handleSubmit processes the HTML form. Input problems are flashed and
// redirected back to the form; comparison outcomes are rendered in place.
func (s *Server) handleSubmit(w http.ResponseWriter, r *http.Request) {
	form, err := s.parseCompareForm(w, r)
	if r.MultipartForm != nil {
		defer r.MultipartForm.RemoveAll()
	}
	if err != nil {
		if msg, ok := flashMessage(err); ok {
			flashAndRedirect(w, r, msg)
			return
		}
		s.renderIndex(w, r, statusFor(err), templates.IndexParams{Error: errorText(err)})
		return
	}

	params := templates.IndexParams{Column: form.column}
	status := http.StatusOK

	report, err := s.compare(r.Context(), form)
	if err != nil {
		logging.FromContext(r.Context()).Warn("comparison failed", "error", err)
		params.Error = errorText(err)
		if code := statusFor(err); code != http.StatusUnprocessableEntity {
			status = code
		}
	} else {
		params.Results = &templates.Results{
			Column:         report.Column,
			File1Name:      report.File1Name,
			File2Name:      report.File2Name,
			UniqueToFirst:  report.UniqueToFirst,
			UniqueToSecond: report.UniqueToSecond,
		}
	}

	s.renderIndex(w, r, status, params)
}

// handleCompareAPI is the JSON counterpart of handleSubmit.
func (s *Server) handleCompareAPI(w http.ResponseWriter, r *http.Request) {
	form, err := s.parseCompareForm(w, r)
	if r.MultipartForm != nil {
		defer r.MultipartForm.RemoveAll()
	}
	if err != nil {
		respondError(w, r, err, statusFor(err))
		return
	}

	report, err := s.compare(r.Context(), form)
	if err != nil {
		respondError(w, r, err, statusFor(err))
		return
	}

	writeJSON(w, http.StatusOK, report)
}

// handleHealth reports liveness and comparison slot usage.
func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, healthResponse{Status: "ok", Comparisons: s.limiter.Status()})
}

// parseCompareForm reads the multipart body and validates it in the same
// order the form reports problems: parts, filenames, column, extensions.
func (s *Server) parseCompareForm(w http.ResponseWriter, r *http.Request) (*compareForm, error) {
	maxSize := s.cfg.Upload.MaxFileSize
	r.Body = http.MaxBytesReader(w, r.Body, maxSize)

	if err := r.ParseMultipartForm(maxSize); err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) || strings.Contains(err.Error(), "request body too large") {
			return nil, fmt.Errorf("parse form: %w", err)
		}
		return nil, errMissingPart
	}

	mf := r.MultipartForm
	fields := [2]string{fieldFile1, fieldFile2}

	// A file input left empty arrives as a part with no filename, which
	// the multipart reader files under Value rather than File.
	for _, f := range fields {
		_, isFile := mf.File[f]
		_, isValue := mf.Value[f]
		if !isFile && !isValue {
			return nil, errMissingPart
		}
	}

	form := &compareForm{}
	for i, f := range fields {
		headers := mf.File[f]
		if len(headers) == 0 || headers[0].Filename == "" {
			return nil, core.ErrNoFile
		}
		form.files[i] = headers[0]
	}

	form.column = strings.TrimSpace(r.PostFormValue(fieldColumn))
	if form.column == "" {
		return nil, core.ErrEmptyColumn
	}

	for _, fh := range form.files {
		if !s.store.Allowed(fh.Filename) {
			return nil, fmt.Errorf("%s: %w", fh.Filename, core.ErrInvalidFileType)
		}
	}
	return form, nil
}

// compare saves both uploads into a private session directory, runs the
// comparison and removes the directory again on every path out.
func (s *Server) compare(ctx context.Context, form *compareForm) (*core.Report, error) {
	if err := s.limiter.Acquire(ctx); err != nil {
		return nil, err
	}
	defer s.limiter.Release()

	sess, err := s.store.NewSession(ctx)
	if err != nil {
		return nil, err
	}
	defer sess.Cleanup(ctx)

	fields := [2]string{fieldFile1, fieldFile2}
	var sources [2]core.Source
	for i, fh := range form.files {
		path, err := saveUpload(ctx, sess, fields[i], fh)
		if err != nil {
			return nil, err
		}
		sources[i] = core.Source{Name: upload.StoredName(fh.Filename), Path: path}
	}

	res := s.comparator.Compare(ctx, sources[0], sources[1], form.column)
	if res.Err != nil {
		return nil, res.Err
	}

	return &core.Report{
		Column:         form.column,
		File1Name:      sources[0].Name,
		File2Name:      sources[1].Name,
		UniqueToFirst:  res.UniqueToFirst,
		UniqueToSecond: res.UniqueToSecond,
	}, nil
}

func saveUpload(ctx context.Context, sess *upload.Session, field string, fh *multipart.FileHeader) (string, error) {
	f, err := fh.Open()
	if err != nil {
		return "", fmt.Errorf("open upload %s: %w", field, err)
	}
	defer f.Close()
	return sess.Save(ctx, field, fh.Filename, f)
}

func (s *Server) renderIndex(w http.ResponseWriter, r *http.Request, status int, params templates.IndexParams) {
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.WriteHeader(status)
	if err := templates.IndexPage(params).Render(r.Context(), w); err != nil {
		logging.FromContext(r.Context()).Error("render index", "error", err)
	}
}

// flashMessage returns the form-level message for input errors.
func flashMessage(err error) (string, bool) {
	switch {
	case errors.Is(err, errMissingPart):
		return "Both file parts are required!", true
	case errors.Is(err, core.ErrNoFile):
		return "Both files must be selected!", true
	case errors.Is(err, core.ErrEmptyColumn):
		return "Column name must be provided!", true
	case errors.Is(err, core.ErrInvalidFileType):
		return "Invalid file type. Only .xlsx and .xls files are allowed.", true
	}
	return "", false
}

// errorText is the message shown on the page. Unexpected failures keep
// their detail, matching what the comparison itself reports.
func errorText(err error) string {
	var unexp *core.UnexpectedError
	if errors.As(err, &unexp) {
		return unexp.Error()
	}
	return core.MapError(err).Message
}
