package web

import (
	"bytes"
	"context"
	"encoding/json"
	"html"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"os"
	"testing"
	"time"

	"github.com/JonMunkholm/colcompare/internal/config"
	"github.com/JonMunkholm/colcompare/internal/core"
	"github.com/JonMunkholm/colcompare/internal/sheet/sheettest"
	"github.com/JonMunkholm/colcompare/internal/upload"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type testServer struct {
	*Server
	uploadDir string
}

func newTestServer(t *testing.T, mutate func(*config.Config)) *testServer {
	t.Helper()

	cfg, err := config.LoadFrom(func(string) string { return "" })
	require.NoError(t, err)
	cfg.Upload.Dir = t.TempDir()
	cfg.Rate.Enabled = false
	if mutate != nil {
		mutate(cfg)
	}

	limiter := core.NewLimiter(cfg.Compare.MaxConcurrent, cfg.Compare.MaxWaitTime)
	srv := NewServer(cfg, core.NewComparator(nil), limiter, upload.NewStore(cfg.Upload))
	t.Cleanup(func() { _ = srv.Shutdown(context.Background()) })

	return &testServer{Server: srv, uploadDir: cfg.Upload.Dir}
}

func (ts *testServer) do(req *http.Request) *httptest.ResponseRecorder {
	rec := httptest.NewRecorder()
	ts.Router().ServeHTTP(rec, req)
	return rec
}

// assertNoUploadsLeft checks every session directory was removed.
func (ts *testServer) assertNoUploadsLeft(t *testing.T) {
	t.Helper()
	entries, err := os.ReadDir(ts.uploadDir)
	require.NoError(t, err)
	assert.Empty(t, entries, "upload sessions must be cleaned up")
}

type formPart struct {
	field    string
	filename string
	data     []byte
	isFile   bool
}

func filePart(field, filename string, data []byte) formPart {
	return formPart{field: field, filename: filename, data: data, isFile: true}
}

func valuePart(field, value string) formPart {
	return formPart{field: field, data: []byte(value)}
}

func multipartRequest(t *testing.T, target string, parts ...formPart) *http.Request {
	t.Helper()

	var body bytes.Buffer
	mw := multipart.NewWriter(&body)
	for _, p := range parts {
		if p.isFile {
			fw, err := mw.CreateFormFile(p.field, p.filename)
			require.NoError(t, err)
			_, err = fw.Write(p.data)
			require.NoError(t, err)
			continue
		}
		require.NoError(t, mw.WriteField(p.field, string(p.data)))
	}
	require.NoError(t, mw.Close())

	req := httptest.NewRequest(http.MethodPost, target, &body)
	req.Header.Set("Content-Type", mw.FormDataContentType())
	return req
}

func idWorkbooks(t *testing.T) (first, second []byte) {
	first = sheettest.XLSX(t, sheettest.Column("ID", "1", "2", "3", "2")...)
	second = sheettest.XLSX(t, sheettest.Column("ID", "2", "3", "4")...)
	return first, second
}

func decodeError(t *testing.T, rec *httptest.ResponseRecorder) ErrorResponse {
	t.Helper()
	var resp ErrorResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp), rec.Body.String())
	return resp
}

func TestIndex(t *testing.T) {
	ts := newTestServer(t, nil)

	rec := ts.do(httptest.NewRequest(http.MethodGet, "/", nil))

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `name="file1"`)
	assert.Contains(t, rec.Body.String(), `name="columnName"`)
	assert.Equal(t, "nosniff", rec.Header().Get("X-Content-Type-Options"))
	assert.NotEmpty(t, rec.Header().Get("Content-Security-Policy"))
}

func TestSecurityHeaders_CSPDisabled(t *testing.T) {
	ts := newTestServer(t, func(c *config.Config) { c.Security.EnableCSP = false })

	rec := ts.do(httptest.NewRequest(http.MethodGet, "/", nil))

	assert.Empty(t, rec.Header().Get("Content-Security-Policy"))
	assert.Equal(t, "DENY", rec.Header().Get("X-Frame-Options"))
}

func TestSubmit_Success(t *testing.T) {
	ts := newTestServer(t, nil)
	a, b := idWorkbooks(t)

	rec := ts.do(multipartRequest(t, "/",
		filePart("file1", "a.xlsx", a),
		filePart("file2", "b.xlsx", b),
		valuePart("columnName", "  ID "),
	))

	require.Equal(t, http.StatusOK, rec.Code)
	body := rec.Body.String()
	assert.Contains(t, body, "Only in a.xlsx (1)")
	assert.Contains(t, body, "Only in b.xlsx (1)")
	assert.Contains(t, body, "<li>1</li>")
	assert.Contains(t, body, "<li>4</li>")
	assert.NotContains(t, body, "<li>2</li>")
	ts.assertNoUploadsLeft(t)
}

func TestSubmit_SameFilenameOnBothSides(t *testing.T) {
	ts := newTestServer(t, nil)
	a, b := idWorkbooks(t)

	rec := ts.do(multipartRequest(t, "/",
		filePart("file1", "data.xlsx", a),
		filePart("file2", "data.xlsx", b),
		valuePart("columnName", "ID"),
	))

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "<li>1</li>")
	assert.Contains(t, rec.Body.String(), "<li>4</li>")
}

func TestSubmit_InputErrorsFlashAndRedirect(t *testing.T) {
	a, b := idWorkbooks(t)

	tests := []struct {
		name  string
		parts []formPart
		want  string
	}{
		{
			name:  "missing file part",
			parts: []formPart{filePart("file1", "a.xlsx", a), valuePart("columnName", "ID")},
			want:  "Both file parts are required!",
		},
		{
			name: "no file chosen",
			parts: []formPart{
				filePart("file1", "a.xlsx", a),
				filePart("file2", "", nil),
				valuePart("columnName", "ID"),
			},
			want: "Both files must be selected!",
		},
		{
			name: "blank column",
			parts: []formPart{
				filePart("file1", "a.xlsx", a),
				filePart("file2", "b.xlsx", b),
				valuePart("columnName", "   "),
			},
			want: "Column name must be provided!",
		},
		{
			name: "wrong extension",
			parts: []formPart{
				filePart("file1", "a.xlsx", a),
				filePart("file2", "b.csv", b),
				valuePart("columnName", "ID"),
			},
			want: "Invalid file type. Only .xlsx and .xls files are allowed.",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ts := newTestServer(t, nil)

			rec := ts.do(multipartRequest(t, "/", tt.parts...))
			require.Equal(t, http.StatusSeeOther, rec.Code)
			assert.Equal(t, "/", rec.Header().Get("Location"))

			cookies := rec.Result().Cookies()
			require.Len(t, cookies, 1)

			// Following the redirect shows the message once.
			get := httptest.NewRequest(http.MethodGet, "/", nil)
			get.AddCookie(cookies[0])
			page := ts.do(get)
			assert.Contains(t, page.Body.String(), html.EscapeString(tt.want))

			cleared := page.Result().Cookies()
			require.Len(t, cleared, 1)
			assert.Equal(t, flashCookie, cleared[0].Name)
			assert.Less(t, cleared[0].MaxAge, 0)

			ts.assertNoUploadsLeft(t)
		})
	}
}

func TestSubmit_NotMultipart(t *testing.T) {
	ts := newTestServer(t, nil)

	req := httptest.NewRequest(http.MethodPost, "/", bytes.NewBufferString("columnName=ID"))
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	rec := ts.do(req)

	assert.Equal(t, http.StatusSeeOther, rec.Code)
}

func TestSubmit_ColumnNotFoundRendersError(t *testing.T) {
	ts := newTestServer(t, nil)
	a, b := idWorkbooks(t)

	rec := ts.do(multipartRequest(t, "/",
		filePart("file1", "a.xlsx", a),
		filePart("file2", "b.xlsx", b),
		valuePart("columnName", "Email"),
	))

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), html.EscapeString("Column 'Email' not found in a.xlsx."))
	assert.NotContains(t, rec.Body.String(), `class="results"`)
	ts.assertNoUploadsLeft(t)
}

func TestCompareAPI_Success(t *testing.T) {
	ts := newTestServer(t, nil)
	a, b := idWorkbooks(t)

	rec := ts.do(multipartRequest(t, "/api/compare",
		filePart("file1", "../first.xlsx", a),
		filePart("file2", "second.XLSX", b),
		valuePart("columnName", "ID"),
	))

	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	var resp core.Report
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, core.Report{
		Column:         "ID",
		File1Name:      "first.xlsx",
		File2Name:      "second.XLSX",
		UniqueToFirst:  []string{"1"},
		UniqueToSecond: []string{"4"},
	}, resp)
	ts.assertNoUploadsLeft(t)
}

func TestCompareAPI_IdenticalSetsGiveEmptyArrays(t *testing.T) {
	ts := newTestServer(t, nil)
	a := sheettest.XLSX(t, sheettest.Column("ID", "x", "y")...)

	rec := ts.do(multipartRequest(t, "/api/compare",
		filePart("file1", "a.xlsx", a),
		filePart("file2", "b.xlsx", a),
		valuePart("columnName", "ID"),
	))

	require.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"column":"ID","file1_name":"a.xlsx","file2_name":"b.xlsx","unique_to_first":[],"unique_to_second":[]}`, rec.Body.String())
}

func TestCompareAPI_LegacyWorkbook(t *testing.T) {
	ts := newTestServer(t, nil)
	legacy, err := os.ReadFile("../sheet/testdata/people.xls")
	require.NoError(t, err)
	_, b := idWorkbooks(t)

	rec := ts.do(multipartRequest(t, "/api/compare",
		filePart("file1", "people.xls", legacy),
		filePart("file2", "b.xlsx", b),
		valuePart("columnName", "ID"),
	))

	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.JSONEq(t, `{"column":"ID","file1_name":"people.xls","file2_name":"b.xlsx","unique_to_first":["1"],"unique_to_second":["4"]}`, rec.Body.String())
	ts.assertNoUploadsLeft(t)
}

func TestCompareAPI_Errors(t *testing.T) {
	a, _ := idWorkbooks(t)

	tests := []struct {
		name       string
		parts      []formPart
		wantStatus int
		wantCode   string
		wantMsg    string
	}{
		{
			name: "corrupt workbook",
			parts: []formPart{
				filePart("file1", "bad.xlsx", []byte("not a workbook")),
				filePart("file2", "a.xlsx", a),
				valuePart("columnName", "ID"),
			},
			wantStatus: http.StatusUnprocessableEntity,
			wantCode:   "FILE002",
			wantMsg:    "Could not read Excel file: bad.xlsx. Ensure it's a valid .xlsx or .xls file.",
		},
		{
			name: "column missing from second",
			parts: []formPart{
				filePart("file1", "a.xlsx", a),
				filePart("file2", "b.xlsx", sheettest.XLSX(t, sheettest.Column("Key", "1")...)),
				valuePart("columnName", "ID"),
			},
			wantStatus: http.StatusUnprocessableEntity,
			wantCode:   "COL001",
			wantMsg:    "Column 'ID' not found in b.xlsx.",
		},
		{
			name: "blank column",
			parts: []formPart{
				filePart("file1", "a.xlsx", a),
				filePart("file2", "b.xlsx", a),
				valuePart("columnName", ""),
			},
			wantStatus: http.StatusBadRequest,
			wantCode:   "COL002",
		},
		{
			name:       "missing part",
			parts:      []formPart{valuePart("columnName", "ID")},
			wantStatus: http.StatusBadRequest,
			wantCode:   "FILE004",
		},
		{
			name: "invalid type",
			parts: []formPart{
				filePart("file1", "a.txt", a),
				filePart("file2", "b.xlsx", a),
				valuePart("columnName", "ID"),
			},
			wantStatus: http.StatusBadRequest,
			wantCode:   "FILE003",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ts := newTestServer(t, nil)

			rec := ts.do(multipartRequest(t, "/api/compare", tt.parts...))

			require.Equal(t, tt.wantStatus, rec.Code, rec.Body.String())
			resp := decodeError(t, rec)
			assert.Equal(t, tt.wantCode, resp.Code)
			if tt.wantMsg != "" {
				assert.Equal(t, tt.wantMsg, resp.Message)
			}
			ts.assertNoUploadsLeft(t)
		})
	}
}

func TestCompareAPI_TooLarge(t *testing.T) {
	ts := newTestServer(t, func(c *config.Config) { c.Upload.MaxFileSize = 512 })

	rec := ts.do(multipartRequest(t, "/api/compare",
		filePart("file1", "a.xlsx", bytes.Repeat([]byte("x"), 4096)),
		filePart("file2", "b.xlsx", []byte("y")),
		valuePart("columnName", "ID"),
	))

	require.Equal(t, http.StatusRequestEntityTooLarge, rec.Code, rec.Body.String())
	assert.Equal(t, "FILE001", decodeError(t, rec).Code)
}

func TestCompareAPI_Busy(t *testing.T) {
	ts := newTestServer(t, func(c *config.Config) {
		c.Compare.MaxConcurrent = 1
		c.Compare.MaxWaitTime = 20 * time.Millisecond
	})
	require.True(t, ts.limiter.TryAcquire())
	defer ts.limiter.Release()

	a, b := idWorkbooks(t)
	rec := ts.do(multipartRequest(t, "/api/compare",
		filePart("file1", "a.xlsx", a),
		filePart("file2", "b.xlsx", b),
		valuePart("columnName", "ID"),
	))

	require.Equal(t, http.StatusServiceUnavailable, rec.Code)
	assert.Equal(t, "CMP001", decodeError(t, rec).Code)
	ts.assertNoUploadsLeft(t)
}

func TestCompareAPI_HTMXGetsFragment(t *testing.T) {
	ts := newTestServer(t, nil)

	req := multipartRequest(t, "/api/compare", valuePart("columnName", "ID"))
	req.Header.Set("HX-Request", "true")
	rec := ts.do(req)

	require.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Contains(t, rec.Header().Get("Content-Type"), "text/html")
	assert.Contains(t, rec.Body.String(), `role="alert"`)
	assert.Contains(t, rec.Body.String(), "Code: FILE004")
}

func TestHealth(t *testing.T) {
	ts := newTestServer(t, func(c *config.Config) { c.Compare.MaxConcurrent = 3 })

	rec := ts.do(httptest.NewRequest(http.MethodGet, "/healthz", nil))

	require.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"status":"ok","comparisons":{"active":0,"available":3,"max_concurrent":3}}`, rec.Body.String())
}

func TestRateLimit_CompareBudget(t *testing.T) {
	ts := newTestServer(t, func(c *config.Config) {
		c.Rate.Enabled = true
		c.Rate.RequestsPerMinute = 100
		c.Rate.CompareLimit = 1
	})

	first := ts.do(multipartRequest(t, "/api/compare", valuePart("columnName", "ID")))
	assert.Equal(t, http.StatusBadRequest, first.Code)

	second := ts.do(multipartRequest(t, "/api/compare", valuePart("columnName", "ID")))
	require.Equal(t, http.StatusTooManyRequests, second.Code)
	assert.Equal(t, "RATE001", decodeError(t, second).Code)
	assert.Equal(t, "60", second.Header().Get("Retry-After"))

	// Page loads draw from the general budget only.
	page := ts.do(httptest.NewRequest(http.MethodGet, "/", nil))
	assert.Equal(t, http.StatusOK, page.Code)
}
