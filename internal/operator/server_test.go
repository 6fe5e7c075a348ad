package operator

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/joelkehle/medlite/internal/medsummary"
	"github.com/sirupsen/logrus/hooks/test"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const chestXRayReport = `PATIENT: John Doe
DOB: 01/01/1980
DATE: 12/15/2023

CHEST X-RAY REPORT

CLINICAL HISTORY: Patient presents with acute onset of dyspnea and chest pain.

FINDINGS: The chest X-ray demonstrates bilateral lower lobe consolidation
consistent with pneumonia. The cardiac silhouette is within normal limits.
No evidence of pneumothorax or pleural effusion. The bony structures are
unremarkable.

IMPRESSION:
1. Bilateral lower lobe pneumonia
2. No acute cardiopulmonary abnormalities
3. Recommend follow-up chest X-ray in 2 weeks

Dr. Smith, Radiologist
`

func TestMain(m *testing.M) {
	gin.SetMode(gin.TestMode)
	os.Exit(m.Run())
}

type stubRenderer struct {
	mu       sync.Mutex
	markdown []string
	err      error
}

func (r *stubRenderer) Render(_ context.Context, markdown string) ([]byte, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.markdown = append(r.markdown, markdown)
	if r.err != nil {
		return nil, r.err
	}
	return []byte("%PDF-1.7 stub"), nil
}

type testServer struct {
	handler   http.Handler
	outputDir string
	renderer  *stubRenderer
}

func setupServer(t *testing.T, renderer *stubRenderer) testServer {
	t.Helper()
	samplesDir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(samplesDir, "chest_xray.txt"), []byte(chestXRayReport), 0o644))
	outputDir := filepath.Join(t.TempDir(), "outputs")

	logger, _ := test.NewNullLogger()
	engine := medsummary.NewEngine(medsummary.WithLogger(logger))
	opts := Options{
		SamplesDir: samplesDir,
		OutputDir:  outputDir,
		Logger:     logger,
		Now:        func() time.Time { return time.Date(2024, 5, 6, 7, 8, 9, 0, time.Local) },
	}
	if renderer != nil {
		opts.Renderer = renderer
	}
	return testServer{handler: NewServer(engine, opts).Handler(), outputDir: outputDir, renderer: renderer}
}

func doJSON(t *testing.T, h http.Handler, method, path string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	rr := httptest.NewRecorder()
	h.ServeHTTP(rr, req)
	return rr
}

func decodeSummary(t *testing.T, rr *httptest.ResponseRecorder) summarizeResponse {
	t.Helper()
	var resp summarizeResponse
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &resp))
	return resp
}

func TestHealthReportsTier(t *testing.T) {
	srv := setupServer(t, nil)

	rr := doJSON(t, srv.handler, http.MethodGet, "/health", nil)
	require.Equal(t, http.StatusOK, rr.Code)
	assert.JSONEq(t, `{"status":"ok","tier":"pending","backend":""}`, rr.Body.String())

	doJSON(t, srv.handler, http.MethodPost, "/api/v1/summarize", summarizeRequest{Text: chestXRayReport})
	rr = doJSON(t, srv.handler, http.MethodGet, "/health", nil)
	assert.JSONEq(t, `{"status":"ok","tier":"rule_based","backend":""}`, rr.Body.String())
}

func TestSummarizeJSON(t *testing.T) {
	srv := setupServer(t, nil)

	rr := doJSON(t, srv.handler, http.MethodPost, "/api/v1/summarize", summarizeRequest{Text: chestXRayReport, Filename: "xray.txt"})
	require.Equal(t, http.StatusOK, rr.Code)
	resp := decodeSummary(t, rr)

	assert.Equal(t, medsummary.TierRuleBased, resp.Tier)
	assert.False(t, resp.ShortCircuit)
	assert.Equal(t, "xray.txt", resp.Filename)
	assert.Equal(t, []string{"bilateral lower lobe consolidation consistent with lung infection"}, resp.Result.KeyFindings)
	assert.NotContains(t, strings.ToLower(resp.Result.PatientFriendly), "pneumonia")
	assert.Greater(t, resp.Stats.Words, 50)
	assert.NotEmpty(t, resp.RequestID)
	assert.Equal(t, resp.RequestID, rr.Header().Get(requestIDHeader))
}

func TestSummarizeShortReport(t *testing.T) {
	srv := setupServer(t, nil)
	rr := doJSON(t, srv.handler, http.MethodPost, "/api/v1/summarize", summarizeRequest{Text: "too short"})
	require.Equal(t, http.StatusOK, rr.Code)
	resp := decodeSummary(t, rr)
	assert.True(t, resp.ShortCircuit)
	assert.Equal(t, medsummary.ShortSummary, resp.Result.Summary)
}

func TestSummarizeKeepsCallerRequestID(t *testing.T) {
	srv := setupServer(t, nil)
	req := httptest.NewRequest(http.MethodPost, "/api/v1/summarize", strings.NewReader(`{"text":"x"}`))
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set(requestIDHeader, "req-42")
	rr := httptest.NewRecorder()
	srv.handler.ServeHTTP(rr, req)

	assert.Equal(t, "req-42", rr.Header().Get(requestIDHeader))
	assert.Equal(t, "req-42", decodeSummary(t, rr).RequestID)
}

func TestSummarizeRejectsBadInput(t *testing.T) {
	srv := setupServer(t, nil)

	rr := doJSON(t, srv.handler, http.MethodPost, "/api/v1/summarize", summarizeRequest{Text: "   "})
	assert.Equal(t, http.StatusBadRequest, rr.Code)

	req := httptest.NewRequest(http.MethodPost, "/api/v1/summarize", strings.NewReader("{not json"))
	req.Header.Set("Content-Type", "application/json")
	rr = httptest.NewRecorder()
	srv.handler.ServeHTTP(rr, req)
	assert.Equal(t, http.StatusBadRequest, rr.Code)
	assert.Contains(t, rr.Body.String(), "invalid JSON body")
}

func TestSummarizeJSONBodyLimit(t *testing.T) {
	logger, _ := test.NewNullLogger()
	h := NewServer(medsummary.NewEngine(medsummary.WithLogger(logger)), Options{
		MaxUploadBytes: 1024,
		Logger:         logger,
	}).Handler()

	rr := doJSON(t, h, http.MethodPost, "/api/v1/summarize", summarizeRequest{Text: strings.Repeat("a", 3<<20)})
	assert.Equal(t, http.StatusRequestEntityTooLarge, rr.Code)
	assert.Contains(t, rr.Body.String(), "too large")

	rr = doJSON(t, h, http.MethodPost, "/api/v1/summarize", summarizeRequest{Text: strings.Repeat("a", 2048)})
	assert.Equal(t, http.StatusRequestEntityTooLarge, rr.Code)

	rr = doJSON(t, h, http.MethodPost, "/api/v1/summarize", summarizeRequest{Text: chestXRayReport})
	assert.Equal(t, http.StatusOK, rr.Code, rr.Body.String())
}

func multipartRequest(t *testing.T, filename, content string) *http.Request {
	t.Helper()
	var body bytes.Buffer
	mw := multipart.NewWriter(&body)
	fw, err := mw.CreateFormFile("file", filename)
	require.NoError(t, err)
	_, err = fw.Write([]byte(content))
	require.NoError(t, err)
	require.NoError(t, mw.Close())

	req := httptest.NewRequest(http.MethodPost, "/api/v1/summarize", &body)
	req.Header.Set("Content-Type", mw.FormDataContentType())
	return req
}

func TestSummarizeUpload(t *testing.T) {
	srv := setupServer(t, nil)

	rr := httptest.NewRecorder()
	srv.handler.ServeHTTP(rr, multipartRequest(t, "chest.txt", chestXRayReport))
	require.Equal(t, http.StatusOK, rr.Code, rr.Body.String())
	resp := decodeSummary(t, rr)
	assert.Equal(t, "chest.txt", resp.Filename)
	assert.Len(t, resp.Result.KeyFindings, 1)
}

func TestSummarizeUploadErrors(t *testing.T) {
	srv := setupServer(t, nil)

	rr := httptest.NewRecorder()
	srv.handler.ServeHTTP(rr, multipartRequest(t, "scan.docx", "x"))
	assert.Equal(t, http.StatusUnsupportedMediaType, rr.Code)

	rr = httptest.NewRecorder()
	srv.handler.ServeHTTP(rr, multipartRequest(t, "empty.txt", "  \n"))
	assert.Equal(t, http.StatusUnprocessableEntity, rr.Code)
}

func TestSamplesEndpoints(t *testing.T) {
	srv := setupServer(t, nil)

	rr := doJSON(t, srv.handler, http.MethodGet, "/api/v1/samples", nil)
	require.Equal(t, http.StatusOK, rr.Code)
	var list struct {
		Samples []struct {
			Name      string `json:"name"`
			Available bool   `json:"available"`
		} `json:"samples"`
	}
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &list))
	require.Len(t, list.Samples, 20)
	assert.Equal(t, "chest_xray", list.Samples[0].Name)
	assert.True(t, list.Samples[0].Available)
	assert.False(t, list.Samples[1].Available)

	rr = doJSON(t, srv.handler, http.MethodGet, "/api/v1/samples/chest_xray", nil)
	require.Equal(t, http.StatusOK, rr.Code)
	var sample struct {
		Name  string `json:"name"`
		Title string `json:"title"`
		Text  string `json:"text"`
	}
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &sample))
	assert.Equal(t, "Chest Xray", sample.Title)
	assert.True(t, strings.HasPrefix(sample.Text, "PATIENT: John Doe"))

	rr = doJSON(t, srv.handler, http.MethodGet, "/api/v1/samples/blood_test", nil)
	assert.Equal(t, http.StatusNotFound, rr.Code)
	rr = doJSON(t, srv.handler, http.MethodGet, "/api/v1/samples/.hidden", nil)
	assert.Equal(t, http.StatusBadRequest, rr.Code)

	rr = doJSON(t, srv.handler, http.MethodPost, "/api/v1/samples/chest_xray/summarize", nil)
	require.Equal(t, http.StatusOK, rr.Code)
	resp := decodeSummary(t, rr)
	assert.Equal(t, "chest_xray.txt", resp.Filename)
	assert.Equal(t, medsummary.TierRuleBased, resp.Tier)
}

func exportBody() exportRequest {
	return exportRequest{
		Result: medsummary.SummaryResult{
			Summary:         "Bilateral lower lobe pneumonia.",
			PatientFriendly: "Lung infection in both lower lungs.",
			KeyFindings:     []string{"bilateral lower lobe consolidation"},
		},
		Filename: "chest_xray.txt",
		Tier:     medsummary.TierRuleBased,
	}
}

func TestExportText(t *testing.T) {
	srv := setupServer(t, nil)

	rr := doJSON(t, srv.handler, http.MethodPost, "/api/v1/export/text", exportBody())
	require.Equal(t, http.StatusOK, rr.Code, rr.Body.String())
	assert.Contains(t, rr.Header().Get("Content-Disposition"), "summary_20240506_070809_chest_xray.txt")
	assert.True(t, strings.HasPrefix(rr.Body.String(), medsummary.OutputBanner))

	saved, err := os.ReadFile(filepath.Join(srv.outputDir, "summary_20240506_070809_chest_xray.txt"))
	require.NoError(t, err)
	assert.Equal(t, rr.Body.String(), string(saved))

	rr = doJSON(t, srv.handler, http.MethodPost, "/api/v1/export/text", exportRequest{})
	assert.Equal(t, http.StatusBadRequest, rr.Code)
}

func TestExportPDF(t *testing.T) {
	renderer := &stubRenderer{}
	srv := setupServer(t, renderer)

	rr := doJSON(t, srv.handler, http.MethodPost, "/api/v1/export/pdf", exportBody())
	require.Equal(t, http.StatusOK, rr.Code)
	assert.Equal(t, "application/pdf", rr.Header().Get("Content-Type"))
	assert.Contains(t, rr.Header().Get("Content-Disposition"), "summary_20240506_070809_chest_xray.pdf")
	assert.Equal(t, "%PDF-1.7 stub", rr.Body.String())

	require.Len(t, renderer.markdown, 1)
	assert.Contains(t, renderer.markdown[0], "# Medical Report Summary")
	assert.Contains(t, renderer.markdown[0], "Rule-based extraction")
}

func TestExportPDFFailures(t *testing.T) {
	srv := setupServer(t, nil)
	rr := doJSON(t, srv.handler, http.MethodPost, "/api/v1/export/pdf", exportBody())
	assert.Equal(t, http.StatusServiceUnavailable, rr.Code)

	srv = setupServer(t, &stubRenderer{err: errors.New("chrome crashed")})
	rr = doJSON(t, srv.handler, http.MethodPost, "/api/v1/export/pdf", exportBody())
	assert.Equal(t, http.StatusInternalServerError, rr.Code)
	assert.Contains(t, rr.Body.String(), "failed to render pdf")
}
