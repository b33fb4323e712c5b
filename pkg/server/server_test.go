package server

import (
	"bytes"
	"encoding/json"
	"math"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"

	"github.com/go-audio/audio"
	"github.com/go-audio/wav"
	"github.com/labstack/echo/v4"
	"github.com/stretchr/testify/require"

	"github.com/audioride/audioride/pkg/analysis"
)

// newTestServer builds a server over a temp music dir containing one WAV
// track and one analysis report sidecar.
func newTestServer(t *testing.T) (*Server, *echo.Echo, string) {
	t.Helper()

	dir := t.TempDir()
	writeTestWAV(t, filepath.Join(dir, "song.wav"), 1.0)
	writeTestWAV(t, filepath.Join(dir, "unanalyzed.wav"), 0.5)

	report := &analysis.AnalysisReport{File: "song.wav", Duration: 1.0, BPM: 120}
	require.NoError(t, report.WriteJSON(filepath.Join(dir, "song.json")))

	cfg := analysis.DefaultConfig()
	cfg.FrameSize = 1024
	cfg.HopSize = 256
	analyzer, err := analysis.NewWithConfig(cfg)
	require.NoError(t, err)

	s := New(dir, analyzer)
	e := echo.New()
	s.Routes(e)
	return s, e, dir
}

// writeTestWAV writes a 440 Hz mono 16-bit WAV of the given length.
func writeTestWAV(t *testing.T, path string, seconds float64) {
	t.Helper()

	f, err := os.Create(path)
	require.NoError(t, err)
	defer f.Close()

	const sampleRate = 44100
	n := int(seconds * sampleRate)
	buf := &audio.IntBuffer{
		Format:         &audio.Format{NumChannels: 1, SampleRate: sampleRate},
		SourceBitDepth: 16,
		Data:           make([]int, n),
	}
	for i := range buf.Data {
		buf.Data[i] = int(0.5 * 32767 * math.Sin(2*math.Pi*440*float64(i)/sampleRate))
	}

	enc := wav.NewEncoder(f, sampleRate, 16, 1, 1)
	require.NoError(t, enc.Write(buf))
	require.NoError(t, enc.Close())
}

func TestListTracks(t *testing.T) {
	_, e, _ := newTestServer(t)

	req := httptest.NewRequest(http.MethodGet, "/api/tracks", nil)
	rec := httptest.NewRecorder()
	e.ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)

	var tracks []Track
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &tracks))
	require.Len(t, tracks, 2)

	byName := map[string]Track{}
	for _, tr := range tracks {
		byName[tr.Name] = tr
	}
	require.True(t, byName["song"].HasReport)
	require.Equal(t, "song.json", byName["song"].ReportPath)
	require.False(t, byName["unanalyzed"].HasReport)
}

func TestServeTrackAudio(t *testing.T) {
	_, e, _ := newTestServer(t)

	req := httptest.NewRequest(http.MethodGet, "/api/tracks/song.wav", nil)
	rec := httptest.NewRecorder()
	e.ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	require.Equal(t, "RIFF", rec.Body.String()[:4])
}

func TestServeTrackReport(t *testing.T) {
	_, e, _ := newTestServer(t)

	req := httptest.NewRequest(http.MethodGet, "/api/tracks/song.json", nil)
	rec := httptest.NewRecorder()
	e.ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)

	var report analysis.AnalysisReport
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &report))
	require.Equal(t, 120.0, report.BPM)
}

func TestServeTrackTraversalForbidden(t *testing.T) {
	_, e, _ := newTestServer(t)

	req := httptest.NewRequest(http.MethodGet, "/api/tracks/..%2F..%2Fetc%2Fpasswd", nil)
	rec := httptest.NewRecorder()
	e.ServeHTTP(rec, req)

	require.Equal(t, http.StatusForbidden, rec.Code)
}

func TestServeTrackNotFound(t *testing.T) {
	_, e, _ := newTestServer(t)

	req := httptest.NewRequest(http.MethodGet, "/api/tracks/missing.wav", nil)
	rec := httptest.NewRecorder()
	e.ServeHTTP(rec, req)

	require.Equal(t, http.StatusNotFound, rec.Code)
}

func TestServeTrackDisallowedType(t *testing.T) {
	_, e, dir := newTestServer(t)
	require.NoError(t, os.WriteFile(filepath.Join(dir, "notes.txt"), []byte("hi"), 0644))

	req := httptest.NewRequest(http.MethodGet, "/api/tracks/notes.txt", nil)
	rec := httptest.NewRecorder()
	e.ServeHTTP(rec, req)

	require.Equal(t, http.StatusForbidden, rec.Code)
}

func TestAnalyzeUpload(t *testing.T) {
	_, e, dir := newTestServer(t)

	wavData, err := os.ReadFile(filepath.Join(dir, "song.wav"))
	require.NoError(t, err)

	var body bytes.Buffer
	writer := multipart.NewWriter(&body)
	part, err := writer.CreateFormFile("file", "upload.wav")
	require.NoError(t, err)
	_, err = part.Write(wavData)
	require.NoError(t, err)
	require.NoError(t, writer.Close())

	req := httptest.NewRequest(http.MethodPost, "/api/analyze", &body)
	req.Header.Set(echo.HeaderContentType, writer.FormDataContentType())
	rec := httptest.NewRecorder()
	e.ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)

	var report analysis.AnalysisReport
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &report))
	require.Equal(t, "upload.wav", report.File)
	require.InDelta(t, 1.0, report.Duration, 0.01)
	require.NotNil(t, report.Waveform)
}

func TestAnalyzeUploadBadAudio(t *testing.T) {
	_, e, _ := newTestServer(t)

	var body bytes.Buffer
	writer := multipart.NewWriter(&body)
	part, err := writer.CreateFormFile("file", "garbage.wav")
	require.NoError(t, err)
	_, err = part.Write([]byte("this is not audio"))
	require.NoError(t, err)
	require.NoError(t, writer.Close())

	req := httptest.NewRequest(http.MethodPost, "/api/analyze", &body)
	req.Header.Set(echo.HeaderContentType, writer.FormDataContentType())
	rec := httptest.NewRecorder()
	e.ServeHTTP(rec, req)

	require.Equal(t, http.StatusUnprocessableEntity, rec.Code)
}

func TestAnalyzeUploadMissingFile(t *testing.T) {
	_, e, _ := newTestServer(t)

	var body bytes.Buffer
	writer := multipart.NewWriter(&body)
	require.NoError(t, writer.Close())

	req := httptest.NewRequest(http.MethodPost, "/api/analyze", &body)
	req.Header.Set(echo.HeaderContentType, writer.FormDataContentType())
	rec := httptest.NewRecorder()
	e.ServeHTTP(rec, req)

	require.Equal(t, http.StatusBadRequest, rec.Code)
}
