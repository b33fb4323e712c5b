// Package server provides the Echo web server exposing analysis reports.
package server

import (
	"encoding/json"
	"io"
	"io/fs"
	"net/http"
	"net/url"
	"os"
	"path/filepath"
	"strings"

	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"

	"github.com/audioride/audioride/pkg/analysis"
)

// Track represents a track in the music library.
type Track struct {
	Name       string `json:"name"`
	Path       string `json:"path"`
	HasReport  bool   `json:"has_report"`
	ReportPath string `json:"report_path,omitempty"`
}

// Server serves tracks and analysis reports from a music directory and runs
// on-demand analyses of uploaded audio.
type Server struct {
	musicDir string
	analyzer *analysis.Analyzer
}

// New creates a Server rooted at musicDir.
func New(musicDir string, analyzer *analysis.Analyzer) *Server {
	return &Server{musicDir: musicDir, analyzer: analyzer}
}

// Run starts the web server on addr (e.g. ":8080").
func (s *Server) Run(addr string) error {
	e := echo.New()
	e.HideBanner = true

	e.Use(middleware.Logger())
	e.Use(middleware.Recover())
	e.Use(middleware.CORS())

	s.Routes(e)

	return e.Start(addr)
}

// Routes registers the API routes on e.
func (s *Server) Routes(e *echo.Echo) {
	e.GET("/api/tracks", s.listTracks)
	e.GET("/api/tracks/*", s.serveTrack)
	e.POST("/api/analyze", s.analyzeUpload)
}

// listTracks returns all tracks in the music directory with report presence.
func (s *Server) listTracks(c echo.Context) error {
	tracks := []Track{}

	err := filepath.WalkDir(s.musicDir, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() {
			return nil
		}

		ext := strings.ToLower(filepath.Ext(path))
		if !isAudioFile(ext) {
			return nil
		}

		relPath, err := filepath.Rel(s.musicDir, path)
		if err != nil {
			return err
		}
		reportPath := strings.TrimSuffix(path, ext) + ".json"

		track := Track{
			Name: strings.TrimSuffix(filepath.Base(path), ext),
			Path: relPath,
		}
		if _, err := os.Stat(reportPath); err == nil {
			track.HasReport = true
			relReport, err := filepath.Rel(s.musicDir, reportPath)
			if err != nil {
				return err
			}
			track.ReportPath = relReport
		}

		tracks = append(tracks, track)
		return nil
	})
	if err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}

	return c.JSON(http.StatusOK, tracks)
}

// serveTrack serves audio files and report JSON from the music directory.
func (s *Server) serveTrack(c echo.Context) error {
	path := c.Param("*")
	decodedPath, err := url.PathUnescape(path)
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid path encoding")
	}

	// Prevent directory traversal.
	if strings.Contains(decodedPath, "..") {
		return echo.NewHTTPError(http.StatusForbidden, "invalid path")
	}
	fullPath := filepath.Join(s.musicDir, decodedPath)

	info, err := os.Stat(fullPath)
	if err != nil {
		return echo.NewHTTPError(http.StatusNotFound, "file not found")
	}
	if info.IsDir() {
		return echo.NewHTTPError(http.StatusForbidden, "cannot serve directory")
	}

	ext := strings.ToLower(filepath.Ext(decodedPath))
	if isAudioFile(ext) {
		return c.File(fullPath)
	}
	if ext == ".json" {
		data, err := os.ReadFile(fullPath)
		if err != nil {
			return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
		}
		var report analysis.AnalysisReport
		if err := json.Unmarshal(data, &report); err != nil {
			return echo.NewHTTPError(http.StatusInternalServerError, "invalid report JSON")
		}
		return c.JSON(http.StatusOK, report)
	}
	return echo.NewHTTPError(http.StatusForbidden, "file type not allowed")
}

// analyzeUpload runs the engine on an uploaded audio file and returns the
// report. The declared Content-Type of the upload part selects the decoder.
func (s *Server) analyzeUpload(c echo.Context) error {
	file, err := c.FormFile("file")
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "missing file upload")
	}

	src, err := file.Open()
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	defer src.Close()

	data, err := io.ReadAll(src)
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}

	report, err := s.analyzer.AnalyzeInput(c.Request().Context(), analysis.Input{
		Name: file.Filename,
		Data: data,
		MIME: file.Header.Get("Content-Type"),
	})
	if err != nil {
		if analysis.IsCancelled(err) {
			return echo.NewHTTPError(http.StatusRequestTimeout, err.Error())
		}
		return echo.NewHTTPError(http.StatusUnprocessableEntity, err.Error())
	}

	return c.JSON(http.StatusOK, report)
}

// isAudioFile returns true if the extension is a supported audio format.
func isAudioFile(ext string) bool {
	switch ext {
	case ".mp3", ".wav":
		return true
	default:
		return false
	}
}
