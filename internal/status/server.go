// internal/status/server.go
// Package status serves the decoder's health, version and transcript over
// HTTP.
package status

import (
	"net/http"
	"runtime"
	"strings"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/gofiber/fiber/v2"
	jsoniter "github.com/json-iterator/go"
	"github.com/womat/debug"
)

// VERSION follows major.minor.patch+yyyymmdd.
const (
	VERSION = "0.3.0+20241001"
	MODULE  = "cwblocks"
)

var json = jsoniter.ConfigCompatibleWithStandardLibrary

// Version returns the application name and version.
func Version() string {
	return strings.TrimSpace(MODULE + " V" + strings.Split(VERSION, "+")[0])
}

// Server exposes a Transcript over HTTP.
type Server struct {
	web        *fiber.App
	transcript *Transcript
	wpm        int
	now        func() time.Time
}

// transcriptResponse is the body of GET /transcript.
type transcriptResponse struct {
	Text    string     `json:"text"`
	Words   int        `json:"words"`
	Total   uint64     `json:"total"`
	WPM     int        `json:"wpm"`
	Updated *time.Time `json:"updated,omitempty"`
	Ago     string     `json:"ago,omitempty"`
}

// NewServer creates the web app and registers its routes.
func NewServer(transcript *Transcript, wpm int) *Server {
	s := &Server{
		web: fiber.New(fiber.Config{
			DisableStartupMessage: true,
			JSONEncoder:           json.Marshal,
			JSONDecoder:           json.Unmarshal,
		}),
		transcript: transcript,
		wpm:        wpm,
		now:        time.Now,
	}

	s.web.Get("/health", s.HandleHealth())
	s.web.Get("/version", s.HandleVersion())
	s.web.Get("/transcript", s.HandleTranscript())
	s.web.Delete("/transcript", s.HandleReset())
	return s
}

// App returns the underlying fiber app.
func (s *Server) App() *fiber.App {
	return s.web
}

// Listen serves on addr until Shutdown is called.
func (s *Server) Listen(addr string) error {
	debug.InfoLog.Printf("status server listening on %s", addr)
	return s.web.Listen(addr)
}

// Shutdown stops the server.
func (s *Server) Shutdown() error {
	return s.web.Shutdown()
}

// HandleHealth reports runtime statistics.
func (s *Server) HandleHealth() fiber.Handler {
	return func(ctx *fiber.Ctx) error {
		debug.DebugLog.Print("web request health")

		var m runtime.MemStats
		runtime.ReadMemStats(&m)

		ctx.Status(http.StatusOK)
		return ctx.JSON(fiber.Map{
			"goroutines": runtime.NumGoroutine(),
			"heap":       humanize.IBytes(m.Alloc),
			"sys":        humanize.IBytes(m.Sys),
			"decoded":    humanize.Comma(int64(s.transcript.Total())),
			"go":         runtime.Version(),
			"version":    VERSION,
			"time":       s.now().Format(time.RFC3339),
		})
	}
}

// HandleVersion reports the application version.
func (s *Server) HandleVersion() fiber.Handler {
	return func(ctx *fiber.Ctx) error {
		debug.DebugLog.Print("web request version")

		return ctx.JSON(fiber.Map{
			"version":     VERSION,
			"description": MODULE,
			"about":       Version(),
		})
	}
}

// HandleTranscript returns the decoded text.
func (s *Server) HandleTranscript() fiber.Handler {
	return func(ctx *fiber.Ctx) error {
		debug.DebugLog.Print("web request transcript")

		resp := transcriptResponse{
			Text:  s.transcript.Text(),
			Words: len(s.transcript.Words()),
			Total: s.transcript.Total(),
			WPM:   s.wpm,
		}
		if updated := s.transcript.Updated(); !updated.IsZero() {
			u := updated.UTC()
			resp.Updated = &u
			resp.Ago = humanize.RelTime(updated, s.now(), "ago", "from now")
		}
		return ctx.JSON(resp)
	}
}

// HandleReset clears the transcript.
func (s *Server) HandleReset() fiber.Handler {
	return func(ctx *fiber.Ctx) error {
		debug.InfoLog.Print("web request transcript reset")

		s.transcript.Reset()
		return ctx.SendStatus(http.StatusNoContent)
	}
}
