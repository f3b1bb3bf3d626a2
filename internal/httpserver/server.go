// Package httpserver exposes the Twilio webhook, the media stream
// endpoint, health, and metrics over one Echo instance.
package httpserver

import (
	"fmt"
	"net/http"
	"os"
	"strings"

	"github.com/labstack/echo/v4"
	echomw "github.com/labstack/echo/v4/middleware"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/twilio/twilio-go/twiml"

	"github.com/ShivaKumarAnandam/sarvam-voice-agent/internal/language"
	"github.com/ShivaKumarAnandam/sarvam-voice-agent/internal/media"
	"github.com/ShivaKumarAnandam/sarvam-voice-agent/internal/metrics"
)

// transcriptTurns caps how many turns the transcript debug route returns.
const transcriptTurns = 20

// Deps wires the endpoints to the rest of the application.
type Deps struct {
	Media           *media.Handler
	Registry        *prometheus.Registry
	TwilioAuthToken func() string
	DefaultLanguage string
	// ResetBreakers reopens all provider circuits when set.
	ResetBreakers func()
}

// New constructs the Echo server with routes.
func New(deps Deps) *echo.Echo {
	e := echo.New()
	e.HideBanner = true
	e.Use(echomw.Logger())
	e.Use(echomw.Recover())
	e.Use(TwilioAuth(deps.TwilioAuthToken))

	e.GET("/healthz", func(c echo.Context) error {
		return c.String(http.StatusOK, "ok")
	})

	if deps.Registry != nil {
		e.GET("/metrics", echo.WrapHandler(metrics.Handler(deps.Registry)))
	}

	e.POST("/twilio/voice", func(c echo.Context) error { return voiceWebhook(c, deps) })

	if deps.Media != nil {
		e.GET("/call/stream", func(c echo.Context) error {
			deps.Media.ServeStream(c.Response(), c.Request())
			return nil
		})
		e.GET("/sessions", func(c echo.Context) error {
			return c.JSON(http.StatusOK, deps.Media.Statuses())
		})
		e.GET("/sessions/:id/metrics", func(c echo.Context) error {
			s, ok := deps.Media.Session(c.Param("id"))
			if !ok {
				return c.String(http.StatusNotFound, "unknown session")
			}
			return c.String(http.StatusOK, s.Metrics().Report())
		})
		e.GET("/sessions/:id/transcript", func(c echo.Context) error {
			s, ok := deps.Media.Session(c.Param("id"))
			if !ok {
				return c.String(http.StatusNotFound, "unknown session")
			}
			return c.JSON(http.StatusOK, s.Transcript(transcriptTurns))
		})
	}

	if deps.ResetBreakers != nil {
		e.POST("/breakers/reset", func(c echo.Context) error {
			deps.ResetBreakers()
			return c.String(http.StatusOK, "ok")
		})
	}

	return e
}

// voiceWebhook answers Twilio's incoming-call webhook with TwiML that
// connects the call's audio to the media stream websocket.
func voiceWebhook(c echo.Context, deps Deps) error {
	params, ok := c.Get("twilioParams").(map[string]string)
	if !ok {
		return c.String(http.StatusInternalServerError, "Failed to get Twilio parameters")
	}
	c.Echo().Logger.Infof("Call from %s to %s", params["From"], params["To"])

	lang := c.QueryParam("language")
	if lang == "" || !language.Known(lang) {
		lang = deps.DefaultLanguage
	}

	stream := &twiml.VoiceStream{
		Url: buildStreamURL(c, "/call/stream"),
		InnerElements: []twiml.Element{
			&twiml.VoiceParameter{Name: "language", Value: lang},
		},
	}
	connect := &twiml.VoiceConnect{InnerElements: []twiml.Element{stream}}

	response, err := twiml.Voice([]twiml.Element{connect})
	if err != nil {
		return c.String(http.StatusInternalServerError, "failed to build TwiML")
	}
	c.Response().Header().Set(echo.HeaderContentType, "application/xml")
	return c.String(http.StatusOK, response)
}

// buildStreamURL builds the public wss:// URL for the media stream.
// Priority: BASE_URL env > X-Forwarded-* headers > request Host heuristic.
func buildStreamURL(c echo.Context, path string) string {
	baseURL := os.Getenv("BASE_URL")
	if baseURL == "" {
		proto := c.Request().Header.Get("X-Forwarded-Proto")
		host := c.Request().Header.Get("X-Forwarded-Host")
		if proto != "" && host != "" {
			baseURL = fmt.Sprintf("%s://%s", proto, host)
		}
	}
	if baseURL == "" {
		host := c.Request().Host
		proto := "https"
		if strings.HasPrefix(host, "localhost:") || strings.HasPrefix(host, "127.0.0.1:") {
			proto = "http"
		}
		baseURL = fmt.Sprintf("%s://%s", proto, host)
	}
	baseURL = strings.Replace(baseURL, "https://", "wss://", 1)
	baseURL = strings.Replace(baseURL, "http://", "ws://", 1)
	if !strings.HasPrefix(path, "/") {
		path = "/" + path
	}
	return strings.TrimRight(baseURL, "/") + path
}
