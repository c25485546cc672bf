package httpapi

import (
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5/middleware"
	"github.com/rs/zerolog"
)

// zlog is the structured logger for the HTTP layer. Nop until SetLogger.
var zlog = zerolog.Nop()

// SetLogger installs a structured logger used by the HTTP layer.
func SetLogger(l zerolog.Logger) { zlog = l }

// LogLevel controls per-request logging behavior.
type LogLevel int

const (
	LevelOff LogLevel = iota
	LevelError
	LevelInfo
	LevelDebug
)

func parseLevel(s string) LogLevel {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "off", "":
		return LevelOff
	case "error":
		return LevelError
	case "info":
		return LevelInfo
	case "debug":
		return LevelDebug
	default:
		return LevelInfo
	}
}

var defaultLogLevel = LevelInfo

// SetRequestLogLevel sets the level used when a request carries no override.
func SetRequestLogLevel(s string) { defaultLogLevel = parseLevel(s) }

func requestLogLevel(r *http.Request) LogLevel {
	if v := r.URL.Query().Get("log"); v != "" {
		if v == "1" {
			return LevelDebug
		}
		return parseLevel(v)
	}
	if v := r.Header.Get("X-Log-Level"); v != "" {
		return parseLevel(v)
	}
	return defaultLogLevel
}

// reqLog carries the per-request logging decision through a handler.
type reqLog struct {
	r     *http.Request
	lvl   LogLevel
	start time.Time
}

func newReqLog(r *http.Request) *reqLog {
	return &reqLog{r: r, lvl: requestLogLevel(r), start: time.Now()}
}

func (l *reqLog) event(e *zerolog.Event) *zerolog.Event {
	e = e.Str("path", l.r.URL.Path)
	if rid := middleware.GetReqID(l.r.Context()); rid != "" {
		e = e.Str("request_id", rid)
	}
	return e
}

func (l *reqLog) begin(fields map[string]any) {
	if l.lvl < LevelInfo {
		return
	}
	l.event(zlog.Info()).Fields(fields).Msg("request start")
}

func (l *reqLog) debug(msg string, fields map[string]any) {
	if l.lvl < LevelDebug {
		return
	}
	l.event(zlog.Debug()).Fields(fields).Msg(msg)
}

// end logs the outcome. Failures are logged from LevelError, successes from
// LevelInfo.
func (l *reqLog) end(status int, err error) {
	switch {
	case err != nil && l.lvl >= LevelError:
		e := zlog.Error()
		if status < http.StatusInternalServerError {
			e = zlog.Warn()
		}
		l.event(e).Int("status", status).Dur("dur", time.Since(l.start)).Err(err).Msg("request end")
	case err == nil && l.lvl >= LevelInfo:
		l.event(zlog.Info()).Int("status", status).Dur("dur", time.Since(l.start)).Msg("request end")
	}
}
