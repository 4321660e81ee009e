package events

import (
	humanize "github.com/dustin/go-humanize"
	"github.com/rs/zerolog"
)

type zerologSink struct {
	logger zerolog.Logger
}

// Zerolog writes events to logger, lifecycle events at debug level and
// failures or insecure handshakes at warn level.
func Zerolog(logger zerolog.Logger) Sink {
	return zerologSink{logger}
}

func (s zerologSink) Emit(e Event) {
	var ev *zerolog.Event
	switch e.Kind {
	case RequestError, TLSInsecure:
		ev = s.logger.Warn()
	default:
		ev = s.logger.Debug()
	}
	if !ev.Enabled() {
		return
	}
	if !e.Time.IsZero() {
		ev = ev.Time("at", e.Time)
	}
	if e.Endpoint != "" {
		ev = ev.Str("endpoint", e.Endpoint)
	}
	if e.ConnID != 0 {
		ev = ev.Uint64("conn", e.ConnID)
	}
	if e.RequestID != "" {
		ev = ev.Str("request", e.RequestID)
	}
	if e.Method != "" {
		ev = ev.Str("method", e.Method).Str("url", e.URL)
	}
	if e.Status != 0 {
		ev = ev.Int("status", e.Status)
	}
	if e.Bytes > 0 {
		ev = ev.Str("bytes", humanize.Bytes(uint64(e.Bytes)))
	}
	if e.Reason != "" {
		ev = ev.Str("reason", e.Reason)
	}
	if e.Duration != 0 {
		ev = ev.Dur("took", e.Duration)
	}
	if e.Err != nil {
		ev = ev.Err(e.Err)
	}
	ev.Msg(string(e.Kind))
}
