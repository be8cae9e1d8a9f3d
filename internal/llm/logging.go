package llm

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/publicis/arena/internal/logger"
	"github.com/publicis/arena/internal/store"
)

// LoggingProvider records every call as a pk_llm_events row and a log line.
type LoggingProvider struct {
	inner    Provider
	provider string
	events   store.EventRepo
	log      *logger.Logger
}

// WithLogging wraps p. events and log may be nil.
func WithLogging(p Provider, providerName string, events store.EventRepo, log *logger.Logger) Provider {
	if log == nil {
		log = logger.NewNop()
	}
	return &LoggingProvider{inner: p, provider: providerName, events: events, log: log}
}

func (l *LoggingProvider) Generate(ctx context.Context, req Request) (*Response, error) {
	start := time.Now()
	resp, err := l.inner.Generate(ctx, req)

	ev := store.LLMRequestEventData{
		Provider:    l.provider,
		Model:       l.inner.ModelID(),
		Purpose:     PurposeFrom(ctx),
		LatencyMs:   time.Since(start).Milliseconds(),
		Success:     err == nil,
		RequestBody: renderRequest(req),
	}
	if resp != nil {
		ev.InputTokens = resp.Usage.InputTokens
		ev.OutputTokens = resp.Usage.OutputTokens
		if resp.Model != "" {
			ev.Model = resp.Model
		}
		ev.ResponseBody = string(resp.Content)
	}
	if err != nil {
		ev.ErrorMessage = err.Error()
		l.log.Warn("llm request failed",
			"provider", ev.Provider, "model", ev.Model, "purpose", ev.Purpose,
			"latency_ms", ev.LatencyMs, "error", err)
	} else {
		l.log.Debug("llm request",
			"provider", ev.Provider, "model", ev.Model, "purpose", ev.Purpose,
			"latency_ms", ev.LatencyMs, "input_tokens", ev.InputTokens, "output_tokens", ev.OutputTokens)
	}

	if l.events != nil {
		// A failed event write never fails the call.
		if werr := l.events.AppendLLMRequest(context.WithoutCancel(ctx), ev); werr != nil {
			l.log.Warn("record llm event", "error", werr)
		}
	}
	return resp, err
}

func (l *LoggingProvider) ModelID() string {
	return l.inner.ModelID()
}

// renderRequest flattens a request into the text stored with the event.
func renderRequest(req Request) string {
	var b strings.Builder
	if req.System != "" {
		fmt.Fprintf(&b, "[system]\n%s\n\n", req.System)
	}
	for _, m := range req.Messages {
		fmt.Fprintf(&b, "[%s]\n%s\n\n", m.Role, m.Content)
	}
	if req.Schema != nil {
		if def, err := json.Marshal(req.Schema.Definition); err == nil {
			fmt.Fprintf(&b, "[schema: %s]\n%s\n", req.Schema.Name, def)
		}
	}
	return b.String()
}
