// Package extraction turns report text into the canonical metric set with one
// structured request to the configured LLM backend.
package extraction

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"strings"
	"time"
	"unicode/utf8"

	"balance_sheet_analyzer/pkg/core/llm"
	"balance_sheet_analyzer/pkg/core/metrics"
	"balance_sheet_analyzer/pkg/core/prompt"
	"balance_sheet_analyzer/pkg/core/utils"
	"balance_sheet_analyzer/pkg/models"

	"go.uber.org/zap"
)

const (
	// DefaultMaxInputChars bounds the text sent to the backend. Anything beyond is dropped.
	DefaultMaxInputChars = 900_000
	DefaultTimeout       = 3 * time.Minute

	// PageBreak separates document pages in the combined corpus.
	PageBreak = "\n\n--- PAGE BREAK ---\n\n"
)

// ErrNoText is returned when there is nothing to extract from. It is a hard stop:
// an empty corpus is never sent to the backend.
var ErrNoText = errors.New("no document text to extract from")

// Options configures an Engine. Zero values take defaults.
type Options struct {
	MaxInputChars int
	Timeout       time.Duration
	Model         string
	// LenientJSON lets malformed replies go through json-repair and Hjson before failing.
	LenientJSON bool
	Prompts     *prompt.Registry
}

// Engine runs single-shot metric extraction.
type Engine struct {
	provider llm.Provider
	opts     Options
}

// NewEngine creates an extraction engine over provider.
func NewEngine(provider llm.Provider, opts Options) *Engine {
	if opts.MaxInputChars <= 0 {
		opts.MaxInputChars = DefaultMaxInputChars
	}
	if opts.Timeout <= 0 {
		opts.Timeout = DefaultTimeout
	}
	if opts.Prompts == nil {
		opts.Prompts = prompt.Get()
	}
	return &Engine{provider: provider, opts: opts}
}

// ExtractPages joins page texts and extracts from the combined corpus.
func (e *Engine) ExtractPages(ctx context.Context, pages []string, year int) (models.MetricSet, error) {
	if len(pages) == 0 {
		return models.MetricSet{}, ErrNoText
	}
	return e.Extract(ctx, strings.Join(pages, PageBreak), year)
}

// Extract sends text for year to the backend and returns the validated metric set.
// Failures are *Failure values; a malformed reply is terminal for this attempt.
// Whether consolidated or standalone figures are picked when both are present is left
// to the backend ("most prominently displayed") and is not deterministic.
func (e *Engine) Extract(ctx context.Context, text string, year int) (models.MetricSet, error) {
	if strings.TrimSpace(text) == "" {
		return models.MetricSet{}, ErrNoText
	}

	corpus, truncated := Truncate(text, e.opts.MaxInputChars)
	if truncated {
		zap.L().Debug("report text truncated before extraction",
			zap.Int("limit_chars", e.opts.MaxInputChars),
			zap.Int("input_bytes", len(text)),
		)
	}

	pt, err := e.opts.Prompts.GetPrompt(prompt.ExtractionBalanceSheet)
	if err != nil {
		return models.MetricSet{}, err
	}
	userPrompt, err := prompt.RenderUserPrompt(pt, map[string]interface{}{
		"Year": year,
		"Keys": models.CanonicalMetrics,
		"Text": corpus,
	})
	if err != nil {
		return models.MetricSet{}, err
	}

	callCtx, cancel := context.WithTimeout(ctx, e.opts.Timeout)
	defer cancel()

	start := time.Now()
	raw, err := e.provider.GenerateResponse(callCtx, userPrompt, pt.SystemPrompt, llm.JSONOptions(e.opts.Model, 0.0))
	if err != nil {
		err = llm.CallError(callCtx, err)
		kind := FailureTransport
		if errors.Is(err, llm.ErrTimeout) {
			kind = FailureTimeout
		}
		zap.L().Error("extraction backend call failed", zap.Int("year", year), zap.Error(err))
		return models.MetricSet{}, &Failure{Kind: kind, Err: err}
	}

	candidate, err := e.decode(raw)
	if err != nil {
		zap.L().Error("extraction reply is not a JSON object",
			zap.Int("year", year),
			zap.Int("reply_bytes", len(raw)),
			zap.Error(err),
		)
		return models.MetricSet{}, &Failure{Kind: FailureParse, Raw: raw, Err: err}
	}

	set := metrics.Validate(candidate)
	zap.L().Info("extraction complete",
		zap.Int("year", year),
		zap.Duration("elapsed", time.Since(start)),
		zap.Strings("null_metrics", set.Nulls()),
	)
	return set, nil
}

func (e *Engine) decode(raw string) (map[string]interface{}, error) {
	candidate, err := decodeObject(utils.StripCodeFence(raw))
	if err == nil || !e.opts.LenientJSON {
		return candidate, err
	}

	var lenient map[string]interface{}
	if _, lerr := utils.SmartParse(raw, &lenient); lerr != nil || lenient == nil {
		return nil, err
	}
	zap.L().Warn("extraction reply needed repair", zap.Error(err))
	return lenient, nil
}

// decodeObject parses exactly one JSON object, keeping numbers as json.Number.
func decodeObject(s string) (map[string]interface{}, error) {
	if !strings.HasPrefix(s, "{") {
		return nil, fmt.Errorf("reply is not a JSON object")
	}
	dec := json.NewDecoder(strings.NewReader(s))
	dec.UseNumber()

	var out map[string]interface{}
	if err := dec.Decode(&out); err != nil {
		return nil, err
	}
	if _, err := dec.Token(); err != io.EOF {
		return nil, fmt.Errorf("trailing data after JSON object")
	}
	return out, nil
}

// Truncate cuts s to at most max characters (runes). The cut is lossy and silent
// to the backend; the second result reports whether anything was dropped.
func Truncate(s string, max int) (string, bool) {
	if len(s) <= max {
		return s, false
	}
	if utf8.RuneCountInString(s) <= max {
		return s, false
	}
	n := 0
	for i := range s {
		if n == max {
			return s[:i], true
		}
		n++
	}
	return s, false
}
