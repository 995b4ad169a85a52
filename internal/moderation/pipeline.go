// Package moderation rewrites outbound message text into an
// organization-safe variant. The generative backend path is bounded by
// a hard timeout and an ordered variant list; when every call path
// fails, a deterministic local transform guarantees a usable result.
// Failure here is never fatal to a send.
package moderation

import (
	"context"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"
)

// Tone directs the sanitization style.
type Tone string

const (
	ToneProfessional Tone = "professional"
	TonePolite       Tone = "polite"
	ToneFormal       Tone = "formal"
	ToneAuto         Tone = "auto"
)

var toneInstructions = map[Tone]string{
	ToneProfessional: "Use a standard professional corporate tone.",
	TonePolite:       "Use a professional tone with additional courtesy such as please and thank you.",
	ToneFormal:       "Use formal business language with structured and traditional phrasing.",
	ToneAuto:         "Automatically choose the most appropriate professional tone based on context.",
}

const systemRules = `You are an assistant embedded inside an internal company messaging system.

STRICT RULES:
- Remove insults, profanity, harassment, and aggressive language
- Replace them with factual, respectful phrasing
- Preserve original intent
- Do NOT invent facts, deadlines, or commitments
- Output ONLY the rewritten message text
- Never explain or reference the transformation
- Respond in the same language as the input`

// Result is the pipeline outcome. Degraded reports that the local
// fallback produced Sanitized instead of a generative backend.
type Result struct {
	Sanitized   string
	AppliedTone Tone
	Degraded    bool
	Diagnostic  string
}

type Pipeline struct {
	backends []Backend
	timeout  time.Duration
	log      *zap.SugaredLogger
}

func NewPipeline(backends []Backend, timeout time.Duration, log *zap.SugaredLogger) *Pipeline {
	return &Pipeline{backends: backends, timeout: timeout, log: log}
}

// Sanitize rewrites text under the given tone. instructionOverride, when
// non-empty, replaces the stock tone instruction. The returned Sanitized
// is non-empty for any non-empty input: if every backend fails, the
// deterministic fallback applies.
func (p *Pipeline) Sanitize(ctx context.Context, text string, tone Tone, instructionOverride string) Result {
	if strings.TrimSpace(text) == "" {
		return Result{Sanitized: text, AppliedTone: tone}
	}
	if _, ok := toneInstructions[tone]; !ok {
		tone = ToneProfessional
	}

	prompt := p.buildPrompt(text, tone, instructionOverride)

	out, name, err := p.tryBackends(ctx, prompt)
	if err == nil {
		p.log.Debugw("sanitize succeeded", "backend", name, "tone", tone)
		return Result{Sanitized: out, AppliedTone: tone}
	}

	p.log.Warnw("sanitize degraded to local transform", "tone", tone, "err", err)
	return Result{
		Sanitized:   FallbackTransform(text),
		AppliedTone: tone,
		Degraded:    true,
		Diagnostic:  err.Error(),
	}
}

// buildPrompt embeds a soft target-length band of 90-100% of the
// input's word count so rewrites stay close to the original length.
func (p *Pipeline) buildPrompt(text string, tone Tone, instructionOverride string) string {
	instruction := toneInstructions[tone]
	if instructionOverride != "" {
		instruction = instructionOverride
	}
	n := countWords(text)
	minWords := n * 9 / 10

	var b strings.Builder
	b.WriteString(instruction)
	b.WriteString("\n\n")
	fmt.Fprintf(&b, "IMPORTANT: The original message has %d words. Your rewritten message MUST be between %d and %d words (90-100%% of the original length).", n, minWords, n)
	b.WriteString("\n\nRewrite the following message:\n\n")
	b.WriteString(text)
	return b.String()
}

// tryBackends walks the ordered variant list, stopping at the first
// success. Each attempt runs under its own hard timeout so the caller
// never blocks indefinitely. A fatal error (auth/quota) aborts the
// remaining variants.
func (p *Pipeline) tryBackends(ctx context.Context, prompt string) (string, string, error) {
	if len(p.backends) == 0 {
		return "", "", errNoBackends
	}
	var lastErr error
	for _, b := range p.backends {
		attemptCtx, cancel := context.WithTimeout(ctx, p.timeout)
		out, err := b.Generate(attemptCtx, prompt, systemRules)
		cancel()
		if err == nil && out != "" {
			return out, b.Name(), nil
		}
		lastErr = fmt.Errorf("backend %s: %w", b.Name(), err)
		if isFatal(err) {
			break
		}
	}
	return "", "", lastErr
}

var errNoBackends = fmt.Errorf("no moderation backends configured")

func countWords(text string) int {
	return len(strings.Fields(text))
}
