package moderation

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"os"
	"strings"
	"time"

	"github.com/cenkalti/backoff/v4"

	"github.com/corpchat/corpchat/internal/config"
)

// Backend is one generative-text variant. Variants are tried in
// configuration order; the first success wins.
type Backend interface {
	Name() string
	Generate(ctx context.Context, prompt, system string) (string, error)
}

// fatalError marks a backend failure that should abort the whole
// variant list (auth or quota problems hit every variant equally).
type fatalError struct {
	err error
}

func (e *fatalError) Error() string { return e.err.Error() }
func (e *fatalError) Unwrap() error { return e.err }

func isFatal(err error) bool {
	var fe *fatalError
	return errors.As(err, &fe)
}

// httpBackend talks to a Gemini-style generateContent endpoint.
type httpBackend struct {
	model    string
	endpoint string
	apiKey   string
	client   *http.Client
	maxRetry int
}

// NewHTTPBackends builds one backend per configured variant, skipping
// variants whose API key env is unset.
func NewHTTPBackends(variants []config.Backend, maxRetry int) []Backend {
	tr := &http.Transport{
		DialContext:     (&net.Dialer{Timeout: 5 * time.Second}).DialContext,
		MaxIdleConns:    16,
		IdleConnTimeout: 90 * time.Second,
	}
	client := &http.Client{Transport: tr}

	out := make([]Backend, 0, len(variants))
	for _, v := range variants {
		key := os.Getenv(v.APIKeyEnv)
		if key == "" {
			continue
		}
		out = append(out, &httpBackend{
			model:    v.Model,
			endpoint: strings.TrimRight(v.Endpoint, "/"),
			apiKey:   key,
			client:   client,
			maxRetry: maxRetry,
		})
	}
	return out
}

func (b *httpBackend) Name() string { return b.model }

type generateRequest struct {
	SystemInstruction *content  `json:"system_instruction,omitempty"`
	Contents          []content `json:"contents"`
}

type content struct {
	Parts []part `json:"parts"`
}

type part struct {
	Text string `json:"text"`
}

type generateResponse struct {
	Candidates []struct {
		Content content `json:"content"`
	} `json:"candidates"`
}

// Generate posts the prompt and retries transient failures with
// exponential backoff until ctx expires. Auth/quota responses come back
// as fatal errors so the caller stops trying other variants.
func (b *httpBackend) Generate(ctx context.Context, prompt, system string) (string, error) {
	body := generateRequest{
		Contents: []content{{Parts: []part{{Text: prompt}}}},
	}
	if system != "" {
		body.SystemInstruction = &content{Parts: []part{{Text: system}}}
	}
	payload, err := json.Marshal(body)
	if err != nil {
		return "", fmt.Errorf("marshal request: %w", err)
	}

	url := fmt.Sprintf("%s/models/%s:generateContent", b.endpoint, b.model)

	var text string
	operation := func() error {
		req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(payload))
		if err != nil {
			return backoff.Permanent(err)
		}
		req.Header.Set("Content-Type", "application/json")
		req.Header.Set("x-goog-api-key", b.apiKey)

		resp, err := b.client.Do(req)
		if err != nil {
			return err
		}
		defer resp.Body.Close()

		switch {
		case resp.StatusCode == http.StatusUnauthorized,
			resp.StatusCode == http.StatusForbidden,
			resp.StatusCode == http.StatusTooManyRequests:
			io.Copy(io.Discard, resp.Body)
			return backoff.Permanent(&fatalError{fmt.Errorf("backend %s: status %d", b.model, resp.StatusCode)})
		case resp.StatusCode >= 500:
			io.Copy(io.Discard, resp.Body)
			return fmt.Errorf("backend %s: status %d", b.model, resp.StatusCode)
		case resp.StatusCode != http.StatusOK:
			io.Copy(io.Discard, resp.Body)
			return backoff.Permanent(fmt.Errorf("backend %s: status %d", b.model, resp.StatusCode))
		}

		var gr generateResponse
		if err := json.NewDecoder(resp.Body).Decode(&gr); err != nil {
			return backoff.Permanent(fmt.Errorf("decode response: %w", err))
		}
		if len(gr.Candidates) == 0 || len(gr.Candidates[0].Content.Parts) == 0 {
			return backoff.Permanent(errors.New("empty response from backend"))
		}
		text = strings.TrimSpace(gr.Candidates[0].Content.Parts[0].Text)
		if text == "" {
			return backoff.Permanent(errors.New("empty response from backend"))
		}
		return nil
	}

	bo := backoff.NewExponentialBackOff()
	if err := backoff.Retry(operation, backoff.WithContext(backoff.WithMaxRetries(bo, uint64(b.maxRetry)), ctx)); err != nil {
		return "", err
	}
	return text, nil
}
