package client

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"golang.org/x/time/rate"
)

// ErrPermanent marca respostas 4xx: repetir não adianta, vai para a DLQ
var ErrPermanent = errors.New("bracket: permanent failure")

// Advance leva o vencedor para a próxima partida do chaveamento
type Advance struct {
	MatchID     string `json:"matchId"`
	NextMatchID string `json:"nextMatchId"`
	WinnerTeam  string `json:"winnerTeam"`
	UndoToken   string `json:"undoToken"`
}

// Retract desfaz um Advance depois do undo da liquidação
type Retract struct {
	MatchID     string `json:"matchId"`
	NextMatchID string `json:"nextMatchId"`
	UndoToken   string `json:"undoToken"`
}

// Client chama o serviço de chaveamento com limite de taxa e retry com backoff
type Client struct {
	baseURL    string
	httpClient *http.Client
	limiter    *rate.Limiter
	maxRetry   int
	backoff    time.Duration
}

type Option func(*Client)

func WithHTTPClient(c *http.Client) Option { return func(cl *Client) { cl.httpClient = c } }

func WithBackoff(d time.Duration) Option { return func(cl *Client) { cl.backoff = d } }

func New(baseURL string, ratePerSec float64, maxRetry int, timeout time.Duration, opts ...Option) *Client {
	if ratePerSec <= 0 {
		ratePerSec = 5
	}
	c := &Client{
		baseURL:    strings.TrimSuffix(baseURL, "/"),
		httpClient: &http.Client{Timeout: timeout},
		limiter:    rate.NewLimiter(rate.Limit(ratePerSec), 1),
		maxRetry:   maxRetry,
		backoff:    300 * time.Millisecond,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

func (c *Client) Advance(ctx context.Context, a Advance) error {
	return c.post(ctx, "/brackets/advance", a)
}

func (c *Client) Retract(ctx context.Context, r Retract) error {
	return c.post(ctx, "/brackets/retract", r)
}

// post tenta 1+maxRetry vezes; 4xx não é repetido
func (c *Client) post(ctx context.Context, path string, body any) error {
	payload, err := json.Marshal(body)
	if err != nil {
		return fmt.Errorf("encode %s: %w", path, err)
	}

	var lastErr error
	for attempt := 0; attempt <= c.maxRetry; attempt++ {
		if attempt > 0 {
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-time.After(c.backoff * time.Duration(attempt)):
			}
		}
		lastErr = c.do(ctx, path, payload)
		if lastErr == nil || errors.Is(lastErr, ErrPermanent) {
			return lastErr
		}
	}
	return fmt.Errorf("%s after %d attempts: %w", path, c.maxRetry+1, lastErr)
}

func (c *Client) do(ctx context.Context, path string, payload []byte) error {
	if err := c.limiter.Wait(ctx); err != nil {
		return fmt.Errorf("rate limiter: %w", err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+path, bytes.NewReader(payload))
	if err != nil {
		return fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("http request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 300 {
		_, _ = io.Copy(io.Discard, resp.Body)
		return nil
	}
	msg, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
	if resp.StatusCode >= 400 && resp.StatusCode < 500 && resp.StatusCode != http.StatusTooManyRequests {
		return fmt.Errorf("%w: %s %d: %s", ErrPermanent, path, resp.StatusCode, strings.TrimSpace(string(msg)))
	}
	return fmt.Errorf("bracket http %s %d: %s", path, resp.StatusCode, strings.TrimSpace(string(msg)))
}
