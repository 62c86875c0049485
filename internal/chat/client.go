package chat

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net"
	"net/http"
	"time"

	"golang.org/x/time/rate"
)

func NewHTTPTransport() *http.Transport {
	return &http.Transport{
		Proxy:                 http.ProxyFromEnvironment,
		DialContext:           (&net.Dialer{Timeout: 5 * time.Second, KeepAlive: 60 * time.Second}).DialContext,
		ForceAttemptHTTP2:     true,
		MaxIdleConns:          100,
		MaxIdleConnsPerHost:   50,
		IdleConnTimeout:       90 * time.Second,
		TLSHandshakeTimeout:   5 * time.Second,
		ExpectContinueTimeout: 1 * time.Second,
	}
}

type ClientConfig struct {
	URL       string // outbound send endpoint of the transport
	Token     string // sent as a bearer token when set
	Timeout   time.Duration
	SendRPS   float64 // 0 disables pacing
	SendBurst int
	MaxRunes  int // chunk size for long messages
}

// Client posts outgoing messages to the transport. All sends share one
// pacing limiter so the bot stays under the transport's global quota.
type Client struct {
	cfg  ClientConfig
	http *http.Client
	lim  *rate.Limiter
}

var _ Sender = (*Client)(nil)

func NewClient(cfg ClientConfig, tr http.RoundTripper) (*Client, error) {
	if cfg.URL == "" {
		return nil, fmt.Errorf("chat client: send url is required")
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 10 * time.Second
	}
	if tr == nil {
		tr = NewHTTPTransport()
	}
	c := &Client{
		cfg:  cfg,
		http: &http.Client{Transport: tr, Timeout: cfg.Timeout},
	}
	if cfg.SendRPS > 0 {
		burst := cfg.SendBurst
		if burst <= 0 {
			burst = 1
		}
		c.lim = rate.NewLimiter(rate.Limit(cfg.SendRPS), burst)
	}
	return c, nil
}

type outgoing struct {
	ChatID string `json:"chat_id"`
	Text   string `json:"text"`
}

func (c *Client) Send(ctx context.Context, chatID, text string) error {
	for _, part := range Chunk(text, c.cfg.MaxRunes) {
		if err := c.sendOne(ctx, chatID, part); err != nil {
			return err
		}
	}
	return nil
}

func (c *Client) sendOne(ctx context.Context, chatID, text string) error {
	if c.lim != nil {
		if err := c.lim.Wait(ctx); err != nil {
			return fmt.Errorf("send pacing: %w", err)
		}
	}

	body, err := json.Marshal(outgoing{ChatID: chatID, Text: text})
	if err != nil {
		return err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.cfg.URL, bytes.NewReader(body))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	if c.cfg.Token != "" {
		req.Header.Set("Authorization", "Bearer "+c.cfg.Token)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("send to %s: %w", chatID, err)
	}
	defer resp.Body.Close()
	_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, 4<<10))

	if resp.StatusCode >= 300 {
		return fmt.Errorf("send to %s: transport returned %s", chatID, resp.Status)
	}
	return nil
}
