package notify

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"sync"
	"time"
)

const (
	// PushoverEndpoint is the Pushover message API.
	PushoverEndpoint = "https://api.pushover.net/1/messages.json"

	pushoverContentType    = "application/x-www-form-urlencoded"
	defaultPushoverTimeout = 10 * time.Second
	pushoverTitlePrefix    = "delight-watch"
)

// PushoverConfig describes the credentials and defaults for Pushover delivery.
type PushoverConfig struct {
	// Token is the application API token.
	Token string
	// UserKey is the destination user key.
	UserKey string
	// Priority is the Pushover priority value for messages.
	Priority int
	// Cooldown is the minimum interval between notifications of one kind.
	Cooldown time.Duration
	// Endpoint overrides PushoverEndpoint.
	Endpoint string
	// HTTPClient overrides the default client.
	HTTPClient *http.Client
}

// Pushover is a Sink posting to the Pushover service. Notifications of the
// same kind inside the cooldown window are skipped.
type Pushover struct {
	cfg    PushoverConfig
	client *http.Client
	now    func() time.Time

	mu        sync.Mutex
	lastSent  map[Kind]time.Time
	lastError error
}

var _ Sink = (*Pushover)(nil)

// NewPushover validates cfg and returns a Pushover sink.
func NewPushover(cfg PushoverConfig) (*Pushover, error) {
	switch {
	case strings.TrimSpace(cfg.Token) == "":
		return nil, errors.New("pushover token is required")
	case strings.TrimSpace(cfg.UserKey) == "":
		return nil, errors.New("pushover user key is required")
	case cfg.Cooldown < 0:
		return nil, errors.New("pushover cooldown must be non-negative")
	}
	if cfg.Endpoint == "" {
		cfg.Endpoint = PushoverEndpoint
	}
	client := cfg.HTTPClient
	if client == nil {
		client = &http.Client{Timeout: defaultPushoverTimeout}
	}
	return &Pushover{
		cfg:      cfg,
		client:   client,
		now:      time.Now,
		lastSent: make(map[Kind]time.Time),
	}, nil
}

// Post implements Sink.
func (p *Pushover) Post(ctx context.Context, n Notification) error {
	body := strings.TrimSpace(n.Body)
	if body == "" {
		body = strings.TrimSpace(n.Title)
	}
	if body == "" {
		return errors.New("pushover message is required")
	}

	now := p.now()
	if !p.due(n.Kind, now) {
		return nil
	}
	if err := p.send(ctx, n, body); err != nil {
		p.mu.Lock()
		p.lastError = err
		p.mu.Unlock()
		return err
	}

	p.mu.Lock()
	p.lastSent[n.Kind] = now
	p.lastError = nil
	p.mu.Unlock()
	return nil
}

// LastError returns the most recent send error, if any.
func (p *Pushover) LastError() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.lastError
}

func (p *Pushover) due(kind Kind, now time.Time) bool {
	if p.cfg.Cooldown == 0 {
		return true
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	last, ok := p.lastSent[kind]
	return !ok || now.Sub(last) >= p.cfg.Cooldown
}

func (p *Pushover) send(ctx context.Context, n Notification, body string) error {
	title := pushoverTitlePrefix
	if t := strings.TrimSpace(n.Title); t != "" {
		title = t
	}
	if n.Session != "" {
		title = fmt.Sprintf("[%s] %s", n.Session, title)
	}

	form := url.Values{}
	form.Set("token", p.cfg.Token)
	form.Set("user", p.cfg.UserKey)
	form.Set("title", title)
	form.Set("message", body)
	if p.cfg.Priority != 0 {
		form.Set("priority", strconv.Itoa(p.cfg.Priority))
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, p.cfg.Endpoint, strings.NewReader(form.Encode()))
	if err != nil {
		return fmt.Errorf("pushover request build failed: %w", err)
	}
	req.Header.Set("Content-Type", pushoverContentType)

	resp, err := p.client.Do(req)
	if err != nil {
		return fmt.Errorf("pushover request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode/100 != 2 {
		raw, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return fmt.Errorf("pushover response %s: %s", resp.Status, strings.TrimSpace(string(raw)))
	}
	_, _ = io.Copy(io.Discard, resp.Body)
	return nil
}
