package server

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log"
	"net/http"
	"strings"
	"sync"
	"time"

	"cutroom/internal/config"
	"cutroom/internal/domain"
	"cutroom/internal/engine"
)

const (
	defaultWebhookInterval = 2 * time.Second
	defaultWebhookTimeout  = 5 * time.Second
	defaultWebhookBatch    = 100
)

type webhookDispatcher struct {
	engine   engine.Engine
	webhooks []config.WebhookConfig
	client   *http.Client
	mu       sync.Mutex
	cursors  map[int]int64
}

func startWebhookDispatcher(e engine.Engine) {
	if e.Config == nil || len(e.Config.Webhooks) == 0 {
		return
	}
	d := &webhookDispatcher{
		engine:   e,
		webhooks: e.Config.Webhooks,
		client:   &http.Client{Timeout: defaultWebhookTimeout},
		cursors:  make(map[int]int64),
	}
	go d.run()
}

func (d *webhookDispatcher) run() {
	ticker := time.NewTicker(defaultWebhookInterval)
	defer ticker.Stop()
	for {
		d.dispatchAll()
		<-ticker.C
	}
}

func (d *webhookDispatcher) dispatchAll() {
	for i, hook := range d.webhooks {
		if hook.Enabled != nil && !*hook.Enabled {
			continue
		}
		if strings.TrimSpace(hook.URL) == "" {
			continue
		}
		d.dispatchWebhook(i, hook)
	}
}

func (d *webhookDispatcher) dispatchWebhook(idx int, hook config.WebhookConfig) {
	ctx := context.Background()
	cursor := d.cursorFor(idx)
	entries, err := d.engine.Repo.ActivityAfter(ctx, defaultWebhookBatch, cursor, "")
	if err != nil {
		log.Printf("webhook: fetch activity failed: %v", err)
		return
	}
	if len(entries) == 0 {
		return
	}
	filter := newEntryFilter(hook.Events)
	for _, entry := range entries {
		if !filter.match(entry.Type) {
			d.setCursor(idx, entry.ID)
			continue
		}
		if err := d.postEntry(ctx, hook, entry); err != nil {
			log.Printf("webhook: deliver to %s failed: %v", hook.URL, err)
			return
		}
		d.setCursor(idx, entry.ID)
	}
}

func (d *webhookDispatcher) cursorFor(idx int) int64 {
	d.mu.Lock()
	defer d.mu.Unlock()
	if cur, ok := d.cursors[idx]; ok {
		return cur
	}
	cur, err := d.engine.Repo.LatestActivityID(context.Background())
	if err != nil {
		log.Printf("webhook: init cursor failed: %v", err)
		cur = 0
	}
	d.cursors[idx] = cur
	return cur
}

func (d *webhookDispatcher) setCursor(idx int, value int64) {
	d.mu.Lock()
	d.cursors[idx] = value
	d.mu.Unlock()
}

type webhookEntry struct {
	ID         int64           `json:"id"`
	Type       string          `json:"type"`
	ProjectID  string          `json:"project_id"`
	ActorID    string          `json:"actor_id"`
	TS         string          `json:"ts"`
	Payload    json.RawMessage `json:"payload"`
	PayloadRaw string          `json:"payload_raw,omitempty"`
}

func (d *webhookDispatcher) postEntry(ctx context.Context, hook config.WebhookConfig, entry domain.Activity) error {
	payload := json.RawMessage([]byte("{}"))
	var raw string
	if entry.Payload != "" {
		if json.Valid([]byte(entry.Payload)) {
			payload = json.RawMessage([]byte(entry.Payload))
		} else {
			raw = entry.Payload
		}
	}
	body := webhookEntry{
		ID:         entry.ID,
		Type:       entry.Type,
		ProjectID:  entry.ProjectID,
		ActorID:    entry.ActorID,
		TS:         entry.TS,
		Payload:    payload,
		PayloadRaw: raw,
	}
	data, err := json.Marshal(body)
	if err != nil {
		return err
	}
	timeout := defaultWebhookTimeout
	if hook.TimeoutSeconds > 0 {
		timeout = time.Duration(hook.TimeoutSeconds) * time.Second
	}
	client := d.client
	if timeout != d.client.Timeout {
		client = &http.Client{Timeout: timeout}
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, hook.URL, bytes.NewReader(data))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("X-Cutroom-Event", entry.Type)
	req.Header.Set("X-Cutroom-Delivery", fmt.Sprintf("%d", entry.ID))
	if strings.TrimSpace(hook.Secret) != "" {
		req.Header.Set("X-Cutroom-Secret", hook.Secret)
	}
	res, err := client.Do(req)
	if err != nil {
		return err
	}
	defer res.Body.Close()
	if res.StatusCode < 200 || res.StatusCode >= 300 {
		bodyBytes, _ := io.ReadAll(io.LimitReader(res.Body, 4096))
		return fmt.Errorf("status %d: %s", res.StatusCode, strings.TrimSpace(string(bodyBytes)))
	}
	return nil
}

type entryFilter struct {
	all bool
	set map[string]struct{}
}

func newEntryFilter(events []string) entryFilter {
	if len(events) == 0 {
		return entryFilter{all: true}
	}
	set := make(map[string]struct{}, len(events))
	for _, evt := range events {
		key := strings.TrimSpace(evt)
		if key == "" {
			continue
		}
		set[key] = struct{}{}
	}
	if len(set) == 0 {
		return entryFilter{all: true}
	}
	return entryFilter{set: set}
}

func (f entryFilter) match(evt string) bool {
	if f.all {
		return true
	}
	_, ok := f.set[evt]
	return ok
}
