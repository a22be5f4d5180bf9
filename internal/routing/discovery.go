package routing

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/unigw/unigw/internal/models"
	"github.com/unigw/unigw/internal/settings"

	log "github.com/sirupsen/logrus"
)

const (
	modelObject    = "model"
	modelCreatedAt = 1700000000

	// OwnedByGroup marks routing group aliases in the model list.
	OwnedByGroup = "gateway-group"
)

// ModelInfo is one entry of the /v1/models response.
type ModelInfo struct {
	ID      string `json:"id"`
	Object  string `json:"object"`
	Created int64  `json:"created"`
	OwnedBy string `json:"owned_by"`
}

// Discovery lists upstream models across providers behind a TTL cache.
type Discovery struct {
	client *http.Client

	mu        sync.Mutex
	cached    []ModelInfo
	fetchedAt time.Time
}

// NewDiscovery constructs a Discovery with a bounded HTTP client.
func NewDiscovery() *Discovery {
	return &Discovery{client: &http.Client{Timeout: 10 * time.Second}}
}

// Models returns the aggregated model list, refetching when the cache expired.
// Providers that fail to answer are skipped.
func (d *Discovery) Models(ctx context.Context) []ModelInfo {
	ttl := time.Duration(settings.IntValue(settings.ModelCacheTTLSecondsKey, settings.DefaultModelCacheTTLSeconds)) * time.Second

	d.mu.Lock()
	if !d.fetchedAt.IsZero() && time.Since(d.fetchedAt) < ttl {
		cached := d.cached
		d.mu.Unlock()
		return cached
	}
	d.mu.Unlock()

	snap := loadSnapshot()
	out := make([]ModelInfo, 0, 16)
	for _, provider := range snap.providers {
		ids, errFetch := d.providerModels(ctx, provider)
		if errFetch != nil {
			log.WithError(errFetch).WithField("provider", provider.Name).Warn("model discovery: fetch failed")
			continue
		}
		for _, id := range ids {
			out = append(out, ModelInfo{
				ID:      provider.Name + "/" + id,
				Object:  modelObject,
				Created: modelCreatedAt,
				OwnedBy: provider.ProviderType,
			})
		}
	}
	for _, group := range snap.groups {
		out = append(out, ModelInfo{
			ID:      group.name,
			Object:  modelObject,
			Created: modelCreatedAt,
			OwnedBy: OwnedByGroup,
		})
	}

	d.mu.Lock()
	d.cached = out
	d.fetchedAt = time.Now()
	d.mu.Unlock()
	return out
}

// Invalidate drops the cached model list so the next call refetches.
func (d *Discovery) Invalidate() {
	d.mu.Lock()
	d.fetchedAt = time.Time{}
	d.cached = nil
	d.mu.Unlock()
}

func (d *Discovery) providerModels(ctx context.Context, provider models.Provider) ([]string, error) {
	if provider.ProviderType == models.ProviderTypeGemini {
		return d.geminiModels(ctx, provider)
	}
	return d.openAIModels(ctx, provider)
}

func (d *Discovery) openAIModels(ctx context.Context, provider models.Provider) ([]string, error) {
	req, errBuild := http.NewRequestWithContext(ctx, http.MethodGet, APIBase(provider)+"/models", nil)
	if errBuild != nil {
		return nil, fmt.Errorf("model discovery: build request: %w", errBuild)
	}
	req.Header.Set("Authorization", "Bearer "+provider.APIKey)
	req.Header.Set("Content-Type", "application/json")
	if provider.ProviderType == models.ProviderTypeOpenRouter {
		req.Header.Set("HTTP-Referer", "gw")
	}

	body, errFetch := d.fetch(req)
	if errFetch != nil {
		return nil, errFetch
	}

	var payload struct {
		Data []struct {
			ID string `json:"id"`
		} `json:"data"`
	}
	if errUnmarshal := json.Unmarshal(body, &payload); errUnmarshal != nil {
		return nil, fmt.Errorf("model discovery: decode response: %w", errUnmarshal)
	}

	ids := make([]string, 0, len(payload.Data))
	for _, entry := range payload.Data {
		if id := strings.TrimSpace(entry.ID); id != "" {
			ids = append(ids, id)
		}
	}
	return ids, nil
}

func (d *Discovery) geminiModels(ctx context.Context, provider models.Provider) ([]string, error) {
	endpoint := APIBase(provider) + "/models?key=" + url.QueryEscape(provider.APIKey)
	req, errBuild := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if errBuild != nil {
		return nil, fmt.Errorf("model discovery: build request: %w", errBuild)
	}

	body, errFetch := d.fetch(req)
	if errFetch != nil {
		return nil, errFetch
	}

	var payload struct {
		Models []struct {
			Name string `json:"name"`
		} `json:"models"`
	}
	if errUnmarshal := json.Unmarshal(body, &payload); errUnmarshal != nil {
		return nil, fmt.Errorf("model discovery: decode response: %w", errUnmarshal)
	}

	ids := make([]string, 0, len(payload.Models))
	for _, entry := range payload.Models {
		name := strings.TrimPrefix(strings.TrimSpace(entry.Name), "models/")
		if name != "" {
			ids = append(ids, name)
		}
	}
	return ids, nil
}

func (d *Discovery) fetch(req *http.Request) ([]byte, error) {
	resp, errDo := d.client.Do(req)
	if errDo != nil {
		return nil, fmt.Errorf("model discovery: request failed: %w", errDo)
	}
	defer func() {
		if errClose := resp.Body.Close(); errClose != nil {
			log.WithError(errClose).Warn("model discovery: close response body failed")
		}
	}()

	if resp.StatusCode < http.StatusOK || resp.StatusCode >= http.StatusMultipleChoices {
		return nil, fmt.Errorf("model discovery: unexpected status %d", resp.StatusCode)
	}

	body, errRead := io.ReadAll(resp.Body)
	if errRead != nil {
		return nil, fmt.Errorf("model discovery: read response: %w", errRead)
	}
	return body, nil
}
