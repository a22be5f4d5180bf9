package routing

import (
	"context"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"

	"github.com/unigw/unigw/internal/models"
)

func TestDiscoveryListsProvidersAndGroups(t *testing.T) {
	var openAIHits atomic.Int64
	var sawAuth, sawReferer atomic.Bool

	openAISrv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/v1/models" {
			http.NotFound(w, r)
			return
		}
		openAIHits.Add(1)
		if r.Header.Get("Authorization") == "Bearer sk-a" {
			sawAuth.Store(true)
		}
		if r.Header.Get("HTTP-Referer") == "gw" {
			sawReferer.Store(true)
		}
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"object":"list","data":[{"id":"gpt-4o"},{"id":"gpt-4o-mini"}]}`))
	}))
	defer openAISrv.Close()

	geminiSrv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/v1beta/models" {
			http.NotFound(w, r)
			return
		}
		if r.URL.Query().Get("key") != "g-b" {
			w.WriteHeader(http.StatusUnauthorized)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"models":[{"name":"models/gemini-pro"},{"name":"models/gemini-flash"}]}`))
	}))
	defer geminiSrv.Close()

	providers := []models.Provider{
		{ID: 1, Name: "openai-main", ProviderType: models.ProviderTypeOpenAI, BaseURL: openAISrv.URL, APIKey: "sk-a"},
		{ID: 2, Name: "router", ProviderType: models.ProviderTypeOpenRouter, BaseURL: openAISrv.URL, APIKey: "sk-r"},
		{ID: 3, Name: "gemini-main", ProviderType: models.ProviderTypeGemini, BaseURL: geminiSrv.URL, APIKey: "g-b"},
	}
	groups := []models.RoutingGroup{
		{ID: 1, Name: "smart", Strategy: models.StrategyRoundRobin, Members: []models.GroupMember{
			{ID: 1, GroupID: 1, ProviderID: 1, TargetModel: "gpt-4o", Weight: 1},
		}},
	}
	storeTestRoutes(t, providers, groups)

	discovery := NewDiscovery()
	list := discovery.Models(context.Background())

	byID := make(map[string]ModelInfo, len(list))
	for _, entry := range list {
		byID[entry.ID] = entry
	}

	entry, ok := byID["openai-main/gpt-4o"]
	if !ok {
		t.Fatalf("composite openai id missing from %v", byID)
	}
	if entry.OwnedBy != models.ProviderTypeOpenAI {
		t.Fatalf("owned_by = %s, want %s", entry.OwnedBy, models.ProviderTypeOpenAI)
	}
	if entry.Object != "model" {
		t.Fatalf("object = %s, want model", entry.Object)
	}
	if _, ok := byID["gemini-main/gemini-pro"]; !ok {
		t.Fatalf("gemini composite id missing from %v", byID)
	}
	group, ok := byID["smart"]
	if !ok {
		t.Fatalf("group alias missing from %v", byID)
	}
	if group.OwnedBy != OwnedByGroup {
		t.Fatalf("group owned_by = %s, want %s", group.OwnedBy, OwnedByGroup)
	}

	if !sawAuth.Load() {
		t.Fatal("openai fetch never sent the bearer key")
	}
	if !sawReferer.Load() {
		t.Fatal("openrouter fetch never sent the referer header")
	}
}

func TestDiscoveryCachesUntilInvalidated(t *testing.T) {
	var hits atomic.Int64
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hits.Add(1)
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"data":[{"id":"gpt-4o"}]}`))
	}))
	defer srv.Close()

	providers := []models.Provider{
		{ID: 1, Name: "openai-main", ProviderType: models.ProviderTypeOpenAI, BaseURL: srv.URL, APIKey: "sk-a"},
	}
	storeTestRoutes(t, providers, nil)

	discovery := NewDiscovery()
	ctx := context.Background()

	first := discovery.Models(ctx)
	second := discovery.Models(ctx)
	if hits.Load() != 1 {
		t.Fatalf("upstream hits = %d, want 1 (cached)", hits.Load())
	}
	if len(first) != len(second) {
		t.Fatalf("cached result differs: %d vs %d entries", len(first), len(second))
	}

	discovery.Invalidate()
	_ = discovery.Models(ctx)
	if hits.Load() != 2 {
		t.Fatalf("upstream hits = %d, want 2 after invalidate", hits.Load())
	}
}

func TestDiscoverySkipsFailingProvider(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer srv.Close()

	providers := []models.Provider{
		{ID: 1, Name: "broken", ProviderType: models.ProviderTypeOpenAI, BaseURL: srv.URL, APIKey: "sk-a"},
	}
	groups := []models.RoutingGroup{
		{ID: 1, Name: "smart", Strategy: models.StrategyRoundRobin, Members: []models.GroupMember{
			{ID: 1, GroupID: 1, ProviderID: 1, TargetModel: "gpt-4o", Weight: 1},
		}},
	}
	storeTestRoutes(t, providers, groups)

	discovery := NewDiscovery()
	list := discovery.Models(context.Background())

	if len(list) != 1 {
		t.Fatalf("list = %v, want only the group alias", list)
	}
	if list[0].ID != "smart" || list[0].OwnedBy != OwnedByGroup {
		t.Fatalf("surviving entry = %+v, want the smart group", list[0])
	}
}
