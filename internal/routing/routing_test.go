package routing

import (
	"errors"
	"testing"
	"time"

	"github.com/unigw/unigw/internal/models"
)

func storeTestRoutes(t *testing.T, providers []models.Provider, groups []models.RoutingGroup) {
	t.Helper()
	StoreRoutes(time.Now(), providers, groups)
	t.Cleanup(func() { StoreRoutes(time.Time{}, nil, nil) })
}

func testProviders() []models.Provider {
	return []models.Provider{
		{ID: 1, Name: "openai-main", ProviderType: models.ProviderTypeOpenAI, APIKey: "sk-a"},
		{ID: 2, Name: "gemini-main", ProviderType: models.ProviderTypeGemini, APIKey: "g-b"},
	}
}

func TestResolveCompositeID(t *testing.T) {
	storeTestRoutes(t, testProviders(), nil)
	engine := NewEngine()

	target, errResolve := engine.Resolve("gemini-main/gemini-pro")
	if errResolve != nil {
		t.Fatalf("resolve: %v", errResolve)
	}
	if target.Provider.Name != "gemini-main" {
		t.Fatalf("provider = %s, want gemini-main", target.Provider.Name)
	}
	if target.Model != "gemini-pro" {
		t.Fatalf("model = %s, want gemini-pro", target.Model)
	}
	if target.Group != "" {
		t.Fatalf("group = %q, want empty", target.Group)
	}
}

func TestResolveCompositeKeepsRemainingSlashes(t *testing.T) {
	storeTestRoutes(t, testProviders(), nil)
	engine := NewEngine()

	target, errResolve := engine.Resolve("openai-main/org/custom-model")
	if errResolve != nil {
		t.Fatalf("resolve: %v", errResolve)
	}
	if target.Model != "org/custom-model" {
		t.Fatalf("model = %s, want org/custom-model", target.Model)
	}
}

func TestResolveUnknownProvider(t *testing.T) {
	storeTestRoutes(t, testProviders(), nil)
	engine := NewEngine()

	_, errResolve := engine.Resolve("missing/gpt-4o")
	var unknown *UnknownProviderError
	if !errors.As(errResolve, &unknown) {
		t.Fatalf("expected UnknownProviderError, got %v", errResolve)
	}
	if unknown.Name != "missing" {
		t.Fatalf("unknown provider name = %s, want missing", unknown.Name)
	}
}

func TestResolveBareModelFallsBackToFirstProvider(t *testing.T) {
	storeTestRoutes(t, testProviders(), nil)
	engine := NewEngine()

	target, errResolve := engine.Resolve("gpt-4o")
	if errResolve != nil {
		t.Fatalf("resolve: %v", errResolve)
	}
	if target.Provider.Name != "openai-main" {
		t.Fatalf("provider = %s, want openai-main", target.Provider.Name)
	}
	if target.Model != "gpt-4o" {
		t.Fatalf("model = %s, want gpt-4o", target.Model)
	}
}

func TestResolveEmptyModelUsesDefault(t *testing.T) {
	storeTestRoutes(t, testProviders(), nil)
	engine := NewEngine()

	target, errResolve := engine.Resolve("  ")
	if errResolve != nil {
		t.Fatalf("resolve: %v", errResolve)
	}
	if target.Model != DefaultModel {
		t.Fatalf("model = %s, want %s", target.Model, DefaultModel)
	}
}

func TestResolveNoProviders(t *testing.T) {
	storeTestRoutes(t, nil, nil)
	engine := NewEngine()

	if _, errResolve := engine.Resolve("gpt-4o"); !errors.Is(errResolve, ErrNoProviders) {
		t.Fatalf("expected ErrNoProviders, got %v", errResolve)
	}
}

func TestResolveGroupAliasWinsOverComposite(t *testing.T) {
	providers := testProviders()
	groups := []models.RoutingGroup{
		{
			ID:       1,
			Name:     "openai-main/gpt-4o",
			Strategy: models.StrategyRoundRobin,
			Members: []models.GroupMember{
				{ID: 1, GroupID: 1, ProviderID: 2, TargetModel: "gemini-pro", Weight: 1},
			},
		},
	}
	storeTestRoutes(t, providers, groups)
	engine := NewEngine()

	target, errResolve := engine.Resolve("openai-main/gpt-4o")
	if errResolve != nil {
		t.Fatalf("resolve: %v", errResolve)
	}
	if target.Group != "openai-main/gpt-4o" {
		t.Fatalf("group = %q, want the alias", target.Group)
	}
	if target.Provider.Name != "gemini-main" || target.Model != "gemini-pro" {
		t.Fatalf("target = %s/%s, want gemini-main/gemini-pro", target.Provider.Name, target.Model)
	}
}

func TestResolveGroupRoundRobinRotates(t *testing.T) {
	providers := testProviders()
	groups := []models.RoutingGroup{
		{
			ID:       7,
			Name:     "smart",
			Strategy: models.StrategyRoundRobin,
			Members: []models.GroupMember{
				{ID: 1, GroupID: 7, ProviderID: 1, TargetModel: "gpt-4o", Weight: 1},
				{ID: 2, GroupID: 7, ProviderID: 2, TargetModel: "gemini-pro", Weight: 1},
			},
		},
	}
	storeTestRoutes(t, providers, groups)
	engine := NewEngine()

	var sequence []string
	for i := 0; i < 4; i++ {
		target, errResolve := engine.Resolve("smart")
		if errResolve != nil {
			t.Fatalf("resolve %d: %v", i, errResolve)
		}
		sequence = append(sequence, target.Model)
	}
	want := []string{"gpt-4o", "gemini-pro", "gpt-4o", "gemini-pro"}
	for i := range want {
		if sequence[i] != want[i] {
			t.Fatalf("rotation = %v, want %v", sequence, want)
		}
	}
}

func TestResolveGroupWeightedStaysInBounds(t *testing.T) {
	providers := testProviders()
	groups := []models.RoutingGroup{
		{
			ID:       9,
			Name:     "balanced",
			Strategy: models.StrategyWeighted,
			Members: []models.GroupMember{
				{ID: 1, GroupID: 9, ProviderID: 1, TargetModel: "gpt-4o", Weight: 3},
				{ID: 2, GroupID: 9, ProviderID: 2, TargetModel: "gemini-pro", Weight: 1},
			},
		},
	}
	storeTestRoutes(t, providers, groups)
	engine := NewEngine()

	seen := make(map[string]int)
	for i := 0; i < 400; i++ {
		target, errResolve := engine.Resolve("balanced")
		if errResolve != nil {
			t.Fatalf("resolve %d: %v", i, errResolve)
		}
		seen[target.Model]++
	}
	if len(seen) != 2 {
		t.Fatalf("weighted selection hit %v, want both members", seen)
	}
	if seen["gpt-4o"] == 0 || seen["gemini-pro"] == 0 {
		t.Fatalf("weighted selection skipped a member: %v", seen)
	}
	if seen["gpt-4o"]+seen["gemini-pro"] != 400 {
		t.Fatalf("weighted selection produced out-of-bounds targets: %v", seen)
	}
}

func TestResolveGroupSkipsMissingProviders(t *testing.T) {
	providers := testProviders()
	groups := []models.RoutingGroup{
		{
			ID:       3,
			Name:     "patchy",
			Strategy: models.StrategyRoundRobin,
			Members: []models.GroupMember{
				{ID: 1, GroupID: 3, ProviderID: 99, TargetModel: "ghost", Weight: 1},
				{ID: 2, GroupID: 3, ProviderID: 1, TargetModel: "gpt-4o", Weight: 1},
			},
		},
	}
	storeTestRoutes(t, providers, groups)
	engine := NewEngine()

	for i := 0; i < 3; i++ {
		target, errResolve := engine.Resolve("patchy")
		if errResolve != nil {
			t.Fatalf("resolve %d: %v", i, errResolve)
		}
		if target.Provider.Name != "openai-main" {
			t.Fatalf("resolve %d picked %s, want openai-main", i, target.Provider.Name)
		}
	}
}

func TestResolveGroupWithoutUsableMembers(t *testing.T) {
	groups := []models.RoutingGroup{
		{
			ID:       4,
			Name:     "empty",
			Strategy: models.StrategyRoundRobin,
			Members: []models.GroupMember{
				{ID: 1, GroupID: 4, ProviderID: 42, TargetModel: "ghost", Weight: 1},
			},
		},
	}
	storeTestRoutes(t, testProviders(), groups)
	engine := NewEngine()

	if _, errResolve := engine.Resolve("empty"); !errors.Is(errResolve, ErrGroupEmpty) {
		t.Fatalf("expected ErrGroupEmpty, got %v", errResolve)
	}
}

func TestStoreRoutesFiltersBlankRows(t *testing.T) {
	at := time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC)
	providers := []models.Provider{
		{ID: 1, Name: "  ", ProviderType: models.ProviderTypeOpenAI, APIKey: "sk-x"},
		{ID: 2, Name: "kept", ProviderType: models.ProviderTypeOpenAI, APIKey: "sk-y"},
	}
	groups := []models.RoutingGroup{
		{
			ID:       1,
			Name:     "thin",
			Strategy: models.StrategyRoundRobin,
			Members: []models.GroupMember{
				{ID: 1, GroupID: 1, ProviderID: 2, TargetModel: "   ", Weight: 1},
				{ID: 2, GroupID: 1, ProviderID: 2, TargetModel: "gpt-4o", Weight: 0},
			},
		},
	}
	StoreRoutes(at, providers, groups)
	t.Cleanup(func() { StoreRoutes(time.Time{}, nil, nil) })

	if got := SnapshotUpdatedAt(); !got.Equal(at) {
		t.Fatalf("snapshot updated at = %s, want %s", got, at)
	}

	engine := NewEngine()
	fallback, errFallback := engine.Resolve("gpt-4o")
	if errFallback != nil {
		t.Fatalf("resolve fallback: %v", errFallback)
	}
	if fallback.Provider.Name != "kept" {
		t.Fatalf("fallback provider = %q, want kept with the blank row dropped", fallback.Provider.Name)
	}

	target, errResolve := engine.Resolve("thin")
	if errResolve != nil {
		t.Fatalf("resolve: %v", errResolve)
	}
	if target.Model != "gpt-4o" {
		t.Fatalf("model = %s, want gpt-4o with the blank member dropped", target.Model)
	}
}

func TestAPIBase(t *testing.T) {
	cases := []struct {
		name     string
		provider models.Provider
		want     string
	}{
		{
			name:     "custom base gains v1",
			provider: models.Provider{ProviderType: models.ProviderTypeOpenAI, BaseURL: "https://llm.internal"},
			want:     "https://llm.internal/v1",
		},
		{
			name:     "existing v1 kept",
			provider: models.Provider{ProviderType: models.ProviderTypeOpenAI, BaseURL: "https://llm.internal/v1/"},
			want:     "https://llm.internal/v1",
		},
		{
			name:     "gemini gains v1beta",
			provider: models.Provider{ProviderType: models.ProviderTypeGemini, BaseURL: "https://gem.internal"},
			want:     "https://gem.internal/v1beta",
		},
		{
			name:     "empty falls back to type default",
			provider: models.Provider{ProviderType: models.ProviderTypeOpenRouter},
			want:     "https://openrouter.ai/api/v1",
		},
	}
	for _, tc := range cases {
		if got := APIBase(tc.provider); got != tc.want {
			t.Fatalf("%s: APIBase = %s, want %s", tc.name, got, tc.want)
		}
	}
}
