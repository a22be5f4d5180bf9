package routing

import (
	"errors"
	"fmt"
	"math/rand"
	"strings"
	"sync"
	"sync/atomic"

	"github.com/unigw/unigw/internal/models"
)

// DefaultModel is assumed when a request carries no model name.
const DefaultModel = "gpt-3.5-turbo"

// ErrNoProviders is returned when no provider can serve a bare model name.
var ErrNoProviders = errors.New("no providers configured")

// ErrGroupEmpty is returned when a routing group has no usable members.
var ErrGroupEmpty = errors.New("group has no usable members")

// UnknownProviderError reports a composite model id naming a missing provider.
type UnknownProviderError struct {
	Name string
}

func (e *UnknownProviderError) Error() string {
	return fmt.Sprintf("provider %q not found", e.Name)
}

// Target identifies the upstream provider and model for one request.
type Target struct {
	Provider models.Provider
	Model    string
	Group    string
}

// Engine resolves requested model names against the routing snapshot.
type Engine struct {
	cursors sync.Map
}

// NewEngine constructs an Engine.
func NewEngine() *Engine { return &Engine{} }

// Resolve maps a requested model name to an upstream target.
//
// Group aliases win over everything else. A composite "provider/model" id is
// split on the first slash and requires the named provider to exist. A bare
// model name falls back to the first configured provider.
func (e *Engine) Resolve(model string) (Target, error) {
	model = strings.TrimSpace(model)
	if model == "" {
		model = DefaultModel
	}
	snap := loadSnapshot()

	if group, ok := snap.groupsByName[model]; ok {
		return e.resolveGroup(snap, group)
	}

	if idx := strings.Index(model, "/"); idx > 0 {
		providerName := model[:idx]
		provider, ok := snap.providersByName[providerName]
		if !ok {
			return Target{}, &UnknownProviderError{Name: providerName}
		}
		return Target{Provider: provider, Model: model[idx+1:]}, nil
	}

	if len(snap.providers) == 0 {
		return Target{}, ErrNoProviders
	}
	return Target{Provider: snap.providers[0], Model: model}, nil
}

func (e *Engine) resolveGroup(snap snapshot, group groupEntry) (Target, error) {
	usable := make([]memberEntry, 0, len(group.members))
	for _, member := range group.members {
		if _, ok := snap.providersByID[member.providerID]; ok {
			usable = append(usable, member)
		}
	}
	if len(usable) == 0 {
		return Target{}, fmt.Errorf("group %q: %w", group.name, ErrGroupEmpty)
	}

	member := e.selectMember(group, usable)
	return Target{
		Provider: snap.providersByID[member.providerID],
		Model:    member.targetModel,
		Group:    group.name,
	}, nil
}

func (e *Engine) selectMember(group groupEntry, usable []memberEntry) memberEntry {
	if len(usable) == 1 {
		return usable[0]
	}
	switch group.strategy {
	case models.StrategyWeighted:
		return pickWeighted(usable)
	default:
		index := e.cursor(group.id).Add(1) - 1
		return usable[index%uint64(len(usable))]
	}
}

func (e *Engine) cursor(groupID uint64) *atomic.Uint64 {
	if v, ok := e.cursors.Load(groupID); ok {
		return v.(*atomic.Uint64)
	}
	v, _ := e.cursors.LoadOrStore(groupID, new(atomic.Uint64))
	return v.(*atomic.Uint64)
}

// pickWeighted draws a member with probability proportional to its weight.
func pickWeighted(members []memberEntry) memberEntry {
	total := 0
	for _, member := range members {
		total += member.weight
	}
	if total <= 0 {
		return members[0]
	}
	n := rand.Intn(total)
	cumulative := 0
	for _, member := range members {
		cumulative += member.weight
		if n < cumulative {
			return member
		}
	}
	return members[len(members)-1]
}

// APIBase returns the provider's upstream API root with the version suffix
// its type expects appended when missing.
func APIBase(provider models.Provider) string {
	base := strings.TrimRight(strings.TrimSpace(provider.BaseURL), "/")
	if base == "" {
		return strings.TrimRight(models.DefaultBaseURL(provider.ProviderType), "/")
	}
	switch provider.ProviderType {
	case models.ProviderTypeGemini:
		if !strings.HasSuffix(base, "/v1beta") {
			base += "/v1beta"
		}
	default:
		if !strings.HasSuffix(base, "/v1") {
			base += "/v1"
		}
	}
	return base
}
