package routing

import (
	"strings"
	"sync/atomic"
	"time"

	"github.com/unigw/unigw/internal/models"
)

type memberEntry struct {
	id          uint64
	providerID  uint64
	targetModel string
	weight      int
}

type groupEntry struct {
	id       uint64
	name     string
	strategy string
	members  []memberEntry
}

type snapshot struct {
	updatedAt       time.Time
	providers       []models.Provider
	providersByID   map[uint64]models.Provider
	providersByName map[string]models.Provider
	groups          []groupEntry
	groupsByName    map[string]groupEntry
}

var globalSnapshot atomic.Value

func init() {
	globalSnapshot.Store(snapshot{
		providersByID:   make(map[uint64]models.Provider),
		providersByName: make(map[string]models.Provider),
		groupsByName:    make(map[string]groupEntry),
	})
}

// StoreRoutes replaces the in-memory routing snapshot. Providers are expected
// in ID order; groups carry their members preloaded.
func StoreRoutes(updatedAt time.Time, providers []models.Provider, groups []models.RoutingGroup) {
	nextProviders := make([]models.Provider, 0, len(providers))
	nextByID := make(map[uint64]models.Provider, len(providers))
	nextByName := make(map[string]models.Provider, len(providers))
	for _, provider := range providers {
		name := strings.TrimSpace(provider.Name)
		if name == "" {
			continue
		}
		nextProviders = append(nextProviders, provider)
		nextByID[provider.ID] = provider
		if _, ok := nextByName[name]; !ok {
			nextByName[name] = provider
		}
	}

	nextGroups := make([]groupEntry, 0, len(groups))
	nextGroupsByName := make(map[string]groupEntry, len(groups))
	for _, group := range groups {
		name := strings.TrimSpace(group.Name)
		if name == "" {
			continue
		}
		entry := groupEntry{
			id:       group.ID,
			name:     name,
			strategy: group.Strategy,
			members:  make([]memberEntry, 0, len(group.Members)),
		}
		for _, member := range group.Members {
			target := strings.TrimSpace(member.TargetModel)
			if target == "" {
				continue
			}
			weight := member.Weight
			if weight < 1 {
				weight = 1
			}
			entry.members = append(entry.members, memberEntry{
				id:          member.ID,
				providerID:  member.ProviderID,
				targetModel: target,
				weight:      weight,
			})
		}
		nextGroups = append(nextGroups, entry)
		if _, ok := nextGroupsByName[name]; !ok {
			nextGroupsByName[name] = entry
		}
	}

	globalSnapshot.Store(snapshot{
		updatedAt:       updatedAt.UTC(),
		providers:       nextProviders,
		providersByID:   nextByID,
		providersByName: nextByName,
		groups:          nextGroups,
		groupsByName:    nextGroupsByName,
	})
}

// SnapshotUpdatedAt reports when the routing snapshot was last replaced.
func SnapshotUpdatedAt() time.Time {
	return loadSnapshot().updatedAt
}

func loadSnapshot() snapshot {
	v := globalSnapshot.Load()
	snap, ok := v.(snapshot)
	if !ok {
		return snapshot{
			providersByID:   make(map[uint64]models.Provider),
			providersByName: make(map[string]models.Provider),
			groupsByName:    make(map[string]groupEntry),
		}
	}
	if snap.providersByID == nil {
		snap.providersByID = make(map[uint64]models.Provider)
	}
	if snap.providersByName == nil {
		snap.providersByName = make(map[string]models.Provider)
	}
	if snap.groupsByName == nil {
		snap.groupsByName = make(map[string]groupEntry)
	}
	return snap
}
