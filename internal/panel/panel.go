// Package panel implements the console's interaction state: the tab over
// each resource collection, the modal editor, the delete confirmation
// overlay and the transient popup. The controller is pure state driven
// from the UI event loop; remote calls stay with the caller, which feeds
// their results back in.
package panel

import (
	"sort"
	"strings"

	"github.com/unigw/unigw/internal/collection"
	"github.com/unigw/unigw/internal/console"
)

// Tab identifies one console surface.
type Tab int

const (
	TabDashboard Tab = iota
	TabProviders
	TabKeys
	TabModels
	TabGroups
)

// Tabs lists every surface in display order.
var Tabs = []Tab{TabDashboard, TabProviders, TabKeys, TabModels, TabGroups}

func (t Tab) String() string {
	switch t {
	case TabDashboard:
		return "Dashboard"
	case TabProviders:
		return "Providers"
	case TabKeys:
		return "Keys"
	case TabModels:
		return "Models"
	case TabGroups:
		return "Groups"
	}
	return "Unknown"
}

// Rows per page for each list kind.
const (
	providerPageSize = 10
	keyPageSize      = 20
	modelPageSize    = 20
	groupPageSize    = 10
)

// Request describes one admin API call for the transport layer to carry.
type Request struct {
	Method string
	Path   string
	Body   map[string]any
}

// Controller holds every piece of interactive console state. It is not
// safe for concurrent use; the UI drives it from its event loop.
type Controller struct {
	tab Tab

	providers *collection.Collection[console.Provider]
	keys      *collection.Collection[console.AccessKey]
	models    *collection.Collection[console.Model]
	groups    *collection.Collection[console.Group]

	stats    console.Stats
	hasStats bool

	modal    Modal
	confirm  Confirm
	popup    Popup
	popupGen int
}

// NewController builds a controller with empty collections.
func NewController() *Controller {
	return &Controller{
		providers: collection.New(collection.Config[console.Provider]{
			Size: providerPageSize,
			Match: func(item console.Provider, term string) bool {
				return strings.Contains(strings.ToLower(item.Name), term) ||
					strings.Contains(strings.ToLower(item.ProviderType), term)
			},
		}),
		keys: collection.New(collection.Config[console.AccessKey]{
			Size: keyPageSize,
			Match: func(item console.AccessKey, term string) bool {
				return strings.Contains(strings.ToLower(item.Name), term) ||
					strings.Contains(strings.ToLower(item.Key), term)
			},
			// The hidden master record stays pinned to the front.
			Prepare: func(rows []console.AccessKey) []console.AccessKey {
				sort.SliceStable(rows, func(i, j int) bool {
					return rows[i].IsHidden && !rows[j].IsHidden
				})
				return rows
			},
		}),
		models: collection.New(collection.Config[console.Model]{
			Size: modelPageSize,
			Match: func(item console.Model, term string) bool {
				return strings.Contains(strings.ToLower(item.ID), term) ||
					strings.Contains(strings.ToLower(item.OwnedBy), term)
			},
		}),
		groups: collection.New(collection.Config[console.Group]{
			Size: groupPageSize,
			Match: func(item console.Group, term string) bool {
				if strings.Contains(strings.ToLower(item.Name), term) ||
					strings.Contains(strings.ToLower(item.Strategy), term) {
					return true
				}
				for _, member := range item.Members {
					if strings.Contains(strings.ToLower(member.TargetModel), term) ||
						strings.Contains(strings.ToLower(member.ProviderName), term) {
						return true
					}
				}
				return false
			},
		}),
	}
}

// ActiveTab returns the surface currently shown.
func (c *Controller) ActiveTab() Tab { return c.tab }

// SwitchTab activates a surface and drops every overlay. The caller
// reloads the surface's data afterwards.
func (c *Controller) SwitchTab(tab Tab) {
	c.tab = tab
	c.modal = Modal{}
	c.confirm = Confirm{}
	c.popup = Popup{}
}

// Providers exposes the provider collection.
func (c *Controller) Providers() *collection.Collection[console.Provider] { return c.providers }

// Keys exposes the access key collection.
func (c *Controller) Keys() *collection.Collection[console.AccessKey] { return c.keys }

// Models exposes the model catalog collection.
func (c *Controller) Models() *collection.Collection[console.Model] { return c.models }

// Groups exposes the routing group collection.
func (c *Controller) Groups() *collection.Collection[console.Group] { return c.groups }

// Stats returns the last dashboard payload and whether one arrived yet.
func (c *Controller) Stats() (console.Stats, bool) { return c.stats, c.hasStats }

// ApplyStats installs a dashboard payload.
func (c *Controller) ApplyStats(stats console.Stats) {
	c.stats = stats
	c.hasStats = true
}

// ApplyProviders installs provider rows. A refresh keeps the operator's
// search and page; a plain load restarts the view.
func (c *Controller) ApplyProviders(rows []console.Provider, refresh bool) {
	if refresh {
		c.providers.Replace(rows)
		return
	}
	c.providers.Reset(rows)
}

// ApplyKeys installs access key rows.
func (c *Controller) ApplyKeys(rows []console.AccessKey, refresh bool) {
	if refresh {
		c.keys.Replace(rows)
		return
	}
	c.keys.Reset(rows)
}

// ApplyModels installs model catalog rows.
func (c *Controller) ApplyModels(rows []console.Model, refresh bool) {
	if refresh {
		c.models.Replace(rows)
		return
	}
	c.models.Reset(rows)
}

// ApplyGroups installs routing group rows.
func (c *Controller) ApplyGroups(rows []console.Group, refresh bool) {
	if refresh {
		c.groups.Replace(rows)
		return
	}
	c.groups.Reset(rows)
}

// Search filters the active tab's collection. The dashboard has nothing
// to filter.
func (c *Controller) Search(term string) {
	switch c.tab {
	case TabProviders:
		c.providers.Search(term)
	case TabKeys:
		c.keys.Search(term)
	case TabModels:
		c.models.Search(term)
	case TabGroups:
		c.groups.Search(term)
	}
}

// ChangePage moves the active tab's pager by delta pages.
func (c *Controller) ChangePage(delta int) {
	switch c.tab {
	case TabProviders:
		c.providers.ChangePage(delta)
	case TabKeys:
		c.keys.ChangePage(delta)
	case TabModels:
		c.models.ChangePage(delta)
	case TabGroups:
		c.groups.ChangePage(delta)
	}
}

// ActivePager reports the page controls of the active tab.
func (c *Controller) ActivePager() collection.Pager {
	switch c.tab {
	case TabProviders:
		return c.providers.Pager()
	case TabKeys:
		return c.keys.Pager()
	case TabModels:
		return c.models.Pager()
	case TabGroups:
		return c.groups.Pager()
	}
	return collection.Pager{}
}

// AddableModels lists loaded catalog entries that may back a group
// member. Routing group aliases are excluded so groups cannot nest.
func (c *Controller) AddableModels() []console.Model {
	var out []console.Model
	for _, model := range c.models.Data() {
		if model.OwnedBy == console.OwnedByGroup {
			continue
		}
		out = append(out, model)
	}
	return out
}

// failureMessage strips the transport prefix so overlays show the
// server's own words.
func failureMessage(err error) string {
	if err == nil {
		return "operation failed"
	}
	msg := err.Error()
	if cut, ok := strings.CutPrefix(msg, console.ErrRequestFailed.Error()+": "); ok {
		return cut
	}
	return msg
}
