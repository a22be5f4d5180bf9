// Package view turns admin API payloads into flat display rows for the
// console tables. Builders are pure functions over the wire types, so
// each one can be checked in isolation, and every list degrades to an
// explicit empty-state message.
package view

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/unigw/unigw/internal/console"
)

// Unlimited is rendered wherever a zero limit means no cap.
const Unlimited = "∞"

// MasterBadge replaces the key column of the hidden master record.
const MasterBadge = "MASTER"

// List couples rendered rows with the message shown when there are none.
type List[R any] struct {
	Rows  []R
	Empty string
}

// Display labels for the wire values; unknown values pass through raw.
var providerTypeLabels = map[string]string{
	"openai-compatible":     "OpenAI compatible",
	"gemini-compatible":     "Gemini compatible",
	"openrouter-compatible": "OpenRouter compatible",
}

var strategyLabels = map[string]string{
	"round-robin": "Round robin",
	"weighted":    "Weighted",
}

var defaultBaseURLs = map[string]string{
	"openai-compatible":     "https://api.openai.com/v1",
	"gemini-compatible":     "https://generativelanguage.googleapis.com/v1beta",
	"openrouter-compatible": "https://openrouter.ai/api/v1",
}

// ProviderRow is one line of the providers table.
type ProviderRow struct {
	Name    string
	Type    string
	BaseURL string
	Secret  string
}

// Providers renders the provider list. An empty base URL shows the
// default implied by the provider type.
func Providers(items []console.Provider) List[ProviderRow] {
	rows := make([]ProviderRow, 0, len(items))
	for _, item := range items {
		rows = append(rows, ProviderRow{
			Name:    item.Name,
			Type:    providerTypeLabel(item.ProviderType),
			BaseURL: baseURLDisplay(item),
			Secret:  item.APIKey,
		})
	}
	return List[ProviderRow]{Rows: rows, Empty: "No providers configured."}
}

func providerTypeLabel(value string) string {
	if label, ok := providerTypeLabels[value]; ok {
		return label
	}
	return value
}

func baseURLDisplay(item console.Provider) string {
	if item.BaseURL != "" {
		return item.BaseURL
	}
	if fallback, ok := defaultBaseURLs[item.ProviderType]; ok {
		return fallback + " (default)"
	}
	return "(type default)"
}

// KeyRow is one line of the access key table. The hidden master record
// renders a badge instead of its key value and never offers a copy
// affordance.
type KeyRow struct {
	Name      string
	Display   string
	Master    bool
	Copyable  bool
	Usage     string
	RateLimit string
	Active    bool
}

// Keys renders the access key list.
func Keys(items []console.AccessKey) List[KeyRow] {
	rows := make([]KeyRow, 0, len(items))
	for _, item := range items {
		row := KeyRow{
			Name:      item.Name,
			Master:    item.IsHidden,
			Usage:     FormatUsage(item.UsageCount, item.UsageLimit),
			RateLimit: formatRateLimit(item.RateLimit),
			Active:    item.IsActive,
		}
		if item.IsHidden {
			row.Display = MasterBadge
		} else {
			row.Display = item.Key
			row.Copyable = true
		}
		rows = append(rows, row)
	}
	return List[KeyRow]{Rows: rows, Empty: "No access keys yet."}
}

// FormatUsage renders a served/cap pair; a zero cap reads as unlimited.
func FormatUsage(used, limit int64) string {
	if limit <= 0 {
		return fmt.Sprintf("%d / %s", used, Unlimited)
	}
	return fmt.Sprintf("%d / %d", used, limit)
}

func formatRateLimit(perMinute int) string {
	if perMinute <= 0 {
		return Unlimited
	}
	return strconv.Itoa(perMinute) + "/min"
}

// ModelRow is one line of the model catalog table.
type ModelRow struct {
	Alias    string
	Upstream string
	Owner    string
	GroupRef bool
}

// Models renders the discovered catalog. Ids carry the serving alias in
// their first path segment; the remainder names the upstream model.
func Models(items []console.Model) List[ModelRow] {
	rows := make([]ModelRow, 0, len(items))
	for _, item := range items {
		alias, upstream := SplitModelID(item.ID)
		rows = append(rows, ModelRow{
			Alias:    alias,
			Upstream: upstream,
			Owner:    item.OwnedBy,
			GroupRef: item.OwnedBy == console.OwnedByGroup,
		})
	}
	return List[ModelRow]{Rows: rows, Empty: "No models discovered."}
}

// SplitModelID decomposes a catalog id into its alias and upstream name.
// Ids without a slash, routing group aliases among them, map to
// themselves.
func SplitModelID(id string) (alias, upstream string) {
	if i := strings.IndexByte(id, '/'); i >= 0 {
		return id[:i], id[i+1:]
	}
	return id, id
}

// GroupRow is one line of the routing group table.
type GroupRow struct {
	Name     string
	Strategy string
	Members  string
}

// Groups renders the routing group list with a one-line member summary.
func Groups(items []console.Group) List[GroupRow] {
	rows := make([]GroupRow, 0, len(items))
	for _, item := range items {
		rows = append(rows, GroupRow{
			Name:     item.Name,
			Strategy: strategyLabel(item.Strategy),
			Members:  MemberSummary(item.Members),
		})
	}
	return List[GroupRow]{Rows: rows, Empty: "No routing groups defined."}
}

func strategyLabel(value string) string {
	if label, ok := strategyLabels[value]; ok {
		return label
	}
	return value
}

// MemberSummary joins group members into "provider→target (weight)" form.
func MemberSummary(members []console.GroupMember) string {
	if len(members) == 0 {
		return "no members"
	}
	parts := make([]string, 0, len(members))
	for _, member := range members {
		parts = append(parts, fmt.Sprintf("%s→%s (%d)", member.ProviderName, member.TargetModel, member.Weight))
	}
	return strings.Join(parts, ", ")
}

// Live feed status classes.
const (
	ClassSuccess = "success"
	ClassFail    = "fail"
	ClassPending = "pending"
)

// Counter is one headline number of the dashboard.
type Counter struct {
	Label string
	Value string
}

// ChartRow is one bar of the top-model chart. Fraction scales against
// the busiest model.
type ChartRow struct {
	Label    string
	Count    int64
	Fraction float64
}

// FeedRow is one line of the live request feed.
type FeedRow struct {
	Time    string
	Model   string
	Status  string
	Class   string
	Latency string
}

// DashboardView is the fully rendered dashboard.
type DashboardView struct {
	Counters []Counter
	Chart    List[ChartRow]
	Feed     List[FeedRow]
}

// Dashboard renders the stats payload. The live feed arrives newest
// first and is reversed here so the newest entry prints last, the way a
// log tail reads.
func Dashboard(stats console.Stats) DashboardView {
	overview := stats.Overview
	counters := []Counter{
		{Label: "Providers", Value: strconv.FormatInt(overview.TotalProviders, 10)},
		{Label: "Models", Value: strconv.FormatInt(overview.TotalModels, 10)},
		{Label: "Groups", Value: strconv.FormatInt(overview.TotalGroups, 10)},
		{Label: "Requests", Value: strconv.FormatInt(overview.TotalRequests, 10)},
		{Label: "In flight", Value: strconv.FormatInt(overview.RequestsNow, 10)},
	}

	chart := List[ChartRow]{Empty: "No requests recorded."}
	labels := stats.ChartTopModels.Labels
	data := stats.ChartTopModels.Data
	var peak int64
	for _, count := range data {
		if count > peak {
			peak = count
		}
	}
	for i := 0; i < len(labels) && i < len(data); i++ {
		fraction := 0.0
		if peak > 0 {
			fraction = float64(data[i]) / float64(peak)
		}
		chart.Rows = append(chart.Rows, ChartRow{Label: labels[i], Count: data[i], Fraction: fraction})
	}

	feed := List[FeedRow]{Empty: "No traffic yet."}
	for i := len(stats.LiveRequests) - 1; i >= 0; i-- {
		feed.Rows = append(feed.Rows, feedRow(stats.LiveRequests[i]))
	}

	return DashboardView{Counters: counters, Chart: chart, Feed: feed}
}

func feedRow(entry console.LiveRequest) FeedRow {
	row := FeedRow{
		Time:  entry.Timestamp.Local().Format("15:04:05"),
		Model: entry.Model,
	}
	switch {
	case entry.Status == 0:
		row.Class = ClassPending
		row.Status = "..."
		row.Latency = "-"
	case entry.Status >= 200 && entry.Status < 300:
		row.Class = ClassSuccess
		row.Status = strconv.Itoa(entry.Status)
		row.Latency = strconv.FormatInt(entry.LatencyMs, 10) + "ms"
	default:
		row.Class = ClassFail
		row.Status = strconv.Itoa(entry.Status)
		row.Latency = strconv.FormatInt(entry.LatencyMs, 10) + "ms"
	}
	return row
}
