package panel

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"strings"

	"github.com/unigw/unigw/internal/console"
)

// ModalState tracks the modal lifecycle.
type ModalState int

const (
	ModalClosed ModalState = iota
	ModalReadOnly
	ModalEditable
)

// ModalKind identifies the resource a modal edits.
type ModalKind int

const (
	ModalProvider ModalKind = iota
	ModalKey
	ModalGroup
	ModalMember
)

// Tab returns the surface whose data the modal kind mutates.
func (k ModalKind) Tab() Tab {
	switch k {
	case ModalProvider:
		return TabProviders
	case ModalKey:
		return TabKeys
	default:
		return TabGroups
	}
}

// Field is one value of a modal form.
type Field struct {
	Name     string
	Label    string
	Value    string
	Secret   bool
	ReadOnly bool
}

// Modal is the state of the detail and edit surface. A detail opens read
// only; a create opens straight into edit mode.
type Modal struct {
	State    ModalState
	Kind     ModalKind
	Creating bool
	Title    string
	Target   string
	GroupID  uint64
	Members  []console.GroupMember
	Fields   []Field
	Err      string

	saved  []Field
	locked bool
}

func (m Modal) fieldValue(name string) string {
	for _, field := range m.Fields {
		if field.Name == name {
			return strings.TrimSpace(field.Value)
		}
	}
	return ""
}

// Modal returns the current modal state.
func (c *Controller) Modal() Modal { return c.modal }

// CloseModal drops the modal regardless of its state.
func (c *Controller) CloseModal() { c.modal = Modal{} }

func (c *Controller) openModal(m Modal) {
	c.confirm = Confirm{}
	c.popup = Popup{}
	c.modal = m
}

// OpenCreate opens an empty editable form for the tab's kind. The
// dashboard and the read-only model catalog have no create flow.
func (c *Controller) OpenCreate(tab Tab) bool {
	switch tab {
	case TabProviders:
		c.openModal(Modal{
			Kind: ModalProvider, State: ModalEditable, Creating: true, Title: "New provider",
			Fields: []Field{
				{Name: "name", Label: "Name"},
				{Name: "provider_type", Label: "Type", Value: "openai-compatible"},
				{Name: "base_url", Label: "Base URL (empty = type default)"},
				{Name: "api_key", Label: "API key", Secret: true},
			},
		})
	case TabKeys:
		c.openModal(Modal{
			Kind: ModalKey, State: ModalEditable, Creating: true, Title: "New access key",
			Fields: []Field{
				{Name: "name", Label: "Name"},
				{Name: "custom_key", Label: "Custom key (empty = generated)"},
				{Name: "rate_limit", Label: "Rate limit per minute (0 = unlimited)", Value: "0"},
				{Name: "usage_limit", Label: "Usage limit (0 = unlimited)", Value: "0"},
			},
		})
	case TabGroups:
		c.openModal(Modal{
			Kind: ModalGroup, State: ModalEditable, Creating: true, Title: "New routing group",
			Fields: []Field{
				{Name: "name", Label: "Name"},
				{Name: "strategy", Label: "Strategy (round-robin or weighted)", Value: "round-robin"},
			},
		})
	default:
		return false
	}
	return true
}

// OpenProviderDetail shows a provider read only. The credential arrives
// masked from the server and is shown as such.
func (c *Controller) OpenProviderDetail(item console.Provider) {
	c.openModal(Modal{
		Kind: ModalProvider, State: ModalReadOnly, Title: "Provider " + item.Name, Target: item.Name,
		Fields: []Field{
			{Name: "name", Label: "Name", Value: item.Name, ReadOnly: true},
			{Name: "provider_type", Label: "Type", Value: item.ProviderType},
			{Name: "base_url", Label: "Base URL (empty = type default)", Value: item.BaseURL},
			{Name: "api_key", Label: "API key", Value: item.APIKey, Secret: true},
		},
	})
}

// OpenKeyDetail shows an access key read only. The hidden master record
// has no edit or delete path, so its detail never leaves read-only mode.
func (c *Controller) OpenKeyDetail(item console.AccessKey) {
	modal := Modal{
		Kind: ModalKey, State: ModalReadOnly, Title: "Key " + item.Name, Target: item.Key,
		Fields: []Field{
			{Name: "name", Label: "Name", Value: item.Name},
			{Name: "key", Label: "Key", Value: item.Key, ReadOnly: true},
			{Name: "rate_limit", Label: "Rate limit per minute (0 = unlimited)", Value: strconv.Itoa(item.RateLimit)},
			{Name: "usage_limit", Label: "Usage limit (0 = unlimited)", Value: strconv.FormatInt(item.UsageLimit, 10)},
			{Name: "active", Label: "Active (true or false)", Value: strconv.FormatBool(item.IsActive)},
		},
	}
	if item.IsHidden {
		modal.Title = "Master key"
		modal.locked = true
		for i := range modal.Fields {
			modal.Fields[i].ReadOnly = true
		}
	}
	c.openModal(modal)
}

// OpenGroupDetail shows a routing group read only, members included.
func (c *Controller) OpenGroupDetail(item console.Group) {
	c.openModal(Modal{
		Kind: ModalGroup, State: ModalReadOnly, Title: "Group " + item.Name,
		Target: strconv.FormatUint(item.ID, 10), GroupID: item.ID, Members: item.Members,
		Fields: []Field{
			{Name: "name", Label: "Name", Value: item.Name},
			{Name: "strategy", Label: "Strategy (round-robin or weighted)", Value: item.Strategy},
		},
	})
}

// OpenAddMember opens the member form for a group. The provider is
// addressed by name and resolved against the loaded provider list.
func (c *Controller) OpenAddMember(group console.Group) {
	c.openModal(Modal{
		Kind: ModalMember, State: ModalEditable, Creating: true,
		Title: "Add member to " + group.Name, GroupID: group.ID,
		Fields: []Field{
			{Name: "provider", Label: "Provider name"},
			{Name: "target_model", Label: "Target model"},
			{Name: "weight", Label: "Weight", Value: "1"},
		},
	})
}

// BeginEdit switches a read-only detail into edit mode. Secret fields
// reset to the unchanged placeholder so stored credentials never round
// trip through the form. The master key detail stays read only.
func (c *Controller) BeginEdit() bool {
	if c.modal.State != ModalReadOnly || c.modal.locked {
		return false
	}
	c.modal.saved = append([]Field(nil), c.modal.Fields...)
	for i := range c.modal.Fields {
		if c.modal.Fields[i].Secret {
			c.modal.Fields[i].Value = console.SecretUnchanged
		}
	}
	c.modal.State = ModalEditable
	c.modal.Err = ""
	return true
}

// Cancel leaves edit mode: an edit flow falls back to the read-only
// detail with its original values, a create flow closes the modal.
func (c *Controller) Cancel() {
	if c.modal.State == ModalEditable && !c.modal.Creating {
		c.modal.Fields = c.modal.saved
		c.modal.saved = nil
		c.modal.State = ModalReadOnly
		c.modal.Err = ""
		return
	}
	c.CloseModal()
}

// SetField updates one editable field value.
func (c *Controller) SetField(index int, value string) bool {
	if c.modal.State != ModalEditable || index < 0 || index >= len(c.modal.Fields) {
		return false
	}
	if c.modal.Fields[index].ReadOnly {
		return false
	}
	c.modal.Fields[index].Value = value
	return true
}

// SaveRequest validates the open form and builds the admin API call that
// persists it. Validation failures land in the modal error and keep the
// form editable.
func (c *Controller) SaveRequest() (Request, bool) {
	if c.modal.State != ModalEditable {
		return Request{}, false
	}
	req, errBuild := c.buildSave()
	if errBuild != nil {
		c.modal.Err = errBuild.Error()
		return Request{}, false
	}
	c.modal.Err = ""
	return req, true
}

// SaveFailed records a remote failure on the open modal, which stays
// editable for another attempt.
func (c *Controller) SaveFailed(err error) {
	if c.modal.State == ModalClosed {
		return
	}
	c.modal.Err = failureMessage(err)
}

// SaveSucceeded closes the modal and names the tab whose data changed.
// A key create surfaces the returned key value in a sticky popup so the
// operator can copy it straight away.
func (c *Controller) SaveSucceeded(result json.RawMessage) Tab {
	kind := c.modal.Kind
	creating := c.modal.Creating
	c.modal = Modal{}

	if kind == ModalKey && creating && len(result) > 0 {
		var payload struct {
			Key string `json:"key"`
		}
		if errDecode := json.Unmarshal(result, &payload); errDecode == nil && payload.Key != "" {
			c.ShowStickyPopup("Access key created", "The new key is ready to copy:\n\n"+payload.Key)
		}
	}
	return kind.Tab()
}

func (c *Controller) buildSave() (Request, error) {
	switch c.modal.Kind {
	case ModalProvider:
		return buildProviderSave(c.modal)
	case ModalKey:
		return buildKeySave(c.modal)
	case ModalGroup:
		return buildGroupSave(c.modal)
	case ModalMember:
		return c.buildMemberSave(c.modal)
	}
	return Request{}, errors.New("nothing to save")
}

func buildProviderSave(m Modal) (Request, error) {
	providerType := m.fieldValue("provider_type")
	if providerType == "" {
		return Request{}, errors.New("type is required")
	}
	body := map[string]any{
		"provider_type": providerType,
		"base_url":      m.fieldValue("base_url"),
	}
	secret := m.fieldValue("api_key")

	if m.Creating {
		name := m.fieldValue("name")
		if name == "" {
			return Request{}, errors.New("name is required")
		}
		if secret == "" {
			return Request{}, errors.New("api key is required")
		}
		body["name"] = name
		body["api_key"] = secret
		return Request{Method: http.MethodPost, Path: "/api/admin/providers", Body: body}, nil
	}

	// The unchanged placeholder keeps the stored credential; the field is
	// dropped from the payload entirely.
	if secret != "" && secret != console.SecretUnchanged {
		body["api_key"] = secret
	}
	return Request{Method: http.MethodPut, Path: "/api/admin/providers/" + url.PathEscape(m.Target), Body: body}, nil
}

func buildKeySave(m Modal) (Request, error) {
	name := m.fieldValue("name")
	if name == "" {
		return Request{}, errors.New("name is required")
	}
	rateLimit, errRate := parseCount(m.fieldValue("rate_limit"))
	if errRate != nil {
		return Request{}, errors.New("rate limit must be a non-negative number")
	}
	usageLimit, errUsage := parseCount64(m.fieldValue("usage_limit"))
	if errUsage != nil {
		return Request{}, errors.New("usage limit must be a non-negative number")
	}

	if m.Creating {
		body := map[string]any{"name": name, "rate_limit": rateLimit, "usage_limit": usageLimit}
		if custom := m.fieldValue("custom_key"); custom != "" {
			body["custom_key"] = custom
		}
		return Request{Method: http.MethodPost, Path: "/api/admin/keys", Body: body}, nil
	}

	active, errActive := parseBoolWord(m.fieldValue("active"))
	if errActive != nil {
		return Request{}, errors.New("active must be true or false")
	}
	body := map[string]any{"name": name, "rate_limit": rateLimit, "usage_limit": usageLimit, "is_active": active}
	return Request{Method: http.MethodPut, Path: "/api/admin/keys/" + url.PathEscape(m.Target), Body: body}, nil
}

func buildGroupSave(m Modal) (Request, error) {
	name := m.fieldValue("name")
	if name == "" {
		return Request{}, errors.New("name is required")
	}
	strategy := m.fieldValue("strategy")
	if strategy == "" {
		return Request{}, errors.New("strategy is required")
	}
	body := map[string]any{"name": name, "strategy": strategy}
	if m.Creating {
		return Request{Method: http.MethodPost, Path: "/api/admin/groups", Body: body}, nil
	}
	return Request{Method: http.MethodPut, Path: "/api/admin/groups/" + url.PathEscape(m.Target), Body: body}, nil
}

func (c *Controller) buildMemberSave(m Modal) (Request, error) {
	providerName := m.fieldValue("provider")
	if providerName == "" {
		return Request{}, errors.New("provider is required")
	}
	var providerID uint64
	for _, provider := range c.providers.Data() {
		if strings.EqualFold(provider.Name, providerName) {
			providerID = provider.ID
			break
		}
	}
	if providerID == 0 {
		return Request{}, fmt.Errorf("unknown provider %q", providerName)
	}

	target := m.fieldValue("target_model")
	if target == "" {
		return Request{}, errors.New("target model is required")
	}
	weight := 1
	if raw := m.fieldValue("weight"); raw != "" {
		parsed, errParse := strconv.Atoi(raw)
		if errParse != nil || parsed < 1 {
			return Request{}, errors.New("weight must be a positive number")
		}
		weight = parsed
	}

	body := map[string]any{
		"group_id":     m.GroupID,
		"provider_id":  providerID,
		"target_model": target,
		"weight":       weight,
	}
	return Request{Method: http.MethodPost, Path: "/api/admin/members", Body: body}, nil
}

func parseCount(raw string) (int, error) {
	if raw == "" {
		return 0, nil
	}
	value, errParse := strconv.Atoi(raw)
	if errParse != nil || value < 0 {
		return 0, errors.New("invalid count")
	}
	return value, nil
}

func parseCount64(raw string) (int64, error) {
	if raw == "" {
		return 0, nil
	}
	value, errParse := strconv.ParseInt(raw, 10, 64)
	if errParse != nil || value < 0 {
		return 0, errors.New("invalid count")
	}
	return value, nil
}

func parseBoolWord(raw string) (bool, error) {
	switch strings.ToLower(raw) {
	case "true", "yes", "on", "1":
		return true, nil
	case "false", "no", "off", "0":
		return false, nil
	}
	return false, errors.New("invalid boolean")
}
