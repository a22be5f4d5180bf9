package panel

import (
	"fmt"
	"net/http"
	"net/url"
	"strconv"

	"github.com/unigw/unigw/internal/console"
)

// Confirm is the blocking delete confirmation overlay. It opens with a
// prepared request, waits for an explicit yes and, on failure, stays up
// until the error is acknowledged.
type Confirm struct {
	Active bool
	Tab    Tab
	Label  string
	Err    string

	req Request
}

// Confirm returns the current confirmation state.
func (c *Controller) Confirm() Confirm { return c.confirm }

func (c *Controller) openConfirm(cf Confirm) {
	c.modal = Modal{}
	c.popup = Popup{}
	c.confirm = cf
}

// AskDeleteProvider opens the confirmation for a provider. Deleting a
// provider cascades into every group member that references it.
func (c *Controller) AskDeleteProvider(item console.Provider) {
	c.openConfirm(Confirm{
		Active: true, Tab: TabProviders,
		Label: fmt.Sprintf("Delete provider %s? Group members pointing at it are removed.", item.Name),
		req:   Request{Method: http.MethodDelete, Path: "/api/admin/providers/" + url.PathEscape(item.Name)},
	})
}

// AskDeleteKey opens the confirmation for an access key. The hidden
// master record is refused before any call is made.
func (c *Controller) AskDeleteKey(item console.AccessKey) bool {
	if item.IsHidden {
		return false
	}
	c.openConfirm(Confirm{
		Active: true, Tab: TabKeys,
		Label: fmt.Sprintf("Delete key %s?", item.Name),
		req:   Request{Method: http.MethodDelete, Path: "/api/admin/keys/" + url.PathEscape(item.Key)},
	})
	return true
}

// AskDeleteGroup opens the confirmation for a routing group and its
// members.
func (c *Controller) AskDeleteGroup(item console.Group) {
	c.openConfirm(Confirm{
		Active: true, Tab: TabGroups,
		Label: fmt.Sprintf("Delete group %s and its %d member(s)?", item.Name, len(item.Members)),
		req:   Request{Method: http.MethodDelete, Path: "/api/admin/groups/" + strconv.FormatUint(item.ID, 10)},
	})
}

// AskDeleteMember opens the confirmation for one group member.
func (c *Controller) AskDeleteMember(group console.Group, member console.GroupMember) {
	c.openConfirm(Confirm{
		Active: true, Tab: TabGroups,
		Label: fmt.Sprintf("Remove %s→%s from %s?", member.ProviderName, member.TargetModel, group.Name),
		req:   Request{Method: http.MethodDelete, Path: "/api/admin/members/" + strconv.FormatUint(member.ID, 10)},
	})
}

// DeleteRequest returns the pending delete call once the operator has
// confirmed.
func (c *Controller) DeleteRequest() (Request, bool) {
	if !c.confirm.Active {
		return Request{}, false
	}
	return c.confirm.req, true
}

// ConfirmResult applies the delete outcome: success dismisses the
// overlay, failure keeps it up with the error for acknowledgement.
func (c *Controller) ConfirmResult(err error) {
	if !c.confirm.Active {
		return
	}
	if err != nil {
		c.confirm.Err = failureMessage(err)
		return
	}
	c.confirm = Confirm{}
}

// DismissConfirm drops the overlay without deleting anything.
func (c *Controller) DismissConfirm() { c.confirm = Confirm{} }
