package panel

// Popup is the lightweight message surface layered over any tab. Sticky
// popups wait for a keypress; transient ones are expired by the caller
// through their generation number, so a newer popup never loses to an
// older timer.
type Popup struct {
	Visible bool
	Sticky  bool
	Gen     int
	Title   string
	Body    string
}

// Popup returns the current popup state.
func (c *Controller) Popup() Popup { return c.popup }

// ShowPopup raises a transient popup and returns its generation for the
// caller's expiry timer.
func (c *Controller) ShowPopup(title, body string) int {
	c.popupGen++
	c.popup = Popup{Visible: true, Gen: c.popupGen, Title: title, Body: body}
	return c.popupGen
}

// ShowStickyPopup raises a popup that stays until dismissed.
func (c *Controller) ShowStickyPopup(title, body string) {
	c.popupGen++
	c.popup = Popup{Visible: true, Sticky: true, Gen: c.popupGen, Title: title, Body: body}
}

// ExpirePopup hides the popup if gen still names it; stale generations
// are ignored.
func (c *Controller) ExpirePopup(gen int) {
	if c.popup.Visible && !c.popup.Sticky && c.popup.Gen == gen {
		c.popup = Popup{}
	}
}

// DismissPopup hides any popup.
func (c *Controller) DismissPopup() { c.popup = Popup{} }
