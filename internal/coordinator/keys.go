package coordinator

// Key names as reported by kiosk windows and presenter remotes.
const (
	KeyArrowRight = "ArrowRight"
	KeyArrowLeft  = "ArrowLeft"
	KeyPageDown   = "PageDown"
	KeyPageUp     = "PageUp"
	KeySpace      = "Space"
	KeyEnter      = "Enter"
	KeyBackspace  = "Backspace"
	KeyHome       = "Home"
	KeyEnd        = "End"
	KeyEscape     = "Escape"
	KeyBlank      = "b"
	KeyPeriod     = "."
)

// HandleKey applies a navigation key press. Keys are only honoured while a
// presentation runs; it reports whether the key did anything.
func (c *Coordinator) HandleKey(key string) bool {
	var handled bool
	err := c.do(func() {
		if !c.state.Presenting {
			return
		}
		switch key {
		case KeyArrowRight, KeyPageDown, KeySpace, " ", KeyEnter:
			handled = c.navigateTo(c.state.CurrentSlideIndex + 1)
		case KeyArrowLeft, KeyPageUp, KeyBackspace:
			handled = c.navigateTo(c.state.CurrentSlideIndex - 1)
		case KeyHome:
			handled = c.navigateTo(0)
		case KeyEnd:
			handled = c.navigateTo(c.state.TotalSlideCount - 1)
		case KeyBlank, "B", KeyPeriod:
			if c.state.IsCleared {
				handled = c.showAll() == nil
			} else {
				handled = c.clearAll() == nil
			}
		case KeyEscape:
			c.stop()
			handled = true
		}
	})
	if err != nil {
		return false
	}
	if handled {
		c.log.Debug().Str("key", key).Msg("Key handled")
	}
	return handled
}
