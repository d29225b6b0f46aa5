package session

import (
	"context"
	"strings"
)

// KeySave is the accelerator bound to ManualSave.
const KeySave = "ctrl+s"

var saveKeys = map[string]bool{
	KeySave:  true,
	"cmd+s":  true,
	"meta+s": true,
}

// HandleKey maps a key chord coming from the presentation layer to a
// controller action. It reports whether the chord was handled.
func (c *Controller) HandleKey(ctx context.Context, chord string) (bool, error) {
	chord = strings.ToLower(strings.ReplaceAll(chord, " ", ""))
	if !saveKeys[chord] {
		return false, nil
	}
	return true, c.ManualSave(ctx)
}
