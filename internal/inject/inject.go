// Package inject delivers finished transcripts: onto the clipboard, or into
// the focused application by pasting or simulated typing via robotgo.
package inject

import (
	"fmt"
	"runtime"

	"github.com/atotto/clipboard"
	"github.com/go-vgo/robotgo"
)

// Injector hands text to the desktop using one method.
type Injector struct {
	method string // "copy", "paste" or "type"

	readClipboard  func() (string, error)
	writeClipboard func(string) error
	typeText       func(string)
	keyTap         func(key string, mods ...interface{}) error
}

// NewInjector creates an Injector with the given method.
// method must be "copy" (clipboard only), "paste" (clipboard then the
// platform paste shortcut) or "type" (keystroke simulation).
func NewInjector(method string) *Injector {
	return &Injector{
		method:         method,
		readClipboard:  clipboard.ReadAll,
		writeClipboard: clipboard.WriteAll,
		typeText:       func(s string) { robotgo.TypeStr(s) },
		keyTap:         robotgo.KeyTap,
	}
}

// Deliver sends text to the desktop using the configured method.
func (inj *Injector) Deliver(text string) error {
	if text == "" {
		return nil
	}

	switch inj.method {
	case "paste":
		return inj.paste(text)
	case "type":
		inj.typeText(text)
		return nil
	default: // "copy"
		if err := inj.writeClipboard(text); err != nil {
			return fmt.Errorf("inject: write to clipboard: %w", err)
		}
		return nil
	}
}

// paste copies text to the clipboard and pastes it into the focused
// window, then restores the previous clipboard contents.
func (inj *Injector) paste(text string) error {
	prev, _ := inj.readClipboard()

	if err := inj.writeClipboard(text); err != nil {
		return fmt.Errorf("inject: write to clipboard: %w", err)
	}
	if err := inj.keyTap("v", pasteModifier()); err != nil {
		return fmt.Errorf("inject: key tap paste: %w", err)
	}

	// Restore previous clipboard (best effort)
	_ = inj.writeClipboard(prev)
	return nil
}

func pasteModifier() string {
	if runtime.GOOS == "darwin" {
		return "cmd"
	}
	return "ctrl"
}
