// Package notify shows desktop notifications with beeep.
package notify

import (
	"fmt"

	"github.com/gen2brain/beeep"
)

// AppName is shown as the notification source where the platform supports it.
const AppName = "whisperclip"

// Desktop posts notifications to the desktop environment.
type Desktop struct {
	icon string
	post func(title, message string, icon any) error
}

// NewDesktop creates a notifier. icon may be empty.
func NewDesktop(icon string) *Desktop {
	beeep.AppName = AppName
	return &Desktop{icon: icon, post: beeep.Notify}
}

// Notify shows message under title.
func (d *Desktop) Notify(title, message string) error {
	if err := d.post(title, message, d.icon); err != nil {
		return fmt.Errorf("notify: %w", err)
	}
	return nil
}
