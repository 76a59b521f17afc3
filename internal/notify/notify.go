// Package notify is the transient user-facing notification surface.
// Delivery is fire-and-forget; nothing in the cart path waits on it.
package notify

import "log"

type Level string

const (
	LevelSuccess Level = "success"
	LevelInfo    Level = "info"
	LevelError   Level = "error"
)

type Event struct {
	Level   Level  `json:"level"`
	Message string `json:"message"`
}

type Notifier interface {
	Notify(userID string, event Event)
}

// LogNotifier writes notifications to the process log. Used where no
// realtime channel to the storefront is wired up.
type LogNotifier struct{}

func (LogNotifier) Notify(userID string, event Event) {
	log.Printf("notify user=%s level=%s: %s", userID, event.Level, event.Message)
}
