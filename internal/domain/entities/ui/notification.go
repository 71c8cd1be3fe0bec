// Package ui holds view-level values shared by controllers and templates.
package ui

import "time"

// Level is the severity of a notification
type Level string

const (
	LevelInfo    Level = "info"
	LevelSuccess Level = "success"
	LevelError   Level = "error"
)

// DefaultDismissAfter is how long a notification stays visible
const DefaultDismissAfter = 5 * time.Second

// Notification is a transient, auto-dismissing message
type Notification struct {
	Level        Level
	Message      string
	DismissAfter time.Duration
}

// Error builds an error notification with the default lifetime
func Error(message string) Notification {
	return Notification{Level: LevelError, Message: message, DismissAfter: DefaultDismissAfter}
}

// Success builds a success notification with the default lifetime
func Success(message string) Notification {
	return Notification{Level: LevelSuccess, Message: message, DismissAfter: DefaultDismissAfter}
}

// Info builds an informational notification with the default lifetime
func Info(message string) Notification {
	return Notification{Level: LevelInfo, Message: message, DismissAfter: DefaultDismissAfter}
}

// DismissAfterMillis is used by templates to schedule removal
func (n Notification) DismissAfterMillis() int64 {
	return n.DismissAfter.Milliseconds()
}
