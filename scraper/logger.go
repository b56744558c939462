package scraper

import (
	"myhome_scrooper/logging"
	"myhome_scrooper/models"
)

// LogFunc receives progress and failure lines from the fetch layer.
type LogFunc func(level models.LogLevel, source, message string)

// StdLogger writes through the process logger.
var StdLogger LogFunc = func(level models.LogLevel, source, message string) {
	logging.Logf(level, source, "%s", message)
}

// NoOpLogger discards everything.
var NoOpLogger LogFunc = func(level models.LogLevel, source, message string) {}
