// Package logging provides the process-wide structured logger. Every
// long-lived component logs through the same sugared zap logger so log
// lines share one timestamp/level format regardless of which package emits
// them.
package logging

import "go.uber.org/zap"

var base = zap.Must(zap.NewDevelopmentConfig().Build())

// L is the shared sugared logger. Sugared rather than strongly-typed
// because most call sites just want Printf-style formatting, not structured
// fields.
var L = base.Sugar()

// Sync flushes any buffered log entries; call it once on shutdown.
func Sync() {
	_ = L.Sync()
}
