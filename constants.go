package udisp

import "github.com/kgriffin/udisp/internal/constants"

// Re-exported defaults for callers constructing a Config without reaching
// into internal/constants directly.
const (
	MaxWorkers                 = constants.MaxWorkers
	MaxClasses                 = constants.MaxClasses
	NetworkerBatchMax          = constants.NetworkerBatchMax
	DefaultMaxInFlightContexts = constants.DefaultMaxInFlightContexts
	DefaultClassBudget         = constants.DefaultClassBudget
)
