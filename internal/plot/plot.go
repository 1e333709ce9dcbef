// Package plot declares the optional plotting capability.
//
// Plotting delegates to an external component that may be unavailable in a
// given installation. Availability is resolved once at startup: the
// orchestrator holds a nil Plotter when the capability is absent and every
// call site treats that as a no-op.
package plot

// Plotter renders the configured figures of one study and returns the
// paths of the produced figure files.
type Plotter interface {
	PlotStudy(label, destination string) ([]string, error)
}
