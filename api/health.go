package api

// Health reports whether a named shared structure is usable.
type Health interface {
	// Check returns nil when the target is healthy.
	Check(name string) error
	// Names lists the registered targets.
	Names() []string
}
