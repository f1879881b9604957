package health

import "sync/atomic"

type ProviderOptions struct {
	// Targets is the number of components that must report ready.
	Targets int
}

type Provider interface {
	Ready()
	Healthy() bool
}

type healthStatusProvider struct {
	targets      int32
	targetsReady atomic.Int32
}

// NewHealthStatusProvider creates a new Provider.
func NewHealthStatusProvider(opts ProviderOptions) Provider {
	return &healthStatusProvider{
		targets: int32(opts.Targets),
	}
}

// Ready tells the health status provider that a target is ready.
func (h *healthStatusProvider) Ready() {
	h.targetsReady.Add(1)
}

// Healthy returns if all targets are ready.
func (h *healthStatusProvider) Healthy() bool {
	return h.targetsReady.Load() >= h.targets
}
