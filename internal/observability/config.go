// Package observability holds the opt-in diagnostics the receiver host can
// enable: OTLP tracing and the runtime trace endpoint.
package observability

// Config captures opt-in observability toggles that wire into the host.
type Config struct {
	ServiceName string
	// OTelEndpoint is the OTLP/HTTP collector URL. Tracing stays off when it
	// is empty or OTelDisabled is set.
	OTelEndpoint string
	OTelDisabled bool
	// EnablePprofTrace mounts /debug/pprof/trace on the HTTP surface.
	EnablePprofTrace bool
}

// TracingEnabled reports whether Setup will install a provider.
func (c Config) TracingEnabled() bool {
	return !c.OTelDisabled && c.OTelEndpoint != ""
}
