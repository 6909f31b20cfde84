package selection

// DefaultMax is the selection bound used when no option overrides it.
const DefaultMax = 5

// Policy decides the initial selection for a freshly loaded pool.
type Policy string

// Selection policies.
const (
	// PolicyDefaultAll seeds the selection with the whole pool when the pool
	// fits within the bound. Larger pools start empty.
	PolicyDefaultAll Policy = "default_all"
	// PolicyExplicit always starts empty.
	PolicyExplicit Policy = "explicit"
)

// ParsePolicy maps a configuration string to a Policy.
// Unknown values fall back to PolicyDefaultAll.
func ParsePolicy(s string) Policy {
	if Policy(s) == PolicyExplicit {
		return PolicyExplicit
	}
	return PolicyDefaultAll
}

// Option applies a configuration option to the Manager.
type Option func(*Manager)

// WithMax sets the maximum selection size. Values <= 0 are ignored.
func WithMax(max int) Option {
	return func(m *Manager) {
		if max > 0 {
			m.max = max
		}
	}
}

// WithPolicy sets the initial-selection policy.
func WithPolicy(p Policy) Option {
	return func(m *Manager) {
		m.policy = p
	}
}
