package permission

// Checker decides access against the current state of a Store.
type Checker struct {
	store *Store
}

// NewChecker creates a checker reading from store.
func NewChecker(store *Store) *Checker {
	return &Checker{store: store}
}

// Check reports whether identity holds capability. Admin implies every capability.
// Absence of a record and absence of the capability both yield false.
func (c *Checker) Check(identity Identity, capability Capability) bool {
	return c.store.Get(identity).Allows(capability)
}

// CheckAny reports whether identity holds at least one of the given capabilities.
// All lookups run against the same snapshot.
func (c *Checker) CheckAny(identity Identity, capabilities ...Capability) bool {
	record := c.store.Get(identity)

	for _, capability := range capabilities {
		if record.Allows(capability) {
			return true
		}
	}

	return false
}
