package ldtest

// Capabilities is the list of optional features a page service supports.
type Capabilities []string

// Has returns true if the capability is in the list.
func (c Capabilities) Has(name string) bool {
	for _, value := range c {
		if value == name {
			return true
		}
	}
	return false
}

// HasAll returns true if every named capability is in the list.
func (c Capabilities) HasAll(names ...string) bool {
	for _, n := range names {
		if !c.Has(n) {
			return false
		}
	}
	return true
}
