package nodeid

// String serializes the Address into its canonical `kind.name` form.
func (a Address) String() string {
	if a.Kind == "" && a.Name == "" {
		return ""
	}
	return a.Kind + "." + a.Name
}

// IsZero reports whether the address is unset.
func (a Address) IsZero() bool {
	return a.Kind == "" && a.Name == ""
}

// Less orders addresses by their canonical string, giving deterministic
// iteration wherever a stable order is required.
func (a Address) Less(other Address) bool {
	return a.String() < other.String()
}
