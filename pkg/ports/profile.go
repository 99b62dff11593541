package ports

// ProfileProvider supplies the customer profile as a flat field map. It is
// consumed only for template interpolation ({field} replacement in prompts
// and scripted responses).
type ProfileProvider interface {
	Profile(customerID string) (map[string]string, error)
}

// StaticProfile is a ProfileProvider backed by a fixed map, keyed per call
// regardless of customer ID. Useful for tests and single-customer CLIs.
type StaticProfile map[string]string

func (p StaticProfile) Profile(string) (map[string]string, error) {
	return p, nil
}
