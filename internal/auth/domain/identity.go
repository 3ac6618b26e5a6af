package domain

// ExternalIdentity is a verified identity asserted by an OAuth provider.
type ExternalIdentity struct {
	Provider   Provider
	Email      string
	GivenName  string
	FamilyName string
}
