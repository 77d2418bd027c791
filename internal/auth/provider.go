package auth

// LookupKey names the attribute a provider's assertions are reconciled on.
type LookupKey string

const (
	// LookupByEmail reconciles on the asserted email address.
	LookupByEmail LookupKey = "email"
	// LookupByExternalID reconciles on the provider-issued id.
	LookupByExternalID LookupKey = "external_id"
)

// ProviderConfig describes how one identity source maps into the credential
// store. The lookup keys are intentionally not uniform: local and Google
// flows reconcile on email while Facebook and GitHub reconcile on the
// provider-issued id. A locally registered user who later signs in through
// Facebook with the same email therefore gets a second row; see DESIGN.md
// for why this behavior is preserved rather than unified.
type ProviderConfig struct {
	Name         string
	Lookup       LookupKey
	RequireEmail bool
}

var providerConfigs = map[string]ProviderConfig{
	ProviderGoogle: {
		Name:         ProviderGoogle,
		Lookup:       LookupByEmail,
		RequireEmail: true,
	},
	ProviderFacebook: {
		Name:   ProviderFacebook,
		Lookup: LookupByExternalID,
	},
	ProviderGitHub: {
		Name:         ProviderGitHub,
		Lookup:       LookupByExternalID,
		RequireEmail: true,
	},
}

// ConfigForProvider returns the reconciliation rules for a provider name.
func ConfigForProvider(name string) (ProviderConfig, error) {
	cfg, ok := providerConfigs[name]
	if !ok {
		return ProviderConfig{}, ErrUnknownProvider
	}
	return cfg, nil
}
