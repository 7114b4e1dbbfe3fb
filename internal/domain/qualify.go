package domain

import "strings"

// Domain filter for eligible tokens: only mints matching the configured
// suffix naming convention are tracked at all. Case-insensitive, matching the
// provider's mixed-case addresses.
type MintFilter struct {
	suffix string
}

func NewMintFilter(suffix string) *MintFilter {
	return &MintFilter{suffix: strings.ToLower(suffix)}
}

func (f *MintFilter) Qualifies(mint string) bool {
	if f.suffix == "" {
		return true
	}
	return strings.HasSuffix(strings.ToLower(mint), f.suffix)
}
