// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Gatekeep Contributors

package accessctl

import "github.com/samber/oops"

// PolicyMode selects which policy strategy a deployment runs. It is chosen
// once at startup from configuration, never per call.
type PolicyMode int

const (
	// ModeLeveled is the current model: per-resource levels with per-identity
	// grants. New deployments use this exclusively.
	ModeLeveled PolicyMode = iota
	// ModeLegacyGlobal is the older boolean-marker model where any
	// authenticated actor may view content of marked resources.
	ModeLegacyGlobal
	// ModeLegacyIndividual is the older marker model with per-identity grants
	// still required, behaving like LevelReserved.
	ModeLegacyIndividual
)

var policyModeStrings = [...]string{
	"leveled",
	"legacy-global",
	"legacy-individual",
}

func (m PolicyMode) String() string {
	if m >= 0 && int(m) < len(policyModeStrings) {
		return policyModeStrings[m]
	}
	return "leveled"
}

// Legacy reports whether the mode uses the reserved-marker compatibility layer.
func (m PolicyMode) Legacy() bool {
	return m == ModeLegacyGlobal || m == ModeLegacyIndividual
}

// ParsePolicyMode converts a configured mode string into a PolicyMode.
func ParsePolicyMode(s string) (PolicyMode, error) {
	switch s {
	case "leveled":
		return ModeLeveled, nil
	case "legacy-global":
		return ModeLegacyGlobal, nil
	case "legacy-individual":
		return ModeLegacyIndividual, nil
	default:
		return ModeLeveled, oops.
			Code("CONFIG_INVALID").
			With("mode", s).
			Errorf("unrecognized policy mode %q", s)
	}
}

// RequestModes controls which requester identities a deployment accepts on
// access-request submission.
type RequestModes struct {
	User  bool
	Email bool
	Token bool
}

// Any reports whether at least one request mode is enabled.
func (m RequestModes) Any() bool {
	return m.User || m.Email || m.Token
}
