package netman

import (
	"strings"

	"github.com/pifleet/wifibridge/internal/domain"
)

// Recognized nmcli diagnostic phrases. These are the only substrings the
// agent depends on; anything unrecognized degrades to the generic reason
// instead of failing.
const (
	// phraseSecretsRequired shows up when the supplied PSK is rejected
	// during association.
	phraseSecretsRequired = "secrets were required"

	// phraseProfileNotValid shows up when the stored profile itself is
	// malformed for the device.
	phraseProfileNotValid = "connection profile is not valid"
)

// classifyActivationFailure maps a "connection up" diagnostic to an
// activation reason. The matching is case-insensitive because nmcli wording
// varies between releases.
func classifyActivationFailure(stderr string) domain.ActivationReason {
	diag := strings.ToLower(stderr)
	switch {
	case strings.Contains(diag, phraseSecretsRequired):
		return domain.ReasonBadPassword
	case strings.Contains(diag, phraseProfileNotValid):
		return domain.ReasonOther
	default:
		return domain.ReasonOther
	}
}
