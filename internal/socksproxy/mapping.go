package socksproxy

import (
	"errors"
	"syscall"

	"github.com/connectlab/sockshub/internal/dialer"
	"github.com/connectlab/sockshub/internal/hub"
	"github.com/connectlab/sockshub/internal/socks5"
)

// repForError maps a Converger.Dial error onto the SOCKS5 REP code the
// client sees. UpstreamConnectFailed already carries a REP the upstream
// itself returned, so it passes straight through.
func repForError(err error) byte {
	var policyRejected *hub.PolicyRejected
	if errors.As(err, &policyRejected) {
		return socks5.RepRuleDenied
	}

	var authUnavailable *dialer.UpstreamAuthUnavailable
	if errors.As(err, &authUnavailable) {
		return socks5.RepGeneralFailure
	}

	var authFailed *dialer.UpstreamAuthFailed
	if errors.As(err, &authFailed) {
		return socks5.RepGeneralFailure
	}

	var connectFailed *dialer.UpstreamConnectFailed
	if errors.As(err, &connectFailed) {
		return connectFailed.Rep
	}

	switch {
	case errors.Is(err, syscall.ECONNREFUSED):
		return socks5.RepConnectionRefused
	case errors.Is(err, syscall.EHOSTUNREACH):
		return socks5.RepHostUnreachable
	case errors.Is(err, syscall.ENETUNREACH):
		return socks5.RepNetworkUnreachable
	default:
		return socks5.RepGeneralFailure
	}
}
