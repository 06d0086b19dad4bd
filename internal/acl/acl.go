package acl

import "github.com/connectlab/sockshub/internal/addr"

// Evaluate returns the Policy for dst. Sections are checked in the fixed
// priority reject, then bypass, then proxy; within a section, exact
// domain, then suffix, then regex, then (for IP literals) CIDR are
// tried, first match wins. If nothing matches, the ACL's final policy is
// returned. Evaluate never fails and runs in time bounded by the
// destination's own size (label count, pattern count), never by how many
// destinations have been evaluated before.
func (l *List) Evaluate(dst addr.Destination) Policy {
	host, err := dst.NormalizedHost()
	if err != nil {
		return l.final
	}

	for _, s := range []struct {
		section *section
		policy  Policy
	}{
		{l.reject, Reject},
		{l.bypass, Direct},
		{l.proxy, Proxy},
	} {
		if s.section.matchHost(host) {
			return s.policy
		}
		if dst.IsIP() && s.section.matchIP(dst.IP()) {
			return s.policy
		}
	}

	return l.final
}

// Final reports the ACL's default policy.
func (l *List) Final() Policy { return l.final }

// Empty returns an ACL with no rules, whose Evaluate always returns
// Proxy — the behavior of having no ACL file configured at all (every
// destination goes through the upstream).
func Empty() *List {
	return &List{
		reject: newSection(),
		bypass: newSection(),
		proxy:  newSection(),
		final:  Proxy,
	}
}
