package acl

import (
	"bufio"
	"fmt"
	"net"
	"regexp"
	"strings"
)

// ParseError reports a problem with one line of an ACL file. Any parse
// failure aborts startup (spec: evaluation never fails, loading can).
type ParseError struct {
	Line int
	Kind string
}

func (e *ParseError) Error() string {
	return fmt.Sprintf("acl: line %d: %s", e.Line, e.Kind)
}

// List is a compiled ACL: one matcher per section plus the default
// policy. It is immutable once built and safe for concurrent read-only
// use by every session.
type List struct {
	reject *section
	bypass *section
	proxy  *section
	final  Policy
}

var hostnameChars = regexp.MustCompile(`^[A-Za-z0-9.-]+$`)

// Load compiles the text of an ACL file (already read by the caller).
// Sections are [bypass]/[proxy]/[reject]; the final policy defaults to
// Direct when no final directive is given;
// lines are comment-stripped (# to EOL) and blank lines skipped.
func Load(text string) (*List, error) {
	l := &List{
		reject: newSection(),
		bypass: newSection(),
		proxy:  newSection(),
		final:  Direct,
	}

	var current *section
	lineNo := 0

	scanner := bufio.NewScanner(strings.NewReader(text))
	for scanner.Scan() {
		lineNo++
		line := stripComment(scanner.Text())
		line = strings.TrimSpace(line)
		if line == "" {
			continue
		}

		if strings.HasPrefix(line, "[") && strings.HasSuffix(line, "]") {
			name := strings.TrimSpace(line[1 : len(line)-1])
			switch name {
			case "bypass":
				current = l.bypass
			case "proxy":
				current = l.proxy
			case "reject":
				current = l.reject
			default:
				return nil, &ParseError{Line: lineNo, Kind: fmt.Sprintf("unknown section %q", name)}
			}
			continue
		}

		if final, ok := parseFinalDirective(line); ok {
			p, ok := parsePolicy(final)
			if !ok {
				return nil, &ParseError{Line: lineNo, Kind: fmt.Sprintf("invalid final policy %q", final)}
			}
			l.final = p
			continue
		}

		if current == nil {
			return nil, &ParseError{Line: lineNo, Kind: "pattern outside of a section"}
		}

		if err := classify(current, line); err != nil {
			return nil, &ParseError{Line: lineNo, Kind: err.Error()}
		}
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("acl: read: %w", err)
	}

	return l, nil
}

func stripComment(line string) string {
	if i := strings.IndexByte(line, '#'); i >= 0 {
		return line[:i]
	}
	return line
}

func parseFinalDirective(line string) (string, bool) {
	const prefix = "final"
	if !strings.HasPrefix(line, prefix) {
		return "", false
	}
	rest := strings.TrimSpace(line[len(prefix):])
	rest, ok := strings.CutPrefix(rest, "=")
	if !ok {
		return "", false
	}
	return strings.TrimSpace(rest), true
}

// classify implements the ordered pattern classification from §4.2:
// CIDR, then suffix ("." or "*." prefix), then bare hostname (exact),
// then anchored regex.
func classify(s *section, pattern string) error {
	if n := parseCIDR(pattern); n != nil {
		s.addCIDR(n)
		return nil
	}

	if suffix, ok := asSuffixPattern(pattern); ok {
		s.addSuffix(strings.ToLower(suffix))
		return nil
	}

	if hostnameChars.MatchString(pattern) {
		s.addExact(strings.ToLower(pattern))
		return nil
	}

	re, err := regexp.Compile(anchor(pattern))
	if err != nil {
		return fmt.Errorf("invalid pattern %q: %w", pattern, err)
	}
	s.addRegex(re)
	return nil
}

func parseCIDR(pattern string) *net.IPNet {
	_, n, err := net.ParseCIDR(pattern)
	if err != nil {
		return nil
	}
	return n
}

func asSuffixPattern(pattern string) (string, bool) {
	switch {
	case strings.HasPrefix(pattern, "*."):
		return pattern[2:], true
	case strings.HasPrefix(pattern, "."):
		return pattern[1:], true
	default:
		return "", false
	}
}

func anchor(pattern string) string {
	if strings.HasPrefix(pattern, "^") && strings.HasSuffix(pattern, "$") {
		return pattern
	}
	return "^(?:" + pattern + ")$"
}
