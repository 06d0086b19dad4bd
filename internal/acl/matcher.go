package acl

import (
	"net"
	"regexp"
	"strings"
)

// section is one of [bypass]/[proxy]/[reject], compiled into the pattern
// classes evaluate checks in order: exact domain, suffix domain, regex,
// then (for IP destinations) CIDR.
type section struct {
	exact  map[string]struct{}
	suffix *suffixTrie
	regex  []*regexp.Regexp
	cidrs  []*net.IPNet
}

func newSection() *section {
	return &section{
		exact:  make(map[string]struct{}),
		suffix: newSuffixTrie(),
	}
}

func (s *section) addExact(host string) {
	s.exact[host] = struct{}{}
}

func (s *section) addSuffix(suffix string) {
	s.suffix.insert(suffix)
}

func (s *section) addRegex(re *regexp.Regexp) {
	s.regex = append(s.regex, re)
}

func (s *section) addCIDR(n *net.IPNet) {
	s.cidrs = append(s.cidrs, n)
}

// matchHost checks the exact/suffix/regex classes against a normalized
// host string (IP literal's textual form, or a lowercased IDNA-normalized
// domain). It does not consult the CIDR class; matchIP does.
func (s *section) matchHost(host string) bool {
	if _, ok := s.exact[host]; ok {
		return true
	}
	if s.suffix.matches(host) {
		return true
	}
	for _, re := range s.regex {
		if re.MatchString(host) {
			return true
		}
	}
	return false
}

// matchIP checks the CIDR class against an IP literal. Only called for
// destinations that are IP literals; a domain destination is never
// implicitly resolved for this check.
func (s *section) matchIP(ip net.IP) bool {
	for _, n := range s.cidrs {
		if n.Contains(ip) {
			return true
		}
	}
	return false
}

// suffixTrie indexes domain-suffix patterns by reversed label so a lookup
// costs O(number of labels in the host), not O(number of patterns).
type suffixTrie struct {
	children map[string]*suffixTrie
	terminal bool
}

func newSuffixTrie() *suffixTrie {
	return &suffixTrie{children: make(map[string]*suffixTrie)}
}

// insert adds a suffix pattern (without its leading "." or "*.", e.g.
// "foo.example") to the trie.
func (t *suffixTrie) insert(pattern string) {
	labels := reverseLabels(pattern)
	node := t
	for _, label := range labels {
		child, ok := node.children[label]
		if !ok {
			child = newSuffixTrie()
			node.children[label] = child
		}
		node = child
	}
	node.terminal = true
}

// matches reports whether host has one of the trie's patterns as a
// proper suffix (i.e. with at least one label preceding the match).
func (t *suffixTrie) matches(host string) bool {
	labels := reverseLabels(host)
	node := t
	for i, label := range labels {
		child, ok := node.children[label]
		if !ok {
			return false
		}
		node = child
		if node.terminal && i+1 < len(labels) {
			return true
		}
	}
	return false
}

func reverseLabels(host string) []string {
	parts := strings.Split(host, ".")
	for i, j := 0, len(parts)-1; i < j; i, j = i+1, j-1 {
		parts[i], parts[j] = parts[j], parts[i]
	}
	return parts
}
