// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package classfilter

import (
	"fmt"
	"regexp"
)

// Filter decides whether a class named in a remote-originated payload
// may be deserialized on this side. Implementations must be pure,
// non-blocking predicates: IsBlacklisted runs on the decode path,
// possibly from several goroutines at once, and must be safe for
// concurrent read-only use.
type Filter interface {
	// IsBlacklisted reports whether className must not be
	// deserialized.
	IsBlacklisted(className string) bool
}

// AcceptAll returns the default permissive filter: no class is
// rejected. A channel built without an explicit filter uses this.
func AcceptAll() Filter { return acceptAll{} }

type acceptAll struct{}

func (acceptAll) IsBlacklisted(string) bool { return false }

// PatternFilter rejects any class whose name matches one of a set of
// regular expressions. The pattern set is fixed at construction, so
// concurrent use needs no synchronization.
type PatternFilter struct {
	patterns []*regexp.Regexp
}

// NewPattern compiles the given regular expressions into a deny-list
// filter. Returns an error naming the first pattern that does not
// compile.
func NewPattern(patterns ...string) (*PatternFilter, error) {
	compiled := make([]*regexp.Regexp, 0, len(patterns))
	for _, pattern := range patterns {
		re, err := regexp.Compile(pattern)
		if err != nil {
			return nil, fmt.Errorf("compiling class filter pattern %q: %w", pattern, err)
		}
		compiled = append(compiled, re)
	}
	return &PatternFilter{patterns: compiled}, nil
}

// IsBlacklisted reports whether className matches any deny pattern.
func (f *PatternFilter) IsBlacklisted(className string) bool {
	for _, re := range f.patterns {
		if re.MatchString(className) {
			return true
		}
	}
	return false
}

// RejectedError reports that the class filter vetoed deserialization
// of a remote payload. The veto fires before the payload body is
// decoded, so the named class never had a chance to run code here.
type RejectedError struct {
	// Class is the rejected class name as it appeared on the wire.
	Class string
}

func (e *RejectedError) Error() string {
	return "rejected class " + e.Class
}

// Check consults filter for className and returns a *RejectedError on
// veto, nil otherwise. A nil filter is treated as [AcceptAll].
func Check(filter Filter, className string) error {
	if filter == nil {
		return nil
	}
	if filter.IsBlacklisted(className) {
		return &RejectedError{Class: className}
	}
	return nil
}
