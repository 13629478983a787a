package eql

import (
	"sort"
	"strings"
)

// Collect walks the chain and reports, for every path prefix, the attribute
// names the chain touches directly below it. The root level is keyed by "".
// When prefix is non-empty only paths under it are collected, relative to it.
//
// For "customer.address.city == ?" the result is
// {"": [customer], "customer": [address], "customer.address": [city]}.
func Collect(chain Chain, prefix string) map[string][]string {
	sets := make(map[string]map[string]struct{})
	add := func(level, name string) {
		s, ok := sets[level]
		if !ok {
			s = make(map[string]struct{})
			sets[level] = s
		}
		s[name] = struct{}{}
	}

	for _, e := range chain {
		for _, v := range e.Operands() {
			if !v.IsAttribute() {
				continue
			}
			path, ok := StripPrefix(v.Path, prefix)
			if !ok {
				continue
			}
			segs := strings.Split(path, ".")
			for i, seg := range segs {
				add(strings.Join(segs[:i], "."), seg)
			}
		}
	}

	out := make(map[string][]string, len(sets))
	for level, s := range sets {
		names := make([]string, 0, len(s))
		for n := range s {
			names = append(names, n)
		}
		sort.Strings(names)
		out[level] = names
	}
	return out
}

// StripPrefix removes a leading "prefix." from path. It reports false when
// path does not live under prefix. An empty prefix matches everything.
func StripPrefix(path, prefix string) (string, bool) {
	if prefix == "" {
		return path, true
	}
	rest, ok := strings.CutPrefix(path, prefix+".")
	if !ok || rest == "" {
		return "", false
	}
	return rest, true
}
