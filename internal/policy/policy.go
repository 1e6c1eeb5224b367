// Package policy implements the glob-based dispatch policy of spec.md
// §4.H: ordered (filename-glob, path-glob) entries per policy kind
// (passthru, memory, zerocopy, keep), matched with shell-style `*`/`?`
// wildcards rather than regular expressions.
package policy

// Kind is one of the four policy lists spec.md §4.H names.
type Kind int

const (
	Passthru Kind = iota
	Memory
	Zerocopy
	Keep
)

// Entry is one (filename-glob, path-glob) pair.
type Entry struct {
	FilenameGlob string
	PathGlob     string
}

// Policy holds the ordered entry lists for each Kind and answers
// match_any queries against a (filename, path) pair.
type Policy struct {
	entries map[Kind][]Entry
}

// New returns an empty policy: every match_any call returns its default
// until entries are added.
func New() *Policy {
	return &Policy{entries: make(map[Kind][]Entry)}
}

// Add appends an entry to kind's list, in configuration order (later
// Add calls are checked after earlier ones, but match_any only needs
// "any", so order does not affect the boolean result — it is preserved
// for introspection/debugging parity with spec.md's "ordered lists").
func (p *Policy) Add(kind Kind, filenameGlob, pathGlob string) {
	p.entries[kind] = append(p.entries[kind], Entry{FilenameGlob: filenameGlob, PathGlob: pathGlob})
}

// MatchAny reports whether any entry in kind's list matches
// (filename, filepath); if the list is empty, it returns deflt (spec.md
// §4.H `match_any(filepath, kind, default=false)`).
func (p *Policy) MatchAny(filename, filepath string, kind Kind, deflt bool) bool {
	list := p.entries[kind]
	if len(list) == 0 {
		return deflt
	}
	for _, e := range list {
		if globMatch(e.FilenameGlob, filename) && globMatch(e.PathGlob, filepath) {
			return true
		}
	}
	return false
}

// globMatch matches pattern against name using `*` (any run of characters,
// including `/`) and `?` (exactly one character) wildcards (spec.md §4.H
// "globs use * and ? wildcards, not regular expressions"). stdlib
// path.Match implements a similar grammar but refuses to let `*` cross a
// `/`, which would make a path-glob like "/particles/*" unable to match
// "/particles/sub/velocity" and a bare "*" unable to match anything with a
// path separator at all -- not what a path-glob needs, so this is a small
// hand-rolled matcher instead.
func globMatch(pattern, name string) bool {
	return matchHere(pattern, name)
}

func matchHere(pattern, name string) bool {
	if pattern == "" {
		return name == ""
	}
	switch pattern[0] {
	case '*':
		if matchHere(pattern[1:], name) {
			return true
		}
		for i := 0; i < len(name); i++ {
			if matchHere(pattern[1:], name[i+1:]) {
				return true
			}
		}
		return false
	case '?':
		if name == "" {
			return false
		}
		return matchHere(pattern[1:], name[1:])
	default:
		if name == "" || name[0] != pattern[0] {
			return false
		}
		return matchHere(pattern[1:], name[1:])
	}
}
