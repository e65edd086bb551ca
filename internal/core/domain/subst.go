package domain

import (
	"regexp"
	"strings"

	"go.trai.ch/zerr"
	"mvdan.cc/sh/v3/shell"
	"mvdan.cc/sh/v3/syntax"
)

// tokenPattern matches a single substitution token. Brace groups never
// nest, so the body excludes braces.
var tokenPattern = regexp.MustCompile(`\{([^{}]+)\}`)

// SubstContext carries the values substitution tokens resolve to. All
// paths are absolute by the time resolution runs.
type SubstContext struct {
	EnvName   string
	EnvDir    string
	EnvTmpDir string
	WorkDir   string
	RootDir   string
	Runtime   string
	Posargs   []string
}

const posargsToken = "posargs"

// scalar resolves a non-posargs token, reporting whether it is known.
func (c *SubstContext) scalar(token string) (string, bool) {
	switch token {
	case "envname":
		return c.EnvName, true
	case "envdir":
		return c.EnvDir, true
	case "envtmpdir":
		return c.EnvTmpDir, true
	case "workdir":
		return c.WorkDir, true
	case "rootdir":
		return c.RootDir, true
	case "runtime":
		return c.Runtime, true
	default:
		return "", false
	}
}

// posargs resolves a posargs token body ("posargs" or "posargs:default"),
// returning the positional arguments or the fallback text split into words.
func (c *SubstContext) posargs(body string) ([]string, bool) {
	rest, ok := strings.CutPrefix(body, posargsToken)
	if !ok {
		return nil, false
	}
	switch {
	case rest == "":
		return c.Posargs, true
	case strings.HasPrefix(rest, ":"):
		if len(c.Posargs) > 0 {
			return c.Posargs, true
		}
		return strings.Fields(rest[1:]), true
	default:
		return nil, false
	}
}

// ExpandString substitutes every {token} in s. Positional arguments join
// with single spaces. Unknown tokens are collected and reported together
// as ErrUnresolvedSubstitution.
func (c *SubstContext) ExpandString(s string) (string, error) {
	var unresolved []string
	expanded := tokenPattern.ReplaceAllStringFunc(s, func(match string) string {
		body := match[1 : len(match)-1]
		if value, ok := c.scalar(body); ok {
			return value
		}
		if words, ok := c.posargs(body); ok {
			return strings.Join(words, " ")
		}
		unresolved = append(unresolved, body)
		return match
	})
	if len(unresolved) > 0 {
		err := zerr.With(ErrUnresolvedSubstitution, "tokens", strings.Join(unresolved, ", "))
		return "", zerr.With(err, "input", s)
	}
	return expanded, nil
}

// ExpandCommandLine substitutes tokens in a raw command line and splits it
// into an argv vector with shell word-splitting rules. Positional
// arguments are spliced as whole words regardless of their content.
// Dollar-variables pass through literally for the child process to see.
func (c *SubstContext) ExpandCommandLine(line string) ([]string, error) {
	var unresolved []string
	var quoteErr error
	expanded := tokenPattern.ReplaceAllStringFunc(line, func(match string) string {
		body := match[1 : len(match)-1]
		if value, ok := c.scalar(body); ok {
			quoted, err := syntax.Quote(value, syntax.LangBash)
			if err != nil {
				quoteErr = err
				return match
			}
			return quoted
		}
		if words, ok := c.posargs(body); ok {
			if body == posargsToken || len(c.Posargs) > 0 {
				spliced, err := quoteWords(words)
				if err != nil {
					quoteErr = err
					return match
				}
				return spliced
			}
			// Fallback text is part of the line; the author controls
			// its quoting.
			return strings.Join(words, " ")
		}
		unresolved = append(unresolved, body)
		return match
	})
	if quoteErr != nil {
		return nil, zerr.Wrap(quoteErr, "quoting substitution value")
	}
	if len(unresolved) > 0 {
		err := zerr.With(ErrUnresolvedSubstitution, "tokens", strings.Join(unresolved, ", "))
		return nil, zerr.With(err, "command", line)
	}

	args, err := shell.Fields(expanded, passthroughVar)
	if err != nil {
		err = zerr.Wrap(err, "splitting command line")
		return nil, zerr.With(err, "command", line)
	}
	return args, nil
}

// ExpandArgv substitutes tokens in an explicit argv vector. An element
// that is exactly a posargs token splices the positional arguments;
// everything else is scalar substitution, no re-splitting.
func (c *SubstContext) ExpandArgv(argv []string) ([]string, error) {
	out := make([]string, 0, len(argv))
	for _, elem := range argv {
		if body, ok := wholeToken(elem); ok {
			if words, ok := c.posargs(body); ok {
				out = append(out, words...)
				continue
			}
		}
		expanded, err := c.ExpandString(elem)
		if err != nil {
			return nil, err
		}
		out = append(out, expanded)
	}
	return out, nil
}

// wholeToken reports whether s consists of exactly one {token} and returns
// its body.
func wholeToken(s string) (string, bool) {
	m := tokenPattern.FindStringSubmatch(s)
	if m == nil || m[0] != s {
		return "", false
	}
	return m[1], true
}

func quoteWords(words []string) (string, error) {
	quoted := make([]string, 0, len(words))
	for _, w := range words {
		q, err := syntax.Quote(w, syntax.LangBash)
		if err != nil {
			return "", err
		}
		quoted = append(quoted, q)
	}
	return strings.Join(quoted, " "), nil
}

// passthroughVar keeps $NAME references literal during word splitting so
// the executed process receives them unchanged.
func passthroughVar(name string) string {
	return "$" + name
}
