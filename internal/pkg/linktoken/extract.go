// Package linktoken pulls a one-time code out of whatever the user pasted
// into the code field: the bare code, or a whole confirmation link.
package linktoken

import (
	"regexp"

	xerrors "ordering-service/internal/pkg/errors"
)

const CodeLength = 6

// Matcher returns the code it recognises in text, if any.
type Matcher func(text string) (string, bool)

var (
	// "token=" must not be the tail of a longer parameter name such as
	// confirmation_token.
	tokenParam             = regexp.MustCompile(`(?:^|[^A-Za-z0-9_])token=([A-Za-z0-9]{6})(?:[^A-Za-z0-9]|$)`)
	confirmationTokenParam = regexp.MustCompile(`confirmation_token=([A-Za-z0-9]{6})(?:[^A-Za-z0-9]|$)`)
	bareRun                = regexp.MustCompile(`(?:^|[^A-Za-z0-9])([A-Za-z0-9]{6})(?:[^A-Za-z0-9]|$)`)
)

func submatch(re *regexp.Regexp) Matcher {
	return func(text string) (string, bool) {
		m := re.FindStringSubmatch(text)
		if m == nil {
			return "", false
		}
		return m[1], true
	}
}

// Matchers in priority order. The first one that matches wins.
var Matchers = []Matcher{
	submatch(tokenParam),
	submatch(confirmationTokenParam),
	submatch(bareRun),
}

// Extract returns the code found in text or ErrLinkMalformed.
func Extract(text string) (string, error) {
	for _, match := range Matchers {
		if code, ok := match(text); ok {
			return code, nil
		}
	}
	return "", xerrors.ErrLinkMalformed
}
