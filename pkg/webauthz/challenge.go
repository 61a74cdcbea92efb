package webauthz

import (
	"net/http"
	"net/url"
	"strings"
)

const (
	bearerScheme = "bearer"

	paramDiscoveryURI = "webauthz_discovery_uri"
	paramRealm        = "realm"
	paramScope        = "scope"
	paramPath         = "path"
)

// tchar from RFC 7230 section 3.2.6.
const charsetTChar = "!#$%&'*+-.^_`|~" +
	"0123456789" +
	"ABCDEFGHIJKLMNOPQRSTUVWXYZ" +
	"abcdefghijklmnopqrstuvwxyz"

// ParseChallenge looks for a webauthz challenge in the WWW-Authenticate
// headers of resp. It returns nil when there is none; that is not an error.
// ResourceURI is taken from the request that produced resp, if known.
func ParseChallenge(resp *http.Response) *Challenge {
	if resp == nil {
		return nil
	}
	for _, value := range resp.Header.Values("WWW-Authenticate") {
		challenge := ParseChallengeHeader(value)
		if challenge == nil {
			continue
		}
		if resp.Request != nil && resp.Request.URL != nil {
			challenge.ResourceURI = resp.Request.URL.String()
		}
		return challenge
	}
	return nil
}

// ParseChallengeHeader parses a single WWW-Authenticate value. It returns a
// Challenge only if the scheme is Bearer (any case) and the parameters
// include webauthz_discovery_uri. Unknown parameters are ignored.
//
// Quoted values may contain commas and backslash escapes. Unquoted values
// run to the next comma. Every value is percent-decoded; a value with a
// malformed escape is kept as received.
func ParseChallengeHeader(value string) *Challenge {
	rest := strings.TrimSpace(value)
	scheme := rest[:len(rest)-len(strings.TrimLeft(rest, charsetTChar))]
	if !strings.EqualFold(scheme, bearerScheme) {
		return nil
	}
	rest = rest[len(scheme):]
	if rest != "" && rest[0] != ' ' && rest[0] != '\t' {
		// Scheme must be followed by whitespace or nothing.
		return nil
	}

	params, ok := scanAuthParams(rest)
	if !ok {
		return nil
	}
	discoveryURI := params[paramDiscoveryURI]
	if discoveryURI == "" {
		return nil
	}
	return &Challenge{
		Realm:        params[paramRealm],
		Scope:        params[paramScope],
		Path:         params[paramPath],
		DiscoveryURI: discoveryURI,
	}
}

// scanAuthParams reads a comma separated auth-param list. Parameters that
// lack an '=' are skipped; an unterminated quoted string makes the whole
// list invalid.
func scanAuthParams(input string) (map[string]string, bool) {
	params := make(map[string]string)
	rest := input
	for {
		rest = strings.TrimLeft(rest, " \t,")
		if rest == "" {
			return params, true
		}

		key := rest[:len(rest)-len(strings.TrimLeft(rest, charsetTChar))]
		if key == "" {
			rest = skipParam(rest)
			continue
		}
		rest = strings.TrimLeft(rest[len(key):], " \t")
		if rest == "" || rest[0] != '=' {
			rest = skipParam(rest)
			continue
		}
		rest = strings.TrimLeft(rest[1:], " \t")

		var raw string
		if rest != "" && rest[0] == '"' {
			var ok bool
			raw, rest, ok = scanQuotedString(rest)
			if !ok {
				return nil, false
			}
		} else {
			end := strings.IndexByte(rest, ',')
			if end < 0 {
				end = len(rest)
			}
			raw = strings.TrimSpace(rest[:end])
			rest = rest[end:]
		}

		params[strings.ToLower(key)] = percentDecode(raw)
		rest = skipParam(rest)
	}
}

// skipParam discards input up to the next comma outside a quoted string.
func skipParam(input string) string {
	for i := 0; i < len(input); i++ {
		switch input[i] {
		case ',':
			return input[i:]
		case '"':
			_, rest, ok := scanQuotedString(input[i:])
			if !ok {
				return ""
			}
			return skipParam(rest)
		}
	}
	return ""
}

// scanQuotedString reads an RFC 7230 quoted-string starting at input[0].
func scanQuotedString(input string) (value, rest string, ok bool) {
	var b strings.Builder
	for i := 1; i < len(input); i++ {
		switch c := input[i]; c {
		case '"':
			return b.String(), input[i+1:], true
		case '\\':
			i++
			if i == len(input) {
				return "", "", false
			}
			b.WriteByte(input[i])
		default:
			b.WriteByte(c)
		}
	}
	return "", "", false
}

func percentDecode(s string) string {
	decoded, err := url.PathUnescape(s)
	if err != nil {
		return s
	}
	return decoded
}
