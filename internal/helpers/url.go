package helpers

import (
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"net"
	"net/url"
	"path"
	"sort"
	"strings"
)

var trackingQueryParams = map[string]struct{}{
	"utm_source":   {},
	"utm_medium":   {},
	"utm_campaign": {},
	"utm_term":     {},
	"utm_content":  {},
	"utm_id":       {},
	"gclid":        {},
	"dclid":        {},
	"fbclid":       {},
	"msclkid":      {},
	"igshid":       {},
}

var defaultPorts = map[string]string{"http": "80", "https": "443"}

// CanonicalURL rewrites raw into the form used as a resource key.
// Scheme and host are lowercased (https when the scheme is missing), default
// ports and fragments are dropped, IPv6 hosts keep their brackets, the
// escaped path is cleaned with no trailing slash except for the root, tracking parameters are removed and the remaining
// query is sorted by key and then value.
func CanonicalURL(raw string) (string, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return "", errors.New("empty url")
	}
	u, err := parseLenient(raw)
	if err != nil {
		return "", err
	}

	u.Scheme = strings.ToLower(u.Scheme)
	if u.Scheme == "" {
		u.Scheme = "https"
	}
	host := strings.ToLower(u.Hostname())
	if host == "" {
		return "", errors.New("url missing host")
	}
	if port := u.Port(); port != "" && defaultPorts[u.Scheme] != port {
		host = net.JoinHostPort(host, port)
	} else if strings.Contains(host, ":") {
		host = "[" + host + "]"
	}
	u.Host = host
	u.Fragment = ""
	u.RawFragment = ""

	// Clean the escaped form so an encoded slash stays distinct from a separator.
	escaped := path.Clean("/" + u.EscapedPath())
	decoded, err := url.PathUnescape(escaped)
	if err != nil {
		return "", err
	}
	u.Path = decoded
	u.RawPath = escaped

	u.RawQuery = canonicalQuery(u.Query())
	u.ForceQuery = false
	return u.String(), nil
}

// URLFingerprint is the hex SHA-256 of the canonical form of raw.
func URLFingerprint(raw string) (string, error) {
	canonical, err := CanonicalURL(raw)
	if err != nil {
		return "", err
	}
	sum := sha256.Sum256([]byte(canonical))
	return hex.EncodeToString(sum[:]), nil
}

func canonicalQuery(q url.Values) string {
	keys := make([]string, 0, len(q))
	for k := range q {
		if _, drop := trackingQueryParams[strings.ToLower(k)]; drop {
			continue
		}
		keys = append(keys, k)
	}
	if len(keys) == 0 {
		return ""
	}
	sort.Strings(keys)
	var b strings.Builder
	for _, k := range keys {
		values := append([]string(nil), q[k]...)
		sort.Strings(values)
		for _, v := range values {
			if b.Len() > 0 {
				b.WriteByte('&')
			}
			b.WriteString(url.QueryEscape(k))
			if v != "" {
				b.WriteByte('=')
				b.WriteString(url.QueryEscape(v))
			}
		}
	}
	return b.String()
}

// parseLenient accepts schemeless input such as example.com/a or //example.com/a.
func parseLenient(raw string) (*url.URL, error) {
	u, err := url.Parse(raw)
	if err != nil {
		return nil, err
	}
	if u.Host != "" {
		return u, nil
	}
	if strings.HasPrefix(raw, "//") {
		return url.Parse("https:" + raw)
	}
	if u.Scheme == "" || !strings.Contains(raw, "://") {
		return url.Parse("https://" + raw)
	}
	return u, nil
}
