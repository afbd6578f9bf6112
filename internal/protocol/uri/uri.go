package uri

import (
	"errors"
	"fmt"
	"net/url"
	"strings"

	"keybridge/internal/domain"
)

var (
	ErrMissingScheme = errors.New("token must start with bunker:// or nostrconnect://")
	ErrBadPubKey     = errors.New("pubkey must be 64 hex characters")
	ErrNoRelay       = errors.New("token must name at least one relay")
	ErrBadRelay      = errors.New("relay must be a ws:// or wss:// url")
)

// Parse turns a pairing token into a connection descriptor.
//
// Accepted forms:
//
//	bunker://<64-hex>?relay=<url>[&relay=<url>...][&secret=<s>][&name=<label>]
//	nostrconnect://<64-hex>?relay=<url>[...]&secret=<s>&perms=<csv>&name=<label>
//
// Nothing is defaulted: a token without a relay is an error.
func Parse(token string) (domain.ConnectionDescriptor, error) {
	token = strings.TrimSpace(token)

	var scheme domain.Scheme
	switch {
	case strings.HasPrefix(token, string(domain.SchemeBunker)+"://"):
		scheme = domain.SchemeBunker
	case strings.HasPrefix(token, string(domain.SchemeNostrConnect)+"://"):
		scheme = domain.SchemeNostrConnect
	default:
		return domain.ConnectionDescriptor{}, ErrMissingScheme
	}

	u, err := url.Parse(token)
	if err != nil {
		return domain.ConnectionDescriptor{}, fmt.Errorf("parse %s token: %w", scheme, err)
	}

	pubkey := strings.ToLower(u.Host)
	if !isHex64(pubkey) {
		return domain.ConnectionDescriptor{}, fmt.Errorf("%w: got %q", ErrBadPubKey, u.Host)
	}

	q := u.Query()
	relays, err := normalizeRelays(q["relay"])
	if err != nil {
		return domain.ConnectionDescriptor{}, err
	}

	return domain.ConnectionDescriptor{
		Scheme:       scheme,
		RemotePubKey: pubkey,
		Relays:       relays,
		Secret:       q.Get("secret"),
		Perms:        splitPerms(q.Get("perms")),
		Name:         q.Get("name"),
	}, nil
}

// Format renders d back into token form. Parse(Format(d)) == d.
func Format(d domain.ConnectionDescriptor) string {
	q := url.Values{}
	for _, r := range d.Relays {
		q.Add("relay", r)
	}
	if d.Secret != "" {
		q.Set("secret", d.Secret)
	}
	if len(d.Perms) > 0 {
		q.Set("perms", strings.Join(d.Perms, ","))
	}
	if d.Name != "" {
		q.Set("name", d.Name)
	}
	scheme := d.Scheme
	if scheme == "" {
		scheme = domain.SchemeBunker
	}
	return string(scheme) + "://" + d.RemotePubKey + "?" + q.Encode()
}

func normalizeRelays(raw []string) ([]string, error) {
	seen := make(map[string]struct{}, len(raw))
	out := make([]string, 0, len(raw))
	for _, r := range raw {
		r = strings.TrimSpace(r)
		if r == "" {
			continue
		}
		ru, err := url.Parse(r)
		if err != nil || (ru.Scheme != "ws" && ru.Scheme != "wss") || ru.Host == "" {
			return nil, fmt.Errorf("%w: %q", ErrBadRelay, r)
		}
		if _, dup := seen[r]; dup {
			continue
		}
		seen[r] = struct{}{}
		out = append(out, r)
	}
	if len(out) == 0 {
		return nil, ErrNoRelay
	}
	return out, nil
}

func splitPerms(csv string) []string {
	if strings.TrimSpace(csv) == "" {
		return nil
	}
	var out []string
	for _, p := range strings.Split(csv, ",") {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}

func isHex64(s string) bool {
	if len(s) != 64 {
		return false
	}
	for i := 0; i < len(s); i++ {
		c := s[i]
		if (c < '0' || c > '9') && (c < 'a' || c > 'f') {
			return false
		}
	}
	return true
}
