package uri_test

import (
	"errors"
	"reflect"
	"strings"
	"testing"

	"keybridge/internal/domain"
	"keybridge/internal/protocol/uri"
)

var pub = strings.Repeat("ab", 32)

func TestParse_Bunker(t *testing.T) {
	tok := "bunker://" + strings.ToUpper(pub) +
		"?relay=wss://relay.example&relay=wss://two.example&secret=s3cret&name=My%20Bunker"
	d, err := uri.Parse(tok)
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	if d.Scheme != domain.SchemeBunker {
		t.Fatalf("scheme = %q", d.Scheme)
	}
	if d.RemotePubKey != pub {
		t.Fatalf("pubkey = %q, want lower-cased %q", d.RemotePubKey, pub)
	}
	if want := []string{"wss://relay.example", "wss://two.example"}; !reflect.DeepEqual(d.Relays, want) {
		t.Fatalf("relays = %v, want %v", d.Relays, want)
	}
	if d.Secret != "s3cret" || d.Name != "My Bunker" {
		t.Fatalf("secret/name = %q/%q", d.Secret, d.Name)
	}
}

func TestParse_NostrConnect(t *testing.T) {
	tok := "nostrconnect://" + pub + "?relay=wss%3A%2F%2Frelay.example&secret=x&perms=sign_event%3A1,nip44_encrypt&name=app"
	d, err := uri.Parse(tok)
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	if d.Scheme != domain.SchemeNostrConnect {
		t.Fatalf("scheme = %q", d.Scheme)
	}
	if want := []string{"sign_event:1", "nip44_encrypt"}; !reflect.DeepEqual(d.Perms, want) {
		t.Fatalf("perms = %v, want %v", d.Perms, want)
	}
	if d.Relays[0] != "wss://relay.example" {
		t.Fatalf("relay = %q", d.Relays[0])
	}
}

func TestParse_DedupesRelays(t *testing.T) {
	d, err := uri.Parse("bunker://" + pub + "?relay=wss://a.example&relay=wss://a.example")
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	if len(d.Relays) != 1 {
		t.Fatalf("relays = %v", d.Relays)
	}
}

func TestParse_Errors(t *testing.T) {
	cases := []struct {
		name  string
		token string
		want  error
	}{
		{"no scheme", pub + "?relay=wss://r.example", uri.ErrMissingScheme},
		{"http scheme", "https://" + pub + "?relay=wss://r.example", uri.ErrMissingScheme},
		{"short pubkey", "bunker://abcd?relay=wss://r.example", uri.ErrBadPubKey},
		{"non hex pubkey", "bunker://" + strings.Repeat("zz", 32) + "?relay=wss://r.example", uri.ErrBadPubKey},
		{"no relay", "bunker://" + pub, uri.ErrNoRelay},
		{"empty relay", "bunker://" + pub + "?relay=&secret=x", uri.ErrNoRelay},
		{"http relay", "bunker://" + pub + "?relay=https://r.example", uri.ErrBadRelay},
	}
	for _, tc := range cases {
		_, err := uri.Parse(tc.token)
		if !errors.Is(err, tc.want) {
			t.Fatalf("%s: want %v, got %v", tc.name, tc.want, err)
		}
	}
}

func TestFormat_RoundTrip(t *testing.T) {
	in := domain.ConnectionDescriptor{
		Scheme:       domain.SchemeBunker,
		RemotePubKey: pub,
		Relays:       []string{"wss://a.example", "wss://b.example/path"},
		Secret:       "abc",
		Perms:        []string{"sign_event:1", "nip04_encrypt"},
		Name:         "label with space",
	}
	out, err := uri.Parse(uri.Format(in))
	if err != nil {
		t.Fatalf("Parse(Format): %v", err)
	}
	if !reflect.DeepEqual(in, out) {
		t.Fatalf("round trip mismatch:\n in  %+v\n out %+v", in, out)
	}
}
