package identity

import "testing"

func TestCanonicalURL(t *testing.T) {
	tests := []struct {
		name string
		in   string
		want string
	}{
		{
			"already canonical",
			"https://fr.renew.auto/vehicle/detail/abc.html",
			"https://fr.renew.auto/vehicle/detail/abc.html",
		},
		{
			"uppercase scheme and host",
			"HTTPS://FR.Renew.AUTO/vehicle/detail/abc.html",
			"https://fr.renew.auto/vehicle/detail/abc.html",
		},
		{
			"tracking params stripped",
			"https://fr.renew.auto/detail/abc.html?utm_source=mail&utm_campaign=x&id=42",
			"https://fr.renew.auto/detail/abc.html?id=42",
		},
		{
			"gclid and fbclid stripped",
			"https://fr.renew.auto/detail/abc.html?gclid=123&fbclid=456",
			"https://fr.renew.auto/detail/abc.html",
		},
		{
			"fragment dropped",
			"https://fr.renew.auto/detail/abc.html#photos",
			"https://fr.renew.auto/detail/abc.html",
		},
		{
			"trailing slash trimmed",
			"https://fr.renew.auto/detail/abc/",
			"https://fr.renew.auto/detail/abc",
		},
		{
			"surrounding whitespace",
			"  https://fr.renew.auto/detail/abc.html  ",
			"https://fr.renew.auto/detail/abc.html",
		},
		{
			"unparseable input returned trimmed",
			" not a url ",
			"not a url",
		},
	}

	for _, tt := range tests {
		if got := CanonicalURL(tt.in); got != tt.want {
			t.Fatalf("%s: CanonicalURL(%q) = %q, want %q", tt.name, tt.in, got, tt.want)
		}
	}
}

func TestCanonicalURL_Stable(t *testing.T) {
	a := CanonicalURL("https://fr.renew.auto/detail/abc.html?utm_medium=social")
	b := CanonicalURL("https://FR.RENEW.AUTO/detail/abc.html#top")
	if a != b {
		t.Fatalf("variants must key identically: %q vs %q", a, b)
	}
}
