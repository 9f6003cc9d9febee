package storage

import "testing"

func TestSanitizeName(t *testing.T) {
	cases := map[string]string{
		"My Song (final).mp3": "My_Song__final_.mp3",
		"bass-v2.wav":         "bass-v2.wav",
		"":                    "file",
		"ünïcode.flac":        "_n_code.flac",
	}
	for in, want := range cases {
		if got := SanitizeName(in); got != want {
			t.Fatalf("SanitizeName(%q) = %q, want %q", in, got, want)
		}
	}
}

func TestKeysAreNamespaced(t *testing.T) {
	if got := AssetKey("ws1", "a1", "take 1.mp3"); got != "ws1/a1/take_1.mp3" {
		t.Fatalf("unexpected asset key %q", got)
	}
	if got := StemKey("a1", "s1", "drums.wav"); got != "a1/stems/s1-drums.wav" {
		t.Fatalf("unexpected stem key %q", got)
	}
}

func TestPublicURLRoundTrip(t *testing.T) {
	base := "https://cdn.example.com/audio/"
	key := "ws1/a1/take_1.mp3"
	u := PublicURL(base, key)
	if u != "https://cdn.example.com/audio/ws1/a1/take_1.mp3" {
		t.Fatalf("unexpected url %q", u)
	}
	got, ok := KeyFromURL(base, u)
	if !ok || got != key {
		t.Fatalf("KeyFromURL = %q, %v", got, ok)
	}
}

func TestKeyFromURLRejectsForeignURLs(t *testing.T) {
	base := "https://cdn.example.com/audio"
	for _, raw := range []string{
		"https://evil.example.com/audio/ws1/a1/x.mp3",
		"http://cdn.example.com/audio/ws1/a1/x.mp3",
		"https://cdn.example.com/other/ws1/a1/x.mp3",
		"https://cdn.example.com/audio/",
		"https://cdn.example.com/audio/ws1/../../etc/passwd",
		"://bad",
	} {
		if key, ok := KeyFromURL(base, raw); ok {
			t.Fatalf("expected %q to be rejected, got key %q", raw, key)
		}
	}
}
