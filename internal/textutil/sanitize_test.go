package textutil

import "testing"

func TestSanitizeToken(t *testing.T) {
	cases := []struct {
		in   string
		want string
	}{
		{"abandon", "abandon"},
		{"Abandon Ship!", "abandon_ship"},
		{"clip-a1", "clip-a1"},
		{"give up", "give_up"},
		{"../../etc/passwd", "etc_passwd"},
		{"", "unknown"},
		{"___", "unknown"},
		{"学校", "学校"},
		{"Straße", "straße"},
	}
	for _, tc := range cases {
		if got := SanitizeToken(tc.in); got != tc.want {
			t.Errorf("SanitizeToken(%q) = %q, want %q", tc.in, got, tc.want)
		}
	}
}
