package orangelog

import "testing"

func TestParseLevel(t *testing.T) {
	cases := map[string]string{"error": "error", "warn": "warn", "debug": "debug", "bogus": "info", "": "info"}
	for in, want := range cases {
		if got := parseLevel(in).String(); got != want {
			t.Errorf("parseLevel(%q) = %q, want %q", in, got, want)
		}
	}
}

func TestNewWithNoPathDoesNotPanic(t *testing.T) {
	log := New(Options{Level: "debug"})
	Component(log, "engine").Info().Msg("hello")
}
