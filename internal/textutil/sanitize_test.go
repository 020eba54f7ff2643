package textutil_test

import (
	"testing"

	"riptide/internal/textutil"
)

func TestSanitizerSegment(t *testing.T) {
	cases := []struct {
		name        string
		replacement string
		input       string
		want        string
	}{
		{"slash", "-", "AC/DC", "AC-DC"},
		{"reserved", "_", `a:b*c?d"e<f>g|h\i`, "a_b_c_d_e_f_g_h_i"},
		{"drop", "", "What?", "What"},
		{"whitespace", "-", "  two   spaces\tand tab  ", "two spaces and tab"},
		{"control", "-", "bell\x07char", "bellchar"},
		{"trailing dots", "-", "Vol. 2...", "Vol. 2"},
		{"nfc", "-", "Beyonce\u0301", "Beyonc\u00e9"},
		{"empty", "-", "   ", ""},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			got := textutil.NewSanitizer(tc.replacement).Segment(tc.input)
			if got != tc.want {
				t.Fatalf("Segment(%q) = %q, want %q", tc.input, got, tc.want)
			}
		})
	}
}

func TestSanitizeFileName(t *testing.T) {
	if got := textutil.SanitizeFileName("a/b"); got != "a-b" {
		t.Fatalf("unexpected result %q", got)
	}
}
