package logger

import "testing"

func TestMaskEmail(t *testing.T) {
	cases := map[string]string{
		"anna.k@carrier.example": "ann***@carrier.example",
		"al@x.io":                "al***@x.io",
		"":                       "",
		"not-an-email":           "***",
	}
	for in, want := range cases {
		if got := MaskEmail(in); got != want {
			t.Fatalf("MaskEmail(%q) = %q, want %q", in, got, want)
		}
	}
}

func TestMaskIP(t *testing.T) {
	cases := map[string]string{
		"192.168.1.100": "192.168.*.*",
		"2001:0db8:85a3:0000:0000:8a2e:0370:7334": "2001:0db8:85a3:0000:*:*:*:*",
		"":      "",
		"bogus": "***",
	}
	for in, want := range cases {
		if got := MaskIP(in); got != want {
			t.Fatalf("MaskIP(%q) = %q, want %q", in, got, want)
		}
	}
}
