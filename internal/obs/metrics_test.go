package obs

import "testing"

func TestCanonicalPath(t *testing.T) {
	cases := map[string]string{
		"":                              "/",
		"/metrics":                      "/metrics",
		"/v1/auth/login":                "/v1/auth/login",
		"/v1/officials/42":              "/v1/officials/:id",
		"/v1/officials/42/unlock":       "/v1/officials/:id/unlock",
		"/v1/vehicles/KBX-112/assign":   "/v1/vehicles/:id/assign",
		"/v1/officials/42/a/b":          "/v1/officials/42/a/b",
		"/v1/auth/otp/verify?resend=no": "/v1/auth/otp/verify",
	}
	for input, expected := range cases {
		if got := CanonicalPath(input); got != expected {
			t.Fatalf("CanonicalPath(%q)=%q, want %q", input, got, expected)
		}
	}
}
