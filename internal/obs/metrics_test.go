package obs

import "testing"

func TestCanonicalPath(t *testing.T) {
	cases := map[string]string{
		"":                                "/",
		"/metrics":                        "/metrics",
		"/v1/invoices/abc":                "/v1/invoices/:id",
		"/v1/invoices/abc/finalize":       "/v1/invoices/:id/finalize",
		"/v1/invoices/abc/extra/deep":     "/v1/invoices/abc/extra/deep",
		"/v1/usage/user-1":                "/v1/usage/:id",
		"/v1/usage/user-1?period=2026-01": "/v1/usage/:id",
		"/v1/ai/generate":                 "/v1/ai/generate",
	}
	for input, expected := range cases {
		if got := CanonicalPath(input); got != expected {
			t.Fatalf("CanonicalPath(%q)=%q, want %q", input, got, expected)
		}
	}
}
