package redact

import "testing"

func TestSecrets(t *testing.T) {
	tests := []struct {
		name string
		in   string
		want string
	}{
		{name: "empty", in: "", want: ""},
		{name: "plain", in: "model refused the request", want: "model refused the request"},
		{name: "bearer", in: "upstream said: Authorization: Bearer eyJhbGciOi.x.y rejected", want: "upstream said: Authorization: Bearer <redacted> rejected"},
		{name: "api key kv", in: "bad request api_key=AIzaSyExample", want: "bad request <redacted_kv>"},
		{name: "query key", in: `Post "https://generativelanguage.googleapis.com/v1beta/models?key=AIza123&alt=json": timeout`, want: `Post "https://generativelanguage.googleapis.com/v1beta/models?key=<redacted>&alt=json": timeout`},
		{name: "dsn", in: "connect postgres://app:hunter2@db:5432/portal failed", want: "connect postgres://app:<redacted>@db:5432/portal failed"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := Secrets(tt.in); got != tt.want {
				t.Fatalf("expected %q, got %q", tt.want, got)
			}
		})
	}
}
