package audit_test

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/spounge-ai/auditchain/internal/audit"
)

func TestSanitizeRedactsAtDepth(t *testing.T) {
	in := map[string]any{
		"user": map[string]any{
			"email":    "x@y",
			"password": "p",
		},
		"apiKey": "k",
		"items": []any{
			map[string]any{"AccessToken": "t", "id": 7},
		},
	}

	out := audit.Sanitize(in).(map[string]any)

	user := out["user"].(map[string]any)
	assert.Equal(t, "x@y", user["email"])
	assert.Equal(t, audit.Redacted, user["password"])
	assert.Equal(t, audit.Redacted, out["apiKey"])

	item := out["items"].([]any)[0].(map[string]any)
	assert.Equal(t, audit.Redacted, item["AccessToken"])
	assert.Equal(t, 7, item["id"])

	// input untouched
	assert.Equal(t, "p", in["user"].(map[string]any)["password"])
}

func TestSanitizeIdempotent(t *testing.T) {
	in := map[string]any{
		"creditCardNumber": "4111",
		"nested":           map[string]any{"clientSecret": "s", "ok": true},
	}
	once := audit.Sanitize(in)
	assert.Equal(t, once, audit.Sanitize(once))
}

func TestSanitizeMatchesKeysNotValues(t *testing.T) {
	out := audit.SanitizeMap(map[string]any{"note": "my password is hunter2"})
	assert.Equal(t, "my password is hunter2", out["note"])
	assert.Nil(t, audit.SanitizeMap(nil))
}

func TestSanitizeScalarsPassThrough(t *testing.T) {
	assert.Equal(t, "plain", audit.Sanitize("plain"))
	assert.Equal(t, 3.5, audit.Sanitize(3.5))
	assert.Nil(t, audit.Sanitize(nil))
}

func TestIsSensitiveKey(t *testing.T) {
	tests := []struct {
		key  string
		want bool
	}{
		{"password", true},
		{"newPassword", true},
		{"refresh_token", true},
		{"SSN", true},
		{"apikey", true},
		{"email", false},
		{"username", false},
	}
	for _, tt := range tests {
		t.Run(tt.key, func(t *testing.T) {
			assert.Equal(t, tt.want, audit.IsSensitiveKey(tt.key))
		})
	}
}

type credentials struct {
	Email    string `json:"email"`
	Password string `json:"password"`
	Retries  int    `json:"retries"`
}

func TestSanitizeTypedPayloads(t *testing.T) {
	t.Run("struct", func(t *testing.T) {
		out := audit.Sanitize(credentials{Email: "a@b.com", Password: "hunter2", Retries: 3}).(map[string]any)
		assert.Equal(t, "a@b.com", out["email"])
		assert.Equal(t, audit.Redacted, out["password"])
		assert.Equal(t, json.Number("3"), out["retries"])
	})

	t.Run("pointer to struct", func(t *testing.T) {
		out := audit.Sanitize(&credentials{Password: "hunter2"}).(map[string]any)
		assert.Equal(t, audit.Redacted, out["password"])
	})

	t.Run("slice of string maps", func(t *testing.T) {
		out := audit.Sanitize([]map[string]string{{"password": "hunter2", "user": "u"}}).([]any)
		item := out[0].(map[string]any)
		assert.Equal(t, audit.Redacted, item["password"])
		assert.Equal(t, "u", item["user"])
	})

	t.Run("nested typed maps", func(t *testing.T) {
		out := audit.Sanitize(map[string]map[string]string{"creds": {"apiKey": "k", "region": "eu"}}).(map[string]any)
		creds := out["creds"].(map[string]any)
		assert.Equal(t, audit.Redacted, creds["apiKey"])
		assert.Equal(t, "eu", creds["region"])
	})

	t.Run("struct inside generic map", func(t *testing.T) {
		in := map[string]any{"login": credentials{Password: "hunter2"}}
		out := audit.Sanitize(in).(map[string]any)
		assert.Equal(t, audit.Redacted, out["login"].(map[string]any)["password"])
		assert.Equal(t, "hunter2", in["login"].(credentials).Password)
	})

	t.Run("unserializable", func(t *testing.T) {
		out := audit.Sanitize(map[string]any{"cb": func() {}}).(map[string]any)
		assert.Equal(t, audit.Redacted, out["cb"])
	})
}
