package config

import (
	"testing"
)

func TestFlatten_Nested(t *testing.T) {
	m := map[string]any{
		"http": map[string]any{
			"listen":          ":8790",
			"allowed_origins": []any{"https://host.example"},
		},
		"log_level": "info",
	}
	got := Flatten(m)
	if got["http.listen"] != ":8790" {
		t.Errorf("expected http.listen=:8790, got %v", got["http.listen"])
	}
	if origins, ok := got["http.allowed_origins"].([]any); !ok || len(origins) != 1 {
		t.Errorf("expected lists to stay leaf values, got %v", got["http.allowed_origins"])
	}
	if got["log_level"] != "info" {
		t.Errorf("expected log_level=info, got %v", got["log_level"])
	}
	if len(got) != 3 {
		t.Errorf("expected 3 keys, got %d", len(got))
	}
}

func TestFlatten_DeeplyNested(t *testing.T) {
	got := Flatten(map[string]any{
		"a": map[string]any{"b": map[string]any{"c": "deep"}},
	})
	if got["a.b.c"] != "deep" || len(got) != 1 {
		t.Errorf("expected a.b.c=deep only, got %v", got)
	}
}

func TestFlatten_EmptyNestedMap(t *testing.T) {
	got := Flatten(map[string]any{"a": map[string]any{}})
	if len(got) != 0 {
		t.Errorf("expected 0 keys (empty nested map produces nothing), got %d", len(got))
	}
}

func TestFlatten_MixedTypes(t *testing.T) {
	got := Flatten(map[string]any{
		"str":    "hello",
		"num":    42.0,
		"bool":   true,
		"nested": map[string]any{"val": "inside"},
	})
	if got["str"] != "hello" || got["num"] != 42.0 || got["bool"] != true || got["nested.val"] != "inside" {
		t.Errorf("unexpected flattening %v", got)
	}
}

func TestUnflatten_Nested(t *testing.T) {
	got := Unflatten(map[string]any{
		"keepalive.interval": "9m",
		"keepalive.enabled":  true,
		"log_level":          "info",
	})
	ka, ok := got["keepalive"].(map[string]any)
	if !ok {
		t.Fatalf("expected keepalive to be map, got %T", got["keepalive"])
	}
	if ka["interval"] != "9m" || ka["enabled"] != true {
		t.Errorf("unexpected keepalive %v", ka)
	}
	if got["log_level"] != "info" {
		t.Errorf("expected log_level=info, got %v", got["log_level"])
	}
}

func TestRoundTrip_FlattenUnflatten(t *testing.T) {
	original := map[string]any{
		"data_dir": "/home/test/.nbbridge",
		"jupyter": map[string]any{
			"base_url": "http://localhost:8888",
			"token":    "abc123",
		},
	}
	restored := Unflatten(Flatten(original))
	if restored["data_dir"] != original["data_dir"] {
		t.Errorf("data_dir mismatch: %v != %v", restored["data_dir"], original["data_dir"])
	}
	jup := restored["jupyter"].(map[string]any)
	orig := original["jupyter"].(map[string]any)
	if jup["base_url"] != orig["base_url"] || jup["token"] != orig["token"] {
		t.Errorf("jupyter mismatch: %v != %v", jup, orig)
	}
}

func TestMaskSecrets(t *testing.T) {
	tests := []struct {
		value any
		want  any
	}{
		{"123456:ABCdefGHIjkl", "***Ijkl"},
		{"abcd", "***abcd"},
		{"ab", "***ab"},
		{"", ""},
		{nil, nil},
	}
	for _, tt := range tests {
		got := MaskSecrets(map[string]any{"jupyter.token": tt.value, "jupyter.base_url": "http://x"})
		if got["jupyter.token"] != tt.want {
			t.Errorf("mask(%v) = %v, want %v", tt.value, got["jupyter.token"], tt.want)
		}
		if got["jupyter.base_url"] != "http://x" {
			t.Errorf("expected non-secret to be unchanged, got %v", got["jupyter.base_url"])
		}
	}
	if !IsSecretKey("jupyter.token") || IsSecretKey("jupyter.base_url") {
		t.Error("unexpected secret key classification")
	}
}
