package main

import "testing"

func TestResolveAPIKey_FallsBackToEnv(t *testing.T) {
	apiKey = ""
	t.Setenv("OMG_API_KEY", "env-key")
	if got := resolveAPIKey(); got != "env-key" {
		t.Fatalf("expected env-key, got %q", got)
	}
}

func TestResolveAPIKey_FlagTakesPriority(t *testing.T) {
	t.Setenv("OMG_API_KEY", "env-key")
	apiKey = "flag-key"
	defer func() { apiKey = "" }()
	if got := resolveAPIKey(); got != "flag-key" {
		t.Fatalf("expected flag-key, got %q", got)
	}
}

func TestBuildGateway_NoKeyFails(t *testing.T) {
	apiKey = ""
	t.Setenv("OMG_API_KEY", "")
	if _, err := buildGateway(); err == nil {
		t.Fatal("expected an error when no API key is configured")
	}
}
