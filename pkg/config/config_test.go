package config

import "testing"

func TestCommerceEndpoint(t *testing.T) {
	t.Parallel()

	cfg := CommerceConfig{ShopDomain: "veloura.example.com", APIVersion: "2024-10"}
	want := "https://veloura.example.com/api/2024-10/graphql.json"
	if got := cfg.Endpoint(); got != want {
		t.Fatalf("unexpected endpoint: %s", got)
	}
}

func TestAppEnvHelpers(t *testing.T) {
	t.Parallel()

	if !(AppConfig{Env: "Development"}).IsDev() {
		t.Fatal("expected dev env to match case-insensitively")
	}
	if (AppConfig{Env: "development"}).IsProd() {
		t.Fatal("dev env must not report prod")
	}
}

func TestLoadRequiresEnv(t *testing.T) {
	t.Setenv("VELOURA_APP_ENV", "")
	if _, err := Load(); err == nil {
		t.Fatal("expected missing required env to fail")
	}
}
