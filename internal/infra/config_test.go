package infra

import "testing"

func TestLoadConfigRequiresDatabaseURL(t *testing.T) {
	t.Setenv("DATABASE_URL", "")

	if _, err := LoadConfig(); err == nil {
		t.Fatal("expected error when DATABASE_URL is missing")
	}
}

func TestLoadConfigDefaults(t *testing.T) {
	t.Setenv("DATABASE_URL", "postgres://example")
	t.Setenv("REDIS_URL", "")
	t.Setenv("RETENTION_HOURS", "")
	t.Setenv("RATE_LIMIT_PER_MINUTE", "")

	cfg, err := LoadConfig()
	if err != nil {
		t.Fatalf("LoadConfig returned error: %v", err)
	}
	if cfg.RedisURL != "redis://localhost:6379" {
		t.Fatalf("RedisURL mismatch: %q", cfg.RedisURL)
	}
	if cfg.RetentionWindow.Hours() != 24 {
		t.Fatalf("RetentionWindow mismatch: %v", cfg.RetentionWindow)
	}
	if cfg.RateLimitPerMin != 5 {
		t.Fatalf("RateLimitPerMin mismatch: %d", cfg.RateLimitPerMin)
	}
	if cfg.ObjectStorageEnabled() {
		t.Fatal("object storage should be disabled by default")
	}
}

func TestObjectStorageEnabled(t *testing.T) {
	t.Setenv("DATABASE_URL", "postgres://example")
	t.Setenv("STORAGE_ENDPOINT_URL", "https://accountid.r2.cloudflarestorage.com")
	t.Setenv("STORAGE_ACCESS_KEY_ID", "key")
	t.Setenv("STORAGE_BUCKET_NAME", "music")

	cfg, err := LoadConfig()
	if err != nil {
		t.Fatalf("LoadConfig returned error: %v", err)
	}
	if !cfg.ObjectStorageEnabled() {
		t.Fatal("object storage should be enabled")
	}
}

func TestAllowedOriginsSplitsAndTrims(t *testing.T) {
	t.Setenv("DATABASE_URL", "postgres://example")
	t.Setenv("FRONTEND_URL", "https://app.example.com, http://localhost:3000 ")

	cfg, err := LoadConfig()
	if err != nil {
		t.Fatalf("LoadConfig returned error: %v", err)
	}
	origins := cfg.AllowedOrigins()
	want := []string{"https://app.example.com", "http://localhost:3000"}
	if len(origins) != len(want) {
		t.Fatalf("origins mismatch: %#v", origins)
	}
	for i := range want {
		if origins[i] != want[i] {
			t.Fatalf("origins[%d] = %q, want %q", i, origins[i], want[i])
		}
	}
}
