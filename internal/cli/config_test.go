package cli

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"

	"github.com/matzehuels/graphstate/pkg/cache"
)

func writeConfig(t *testing.T, dir, content string) string {
	t.Helper()
	path := filepath.Join(dir, appName+".toml")
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}
	return path
}

func TestLoadConfigDefaults(t *testing.T) {
	isolate(t)

	cfg, err := loadConfig("")
	if err != nil {
		t.Fatalf("loadConfig() error: %v", err)
	}
	if cfg.Log.Level != "info" {
		t.Errorf("log.level = %q, want info", cfg.Log.Level)
	}
	if cfg.Cache.Backend != backendFile {
		t.Errorf("cache.backend = %q, want %q", cfg.Cache.Backend, backendFile)
	}
	if cfg.Cache.TTL != 24*time.Hour {
		t.Errorf("cache.ttl = %s, want 24h", cfg.Cache.TTL)
	}
	if cfg.Redis.Addr != "localhost:6379" {
		t.Errorf("redis.addr = %q", cfg.Redis.Addr)
	}
}

func TestLoadConfigFile(t *testing.T) {
	isolate(t)
	path := writeConfig(t, t.TempDir(), `
metrics = true

[log]
level = "debug"

[cache]
backend = "memory"
size    = 8
ttl     = "90m"
scope   = "team-a"
`)

	cfg, err := loadConfig(path)
	if err != nil {
		t.Fatalf("loadConfig() error: %v", err)
	}
	if cfg.Log.Level != "debug" || !cfg.Metrics {
		t.Errorf("log/metrics not read: %+v", cfg)
	}
	if cfg.Cache.Backend != backendMemory || cfg.Cache.Size != 8 || cfg.Cache.Scope != "team-a" {
		t.Errorf("cache section not read: %+v", cfg.Cache)
	}
	if cfg.Cache.TTL != 90*time.Minute {
		t.Errorf("cache.ttl = %s, want 1h30m", cfg.Cache.TTL)
	}
}

func TestLoadConfigSearchPaths(t *testing.T) {
	isolate(t)
	wd, _ := os.Getwd()
	writeConfig(t, wd, `
[cache]
backend = "none"
`)

	cfg, err := loadConfig("")
	if err != nil {
		t.Fatalf("loadConfig() error: %v", err)
	}
	if cfg.Cache.Backend != backendNone {
		t.Errorf("graphstate.toml in the working directory was not read: %+v", cfg.Cache)
	}

	t.Chdir(t.TempDir())
	dir := filepath.Join(os.Getenv("XDG_CONFIG_HOME"), appName)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		t.Fatal(err)
	}
	writeConfig(t, dir, `
[log]
level = "warn"
`)
	cfg, err = loadConfig("")
	if err != nil {
		t.Fatalf("loadConfig() error: %v", err)
	}
	if cfg.Log.Level != "warn" {
		t.Errorf("config directory file was not read: %+v", cfg.Log)
	}
}

func TestLoadConfigEnv(t *testing.T) {
	isolate(t)
	t.Setenv("GRAPHSTATE_CACHE_BACKEND", "redis")
	t.Setenv("GRAPHSTATE_REDIS_ADDR", "cache:6380")
	t.Setenv("GRAPHSTATE_REDIS_DB", "2")

	cfg, err := loadConfig("")
	if err != nil {
		t.Fatalf("loadConfig() error: %v", err)
	}
	if cfg.Cache.Backend != backendRedis || cfg.Redis.Addr != "cache:6380" || cfg.Redis.DB != 2 {
		t.Errorf("environment not applied: %+v %+v", cfg.Cache, cfg.Redis)
	}
}

func TestLoadConfigErrors(t *testing.T) {
	isolate(t)

	tests := []struct {
		name    string
		content string
	}{
		{"unknown backend", "[cache]\nbackend = \"s3\"\n"},
		{"zero memory size", "[cache]\nbackend = \"memory\"\nsize = 0\n"},
		{"negative ttl", "[cache]\nttl = \"-1h\"\n"},
		{"syntax", "[cache\n"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			path := writeConfig(t, t.TempDir(), tt.content)
			if _, err := loadConfig(path); err == nil {
				t.Error("loadConfig() accepted an invalid config")
			}
		})
	}

	if _, err := loadConfig(filepath.Join(t.TempDir(), "missing.toml")); err == nil {
		t.Error("loadConfig() accepted a missing explicit config file")
	}
}

func TestNewCacheBackends(t *testing.T) {
	isolate(t)
	ctx := context.Background()
	mr := miniredis.RunT(t)

	tests := []struct {
		name string
		cfg  Config
		want any
	}{
		{"none", Config{Cache: CacheConfig{Backend: backendNone}}, &cache.NullCache{}},
		{"memory", Config{Cache: CacheConfig{Backend: backendMemory, Size: 4}}, &cache.MemoryCache{}},
		{"file", Config{Cache: CacheConfig{Backend: backendFile, Dir: t.TempDir()}}, &cache.FileCache{}},
		{"redis", Config{Cache: CacheConfig{Backend: backendRedis}, Redis: RedisConfig{Addr: mr.Addr()}}, &cache.RedisCache{}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c, err := newCache(ctx, &tt.cfg)
			if err != nil {
				t.Fatalf("newCache() error: %v", err)
			}
			defer c.Close()

			if got, want := typeName(c), typeName(tt.want); got != want {
				t.Errorf("newCache() = %s, want %s", got, want)
			}
			if err := c.Set(ctx, "k", []byte("v"), 0); err != nil {
				t.Fatalf("Set() error: %v", err)
			}
		})
	}

	unreachable := Config{Cache: CacheConfig{Backend: backendRedis}, Redis: RedisConfig{Addr: "127.0.0.1:1"}}
	if _, err := newCache(ctx, &unreachable); err == nil {
		t.Error("newCache() connected to an unreachable redis")
	}
}

func TestDefCacheWithScope(t *testing.T) {
	isolate(t)
	mr := miniredis.RunT(t)

	c := New(os.Stderr, LogInfo)
	c.config = &Config{
		Cache: CacheConfig{Backend: backendRedis, Scope: "team-a", TTL: time.Hour},
		Redis: RedisConfig{Addr: mr.Addr()},
	}
	g, err := loadGraph(context.Background(), writeManifest(t, shapeManifest))
	if err != nil {
		t.Fatal(err)
	}

	dc, backend, err := c.newDefCache(context.Background())
	if err != nil {
		t.Fatalf("newDefCache() error: %v", err)
	}
	defer backend.Close()
	if _, _, err := dc.Flatten(context.Background(), g.Root); err != nil {
		t.Fatalf("Flatten() error: %v", err)
	}

	keys := mr.Keys()
	if len(keys) != 1 {
		t.Fatalf("redis keys = %v, want one entry", keys)
	}
	if ttl := mr.TTL(keys[0]); ttl != time.Hour {
		t.Errorf("entry ttl = %s, want 1h", ttl)
	}
}

func typeName(v any) string {
	return fmt.Sprintf("%T", v)
}
