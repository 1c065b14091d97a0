package cmd

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/khanhnv2901/seca-recon/internal/infrastructure/cache"
	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"
)

func TestApplyIntDefault(t *testing.T) {
	flags := pflag.NewFlagSet("test", pflag.ContinueOnError)
	flags.Int("probe-timeout", 0, "")

	var applied int
	applyIntDefault(flags, "probe-timeout", 15, func(v int) {
		applied = v
	})
	if applied != 15 {
		t.Fatalf("expected setter to receive 15, got %d", applied)
	}

	// When flag already set, setter should not run.
	if err := flags.Set("probe-timeout", "7"); err != nil {
		t.Fatalf("failed to set flag: %v", err)
	}
	applied = 0
	applyIntDefault(flags, "probe-timeout", 20, func(v int) {
		applied = v
	})
	if applied != 0 {
		t.Fatalf("setter should not run when flag overridden, got %d", applied)
	}
}

func TestApplyBoolDefault(t *testing.T) {
	flags := pflag.NewFlagSet("test", pflag.ContinueOnError)
	flags.Bool("json", false, "")

	applied := false
	applyBoolDefault(flags, "json", true, func(v bool) {
		applied = v
	})
	if !applied {
		t.Fatal("expected setter to run with true")
	}

	if err := flags.Set("json", "false"); err != nil {
		t.Fatalf("failed to set bool flag: %v", err)
	}
	applied = true
	applyBoolDefault(flags, "json", true, func(v bool) {
		applied = v
	})
	if !applied {
		t.Fatalf("setter should not change value when flag already set")
	}
}

func TestSetStringFlagIfUnset(t *testing.T) {
	flags := pflag.NewFlagSet("test", pflag.ContinueOnError)
	flags.String("addr", "", "")

	setStringFlagIfUnset(flags, "addr", "0.0.0.0:9000")
	if got := flags.Lookup("addr").Value.String(); got != "0.0.0.0:9000" {
		t.Fatalf("expected addr to be default, got %s", got)
	}

	if err := flags.Set("addr", "127.0.0.1:1"); err != nil {
		t.Fatalf("failed to set addr: %v", err)
	}
	setStringFlagIfUnset(flags, "addr", "new-default")
	if got := flags.Lookup("addr").Value.String(); got != "127.0.0.1:1" {
		t.Fatalf("expected addr to remain user-provided, got %s", got)
	}

	setStringFlagIfUnset(flags, "missing", "value")
}

func TestNewCLIConfigDefaults(t *testing.T) {
	cfg := newCLIConfig()
	if cfg.Scan.TimeoutMS != 800 {
		t.Fatalf("unexpected probe timeout default: %d", cfg.Scan.TimeoutMS)
	}
	if cfg.Scan.Retries != 2 {
		t.Fatalf("unexpected retries default: %d", cfg.Scan.Retries)
	}
	if cfg.Cache.Backend != cache.BackendMemory {
		t.Fatalf("unexpected cache backend: %s", cfg.Cache.Backend)
	}
	if cfg.Cache.TTL != 5*time.Minute {
		t.Fatalf("unexpected cache TTL: %s", cfg.Cache.TTL)
	}
	if cfg.Server.Addr != defaultServeAddr || cfg.Server.RateLimit != defaultRateLimit || cfg.Server.RateBurst != defaultRateBurst {
		t.Fatalf("unexpected server defaults: %+v", cfg.Server)
	}
	if cfg.Server.MaxJobs != 1000 {
		t.Fatalf("unexpected job retention: %d", cfg.Server.MaxJobs)
	}
	if cfg.Log.Level != "info" || cfg.Log.Format != "console" || cfg.Log.File != "" {
		t.Fatalf("unexpected log defaults: %+v", cfg.Log)
	}
}

func TestLoadConfig(t *testing.T) {
	v := viper.New()
	v.Set("scan.timeout_ms", 1500)
	v.Set("scan.retries", 0)
	v.Set("scan.ports", "22,443")
	v.Set("tls.timeout", "3s")
	v.Set("resolver.nameserver", " 1.1.1.1 ")
	v.Set("proxy.socks5", "socks5://127.0.0.1:1080")
	v.Set("cache.backend", "redis")
	v.Set("cache.ttl", "10m")
	v.Set("cache.redis_addr", "redis:6379")
	v.Set("intel.otx_api_key", "otx-key")
	v.Set("server.rate_limit", 0)
	v.Set("server.cors_origins", []string{"https://app.example"})
	v.Set("log.format", "json")
	v.Set("output.json", true)

	cfg := loadConfig(v)

	if cfg.Scan.TimeoutMS != 1500 || cfg.Scan.Retries != 0 || cfg.Scan.Ports != "22,443" {
		t.Fatalf("unexpected scan config: %+v", cfg.Scan)
	}
	if cfg.TLS.Timeout != 3*time.Second {
		t.Fatalf("unexpected TLS timeout: %s", cfg.TLS.Timeout)
	}
	if cfg.Resolver.Nameserver != "1.1.1.1" {
		t.Fatalf("expected trimmed nameserver, got %q", cfg.Resolver.Nameserver)
	}
	if cfg.Cache.Backend != "redis" || cfg.Cache.TTL != 10*time.Minute || cfg.Cache.RedisAddr != "redis:6379" {
		t.Fatalf("unexpected cache config: %+v", cfg.Cache)
	}
	if cfg.Server.RateLimit != 0 {
		t.Fatalf("expected rate limiting disabled, got %d", cfg.Server.RateLimit)
	}
	if len(cfg.Server.CORSOrigins) != 1 || cfg.Server.CORSOrigins[0] != "https://app.example" {
		t.Fatalf("unexpected CORS origins: %v", cfg.Server.CORSOrigins)
	}
	if !cfg.Output.JSON || cfg.Log.Format != "json" {
		t.Fatalf("unexpected output/log config: %+v %+v", cfg.Output, cfg.Log)
	}
	// untouched keys keep their defaults
	if cfg.Server.RateBurst != defaultRateBurst || cfg.Scan.Concurrency != defaultScanConcurrency {
		t.Fatalf("expected defaults for unset keys, got %+v", cfg)
	}

	app := cfg.containerConfig()
	if app.ProxyAddr != "socks5://127.0.0.1:1080" || app.Nameserver != "1.1.1.1" || app.TLSTimeout != 3*time.Second {
		t.Fatalf("unexpected container config: %+v", app)
	}
	if app.Cache.Backend != "redis" || app.Cache.RedisAddr != "redis:6379" || app.OTXAPIKey != "otx-key" {
		t.Fatalf("unexpected container cache/intel config: %+v", app)
	}
}

func TestInitConfig_FileAndEnv(t *testing.T) {
	t.Cleanup(func() {
		viper.Reset()
		cfgFile = ""
	})
	dir := t.TempDir()
	t.Setenv("HOME", dir)
	path := filepath.Join(dir, "recon.yaml")
	content := "scan:\n  retries: 1\nserver:\n  addr: 0.0.0.0:9999\n"
	if err := os.WriteFile(path, []byte(content), 0o600); err != nil {
		t.Fatalf("write config: %v", err)
	}
	cfgFile = path
	t.Setenv("OTX_API_KEY", "from-env")
	t.Setenv("SECA_RECON_SCAN_TIMEOUT_MS", "1200")

	if err := initConfig(); err != nil {
		t.Fatalf("initConfig() error = %v", err)
	}
	cfg := loadConfig(viper.GetViper())
	if cfg.Scan.Retries != 1 || cfg.Server.Addr != "0.0.0.0:9999" {
		t.Fatalf("expected file values, got %+v %+v", cfg.Scan, cfg.Server)
	}
	if cfg.Intel.OTXAPIKey != "from-env" {
		t.Fatalf("expected OTX key from env, got %q", cfg.Intel.OTXAPIKey)
	}
	if cfg.Scan.TimeoutMS != 1200 {
		t.Fatalf("expected prefixed env override, got %d", cfg.Scan.TimeoutMS)
	}
}

func TestInitConfig_MissingFiles(t *testing.T) {
	t.Cleanup(func() {
		viper.Reset()
		cfgFile = ""
	})
	t.Setenv("HOME", t.TempDir())

	cfgFile = ""
	if err := initConfig(); err != nil {
		t.Fatalf("missing default config should be ignored, got %v", err)
	}

	viper.Reset()
	cfgFile = filepath.Join(t.TempDir(), "absent.yaml")
	if err := initConfig(); err == nil {
		t.Fatal("expected error for missing explicit config file")
	}
}

func TestApplyConfigDefaults(t *testing.T) {
	cfg := newCLIConfig()
	cfg.Scan.TimeoutMS = 1200
	cfg.Scan.Concurrency = 8
	cfg.Scan.Ports = "22,80"
	cfg.Output.JSON = true

	testCmd := &cobra.Command{Use: "ports"}
	testCmd.Flags().Int("probe-timeout", 800, "")
	testCmd.Flags().Int("concurrency", 4, "")
	testCmd.Flags().String("ports", "", "")
	testCmd.Flags().Bool("json", false, "")
	if err := testCmd.Flags().Set("concurrency", "2"); err != nil {
		t.Fatalf("set concurrency: %v", err)
	}

	applyConfigDefaults(testCmd, cfg)

	flags := testCmd.Flags()
	if got, _ := flags.GetInt("probe-timeout"); got != 1200 {
		t.Fatalf("expected config probe timeout, got %d", got)
	}
	if got, _ := flags.GetInt("concurrency"); got != 2 {
		t.Fatalf("explicit flag must win over config, got %d", got)
	}
	if got, _ := flags.GetString("ports"); got != "22,80" {
		t.Fatalf("expected config ports, got %q", got)
	}
	if got, _ := flags.GetBool("json"); !got {
		t.Fatal("expected json output from config")
	}
}
