package cmd

import (
	"strconv"
	"strings"
	"time"

	"github.com/khanhnv2901/seca-recon/internal/application"
	"github.com/khanhnv2901/seca-recon/internal/infrastructure/cache"
	"github.com/khanhnv2901/seca-recon/internal/shared/constants"
	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"
)

const (
	defaultServeAddr       = "127.0.0.1:8080"
	defaultRateLimit       = 10
	defaultRateBurst       = 20
	defaultShutdownTimeout = 30 * time.Second
	defaultScanConcurrency = 4
	defaultTargetRate      = 2
	defaultDNSTimeout      = 3 * time.Second
)

// CLIConfig captures runtime configuration shared across commands.
type CLIConfig struct {
	Scan     ScanConfig
	TLS      TLSConfig
	Resolver ResolverConfig
	Proxy    ProxyConfig
	Cache    CacheConfig
	Intel    IntelConfig
	Server   ServerConfig
	Log      LogConfig
	Output   OutputConfig
}

// ScanConfig holds port scan and batch runner settings.
type ScanConfig struct {
	TimeoutMS   int
	Retries     int
	Ports       string
	Workers     int
	Concurrency int
	RateLimit   int
}

type TLSConfig struct {
	Timeout time.Duration
}

type ResolverConfig struct {
	Nameserver string
	Timeout    time.Duration
}

type ProxyConfig struct {
	SOCKS5 string
}

type CacheConfig struct {
	Backend       string
	TTL           time.Duration
	RedisAddr     string
	RedisDB       int
	RedisPassword string
	KeyPrefix     string
}

// IntelConfig carries the collaborator API keys.
type IntelConfig struct {
	NVDAPIKey          string
	OTXAPIKey          string
	SafeBrowsingAPIKey string
}

type ServerConfig struct {
	Addr            string
	RateLimit       int
	RateBurst       int
	CORSOrigins     []string
	ShutdownTimeout time.Duration
	ScanTimeout     time.Duration
	MaxJobs         int
}

type OutputConfig struct {
	JSON bool
}

// LogConfig selects level, encoding and optional rotating file output.
type LogConfig struct {
	Level      string
	Format     string
	File       string
	MaxSizeMB  int
	MaxBackups int
	MaxAgeDays int
}

var cliConfig = newCLIConfig()

func newCLIConfig() *CLIConfig {
	return &CLIConfig{
		Scan: ScanConfig{
			TimeoutMS:   int(constants.DefaultScanTimeout / time.Millisecond),
			Retries:     constants.ProbeRetries,
			Concurrency: defaultScanConcurrency,
			RateLimit:   defaultTargetRate,
		},
		TLS:      TLSConfig{Timeout: constants.TLSHandshakeTimeout},
		Resolver: ResolverConfig{Timeout: defaultDNSTimeout},
		Cache: CacheConfig{
			Backend:   cache.BackendMemory,
			TTL:       constants.IntelCacheTTL,
			KeyPrefix: "seca-recon:",
		},
		Server: ServerConfig{
			Addr:            defaultServeAddr,
			RateLimit:       defaultRateLimit,
			RateBurst:       defaultRateBurst,
			ShutdownTimeout: defaultShutdownTimeout,
			ScanTimeout:     90 * time.Second,
			MaxJobs:         1000,
		},
		Log: LogConfig{
			Level:      "info",
			Format:     "console",
			MaxSizeMB:  100,
			MaxBackups: 3,
			MaxAgeDays: 28,
		},
	}
}

// loadConfig overlays every key set in v onto a fresh default config.
func loadConfig(v *viper.Viper) *CLIConfig {
	cfg := newCLIConfig()

	setInt(v, "scan.timeout_ms", &cfg.Scan.TimeoutMS)
	setInt(v, "scan.retries", &cfg.Scan.Retries)
	setString(v, "scan.ports", &cfg.Scan.Ports)
	setInt(v, "scan.workers", &cfg.Scan.Workers)
	setInt(v, "scan.concurrency", &cfg.Scan.Concurrency)
	setInt(v, "scan.rate_limit", &cfg.Scan.RateLimit)

	setDuration(v, "tls.timeout", &cfg.TLS.Timeout)

	setString(v, "resolver.nameserver", &cfg.Resolver.Nameserver)
	setDuration(v, "resolver.timeout", &cfg.Resolver.Timeout)

	setString(v, "proxy.socks5", &cfg.Proxy.SOCKS5)

	setString(v, "cache.backend", &cfg.Cache.Backend)
	setDuration(v, "cache.ttl", &cfg.Cache.TTL)
	setString(v, "cache.redis_addr", &cfg.Cache.RedisAddr)
	setInt(v, "cache.redis_db", &cfg.Cache.RedisDB)
	setString(v, "cache.redis_password", &cfg.Cache.RedisPassword)
	setString(v, "cache.key_prefix", &cfg.Cache.KeyPrefix)

	setString(v, "intel.nvd_api_key", &cfg.Intel.NVDAPIKey)
	setString(v, "intel.otx_api_key", &cfg.Intel.OTXAPIKey)
	setString(v, "intel.safebrowsing_api_key", &cfg.Intel.SafeBrowsingAPIKey)

	setString(v, "server.addr", &cfg.Server.Addr)
	setInt(v, "server.rate_limit", &cfg.Server.RateLimit)
	setInt(v, "server.rate_burst", &cfg.Server.RateBurst)
	if v.IsSet("server.cors_origins") {
		cfg.Server.CORSOrigins = v.GetStringSlice("server.cors_origins")
	}
	setDuration(v, "server.shutdown_timeout", &cfg.Server.ShutdownTimeout)
	setDuration(v, "server.scan_timeout", &cfg.Server.ScanTimeout)
	setInt(v, "server.max_jobs", &cfg.Server.MaxJobs)

	setString(v, "log.level", &cfg.Log.Level)
	setString(v, "log.format", &cfg.Log.Format)
	setString(v, "log.file", &cfg.Log.File)
	setInt(v, "log.max_size_mb", &cfg.Log.MaxSizeMB)
	setInt(v, "log.max_backups", &cfg.Log.MaxBackups)
	setInt(v, "log.max_age_days", &cfg.Log.MaxAgeDays)

	if v.IsSet("output.json") {
		cfg.Output.JSON = v.GetBool("output.json")
	}

	return cfg
}

func setInt(v *viper.Viper, key string, dst *int) {
	if v.IsSet(key) {
		*dst = v.GetInt(key)
	}
}

func setString(v *viper.Viper, key string, dst *string) {
	if v.IsSet(key) {
		*dst = strings.TrimSpace(v.GetString(key))
	}
}

func setDuration(v *viper.Viper, key string, dst *time.Duration) {
	if v.IsSet(key) {
		*dst = v.GetDuration(key)
	}
}

// applyConfigDefaults pushes config values into the command's flags when the
// user did not set the flag explicitly. Flags win over config.
func applyConfigDefaults(cmd *cobra.Command, cfg *CLIConfig) {
	flags := cmd.Flags()

	applyIntDefault(flags, "probe-timeout", cfg.Scan.TimeoutMS, intFlagSetter(flags, "probe-timeout"))
	applyIntDefault(flags, "concurrency", cfg.Scan.Concurrency, intFlagSetter(flags, "concurrency"))
	applyIntDefault(flags, "rate-limit", cfg.Scan.RateLimit, intFlagSetter(flags, "rate-limit"))
	setStringFlagIfUnset(flags, "ports", cfg.Scan.Ports)
	applyBoolDefault(flags, "json", cfg.Output.JSON, func(v bool) {
		setStringFlagIfUnset(flags, "json", strconv.FormatBool(v))
	})

	// serve
	setStringFlagIfUnset(flags, "addr", cfg.Server.Addr)
	applyIntDefault(flags, "api-rate-limit", cfg.Server.RateLimit, intFlagSetter(flags, "api-rate-limit"))
	applyIntDefault(flags, "api-rate-burst", cfg.Server.RateBurst, intFlagSetter(flags, "api-rate-burst"))
	if len(cfg.Server.CORSOrigins) > 0 {
		setStringFlagIfUnset(flags, "cors-origins", strings.Join(cfg.Server.CORSOrigins, ","))
	}
	setStringFlagIfUnset(flags, "shutdown-timeout", cfg.Server.ShutdownTimeout.String())
}

func intFlagSetter(flags *pflag.FlagSet, name string) func(int) {
	return func(v int) {
		setStringFlagIfUnset(flags, name, strconv.Itoa(v))
	}
}

// containerConfig maps CLI configuration onto the service container.
func (c *CLIConfig) containerConfig() application.Config {
	return application.Config{
		ProxyAddr:    c.Proxy.SOCKS5,
		Nameserver:   c.Resolver.Nameserver,
		DNSTimeout:   c.Resolver.Timeout,
		ProbeWorkers: c.Scan.Workers,
		TLSTimeout:   c.TLS.Timeout,
		Cache: cache.Config{
			Backend:   c.Cache.Backend,
			TTL:       c.Cache.TTL,
			RedisAddr: c.Cache.RedisAddr,
			RedisDB:   c.Cache.RedisDB,
			RedisPass: c.Cache.RedisPassword,
			KeyPrefix: c.Cache.KeyPrefix,
		},
		NVDAPIKey:          c.Intel.NVDAPIKey,
		OTXAPIKey:          c.Intel.OTXAPIKey,
		SafeBrowsingAPIKey: c.Intel.SafeBrowsingAPIKey,
	}
}

func applyIntDefault(flags *pflag.FlagSet, name string, value int, setter func(int)) {
	if flags == nil || setter == nil {
		return
	}
	flag := flags.Lookup(name)
	if flag != nil && flag.Changed {
		return
	}
	setter(value)
}

func applyBoolDefault(flags *pflag.FlagSet, name string, value bool, setter func(bool)) {
	if flags == nil || setter == nil {
		return
	}
	flag := flags.Lookup(name)
	if flag != nil && flag.Changed {
		return
	}
	setter(value)
}

func setStringFlagIfUnset(flags *pflag.FlagSet, name, value string) {
	if flags == nil || value == "" {
		return
	}
	flag := flags.Lookup(name)
	if flag == nil || flag.Changed {
		return
	}
	_ = flag.Value.Set(value)
}
