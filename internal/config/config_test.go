package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func validConfig() *Config {
	return &Config{
		App:    AppConfig{Environment: "development"},
		Logger: LoggerConfig{Level: "info"},
		Server: ServerConfig{Port: "8080"},
		Data:   DataConfig{BasePath: "/some/path", Driver: DriverBadger},
		Auth: AuthConfig{
			AccessTokenDuration:  15 * time.Minute,
			RefreshTokenDuration: 720 * time.Hour,
			LoginRateLimit:       10,
		},
		Covers:    CoversConfig{PlaceholderBase: "https://placehold.co", MaxUploadSize: 10 << 20},
		Progress:  ProgressConfig{CommitRetries: 3},
		Telemetry: TelemetryConfig{SampleRatio: 1},
	}
}

// isolateEnv unsets every variable Load reads so the host environment cannot leak in.
func isolateEnv(t *testing.T) {
	t.Helper()
	for _, key := range []string{
		"ENV", "LOG_LEVEL", "SERVER_PORT", "PUBLIC_URL", "CORS_ORIGINS",
		"DATA_PATH", "STORE_DRIVER", "LOGIN_RATE_LIMIT",
		"ACCESS_TOKEN_DURATION", "REFRESH_TOKEN_DURATION",
		"SERVER_READ_TIMEOUT", "SERVER_WRITE_TIMEOUT", "SERVER_IDLE_TIMEOUT",
		"COVER_PLACEHOLDER_BASE", "COVER_MAX_UPLOAD_SIZE", "PROGRESS_COMMIT_RETRIES",
		"OTEL_EXPORTER_OTLP_ENDPOINT", "OTEL_SERVICE_NAME", "OTEL_TRACES_SAMPLER_ARG",
		"OTEL_EXPORTER_OTLP_INSECURE",
	} {
		prev, had := os.LookupEnv(key)
		require.NoError(t, os.Unsetenv(key))
		t.Cleanup(func() {
			if had {
				os.Setenv(key, prev)
			} else {
				os.Unsetenv(key)
			}
		})
	}
}

func noEnvFile(t *testing.T) string {
	return "-env-file=" + filepath.Join(t.TempDir(), "missing.env")
}

func TestValidate_ValidConfig(t *testing.T) {
	assert.NoError(t, validConfig().Validate())
}

func TestValidate_AllEnvironments(t *testing.T) {
	tests := []struct {
		env   string
		valid bool
	}{
		{"development", true},
		{"staging", true},
		{"production", true},
		{"test", false},
		{"", false},
		{"DEVELOPMENT", false}, // case sensitive
	}

	for _, tt := range tests {
		t.Run(tt.env, func(t *testing.T) {
			cfg := validConfig()
			cfg.App.Environment = tt.env
			if tt.valid {
				assert.NoError(t, cfg.Validate())
			} else {
				assert.Error(t, cfg.Validate())
			}
		})
	}
}

func TestValidate_Rejects(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*Config)
		wantErr string
	}{
		{"unknown log level", func(c *Config) { c.Logger.Level = "trace" }, "invalid log level"},
		{"non numeric port", func(c *Config) { c.Server.Port = "http" }, "invalid port"},
		{"port out of range", func(c *Config) { c.Server.Port = "70000" }, "invalid port"},
		{"empty data path", func(c *Config) { c.Data.BasePath = "" }, "data base path cannot be empty"},
		{"unknown driver", func(c *Config) { c.Data.Driver = "postgres" }, "invalid store driver"},
		{"zero access duration", func(c *Config) { c.Auth.AccessTokenDuration = 0 }, "token durations must be positive"},
		{"refresh shorter than access", func(c *Config) { c.Auth.RefreshTokenDuration = time.Minute }, "refresh token duration"},
		{"no login attempts", func(c *Config) { c.Auth.LoginRateLimit = 0 }, "login rate limit"},
		{"no upload size", func(c *Config) { c.Covers.MaxUploadSize = 0 }, "max upload size"},
		{"negative commit retries", func(c *Config) { c.Progress.CommitRetries = -1 }, "commit retries"},
		{"sample ratio above one", func(c *Config) { c.Telemetry.SampleRatio = 1.5 }, "sample ratio"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := validConfig()
			tt.mutate(cfg)
			err := cfg.Validate()
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.wantErr)
		})
	}
}

func TestValidate_ZeroRetriesAllowed(t *testing.T) {
	cfg := validConfig()
	cfg.Progress.CommitRetries = 0
	assert.NoError(t, cfg.Validate())
}

func TestValidate_LogLevelCaseInsensitive(t *testing.T) {
	cfg := validConfig()
	cfg.Logger.Level = "DEBUG"
	assert.NoError(t, cfg.Validate())
}

func TestLoad_Defaults(t *testing.T) {
	isolateEnv(t)
	dataDir := t.TempDir()

	cfg, err := Load([]string{noEnvFile(t), "-data-path", dataDir})
	require.NoError(t, err)

	assert.Equal(t, "development", cfg.App.Environment)
	assert.Equal(t, "info", cfg.Logger.Level)
	assert.Equal(t, "8080", cfg.Server.Port)
	assert.Equal(t, "http://localhost:8080", cfg.Server.PublicURL)
	assert.Equal(t, []string{"*"}, cfg.Server.CORSOrigins)
	assert.Equal(t, 15*time.Second, cfg.Server.ReadTimeout)
	assert.Equal(t, 60*time.Second, cfg.Server.IdleTimeout)
	assert.Equal(t, dataDir, cfg.Data.BasePath)
	assert.Equal(t, DriverBadger, cfg.Data.Driver)
	assert.Equal(t, 15*time.Minute, cfg.Auth.AccessTokenDuration)
	assert.Equal(t, 720*time.Hour, cfg.Auth.RefreshTokenDuration)
	assert.Equal(t, 10, cfg.Auth.LoginRateLimit)
	assert.Equal(t, "https://placehold.co", cfg.Covers.PlaceholderBase)
	assert.Equal(t, int64(10<<20), cfg.Covers.MaxUploadSize)
	assert.Equal(t, 3, cfg.Progress.CommitRetries)
	assert.Equal(t, "pagetrail-server", cfg.Telemetry.ServiceName)
	assert.False(t, cfg.Telemetry.Enabled())
}

func TestLoad_FlagsBeatEnvironment(t *testing.T) {
	isolateEnv(t)
	t.Setenv("SERVER_PORT", "9000")
	t.Setenv("STORE_DRIVER", "sqlite")
	t.Setenv("PROGRESS_COMMIT_RETRIES", "5")

	cfg, err := Load([]string{noEnvFile(t), "-data-path", t.TempDir(), "-port", "9100"})
	require.NoError(t, err)

	assert.Equal(t, "9100", cfg.Server.Port)
	assert.Equal(t, DriverSQLite, cfg.Data.Driver)
	assert.Equal(t, 5, cfg.Progress.CommitRetries)
}

func TestLoad_EnvFile(t *testing.T) {
	isolateEnv(t)

	envFile := filepath.Join(t.TempDir(), ".env")
	content := "LOG_LEVEL=debug\nCORS_ORIGINS=\"https://a.example, https://b.example\"\n"
	require.NoError(t, os.WriteFile(envFile, []byte(content), 0o644))

	cfg, err := Load([]string{"-env-file", envFile, "-data-path", t.TempDir()})
	require.NoError(t, err)

	assert.Equal(t, "debug", cfg.Logger.Level)
	assert.Equal(t, []string{"https://a.example", "https://b.example"}, cfg.Server.CORSOrigins)
}

func TestLoad_InvalidDuration(t *testing.T) {
	isolateEnv(t)
	_, err := Load([]string{noEnvFile(t), "-data-path", t.TempDir(), "-access-token-duration", "soon"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "access_token_duration")
}

func TestLoad_InvalidDriver(t *testing.T) {
	isolateEnv(t)
	_, err := Load([]string{noEnvFile(t), "-data-path", t.TempDir(), "-store", "mongo"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "invalid store driver")
}

func TestLoad_Telemetry(t *testing.T) {
	isolateEnv(t)
	t.Setenv("OTEL_EXPORTER_OTLP_ENDPOINT", "collector:4318")
	t.Setenv("OTEL_TRACES_SAMPLER_ARG", "0.25")
	t.Setenv("OTEL_EXPORTER_OTLP_INSECURE", "true")

	cfg, err := Load([]string{noEnvFile(t), "-data-path", t.TempDir()})
	require.NoError(t, err)

	assert.True(t, cfg.Telemetry.Enabled())
	assert.Equal(t, "collector:4318", cfg.Telemetry.Endpoint)
	assert.InDelta(t, 0.25, cfg.Telemetry.SampleRatio, 1e-9)
	assert.True(t, cfg.Telemetry.Insecure)
}

func TestLoad_BadTelemetryValue(t *testing.T) {
	isolateEnv(t)
	t.Setenv("OTEL_TRACES_SAMPLER_ARG", "lots")

	_, err := Load([]string{noEnvFile(t), "-data-path", t.TempDir()})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "telemetry")
}

func TestDataConfig_Paths(t *testing.T) {
	badger := DataConfig{BasePath: "/data", Driver: DriverBadger}
	sqlite := DataConfig{BasePath: "/data", Driver: DriverSQLite}

	assert.Equal(t, "/data/db", badger.DBPath())
	assert.Equal(t, "/data/pagetrail.db", sqlite.DBPath())
	assert.Equal(t, "/data/covers", badger.CoversPath())
	assert.Equal(t, "/data/auth.key", badger.KeyPath())
}

func TestExpandDataPath(t *testing.T) {
	homeDir, err := os.UserHomeDir()
	require.NoError(t, err)

	tests := []struct {
		in   string
		want string
	}{
		{"", filepath.Join(homeDir, "PageTrail")},
		{"~/my-data", filepath.Join(homeDir, "my-data")},
		{"/absolute/path/to/data", "/absolute/path/to/data"},
		{"/trailing/slash/", "/trailing/slash"},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			cfg := &Config{Data: DataConfig{BasePath: tt.in}}
			require.NoError(t, cfg.expandDataPath())
			assert.Equal(t, tt.want, cfg.Data.BasePath)
		})
	}

	cfg := &Config{Data: DataConfig{BasePath: "relative/path"}}
	require.NoError(t, cfg.expandDataPath())
	assert.True(t, filepath.IsAbs(cfg.Data.BasePath))
}

func TestGetConfigValue_Precedence(t *testing.T) {
	t.Setenv("TEST_ENV_KEY", "env-value")

	assert.Equal(t, "flag-value", getConfigValue("flag-value", "TEST_ENV_KEY", "default-value"))
	assert.Equal(t, "env-value", getConfigValue("", "TEST_ENV_KEY", "default-value"))
	assert.Equal(t, "default-value", getConfigValue("", "NONEXISTENT_KEY", "default-value"))
}

func TestGetTypedConfigValues(t *testing.T) {
	t.Setenv("TEST_BOOL", "Yes")
	t.Setenv("TEST_INT", "oops")

	assert.True(t, getBoolConfigValue("", "TEST_BOOL", false))
	assert.False(t, getBoolConfigValue("no", "TEST_BOOL", true))
	assert.True(t, getBoolConfigValue("", "UNSET_BOOL", true))

	assert.Equal(t, 7, getIntConfigValue("", "TEST_INT", 7))
	assert.Equal(t, 4, getIntConfigValue("4", "TEST_INT", 7))
}

func TestSplitList(t *testing.T) {
	assert.Nil(t, splitList(""))
	assert.Nil(t, splitList(" , "))
	assert.Equal(t, []string{"a", "b"}, splitList("a, ,b"))
}

func TestLoadEnvFile_ValidFile(t *testing.T) {
	envFile := filepath.Join(t.TempDir(), ".env")
	content := `# Test env file
PT_TEST_ENV=staging
export PT_TEST_LEVEL=debug
# Comment line
PT_TEST_QUOTED="some value"
PT_TEST_SINGLE='another value'

  PT_TEST_SPACES  =  value with spaces
`
	require.NoError(t, os.WriteFile(envFile, []byte(content), 0o644))

	keys := []string{"PT_TEST_ENV", "PT_TEST_LEVEL", "PT_TEST_QUOTED", "PT_TEST_SINGLE", "PT_TEST_SPACES"}
	for _, k := range keys {
		os.Unsetenv(k)
	}
	t.Cleanup(func() {
		for _, k := range keys {
			os.Unsetenv(k)
		}
	})

	require.NoError(t, loadEnvFile(envFile))

	assert.Equal(t, "staging", os.Getenv("PT_TEST_ENV"))
	assert.Equal(t, "debug", os.Getenv("PT_TEST_LEVEL"))
	assert.Equal(t, "some value", os.Getenv("PT_TEST_QUOTED"))
	assert.Equal(t, "another value", os.Getenv("PT_TEST_SINGLE"))
	assert.Equal(t, "value with spaces", os.Getenv("PT_TEST_SPACES"))
}

func TestLoadEnvFile_InvalidFormat(t *testing.T) {
	envFile := filepath.Join(t.TempDir(), ".env")
	require.NoError(t, os.WriteFile(envFile, []byte("VALID_KEY=1\nINVALID LINE WITHOUT EQUALS\n"), 0o644))

	err := loadEnvFile(envFile)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "invalid format at line 2")
}

func TestLoadEnvFile_NonExistentFile(t *testing.T) {
	assert.Error(t, loadEnvFile("/nonexistent/file/.env"))
}

func TestLoadEnvFile_ExistingEnvVarsNotOverwritten(t *testing.T) {
	t.Setenv("PT_TEST_VAR", "original-value")

	envFile := filepath.Join(t.TempDir(), ".env")
	require.NoError(t, os.WriteFile(envFile, []byte("PT_TEST_VAR=new-value"), 0o644))

	require.NoError(t, loadEnvFile(envFile))
	assert.Equal(t, "original-value", os.Getenv("PT_TEST_VAR"))
}
