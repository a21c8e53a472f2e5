package config

import (
	"bytes"
	"testing"
	"time"

	"github.com/spf13/viper"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func viperFromTOML(t *testing.T, doc string) *viper.Viper {
	t.Helper()
	v := viper.New()
	v.SetConfigType("toml")
	require.NoError(t, v.ReadConfig(bytes.NewBufferString(doc)))
	return v
}

func TestLoad(t *testing.T) {
	t.Run("loads default values when nothing is set", func(t *testing.T) {
		cfg, err := Load()
		require.NoError(t, err)

		assert.Equal(t, "stockledger", cfg.App.Name)
		assert.Equal(t, "development", cfg.App.Env)
		assert.Equal(t, "8080", cfg.App.Port)
		assert.Equal(t, "localhost", cfg.Database.Host)
		assert.Equal(t, 5432, cfg.Database.Port)
		assert.Equal(t, "stockledger", cfg.Database.DBName)
		assert.Equal(t, 25, cfg.Database.MaxOpenConns)
		assert.Equal(t, 5, cfg.Database.MaxIdleConns)

		assert.False(t, cfg.Event.OutboxEnabled)
		assert.Equal(t, "auto", cfg.Event.IdempotencyBackend)
		assert.Equal(t, 24*time.Hour, cfg.Event.IdempotencyTTL)
		assert.Equal(t, time.Hour, cfg.Event.CleanupInterval)
		assert.Equal(t, uint32(5), cfg.Audit.BreakerMaxFailures)
		assert.Equal(t, 30*time.Second, cfg.Audit.BreakerTimeout)
		assert.Equal(t, "stockledger", cfg.Telemetry.ServiceName)
		assert.Equal(t, "stockledger", cfg.Profiling.ApplicationName)
		assert.False(t, cfg.IsProduction())
	})

	t.Run("environment variables with ERP prefix override defaults", func(t *testing.T) {
		t.Setenv("LEDGER_APP_PORT", "9000")
		t.Setenv("LEDGER_DATABASE_HOST", "db.internal")
		t.Setenv("LEDGER_DATABASE_MAX_OPEN_CONNS", "50")
		t.Setenv("LEDGER_EVENT_OUTBOX_ENABLED", "true")
		t.Setenv("LEDGER_EVENT_PROCESSOR_ENABLED", "true")
		t.Setenv("LEDGER_EVENT_POLL_INTERVAL", "2s")
		t.Setenv("LEDGER_EVENT_IDEMPOTENCY_BACKEND", "redis")
		t.Setenv("LEDGER_AUDIT_BREAKER_MAX_FAILURES", "3")

		cfg, err := Load()
		require.NoError(t, err)

		assert.Equal(t, "9000", cfg.App.Port)
		assert.Equal(t, "db.internal", cfg.Database.Host)
		assert.Equal(t, 50, cfg.Database.MaxOpenConns)
		assert.True(t, cfg.Event.OutboxEnabled)
		assert.True(t, cfg.Event.ProcessorEnabled)
		assert.Equal(t, 2*time.Second, cfg.Event.PollInterval)
		assert.Equal(t, "redis", cfg.Event.IdempotencyBackend)
		assert.Equal(t, uint32(3), cfg.Audit.BreakerMaxFailures)
	})
}

func TestFromViper(t *testing.T) {
	v := viperFromTOML(t, `
[app]
name = "ledger-eu"

[event]
outbox_enabled = true
processor_enabled = true
batch_size = 10
idempotency_backend = "memory"
idempotency_ttl = "1h"

[audit]
breaker_timeout = "5s"

[http]
rate_limit_rps = 2.5

[telemetry]
enabled = true
sampling_ratio = 0.5
metrics_enabled = true
logs_enabled = true

[profiling]
enabled = true
server_address = "http://pyroscope:4040"
contention_profiles = true
`)

	cfg, err := FromViper(v)
	require.NoError(t, err)

	assert.Equal(t, "ledger-eu", cfg.App.Name)
	assert.Equal(t, 10, cfg.Event.BatchSize)
	assert.Equal(t, "memory", cfg.Event.IdempotencyBackend)
	assert.Equal(t, time.Hour, cfg.Event.IdempotencyTTL)
	assert.Equal(t, 5*time.Second, cfg.Audit.BreakerTimeout)
	assert.Equal(t, 2.5, cfg.HTTP.RateLimitRPS)
	assert.Equal(t, 5, cfg.HTTP.RateLimitBurst)
	assert.Equal(t, 0.5, cfg.Telemetry.SamplingRatio)
	assert.True(t, cfg.Telemetry.MetricsEnabled)
	assert.True(t, cfg.Telemetry.LogsEnabled)
	assert.Equal(t, "ledger-eu", cfg.Telemetry.ServiceName)
	assert.Equal(t, "http://pyroscope:4040", cfg.Profiling.ServerAddress)
	assert.Equal(t, "ledger-eu", cfg.Profiling.ApplicationName)
	assert.True(t, cfg.Profiling.ContentionProfiles)
}

func TestFromViper_Validation(t *testing.T) {
	tests := []struct {
		name    string
		doc     string
		wantErr string
	}{
		{
			name:    "idle connections above open connections",
			doc:     "[database]\nmax_open_conns = 2\nmax_idle_conns = 4\n",
			wantErr: "cannot exceed database.max_open_conns",
		},
		{
			name:    "unknown idempotency backend",
			doc:     "[event]\nidempotency_backend = \"etcd\"\n",
			wantErr: "event.idempotency_backend",
		},
		{
			name:    "processor without outbox",
			doc:     "[event]\nprocessor_enabled = true\n",
			wantErr: "requires event.outbox_enabled",
		},
		{
			name:    "sampling ratio out of range",
			doc:     "[telemetry]\nsampling_ratio = 1.5\n",
			wantErr: "telemetry.sampling_ratio",
		},
		{
			name:    "negative rate limit",
			doc:     "[http]\nrate_limit_rps = -1.0\n",
			wantErr: "http.rate_limit_rps",
		},
		{
			name:    "rate limit with negative burst",
			doc:     "[http]\nrate_limit_rps = 5.0\nrate_limit_burst = -1\n",
			wantErr: "http.rate_limit_burst",
		},
		{
			name:    "production without database password",
			doc:     "[app]\nenv = \"production\"\n[database]\nsslmode = \"require\"\n",
			wantErr: "database.password is required in production",
		},
		{
			name:    "production with sslmode disabled",
			doc:     "[app]\nenv = \"production\"\n[database]\npassword = \"secret\"\n",
			wantErr: "database.sslmode cannot be 'disable'",
		},
		{
			name:    "production with wildcard CORS",
			doc:     "[app]\nenv = \"production\"\n[database]\npassword = \"secret\"\nsslmode = \"require\"\n[http]\ncors_allow_origins = [\"*\"]\n",
			wantErr: "cors_allow_origins",
		},
		{
			name:    "production with full SQL in traces",
			doc:     "[app]\nenv = \"production\"\n[database]\npassword = \"secret\"\nsslmode = \"require\"\n[telemetry]\ndb_log_full_sql = true\n",
			wantErr: "db_log_full_sql",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := FromViper(viperFromTOML(t, tt.doc))
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.wantErr)
		})
	}

	t.Run("valid production config", func(t *testing.T) {
		cfg, err := FromViper(viperFromTOML(t, "[app]\nenv = \"production\"\n[database]\npassword = \"secret\"\nsslmode = \"require\"\n"))
		require.NoError(t, err)
		assert.True(t, cfg.IsProduction())
	})
}

func TestDatabaseConfig_DSN(t *testing.T) {
	t.Run("generates valid DSN", func(t *testing.T) {
		cfg := DatabaseConfig{Host: "localhost", Port: 5432, User: "ledger", Password: "pw", DBName: "stockledger", SSLMode: "disable"}
		assert.Equal(t, "postgres://ledger:pw@localhost:5432/stockledger?sslmode=disable", cfg.DSN())
	})

	t.Run("escapes special characters in password", func(t *testing.T) {
		cfg := DatabaseConfig{Host: "localhost", Port: 5432, User: "user", Password: "pass@word#123", DBName: "db", SSLMode: "disable"}
		assert.Contains(t, cfg.DSN(), "pass%40word%23123")
	})
}

func TestRedisConfig_Addr(t *testing.T) {
	assert.Equal(t, "cache:6380", RedisConfig{Host: "cache", Port: 6380}.Addr())
}
