package config

import (
	"errors"
	"fmt"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/spf13/viper"
)

func LoadConfig(path string) (*Config, error) {
	v := viper.New()

	// default first
	setDefaults(v)

	// File Config
	v.SetConfigFile(path)
	v.SetConfigType("yaml")

	// Env Config
	v.AutomaticEnv()
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))

	// Read File
	if err := v.ReadInConfig(); err != nil {
		return nil, fmt.Errorf("read config: %w", err)
	}

	return unmarshalAndValidate(v)
}

func unmarshalAndValidate(v *viper.Viper) (*Config, error) {
	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("unmarshal config: %w", err)
	}

	// Validate
	if err := validateConfig(&cfg); err != nil {
		return nil, err
	}

	return &cfg, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("env", "development")
	v.SetDefault("service_name", "sentinel")
	v.SetDefault("port", 8080)

	v.SetDefault("log.level", "")
	v.SetDefault("log.max_size_mb", 100)
	v.SetDefault("log.max_backups", 5)

	v.SetDefault("auth.expiry_min", 60)

	v.SetDefault("store.fast", "redis")

	v.SetDefault("redis.dial_timeout", "5s")
	v.SetDefault("redis.read_timeout", "3s")
	v.SetDefault("redis.write_timeout", "3s")
	v.SetDefault("redis.pool_size", 10)
	v.SetDefault("redis.min_idle_conns", 5)

	v.SetDefault("db.max_open_conns", 50)
	v.SetDefault("db.min_idle_conns", 5)
	v.SetDefault("db.conn_max_lifetime", "1h")
	v.SetDefault("db.conn_max_idle_time", "30m")
	v.SetDefault("db.health_timeout", "5s")

	v.SetDefault("scheduler.max_concurrent_checks", 50)

	v.SetDefault("probe.status_cache_ttl", "5s")
	v.SetDefault("probe.insecure_skip_verify", false)
	v.SetDefault("probe.user_agent", "sentinel-probe/1.0")
	v.SetDefault("probe.max_body_bytes", 1<<20)

	v.SetDefault("alert.ssl_warning_days", 30)
	v.SetDefault("alert.ssl_critical_days", 7)
	v.SetDefault("alert.ssl_dedup_window", "24h")

	v.SetDefault("notification.transport", "memory")
	v.SetDefault("notification.workers", 10)
	v.SetDefault("notification.channel_size", 500)
	v.SetDefault("notification.delivery_timeout", "10s")

	v.SetDefault("retry.max_retries", 5)
	v.SetDefault("retry.base_delay", "30s")
	v.SetDefault("retry.max_delay", "30m")
	v.SetDefault("retry.poll_interval", "10s")
	v.SetDefault("retry.batch_size", 100)
	v.SetDefault("retry.visibility_timeout", "2m")
	v.SetDefault("retry.reclaim_interval", "30s")

	v.SetDefault("rabbitmq.exchange", "sentinel.alerts")
	v.SetDefault("rabbitmq.exchange_type", "direct")
	v.SetDefault("rabbitmq.queue", "sentinel.alerts.dispatch")
	v.SetDefault("rabbitmq.routing_key", "alert.created")
	v.SetDefault("rabbitmq.worker_count", 10)
}

func validateConfig(cfg *Config) error {

	validate := validator.New()

	if err := validate.Struct(cfg); err != nil {
		var ve validator.ValidationErrors
		if errors.As(err, &ve) {
			return formatValidationErrors(ve)
		}
		return err
	}

	// cross-section requirements the struct tags can't express
	if cfg.Store.Fast == "redis" && (cfg.Redis == nil || cfg.Redis.URL == "") {
		return errors.New("config validation failed:\n- field 'Config.Redis.URL' is required when store.fast is 'redis'")
	}
	if cfg.Notification.Transport == "rabbitmq" && (cfg.RabbitMQ == nil || cfg.RabbitMQ.URL == "") {
		return errors.New("config validation failed:\n- field 'Config.RabbitMQ.URL' is required when notification.transport is 'rabbitmq'")
	}
	return nil
}

func formatValidationErrors(ve validator.ValidationErrors) error {
	var sb strings.Builder
	sb.WriteString("config validation failed:\n")

	for _, fe := range ve {
		fmt.Fprintf(&sb, "- field '%s' failed on '%s'\n", fe.Namespace(), fe.Tag())
	}
	return errors.New(sb.String())
}
