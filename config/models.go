package config

import "time"

type LogConfig struct {
	Level      string `mapstructure:"level"`
	File       string `mapstructure:"file"`
	MaxSizeMB  int    `mapstructure:"max_size_mb"`
	MaxBackups int    `mapstructure:"max_backups"`
}

type AuthConfig struct {
	Secret    string `mapstructure:"secret" validate:"required,min=16"`
	ExpiryMin int    `mapstructure:"expiry_min" validate:"gt=0"`
}

type SecurityConfig struct {
	EncryptionKey string `mapstructure:"encryption_key" validate:"required,min=32"`
}

type DBConfig struct {
	URL             string        `mapstructure:"url" validate:"required"`
	MaxOpenConns    int32         `mapstructure:"max_open_conns" validate:"gt=0"`
	MinIdleConns    int32         `mapstructure:"min_idle_conns" validate:"gte=0"`
	ConnMaxLifetime time.Duration `mapstructure:"conn_max_lifetime"`
	ConnMaxIdleTime time.Duration `mapstructure:"conn_max_idle_time"`
	HealthTimeout   time.Duration `mapstructure:"health_timeout" validate:"gt=0"`
}

type RedisConfig struct {
	URL          string        `mapstructure:"url"`
	DialTimeout  time.Duration `mapstructure:"dial_timeout"`
	ReadTimeout  time.Duration `mapstructure:"read_timeout"`
	WriteTimeout time.Duration `mapstructure:"write_timeout"`
	PoolSize     int           `mapstructure:"pool_size"`
	MinIdleConns int           `mapstructure:"min_idle_conns"`
}

// StoreConfig selects the backing of the fast store (counters, TTL cache, retry queue).
type StoreConfig struct {
	Fast string `mapstructure:"fast" validate:"oneof=redis memory"`
}

type SchedulerConfig struct {
	MaxConcurrentChecks int64 `mapstructure:"max_concurrent_checks" validate:"gt=0"`
}

type LocationConfig struct {
	ProxyURL string `mapstructure:"proxy_url" validate:"omitempty,url"`
}

type ProbeConfig struct {
	StatusCacheTTL     time.Duration             `mapstructure:"status_cache_ttl" validate:"gt=0"`
	InsecureSkipVerify bool                      `mapstructure:"insecure_skip_verify"`
	UserAgent          string                    `mapstructure:"user_agent"`
	MaxBodyBytes       int64                     `mapstructure:"max_body_bytes" validate:"gte=0"`
	Locations          map[string]LocationConfig `mapstructure:"locations" validate:"dive"`
}

type AlertConfig struct {
	SSLWarningDays  int           `mapstructure:"ssl_warning_days" validate:"gt=0"`
	SSLCriticalDays int           `mapstructure:"ssl_critical_days" validate:"gt=0,ltfield=SSLWarningDays"`
	SSLDedupWindow  time.Duration `mapstructure:"ssl_dedup_window" validate:"gt=0"`
}

type NotificationConfig struct {
	Transport       string        `mapstructure:"transport" validate:"oneof=memory rabbitmq"`
	Workers         int           `mapstructure:"workers" validate:"gt=0"`
	ChannelSize     int           `mapstructure:"channel_size" validate:"gt=0"`
	DeliveryTimeout time.Duration `mapstructure:"delivery_timeout" validate:"gt=0"`
}

type RetryConfig struct {
	MaxRetries        int           `mapstructure:"max_retries" validate:"gte=0"`
	BaseDelay         time.Duration `mapstructure:"base_delay" validate:"gt=0"`
	MaxDelay          time.Duration `mapstructure:"max_delay" validate:"gtefield=BaseDelay"`
	PollInterval      time.Duration `mapstructure:"poll_interval" validate:"gt=0"`
	BatchSize         int           `mapstructure:"batch_size" validate:"gt=0"`
	VisibilityTimeout time.Duration `mapstructure:"visibility_timeout" validate:"gt=0"`
	ReclaimInterval   time.Duration `mapstructure:"reclaim_interval" validate:"gt=0"`
}

type RabbitMQConfig struct {
	URL          string `mapstructure:"url"`
	Exchange     string `mapstructure:"exchange"`
	ExchangeType string `mapstructure:"exchange_type"`
	Queue        string `mapstructure:"queue"`
	RoutingKey   string `mapstructure:"routing_key"`
	WorkerCount  int    `mapstructure:"worker_count"`
}

type Config struct {
	Port         int                 `mapstructure:"port" validate:"gt=0,lt=65536"`
	Env          string              `mapstructure:"env"`
	ServiceName  string              `mapstructure:"service_name"`
	Log          *LogConfig          `mapstructure:"log"`
	DB           *DBConfig           `mapstructure:"db" validate:"required"`
	Redis        *RedisConfig        `mapstructure:"redis"`
	Store        *StoreConfig        `mapstructure:"store" validate:"required"`
	Auth         *AuthConfig         `mapstructure:"auth" validate:"required"`
	Security     *SecurityConfig     `mapstructure:"security" validate:"required"`
	Scheduler    *SchedulerConfig    `mapstructure:"scheduler" validate:"required"`
	Probe        *ProbeConfig        `mapstructure:"probe" validate:"required"`
	Alert        *AlertConfig        `mapstructure:"alert" validate:"required"`
	Notification *NotificationConfig `mapstructure:"notification" validate:"required"`
	Retry        *RetryConfig        `mapstructure:"retry" validate:"required"`
	RabbitMQ     *RabbitMQConfig     `mapstructure:"rabbitmq"`
}
