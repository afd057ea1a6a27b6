package config

import (
	"time"

	"github.com/spf13/viper"
)

// Config 应用配置
type Config struct {
	Server   ServerConfig   `mapstructure:"server"`
	Database DatabaseConfig `mapstructure:"database"`
	Redis    RedisConfig    `mapstructure:"redis"`
	JWT      JWTConfig      `mapstructure:"jwt"`
	LDAP     LDAPConfig     `mapstructure:"ldap"`
	Cleanup  CleanupConfig  `mapstructure:"cleanup"`
	Timezone TimezoneConfig `mapstructure:"timezone"`
}

// ServerConfig 服务器配置
type ServerConfig struct {
	Addr         string        `mapstructure:"addr"`
	Mode         string        `mapstructure:"mode"`
	ReadTimeout  time.Duration `mapstructure:"read_timeout"`
	WriteTimeout time.Duration `mapstructure:"write_timeout"`
}

// DatabaseConfig 数据库配置
type DatabaseConfig struct {
	Driver   string         `mapstructure:"driver"`
	Postgres PostgresConfig `mapstructure:"postgres"`
	MySQL    MySQLConfig    `mapstructure:"mysql"`
}

// PostgresConfig PostgreSQL 配置
type PostgresConfig struct {
	Host     string `mapstructure:"host"`
	Port     int    `mapstructure:"port"`
	User     string `mapstructure:"user"`
	Password string `mapstructure:"password"`
	DBName   string `mapstructure:"dbname"`
	SSLMode  string `mapstructure:"sslmode"`
}

// MySQLConfig MySQL 配置
type MySQLConfig struct {
	Host      string `mapstructure:"host"`
	Port      int    `mapstructure:"port"`
	User      string `mapstructure:"user"`
	Password  string `mapstructure:"password"`
	DBName    string `mapstructure:"dbname"`
	Charset   string `mapstructure:"charset"`
	ParseTime bool   `mapstructure:"parse_time"`
	Loc       string `mapstructure:"loc"`
}

// RedisConfig Redis 配置
type RedisConfig struct {
	Addr     string `mapstructure:"addr"`
	Password string `mapstructure:"password"`
	DB       int    `mapstructure:"db"`
}

// JWTConfig JWT 配置
type JWTConfig struct {
	Secret           string        `mapstructure:"secret"`
	Algorithm        string        `mapstructure:"algorithm"`
	AccessExpiry     time.Duration `mapstructure:"access_expiry"`
	RefreshExpiry    time.Duration `mapstructure:"refresh_expiry"`
	RememberMeExpiry time.Duration `mapstructure:"remember_me_expiry"`
}

// LDAPConfig 目录服务配置
type LDAPConfig struct {
	Server           string        `mapstructure:"server"`
	Port             int           `mapstructure:"port"`
	Domain           string        `mapstructure:"domain"`
	Organization     string        `mapstructure:"organization"`
	BindTimeout      time.Duration `mapstructure:"bind_timeout"`
	SearchTimeout    time.Duration `mapstructure:"search_timeout"`
	SubordinateLimit int           `mapstructure:"subordinate_limit"`
	Enabled          bool          `mapstructure:"enabled"`
}

// CleanupConfig 过期数据清理配置
type CleanupConfig struct {
	Interval         time.Duration `mapstructure:"interval"`
	AttemptRetention time.Duration `mapstructure:"attempt_retention"`
}

// TimezoneConfig 显示时区配置（令牌计算一律使用 UTC）
type TimezoneConfig struct {
	Display string `mapstructure:"display"`
}

// Load 加载配置
func Load() (*Config, error) {
	viper.SetConfigName("config")
	viper.SetConfigType("yaml")
	viper.AddConfigPath("./configs")
	viper.AddConfigPath(".")

	// 支持环境变量覆盖
	viper.AutomaticEnv()

	// 设置默认值
	setDefaults()

	if err := viper.ReadInConfig(); err != nil {
		// 配置文件不存在时使用默认值
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, err
		}
	}

	var cfg Config
	if err := viper.Unmarshal(&cfg); err != nil {
		return nil, err
	}

	return &cfg, nil
}

// LoadFromFile 从指定文件加载配置
func LoadFromFile(path string) (*Config, error) {
	viper.SetConfigFile(path)
	viper.AutomaticEnv()
	setDefaults()

	if err := viper.ReadInConfig(); err != nil {
		return nil, err
	}

	var cfg Config
	if err := viper.Unmarshal(&cfg); err != nil {
		return nil, err
	}

	return &cfg, nil
}

// setDefaults 设置默认值
func setDefaults() {
	// 服务器默认配置
	viper.SetDefault("server.addr", ":8080")
	viper.SetDefault("server.mode", "debug")
	viper.SetDefault("server.read_timeout", "10s")
	viper.SetDefault("server.write_timeout", "10s")

	// 数据库默认配置
	viper.SetDefault("database.driver", "postgres")
	viper.SetDefault("database.postgres.host", "localhost")
	viper.SetDefault("database.postgres.port", 5432)
	viper.SetDefault("database.postgres.user", "postgres")
	viper.SetDefault("database.postgres.password", "")
	viper.SetDefault("database.postgres.dbname", "hr_auth")
	viper.SetDefault("database.postgres.sslmode", "disable")

	// Redis 默认配置
	viper.SetDefault("redis.addr", "localhost:6379")
	viper.SetDefault("redis.password", "")
	viper.SetDefault("redis.db", 0)

	// JWT 默认配置
	viper.SetDefault("jwt.algorithm", "HS256")
	viper.SetDefault("jwt.access_expiry", "1h")
	viper.SetDefault("jwt.refresh_expiry", "720h")
	viper.SetDefault("jwt.remember_me_expiry", "168h")

	// 目录服务默认配置
	viper.SetDefault("ldap.server", "192.168.1.245")
	viper.SetDefault("ldap.port", 389)
	viper.SetDefault("ldap.domain", "FULINVN_TN")
	viper.SetDefault("ldap.organization", "fulinvn.com")
	viper.SetDefault("ldap.bind_timeout", "10s")
	viper.SetDefault("ldap.search_timeout", "15s")
	viper.SetDefault("ldap.subordinate_limit", 100)
	viper.SetDefault("ldap.enabled", true)

	// 清理默认配置
	viper.SetDefault("cleanup.interval", "1h")
	viper.SetDefault("cleanup.attempt_retention", "720h")

	// 时区默认配置
	viper.SetDefault("timezone.display", "Asia/Ho_Chi_Minh")
}
