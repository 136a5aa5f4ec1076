package config

import (
	"fmt"

	"github.com/spf13/viper"
)

var GlobalConfig *Config

// Config 全局配置
type Config struct {
	Server   ServerConfig   `mapstructure:"server"`
	Database DatabaseConfig `mapstructure:"database"`
	Auth     AuthConfig     `mapstructure:"auth"`
	Crypto   CryptoConfig   `mapstructure:"crypto"`
	Log      LogConfig      `mapstructure:"log"`
	Git      GitConfig      `mapstructure:"git"`
}

// ServerConfig 服务配置
type ServerConfig struct {
	Name string `mapstructure:"name"`
	Host string `mapstructure:"host"`
	Port int    `mapstructure:"port"`
	Mode string `mapstructure:"mode"` // debug, release
}

// DatabaseConfig 数据库配置
type DatabaseConfig struct {
	Driver          string `mapstructure:"driver"`
	Host            string `mapstructure:"host"`
	Port            int    `mapstructure:"port"`
	Database        string `mapstructure:"database"`
	Username        string `mapstructure:"username"`
	Password        string `mapstructure:"password"`
	MaxIdleConns    int    `mapstructure:"max_idle_conns"`
	MaxOpenConns    int    `mapstructure:"max_open_conns"`
	ConnMaxLifetime int    `mapstructure:"conn_max_lifetime"` // 秒
	LogLevel        string `mapstructure:"log_level"`         // SQL日志级别: silent/error/warn/info
}

// AuthConfig 认证配置。服务部署在认证代理之后，
// 用户身份从代理注入的请求头读取
type AuthConfig struct {
	// UserHeaders 用户标识候选请求头，按序取第一个非空值
	UserHeaders []string `mapstructure:"user_headers"`
	// EmailHeaders 用户邮箱候选请求头
	EmailHeaders []string `mapstructure:"email_headers"`
	// TokenHeaders 访问Token候选请求头（企业SSO透传模式使用）
	TokenHeaders []string `mapstructure:"token_headers"`
}

// CryptoConfig 加密配置
type CryptoConfig struct {
	AESKey string `mapstructure:"aes_key"` // 32字节
}

// LogConfig 日志配置
type LogConfig struct {
	Level      string `mapstructure:"level"`  // debug, info, warn, error
	Format     string `mapstructure:"format"` // json, console
	Output     string `mapstructure:"output"` // stdout, file
	FilePath   string `mapstructure:"file_path"`
	MaxSize    int    `mapstructure:"max_size"` // MB
	MaxBackups int    `mapstructure:"max_backups"`
	MaxAge     int    `mapstructure:"max_age"` // days
}

// GitConfig Git平台配置
type GitConfig struct {
	// SSOHost 企业SSO网关地址（enterprise_sso平台类型使用）
	SSOHost string `mapstructure:"sso_host"`
	// RevalidateCron 凭据定期巡检的Cron表达式，空则不巡检
	RevalidateCron string `mapstructure:"revalidate_cron"`
}

// 认证代理请求头默认候选集，可通过配置覆盖
var (
	defaultUserHeaders = []string{
		"X-Forwarded-User", "Remote-User", "X-Remote-User", "X-Auth-Request-User",
	}
	defaultEmailHeaders = []string{
		"X-Forwarded-Email", "Remote-Email", "X-Remote-Email", "X-Auth-Request-Email",
	}
	defaultTokenHeaders = []string{
		"X-Forwarded-Access-Token", "X-Auth-Request-Access-Token",
	}
)

// Load 加载配置
func Load(configPath string) (*Config, error) {
	v := viper.New()

	// 设置配置文件路径
	if configPath != "" {
		v.SetConfigFile(configPath)
	} else {
		v.SetConfigName("config")
		v.SetConfigType("yaml")
		v.AddConfigPath("./configs")
		v.AddConfigPath(".")
	}

	v.SetDefault("auth.user_headers", defaultUserHeaders)
	v.SetDefault("auth.email_headers", defaultEmailHeaders)
	v.SetDefault("auth.token_headers", defaultTokenHeaders)

	// 读取环境变量
	v.AutomaticEnv()

	// 读取配置文件
	if err := v.ReadInConfig(); err != nil {
		return nil, fmt.Errorf("读取配置文件失败: %w", err)
	}

	// 解析配置
	config := &Config{}
	if err := v.Unmarshal(config); err != nil {
		return nil, fmt.Errorf("解析配置失败: %w", err)
	}

	// 设置全局配置
	GlobalConfig = config

	return config, nil
}

// GetDSN 获取数据库DSN
func (c *DatabaseConfig) GetDSN() string {
	return fmt.Sprintf("%s:%s@tcp(%s:%d)/%s?charset=utf8mb4&parseTime=True&loc=Local",
		c.Username,
		c.Password,
		c.Host,
		c.Port,
		c.Database,
	)
}
