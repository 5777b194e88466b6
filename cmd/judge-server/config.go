package main

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"gopkg.in/yaml.v3"

	"dsajudge/pkg/utils/logger"
)

const (
	defaultHTTPAddr        = "0.0.0.0:8087"
	defaultReadTimeout     = 5 * time.Second
	defaultWriteTimeout    = 10 * time.Second
	defaultIdleTimeout     = 60 * time.Second
	defaultShutdownTimeout = 10 * time.Second
	defaultProblemTTL      = 5 * time.Minute
	defaultQueueSize       = 20
	defaultWorkers         = 6
	defaultPollInterval    = 5 * time.Second
	defaultBuildImage      = "checker-lang-gcc"
	defaultRunImage        = "binary-runner"
	defaultOutputCapBytes  = 2048
)

// ServerConfig holds HTTP server settings.
type ServerConfig struct {
	Addr         string        `yaml:"addr"`
	ReadTimeout  time.Duration `yaml:"readTimeout"`
	WriteTimeout time.Duration `yaml:"writeTimeout"`
	IdleTimeout  time.Duration `yaml:"idleTimeout"`
}

// DatabaseConfig holds MySQL settings.
type DatabaseConfig struct {
	DSN string `yaml:"dsn"`
}

// RedisConfig holds Redis settings. An empty addr disables the problem
// cache and lookups go straight to MySQL.
type RedisConfig struct {
	Addr string `yaml:"addr"`
	Pass string `yaml:"pass"`
}

// JudgeConfig holds judging environment settings.
type JudgeConfig struct {
	ResourceDir    string `yaml:"resourceDir"`
	UploadDir      string `yaml:"uploadDir"`
	GuestUID       int    `yaml:"guestUID"`
	GuestGID       int    `yaml:"guestGID"`
	BuildImage     string `yaml:"buildImage"`
	RunImage       string `yaml:"runImage"`
	BuildTimeoutMS int64  `yaml:"buildTimeoutMS"`
	StdoutMaxBytes int    `yaml:"stdoutMaxBytes"`
	StderrMaxBytes int    `yaml:"stderrMaxBytes"`
}

// SandboxConfig holds container host settings.
type SandboxConfig struct {
	CgroupParent string `yaml:"cgroupParent"`
	CPUSet       string `yaml:"cpuSet"`
}

// SchedulerConfig holds queue and worker pool settings.
type SchedulerConfig struct {
	QueueSize    int           `yaml:"queueSize"`
	Workers      int           `yaml:"workers"`
	PollInterval time.Duration `yaml:"pollInterval"`
}

// CacheConfig holds problem cache settings.
type CacheConfig struct {
	ProblemTTL time.Duration `yaml:"problemTTL"`
}

// AppConfig holds judge-server config.
type AppConfig struct {
	Server    ServerConfig    `yaml:"server"`
	Logger    logger.Config   `yaml:"logger"`
	Database  DatabaseConfig  `yaml:"database"`
	Redis     RedisConfig     `yaml:"redis"`
	Judge     JudgeConfig     `yaml:"judge"`
	Sandbox   SandboxConfig   `yaml:"sandbox"`
	Scheduler SchedulerConfig `yaml:"scheduler"`
	Cache     CacheConfig     `yaml:"cache"`
}

func loadYAML(path string, out interface{}) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("read config file failed: %w", err)
	}
	if err := yaml.Unmarshal(data, out); err != nil {
		return fmt.Errorf("parse config file failed: %w", err)
	}
	return nil
}

func loadAppConfig(path string) (*AppConfig, error) {
	var cfg AppConfig
	if err := loadYAML(path, &cfg); err != nil {
		return nil, err
	}
	applyEnvOverrides(&cfg)

	if cfg.Database.DSN == "" {
		return nil, fmt.Errorf("database dsn is required")
	}
	if cfg.Judge.ResourceDir == "" {
		return nil, fmt.Errorf("judge resourceDir is required")
	}
	if cfg.Judge.UploadDir == "" {
		return nil, fmt.Errorf("judge uploadDir is required")
	}
	if cfg.Judge.GuestUID <= 0 || cfg.Judge.GuestGID <= 0 {
		return nil, fmt.Errorf("guest uid/gid must be non-root")
	}

	if cfg.Server.Addr == "" {
		cfg.Server.Addr = defaultHTTPAddr
	}
	if cfg.Server.ReadTimeout == 0 {
		cfg.Server.ReadTimeout = defaultReadTimeout
	}
	if cfg.Server.WriteTimeout == 0 {
		cfg.Server.WriteTimeout = defaultWriteTimeout
	}
	if cfg.Server.IdleTimeout == 0 {
		cfg.Server.IdleTimeout = defaultIdleTimeout
	}
	if cfg.Judge.BuildImage == "" {
		cfg.Judge.BuildImage = defaultBuildImage
	}
	if cfg.Judge.RunImage == "" {
		cfg.Judge.RunImage = defaultRunImage
	}
	if cfg.Judge.StdoutMaxBytes <= 0 {
		cfg.Judge.StdoutMaxBytes = defaultOutputCapBytes
	}
	if cfg.Judge.StderrMaxBytes <= 0 {
		cfg.Judge.StderrMaxBytes = defaultOutputCapBytes
	}
	if cfg.Scheduler.QueueSize <= 0 {
		cfg.Scheduler.QueueSize = defaultQueueSize
	}
	if cfg.Scheduler.Workers <= 0 {
		cfg.Scheduler.Workers = defaultWorkers
	}
	if cfg.Scheduler.PollInterval == 0 {
		cfg.Scheduler.PollInterval = defaultPollInterval
	}
	if cfg.Cache.ProblemTTL == 0 {
		cfg.Cache.ProblemTTL = defaultProblemTTL
	}
	return &cfg, nil
}

// applyEnvOverrides lets deployment environments override the file so
// one image serves every environment.
func applyEnvOverrides(cfg *AppConfig) {
	setString(&cfg.Database.DSN, "DB_URL")
	setString(&cfg.Judge.ResourceDir, "RESOURCE_PATH")
	setString(&cfg.Judge.UploadDir, "UPLOAD_DIR_PATH")
	setString(&cfg.Sandbox.CgroupParent, "CGROUP_PARENT")
	setInt(&cfg.Judge.GuestUID, "GUEST_UID")
	setInt(&cfg.Judge.GuestGID, "GUEST_GID")
	setInt(&cfg.Judge.StdoutMaxBytes, "OUTPUT_LIMIT_STDOUT_BYTES")
	setInt(&cfg.Judge.StderrMaxBytes, "OUTPUT_LIMIT_STDERR_BYTES")
}

func setString(dst *string, key string) {
	if v := os.Getenv(key); v != "" {
		*dst = v
	}
}

func setInt(dst *int, key string) {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			*dst = n
		}
	}
}
