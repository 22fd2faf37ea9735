package config

import (
	"log"
	"os"

	"gopkg.in/yaml.v2"
)

type Config struct {
	Server struct {
		Port string `yaml:"port"`
	} `yaml:"server"`
	MySQL struct {
		DSN string `yaml:"dsn"`
	} `yaml:"mysql"`
	GenAI struct {
		APIKey     string `yaml:"api_key"`
		TextModel  string `yaml:"text_model"`
		ImageModel string `yaml:"image_model"`
	} `yaml:"genai"`
	Gateway struct {
		BaseURL        string `yaml:"base_url"`
		TimeoutSeconds int    `yaml:"timeout_seconds"`
	} `yaml:"gateway"`

	Redis struct {
		Addr     string `yaml:"addr"`
		Password string `yaml:"password"`
	} `yaml:"redis"`
	Sync struct {
		InitialDelaySeconds   int `yaml:"initial_delay_seconds"`
		IntervalSeconds       int `yaml:"interval_seconds"`
		BackoffSeconds        int `yaml:"backoff_seconds"`
		ActivityWindowSeconds int `yaml:"activity_window_seconds"`
		RetryDelayMillis      int `yaml:"retry_delay_millis"`
	} `yaml:"sync"`
	MinIO struct {
		Endpoint  string `yaml:"endpoint"`
		AccessKey string `yaml:"access_key"`
		SecretKey string `yaml:"secret_key"`
		Bucket    string `yaml:"bucket"`
		UseSSL    bool   `yaml:"use_ssl"`
		Domain    string `yaml:"domain"`
	} `yaml:"minio"`
}

var AppConfig *Config

func InitConfig() {
	f, err := os.Open("config/config.yaml")
	if err != nil {
		log.Fatalf("配置文件读取失败: %v", err)
	}
	defer f.Close()
	decoder := yaml.NewDecoder(f)
	AppConfig = &Config{}
	if err := decoder.Decode(AppConfig); err != nil {
		log.Fatalf("配置文件解析失败: %v", err)
	}
	applyDefaults(AppConfig)
}

// applyDefaults 为未配置的同步/生成参数填默认值
func applyDefaults(c *Config) {
	if c.Sync.InitialDelaySeconds <= 0 {
		c.Sync.InitialDelaySeconds = 300
	}
	if c.Sync.IntervalSeconds <= 0 {
		c.Sync.IntervalSeconds = 300
	}
	if c.Sync.BackoffSeconds <= 0 {
		c.Sync.BackoffSeconds = 120
	}
	if c.Sync.ActivityWindowSeconds <= 0 {
		c.Sync.ActivityWindowSeconds = 30
	}
	if c.Sync.RetryDelayMillis <= 0 {
		c.Sync.RetryDelayMillis = 1500
	}
	if c.Gateway.TimeoutSeconds <= 0 {
		c.Gateway.TimeoutSeconds = 15
	}
	if c.GenAI.TextModel == "" {
		c.GenAI.TextModel = "gemini-2.5-flash"
	}
	if c.GenAI.ImageModel == "" {
		c.GenAI.ImageModel = "imagen-3.0-generate-002"
	}
}
