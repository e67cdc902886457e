package main

import (
	"crypto/tls"
	"os"
	"time"

	"w3client/application/inet/system"
	"w3client/application/w3"
	"w3client/transport"

	"github.com/pkg/errors"
	"gopkg.in/yaml.v3"
)

// Config is the optional YAML configuration of the command. Flags given on
// the command line take precedence.
type Config struct {
	Agent        string  `yaml:"agent"`
	BufferSize   int     `yaml:"buffer_size"`
	RequestRate  float64 `yaml:"request_rate"`
	RequestBurst int     `yaml:"request_burst"`
	TransferRate int     `yaml:"transfer_rate"`
	SkipProbe    bool    `yaml:"skip_probe"`

	DialTimeout        time.Duration `yaml:"dial_timeout"`
	FTPTimeout         time.Duration `yaml:"ftp_timeout"`
	MaxHeaderBytes     uint          `yaml:"max_header_bytes"`
	InsecureSkipVerify bool          `yaml:"insecure_skip_verify"`

	Proxy *ProxyConfig `yaml:"proxy"`
}

type ProxyConfig struct {
	Address  string `yaml:"address"`
	User     string `yaml:"user"`
	Password string `yaml:"password"`
}

// LoadConfig reads path. An empty path yields the zero Config.
func LoadConfig(path string) (Config, error) {
	var cfg Config
	if path == "" {
		return cfg, nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return cfg, errors.Wrap(err, "reading config file")
	}
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return cfg, errors.Wrapf(err, "parsing config file %s", path)
	}
	return cfg, nil
}

// ClientOptions overlays cfg on the client defaults.
func (cfg Config) ClientOptions() w3.Options {
	opts := w3.DefaultOptions()
	if cfg.Agent != "" {
		opts.Agent = cfg.Agent
	}
	if cfg.BufferSize != 0 {
		opts.BufferSize = cfg.BufferSize
	}
	opts.RequestRate = cfg.RequestRate
	opts.RequestBurst = cfg.RequestBurst
	opts.TransferRate = cfg.TransferRate
	opts.SkipProbe = cfg.SkipProbe
	return opts
}

// StackOptions overlays cfg on the stack defaults.
func (cfg Config) StackOptions() system.Options {
	opts := system.DefaultOptions()
	if cfg.DialTimeout != 0 {
		opts.DialTimeout = cfg.DialTimeout
	}
	if cfg.FTPTimeout != 0 {
		opts.FTPTimeout = cfg.FTPTimeout
	}
	if cfg.MaxHeaderBytes != 0 {
		opts.Decode.MaxHeaderBytes = cfg.MaxHeaderBytes
	}
	if cfg.InsecureSkipVerify {
		opts.TLSConfig = &tls.Config{InsecureSkipVerify: true}
	}
	if cfg.Proxy != nil && cfg.Proxy.Address != "" {
		opts.Proxy = &transport.ProxyOptions{
			Address:  cfg.Proxy.Address,
			User:     cfg.Proxy.User,
			Password: cfg.Proxy.Password,
		}
	}
	return opts
}
