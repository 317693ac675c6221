package potato

import (
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/jinzhu/configor"

	"github.com/xdbsoft/potato/lifecycle"
	"github.com/xdbsoft/potato/rules"
)

// ModelDefinition describes the validation rules of a document type
type ModelDefinition struct {
	Type  string       `yaml:"type" json:"type"`
	Rules []rules.Rule `yaml:"rules" json:"rules"`
}

// Model builds the lifecycle model validated by the definition rules
func (d ModelDefinition) Model() *lifecycle.Model {
	m := &lifecycle.Model{Type: d.Type}
	if len(d.Rules) > 0 {
		m.Validator = rules.NewChecker(d.Rules)
	}
	return m
}

// Config contains all required information to open a database
type Config struct {
	DatabaseName string            `yaml:"database_name" json:"database_name" env:"POTATO_DATABASE_NAME"`
	Host         string            `yaml:"host" json:"host" default:"http://127.0.0.1:5984" env:"POTATO_HOST"`
	LogLevel     string            `yaml:"log_level" json:"log_level" default:"info" env:"POTATO_LOG_LEVEL"`
	Timeout      time.Duration     `yaml:"timeout" json:"timeout" default:"10s" env:"POTATO_TIMEOUT"`
	Models       []ModelDefinition `yaml:"models" json:"models"`
}

// LoadConfig reads the configuration files, environment variables overriding them
func LoadConfig(files ...string) (Config, error) {

	var cfg Config
	if err := configor.New(&configor.Config{ENVPrefix: "POTATO"}).Load(&cfg, files...); err != nil {
		return cfg, configurationError(fmt.Sprintf("unable to load configuration: %v", err))
	}

	return cfg, nil
}

// DatabaseURL resolves the url of the configured database. A database name
// that already is an http(s) url is used as is.
func (c Config) DatabaseURL() (string, error) {

	name := strings.TrimSpace(c.DatabaseName)
	if name == "" {
		return "", configurationError("database name is required")
	}

	raw := name
	if !strings.HasPrefix(name, "http://") && !strings.HasPrefix(name, "https://") {
		host := c.Host
		if host == "" {
			host = DefaultHost
		}
		raw = strings.TrimRight(host, "/") + "/" + name
	}

	u, err := url.Parse(raw)
	if err != nil || u.Host == "" {
		return "", configurationError(fmt.Sprintf("invalid database url %q", raw))
	}
	return raw, nil
}

// DefaultHost is the server used when none is configured
const DefaultHost = "http://127.0.0.1:5984"

func (c Config) registry() *lifecycle.Registry {
	r := lifecycle.NewRegistry()
	for _, d := range c.Models {
		r.Register(d.Model())
	}
	return r
}
