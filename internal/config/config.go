package config

import (
	"encoding/json"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"gopkg.in/yaml.v3"

	"github.com/vango-dev/ssrdata/internal/errors"
)

const (
	// ConfigFileName is the name of the JSON configuration file.
	ConfigFileName = "ssrdata.json"

	// YAMLConfigFileName is the name of the YAML configuration file.
	YAMLConfigFileName = "ssrdata.yaml"

	// DefaultPort is the default server port.
	DefaultPort = 3000

	// DefaultHost is the default server host.
	DefaultHost = "localhost"

	// DefaultGraphQLTimeout bounds each GraphQL request.
	DefaultGraphQLTimeout = "10s"

	// DefaultShutdownTimeout bounds graceful shutdown.
	DefaultShutdownTimeout = "10s"

	// DefaultTokenCookie is the cookie carrying the auth token.
	DefaultTokenCookie = "token"

	// DefaultMetricsPath is where Prometheus metrics are served.
	DefaultMetricsPath = "/metrics"

	// DefaultLivePath is where the live mount WebSocket is served.
	DefaultLivePath = "/_ssr/live"

	// DefaultStaticPrefix is where static files are served.
	DefaultStaticPrefix = "/static/"

	// DefaultMaxPasses bounds the number of drain passes.
	DefaultMaxPasses = 32
)

// fileNames are tried in order by Load and Find.
var fileNames = []string{ConfigFileName, YAMLConfigFileName, "ssrdata.yml"}

// Config represents ssrdata.json (or ssrdata.yaml).
type Config struct {
	// Name is the application name, used as the tracing service name when
	// Tracing.ServiceName is empty.
	Name string `json:"name,omitempty" yaml:"name,omitempty"`

	Server  ServerConfig  `json:"server" yaml:"server"`
	GraphQL GraphQLConfig `json:"graphql" yaml:"graphql"`
	Auth    AuthConfig    `json:"auth" yaml:"auth"`
	Render  RenderConfig  `json:"render" yaml:"render"`
	Drain   DrainConfig   `json:"drain" yaml:"drain"`
	Metrics MetricsConfig `json:"metrics" yaml:"metrics"`
	Tracing TracingConfig `json:"tracing" yaml:"tracing"`
	Archive ArchiveConfig `json:"archive" yaml:"archive"`
	Live    LiveConfig    `json:"live" yaml:"live"`
	Static  StaticConfig  `json:"static" yaml:"static"`

	// Pages are served by `ssrdata serve`.
	Pages []PageConfig `json:"pages,omitempty" yaml:"pages,omitempty" validate:"dive"`

	// configPath stores the path where the config was loaded from.
	configPath string
}

// ServerConfig contains HTTP server settings.
type ServerConfig struct {
	Host string `json:"host,omitempty" yaml:"host,omitempty"`
	Port int    `json:"port,omitempty" yaml:"port,omitempty" validate:"gte=0,lte=65535"`

	// ShutdownTimeout is a duration string such as "10s".
	ShutdownTimeout string `json:"shutdownTimeout,omitempty" yaml:"shutdownTimeout,omitempty" validate:"omitempty,duration"`
}

// GraphQLConfig configures the query transport.
type GraphQLConfig struct {
	// Endpoint is the GraphQL URL. Empty disables network fetches.
	Endpoint string `json:"endpoint,omitempty" yaml:"endpoint,omitempty" validate:"omitempty,url"`

	// Timeout is a duration string such as "10s".
	Timeout string `json:"timeout,omitempty" yaml:"timeout,omitempty" validate:"omitempty,duration"`

	// Headers are sent with every request.
	Headers map[string]string `json:"headers,omitempty" yaml:"headers,omitempty"`
}

// AuthConfig configures token lookup.
type AuthConfig struct {
	// TokenCookie is the cookie holding the bearer token.
	TokenCookie string `json:"tokenCookie,omitempty" yaml:"tokenCookie,omitempty" validate:"omitempty,printascii"`
}

// RenderConfig configures HTML output.
type RenderConfig struct {
	Pretty bool   `json:"pretty,omitempty" yaml:"pretty,omitempty"`
	Lang   string `json:"lang,omitempty" yaml:"lang,omitempty"`

	// Stream flushes the document head before the body is rendered.
	Stream bool `json:"stream,omitempty" yaml:"stream,omitempty"`
}

// DrainConfig configures the data drain.
type DrainConfig struct {
	// Concurrency limits fetches running at once in a pass. 0 is no limit.
	Concurrency int `json:"concurrency,omitempty" yaml:"concurrency,omitempty" validate:"gte=0"`

	// MaxPasses bounds the number of passes.
	MaxPasses int `json:"maxPasses,omitempty" yaml:"maxPasses,omitempty" validate:"gte=0"`
}

// MetricsConfig configures Prometheus metrics.
type MetricsConfig struct {
	Enabled   bool   `json:"enabled,omitempty" yaml:"enabled,omitempty"`
	Namespace string `json:"namespace,omitempty" yaml:"namespace,omitempty"`
	Path      string `json:"path,omitempty" yaml:"path,omitempty" validate:"omitempty,startswith=/"`
}

// TracingConfig configures OpenTelemetry spans.
type TracingConfig struct {
	Enabled     bool   `json:"enabled,omitempty" yaml:"enabled,omitempty"`
	ServiceName string `json:"serviceName,omitempty" yaml:"serviceName,omitempty"`
}

// ArchiveConfig configures the S3 snapshot archive.
type ArchiveConfig struct {
	Enabled bool   `json:"enabled,omitempty" yaml:"enabled,omitempty"`
	Bucket  string `json:"bucket,omitempty" yaml:"bucket,omitempty" validate:"required_if=Enabled true"`
	Prefix  string `json:"prefix,omitempty" yaml:"prefix,omitempty"`
	Region  string `json:"region,omitempty" yaml:"region,omitempty"`

	// Endpoint overrides the S3 endpoint (MinIO, LocalStack).
	Endpoint string `json:"endpoint,omitempty" yaml:"endpoint,omitempty" validate:"omitempty,url"`
}

// StaticConfig configures static file serving (the client bundle that
// mounts pages from their payload).
type StaticConfig struct {
	// Dir is the directory to serve. Empty disables static serving.
	Dir    string `json:"dir,omitempty" yaml:"dir,omitempty"`
	Prefix string `json:"prefix,omitempty" yaml:"prefix,omitempty" validate:"omitempty,startswith=/"`

	// CacheControl is "none" or "production".
	CacheControl string `json:"cacheControl,omitempty" yaml:"cacheControl,omitempty" validate:"omitempty,oneof=none production"`

	// Headers are added to every static response.
	Headers map[string]string `json:"headers,omitempty" yaml:"headers,omitempty"`

	// Manifest names the bundler's asset manifest inside Dir. Script and
	// stylesheet sources given as bare names resolve through it.
	Manifest string `json:"manifest,omitempty" yaml:"manifest,omitempty"`
}

// PageConfig declares a page backed by a single GraphQL query. Variables
// are read from the URL query string by name.
type PageConfig struct {
	Path      string   `json:"path" yaml:"path" validate:"required,startswith=/"`
	Title     string   `json:"title,omitempty" yaml:"title,omitempty"`
	Operation string   `json:"operation,omitempty" yaml:"operation,omitempty"`
	Query     string   `json:"query" yaml:"query" validate:"required"`
	Variables []string `json:"variables,omitempty" yaml:"variables,omitempty"`
}

// LiveConfig configures the live mount WebSocket.
type LiveConfig struct {
	Enabled bool   `json:"enabled,omitempty" yaml:"enabled,omitempty"`
	Path    string `json:"path,omitempty" yaml:"path,omitempty" validate:"omitempty,startswith=/"`

	// AllowedOrigins lists origins accepted on upgrade. Empty means same
	// origin only.
	AllowedOrigins []string `json:"allowedOrigins,omitempty" yaml:"allowedOrigins,omitempty"`
}

// New creates a new Config with default values.
func New() *Config {
	cfg := &Config{
		Name:    "ssrdata",
		Metrics: MetricsConfig{Enabled: true, Namespace: "ssrdata"},
		Live:    LiveConfig{Enabled: true},
	}
	cfg.applyDefaults()
	return cfg
}

var validate = newValidator()

func newValidator() *validator.Validate {
	v := validator.New()
	_ = v.RegisterValidation("duration", func(fl validator.FieldLevel) bool {
		_, err := time.ParseDuration(fl.Field().String())
		return err == nil
	})
	return v
}

// Load reads configuration from the specified directory, trying
// ssrdata.json then ssrdata.yaml.
func Load(dir string) (*Config, error) {
	for _, name := range fileNames {
		path := filepath.Join(dir, name)
		if _, err := os.Stat(path); err == nil {
			return LoadFile(path)
		}
	}
	return nil, errors.New("E121").
		WithDetail("No " + ConfigFileName + " or " + YAMLConfigFileName + " found in " + dir)
}

// LoadFile reads configuration from the specified file path. The format
// follows the extension: .yaml and .yml are YAML, anything else JSON.
func LoadFile(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, errors.New("E121").
				WithDetail("No config file at " + path)
		}
		return nil, errors.New("E120").Wrap(err)
	}

	cfg := New()
	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, errors.New("E120").
				WithDetail("Failed to parse " + filepath.Base(path) + ": " + err.Error()).
				WithSuggestion("Check that the file is valid YAML")
		}
	default:
		if err := json.Unmarshal(data, cfg); err != nil {
			return nil, errors.New("E120").
				WithDetail("Failed to parse " + filepath.Base(path) + ": " + err.Error()).
				WithSuggestion("Check that the file is valid JSON")
		}
	}

	cfg.configPath = path
	cfg.applyDefaults()

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// SaveTo writes the configuration to path, as YAML for .yaml and .yml
// paths and as JSON otherwise.
func (c *Config) SaveTo(path string) error {
	var data []byte
	var err error
	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		data, err = yaml.Marshal(c)
	default:
		data, err = json.MarshalIndent(c, "", "  ")
		data = append(data, '\n')
	}
	if err != nil {
		return errors.New("E120").Wrap(err)
	}

	if err := os.WriteFile(path, data, 0644); err != nil {
		return errors.New("E120").Wrap(err)
	}

	c.configPath = path
	return nil
}

// Path returns the path where the config was loaded from.
func (c *Config) Path() string {
	return c.configPath
}

// applyDefaults fills in default values for empty fields.
func (c *Config) applyDefaults() {
	if c.Server.Host == "" {
		c.Server.Host = DefaultHost
	}
	if c.Server.Port == 0 {
		c.Server.Port = DefaultPort
	}
	if c.Server.ShutdownTimeout == "" {
		c.Server.ShutdownTimeout = DefaultShutdownTimeout
	}
	if c.GraphQL.Timeout == "" {
		c.GraphQL.Timeout = DefaultGraphQLTimeout
	}
	if c.Auth.TokenCookie == "" {
		c.Auth.TokenCookie = DefaultTokenCookie
	}
	if c.Render.Lang == "" {
		c.Render.Lang = "en"
	}
	if c.Drain.MaxPasses == 0 {
		c.Drain.MaxPasses = DefaultMaxPasses
	}
	if c.Metrics.Path == "" {
		c.Metrics.Path = DefaultMetricsPath
	}
	if c.Live.Path == "" {
		c.Live.Path = DefaultLivePath
	}
	if c.Static.Prefix == "" {
		c.Static.Prefix = DefaultStaticPrefix
	}
}

// Validate checks the configuration against its field constraints.
func (c *Config) Validate() error {
	if err := validate.Struct(c); err != nil {
		var fields []string
		if verrs, ok := err.(validator.ValidationErrors); ok {
			for _, fe := range verrs {
				fields = append(fields, fe.Namespace()+" ("+fe.Tag()+")")
			}
		}
		e := errors.New("E120").Wrap(err)
		if len(fields) > 0 {
			e = e.WithDetail("Invalid fields: " + strings.Join(fields, ", "))
		}
		return e
	}
	return nil
}

// Address returns host:port for the HTTP server.
func (c *Config) Address() string {
	return c.Server.Host + ":" + strconv.Itoa(c.Server.Port)
}

// ServiceName is the tracing service name, defaulting to Name.
func (c *Config) ServiceName() string {
	if c.Tracing.ServiceName != "" {
		return c.Tracing.ServiceName
	}
	return c.Name
}

// GraphQLTimeout returns GraphQL.Timeout as a duration.
func (c *Config) GraphQLTimeout() time.Duration {
	return parseDuration(c.GraphQL.Timeout, DefaultGraphQLTimeout)
}

// ShutdownTimeout returns Server.ShutdownTimeout as a duration.
func (c *Config) ShutdownTimeout() time.Duration {
	return parseDuration(c.Server.ShutdownTimeout, DefaultShutdownTimeout)
}

func parseDuration(s, fallback string) time.Duration {
	d, err := time.ParseDuration(s)
	if err != nil {
		d, _ = time.ParseDuration(fallback)
	}
	return d
}

// Exists checks if a config file exists in the given directory.
func Exists(dir string) bool {
	for _, name := range fileNames {
		if _, err := os.Stat(filepath.Join(dir, name)); err == nil {
			return true
		}
	}
	return false
}

// Find walks up from startDir and returns the first directory holding a
// config file.
func Find(startDir string) (string, error) {
	dir, err := filepath.Abs(startDir)
	if err != nil {
		return "", err
	}

	for {
		if Exists(dir) {
			return dir, nil
		}

		parent := filepath.Dir(dir)
		if parent == dir {
			return "", errors.New("E121").
				WithDetail("No " + ConfigFileName + " found in " + startDir + " or any parent directory")
		}
		dir = parent
	}
}

// LoadFromWorkingDir loads configuration found from the current working
// directory.
func LoadFromWorkingDir() (*Config, error) {
	wd, err := os.Getwd()
	if err != nil {
		return nil, err
	}

	root, err := Find(wd)
	if err != nil {
		return nil, err
	}

	return Load(root)
}
