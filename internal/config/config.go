package config

import (
	"fmt"
	"os"
	"time"

	"github.com/go-playground/validator/v10"
	"gopkg.in/yaml.v3"
)

// Wildcard is the database entry that expands to every non-system schema
// discovered on the server at evaluation time.
const Wildcard = "*"

// Field-level retention defaults, applied when a policy omits them.
const (
	DefaultKeepLast = 10
	DefaultMaxGB    = 5.0
)

// DefaultPaths are probed in order when no explicit config path is given.
var DefaultPaths = []string{"config.yml", "/etc/mariaback/config.yml"}

var validate = validator.New()

// Config is the top-level configuration loaded from config.yml.
type Config struct {
	Storage       Storage       `yaml:"storage" validate:"required"`
	Log           Log           `yaml:"log"`
	Daemon        Daemon        `yaml:"daemon"`
	Retention     Retention     `yaml:"retention"`
	Notifications Notifications `yaml:"notifications"`
	Offsite       Offsite       `yaml:"offsite"`
	Servers       []Server      `yaml:"servers" validate:"required,min=1,dive"`
}

// Storage locates the artifact store on local disk.
type Storage struct {
	Path string `yaml:"path" validate:"required"`
}

// Log configures process logging. File rotation only applies when File is set.
type Log struct {
	Level      string `yaml:"level"`
	File       string `yaml:"file"`
	MaxSizeMB  int    `yaml:"max_size_mb"`
	MaxBackups int    `yaml:"max_backups"`
}

// Daemon configures the schedule loop and the optional status listener.
type Daemon struct {
	PollIntervalSecs int    `yaml:"poll_interval" validate:"min=0"`
	Listen           string `yaml:"listen"`
}

// PollInterval returns the schedule loop tick period.
func (d Daemon) PollInterval() time.Duration {
	return time.Duration(d.PollIntervalSecs) * time.Second
}

// Retention holds the default pruning policy plus per-database overrides
// keyed by database name. A nil Default means the retention block was absent,
// which is distinct from a policy of explicit zeros.
type Retention struct {
	Default   *RetentionPolicy           `yaml:"default"`
	Overrides map[string]RetentionPolicy `yaml:"overrides"`
}

// PolicyFor returns the policy governing one database's artifacts.
func (r Retention) PolicyFor(database string) RetentionPolicy {
	if p, ok := r.Overrides[database]; ok {
		return p
	}
	if r.Default != nil {
		return *r.Default
	}
	return RetentionPolicy{KeepLast: DefaultKeepLast, MaxGB: DefaultMaxGB}
}

// RetentionPolicy bounds one database's artifact set. Both rules apply:
// count first, then total size. A zero KeepLast or MaxGB is honored and
// prunes everything under that rule.
type RetentionPolicy struct {
	KeepLast int
	MaxGB    float64
}

// UnmarshalYAML fills omitted fields with the defaults while keeping
// explicit zeros.
func (p *RetentionPolicy) UnmarshalYAML(value *yaml.Node) error {
	var raw struct {
		KeepLast *int     `yaml:"keep_last"`
		MaxGB    *float64 `yaml:"max_gb"`
	}
	if err := value.Decode(&raw); err != nil {
		return err
	}

	p.KeepLast = DefaultKeepLast
	p.MaxGB = DefaultMaxGB
	if raw.KeepLast != nil {
		p.KeepLast = *raw.KeepLast
	}
	if raw.MaxGB != nil {
		p.MaxGB = *raw.MaxGB
	}
	return nil
}

// MaxBytes converts the size bound to bytes.
func (p RetentionPolicy) MaxBytes() int64 {
	return int64(p.MaxGB * float64(1<<30))
}

// Notifications configures the webhook and its message templates. Templates
// may reference {host}, {database} and {error}.
type Notifications struct {
	WebhookURL       string `yaml:"webhook_url"`
	OnSuccess        string `yaml:"on_success"`
	OnFailure        string `yaml:"on_failure"`
	OnRestore        string `yaml:"on_restore"`
	OnRestoreFailure string `yaml:"on_restore_failure"`
}

// Offsite configures replication of finished artifacts to an S3-compatible
// bucket. Leaving Bucket empty disables it.
type Offsite struct {
	Endpoint  string `yaml:"endpoint"`
	Region    string `yaml:"region"`
	Bucket    string `yaml:"bucket"`
	AccessKey string `yaml:"access_key"`
	SecretKey string `yaml:"secret_key"`
	PathStyle bool   `yaml:"path_style"`
}

// Enabled reports whether offsite replication is configured.
func (o Offsite) Enabled() bool {
	return o.Bucket != ""
}

// Server is one MariaDB server to back up. At most one of Schedule,
// IntervalHours and Cron may be set; with none set the server only runs on
// demand.
type Server struct {
	Host          string         `yaml:"host" validate:"required"`
	Port          int            `yaml:"port" validate:"min=1,max=65535"`
	User          string         `yaml:"user" validate:"required"`
	Password      string         `yaml:"password"`
	Container     string         `yaml:"container"`
	TimeoutSecs   int            `yaml:"timeout" validate:"min=1"`
	Schedule      string         `yaml:"schedule"`
	IntervalHours int            `yaml:"interval_hours" validate:"min=0"`
	Cron          string         `yaml:"cron"`
	Databases     []DatabaseSpec `yaml:"databases" validate:"required,min=1"`
}

// Timeout returns the per-dump time limit for this server.
func (s Server) Timeout() time.Duration {
	return time.Duration(s.TimeoutSecs) * time.Second
}

// DatabaseSpec is one entry under a server's databases list: either a bare
// name or a mapping carrying a per-database timeout override.
type DatabaseSpec struct {
	Name        string `yaml:"name"`
	TimeoutSecs int    `yaml:"timeout"`
}

// UnmarshalYAML accepts both the scalar and the mapping form.
func (d *DatabaseSpec) UnmarshalYAML(value *yaml.Node) error {
	if value.Kind == yaml.ScalarNode {
		d.Name = value.Value
		return nil
	}

	type plain DatabaseSpec
	var p plain
	if err := value.Decode(&p); err != nil {
		return err
	}
	if p.Name == "" {
		return fmt.Errorf("database entry missing name (line %d)", value.Line)
	}
	*d = DatabaseSpec(p)
	return nil
}

// IsWildcard reports whether this entry selects all discovered databases.
func (d DatabaseSpec) IsWildcard() bool {
	return d.Name == Wildcard
}

// ServerByHost returns the server entry with an exact host match.
func (c *Config) ServerByHost(host string) (Server, bool) {
	for _, s := range c.Servers {
		if s.Host == host {
			return s, true
		}
	}
	return Server{}, false
}

// Load reads the configuration file at path. An empty path probes
// DefaultPaths in order.
func Load(path string) (*Config, error) {
	if path == "" {
		for _, p := range DefaultPaths {
			if _, err := os.Stat(p); err == nil {
				path = p
				break
			}
		}
		if path == "" {
			return nil, fmt.Errorf("no config file found (searched %v)", DefaultPaths)
		}
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config: %w", err)
	}
	return Parse(data)
}

// Parse parses, defaults and validates configuration from raw bytes.
func Parse(data []byte) (*Config, error) {
	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("parse config: %w", err)
	}

	cfg.applyDefaults()

	// Passwords may reference environment variables like ${DB1_PASSWORD},
	// so secrets can live in .env instead of the config file.
	for i := range cfg.Servers {
		cfg.Servers[i].Password = os.ExpandEnv(cfg.Servers[i].Password)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return &cfg, nil
}

func (c *Config) applyDefaults() {
	if c.Log.Level == "" {
		c.Log.Level = "info"
	}
	if c.Log.MaxSizeMB == 0 {
		c.Log.MaxSizeMB = 50
	}
	if c.Log.MaxBackups == 0 {
		c.Log.MaxBackups = 3
	}
	if c.Daemon.PollIntervalSecs == 0 {
		c.Daemon.PollIntervalSecs = 60
	}
	if c.Notifications.OnSuccess == "" {
		c.Notifications.OnSuccess = "Backup of {database} on {host} completed successfully."
	}
	if c.Notifications.OnFailure == "" {
		c.Notifications.OnFailure = "Backup of {database} on {host} failed: {error}"
	}
	if c.Notifications.OnRestore == "" {
		c.Notifications.OnRestore = "Restore of {database} on {host} completed successfully."
	}
	if c.Notifications.OnRestoreFailure == "" {
		c.Notifications.OnRestoreFailure = "Restore of {database} on {host} failed: {error}"
	}
	if c.Offsite.Region == "" {
		c.Offsite.Region = "us-east-1"
	}
	for i := range c.Servers {
		if c.Servers[i].Port == 0 {
			c.Servers[i].Port = 3306
		}
		if c.Servers[i].TimeoutSecs == 0 {
			c.Servers[i].TimeoutSecs = 3600
		}
	}
}

// Validate checks structural constraints plus the one-trigger-per-server rule.
func (c *Config) Validate() error {
	if err := validate.Struct(c); err != nil {
		return fmt.Errorf("invalid config: %w", err)
	}

	for _, s := range c.Servers {
		triggers := 0
		if s.Schedule != "" {
			triggers++
		}
		if s.IntervalHours > 0 {
			triggers++
		}
		if s.Cron != "" {
			triggers++
		}
		if triggers > 1 {
			return fmt.Errorf("server %s: schedule, interval_hours and cron are mutually exclusive", s.Host)
		}
	}
	return nil
}
