package config

import (
	"fmt"
	"net/url"
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

const (
	defaultBackendTimeout       = 15 * time.Second
	defaultPrimaryPollInterval  = 5 * time.Second
	defaultOffCyclePollInterval = 20 * time.Second
	defaultPrimaryKeyPrefix     = "payroll"
	defaultOffCycleKeyPrefix    = "offCycle"
	defaultLogLevel             = "info"
	defaultLogFormat            = "json"
)

// Config はアプリケーション全体の設定を表現します。
type Config struct {
	Server   ServerConfig   `yaml:"server"`
	Database DatabaseConfig `yaml:"database"`
	Backend  BackendConfig  `yaml:"backend"`
	Payroll  PayrollConfig  `yaml:"payroll"`
	Log      LogConfig      `yaml:"log"`
}

// ServerConfig は gRPC サーバーに関する設定です。
type ServerConfig struct {
	ListenAddr string `yaml:"listen_addr"`
}

// DatabaseConfig は PostgreSQL 接続に関する設定です。
type DatabaseConfig struct {
	Host               string        `yaml:"host"`
	Port               int           `yaml:"port"`
	User               string        `yaml:"user"`
	Password           string        `yaml:"password"`
	Name               string        `yaml:"name"`
	SSLMode            string        `yaml:"ssl_mode"`
	MaxOpenConns       int           `yaml:"max_open_conns"`
	MaxIdleConns       int           `yaml:"max_idle_conns"`
	ConnMaxLifetime    time.Duration `yaml:"-"`
	ConnMaxIdleTime    time.Duration `yaml:"-"`
	ConnMaxLifetimeRaw string        `yaml:"conn_max_lifetime"`
	ConnMaxIdleTimeRaw string        `yaml:"conn_max_idle_time"`
}

// BackendConfig は計算・承認バックエンドへの接続設定です。
type BackendConfig struct {
	BaseURL    string        `yaml:"base_url"`
	Timeout    time.Duration `yaml:"-"`
	TimeoutRaw string        `yaml:"timeout"`
}

// PayrollConfig はバリアントごとのオーケストレーター設定です。
type PayrollConfig struct {
	Primary  VariantConfig `yaml:"primary"`
	OffCycle VariantConfig `yaml:"off_cycle"`
}

// VariantConfig は 1 つのバリアントの挙動を決める設定です。未指定の項目は既定値で補完します。
type VariantConfig struct {
	PollInterval             time.Duration `yaml:"-"`
	PollIntervalRaw          string        `yaml:"poll_interval"`
	AllowBackFromApproval    *bool         `yaml:"allow_back_from_approval"`
	PartitionStartersLeavers *bool         `yaml:"partition_starters_leavers"`
	KeyPrefix                string        `yaml:"key_prefix"`
}

// LogConfig はログ出力の設定です。
type LogConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
}

// Load は指定されたパスから設定ファイルを読み込みます。
func Load(path string) (*Config, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("config: read file %s: %w", path, err)
	}

	var cfg Config
	if err := yaml.Unmarshal(b, &cfg); err != nil {
		return nil, fmt.Errorf("config: parse yaml: %w", err)
	}

	if err := cfg.validateAndNormalize(); err != nil {
		return nil, err
	}

	return &cfg, nil
}

func (c *Config) validateAndNormalize() error {
	if c.Server.ListenAddr == "" {
		return fmt.Errorf("config: server.listen_addr must be set")
	}

	if err := c.Database.validateAndNormalize(); err != nil {
		return err
	}
	if err := c.Backend.validateAndNormalize(); err != nil {
		return err
	}
	if err := c.Payroll.Primary.normalize("payroll.primary", defaultPrimaryPollInterval, true, true, defaultPrimaryKeyPrefix); err != nil {
		return err
	}
	if err := c.Payroll.OffCycle.normalize("payroll.off_cycle", defaultOffCyclePollInterval, false, false, defaultOffCycleKeyPrefix); err != nil {
		return err
	}
	if c.Payroll.Primary.KeyPrefix == c.Payroll.OffCycle.KeyPrefix {
		return fmt.Errorf("config: payroll variants must use distinct key_prefix values (%q)", c.Payroll.Primary.KeyPrefix)
	}
	return c.Log.validateAndNormalize()
}

func (d *DatabaseConfig) validateAndNormalize() error {
	if d.Host == "" {
		return fmt.Errorf("config: database.host must be set")
	}
	if d.Port == 0 {
		return fmt.Errorf("config: database.port must be set")
	}
	if d.User == "" {
		return fmt.Errorf("config: database.user must be set")
	}
	if d.Password == "" {
		return fmt.Errorf("config: database.password must be set")
	}
	if d.Name == "" {
		return fmt.Errorf("config: database.name must be set")
	}
	if d.SSLMode == "" {
		d.SSLMode = "disable"
	}

	lifetime, err := parseDurationAllowEmpty(d.ConnMaxLifetimeRaw)
	if err != nil {
		return fmt.Errorf("config: database.conn_max_lifetime: %w", err)
	}
	d.ConnMaxLifetime = lifetime

	idleTime, err := parseDurationAllowEmpty(d.ConnMaxIdleTimeRaw)
	if err != nil {
		return fmt.Errorf("config: database.conn_max_idle_time: %w", err)
	}
	d.ConnMaxIdleTime = idleTime

	return nil
}

func (b *BackendConfig) validateAndNormalize() error {
	b.BaseURL = strings.TrimSpace(b.BaseURL)
	if b.BaseURL == "" {
		return fmt.Errorf("config: backend.base_url must be set")
	}
	u, err := url.Parse(b.BaseURL)
	if err != nil || u.Scheme == "" || u.Host == "" {
		return fmt.Errorf("config: backend.base_url must be an absolute URL: %q", b.BaseURL)
	}

	timeout, err := parseDurationAllowEmpty(b.TimeoutRaw)
	if err != nil {
		return fmt.Errorf("config: backend.timeout: %w", err)
	}
	if timeout == 0 {
		timeout = defaultBackendTimeout
	}
	b.Timeout = timeout
	return nil
}

func (v *VariantConfig) normalize(section string, pollInterval time.Duration, allowBack, partition bool, keyPrefix string) error {
	interval, err := parseDurationAllowEmpty(v.PollIntervalRaw)
	if err != nil {
		return fmt.Errorf("config: %s.poll_interval: %w", section, err)
	}
	if interval < 0 {
		return fmt.Errorf("config: %s.poll_interval must be positive", section)
	}
	if interval == 0 {
		interval = pollInterval
	}
	v.PollInterval = interval

	if v.AllowBackFromApproval == nil {
		v.AllowBackFromApproval = &allowBack
	}
	if v.PartitionStartersLeavers == nil {
		v.PartitionStartersLeavers = &partition
	}

	v.KeyPrefix = strings.TrimSpace(v.KeyPrefix)
	if v.KeyPrefix == "" {
		v.KeyPrefix = keyPrefix
	}
	if strings.Contains(v.KeyPrefix, ":") {
		return fmt.Errorf("config: %s.key_prefix must not contain ':'", section)
	}
	return nil
}

// BackAllowed は承認ステップから戻れるかを返します。
func (v VariantConfig) BackAllowed() bool {
	return v.AllowBackFromApproval != nil && *v.AllowBackFromApproval
}

// Partitioned は開始者・退職者を分割表示するかを返します。
func (v VariantConfig) Partitioned() bool {
	return v.PartitionStartersLeavers != nil && *v.PartitionStartersLeavers
}

func (l *LogConfig) validateAndNormalize() error {
	l.Level = strings.ToLower(strings.TrimSpace(l.Level))
	if l.Level == "" {
		l.Level = defaultLogLevel
	}
	l.Format = strings.ToLower(strings.TrimSpace(l.Format))
	if l.Format == "" {
		l.Format = defaultLogFormat
	}
	if l.Format != "json" && l.Format != "console" {
		return fmt.Errorf("config: log.format must be json or console, got %q", l.Format)
	}
	return nil
}

func parseDurationAllowEmpty(raw string) (time.Duration, error) {
	if raw == "" {
		return 0, nil
	}
	d, err := time.ParseDuration(raw)
	if err != nil {
		return 0, err
	}
	return d, nil
}

// DSN は pgx と golang-migrate 用の接続文字列を返します。認証情報はエスケープします。
func (d DatabaseConfig) DSN() string {
	u := url.URL{
		Scheme:   "postgres",
		User:     url.UserPassword(d.User, d.Password),
		Host:     d.Host + ":" + strconv.Itoa(d.Port),
		Path:     "/" + d.Name,
		RawQuery: url.Values{"sslmode": []string{d.SSLMode}}.Encode(),
	}
	return u.String()
}
