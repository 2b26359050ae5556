package config

import (
	"encoding/json"
	"errors"
	"fmt"
	"net"
	"os"
	"path/filepath"
	"regexp"
	"strconv"

	"github.com/go-playground/validator/v10"
	"github.com/joho/godotenv"
)

// Config represents runtime configuration for the importer and the report API.
type Config struct {
	BasicConfig   BasicConfig               `json:"basic_config"`
	Databases     map[string]DatabaseConfig `json:"databases" validate:"required,min=1,dive"`
	Redis         RedisConfig               `json:"redis"`
	Schema        SchemaConfig              `json:"schema"`
	Classifier    ClassifierConfig          `json:"classifier"`
	KnownProjects []KnownProject            `json:"known_projects" validate:"dive"`
}

type BasicConfig struct {
	ServerAddress string `json:"server_address"`
	Driver        string `json:"driver" validate:"omitempty,oneof=sqlite sqlite3 mysql"`
	LogLevel      string `json:"log_level" validate:"omitempty,oneof=debug info warn warning error"`
	ProgressEvery int    `json:"progress_every" validate:"gte=0"`
}

type DatabaseConfig struct {
	DSN      string `json:"dsn"`
	Username string `json:"username"`
	Password string `json:"password"`
	Host     string `json:"host"`
	Port     int    `json:"port" validate:"gte=0,lte=65535"`
	DBName   string `json:"db_name"`
	Params   string `json:"params"`
}

type RedisConfig struct {
	Host     string `json:"host"`
	Port     int    `json:"port" validate:"gte=0,lte=65535"`
	Username string `json:"username"`
	Password string `json:"password"`
	DB       int    `json:"db" validate:"gte=0"`
}

// Enabled reports whether a redis endpoint was configured.
func (r RedisConfig) Enabled() bool {
	return r.Host != ""
}

// SchemaConfig names the columns that differ between deployed versions of the
// archive schema. It is resolved once at startup.
type SchemaConfig struct {
	MessageContentColumn string `json:"message_content_column" validate:"sqlident"`
	MessageRoleColumn    string `json:"message_role_column" validate:"sqlident"`
	MessageTimeColumn    string `json:"message_time_column" validate:"sqlident"`
	ConversationKey      string `json:"conversation_key" validate:"sqlident"`
}

type ClassifierConfig struct {
	Rules []KeywordRule `json:"rules" validate:"dive"`
}

// KeywordRule maps a title keyword to a project. A nil ProjectID means the
// project is looked up by name.
type KeywordRule struct {
	Keyword   string `json:"keyword" validate:"required"`
	ProjectID *int64 `json:"project_id,omitempty" validate:"omitempty,gt=0"`
}

type KnownProject struct {
	Name             string `json:"name" validate:"required"`
	Description      string `json:"description"`
	ChatGPTProjectID string `json:"chatgpt_project_id"`
	IsStarred        bool   `json:"is_starred"`
}

var sqlIdentPattern = regexp.MustCompile(`^[a-z_][a-z0-9_]*$`)

// Load reads configuration from the provided path (defaults to config.json).
// Values from a .env file next to the working directory override database and
// redis credentials.
func Load(path string) (*Config, error) {
	if path == "" {
		path = "config.json"
	}

	absPath, err := filepath.Abs(path)
	if err != nil {
		return nil, fmt.Errorf("resolve config path: %w", err)
	}

	file, err := os.Open(absPath)
	if err != nil {
		return nil, fmt.Errorf("open config %s: %w", absPath, err)
	}
	defer file.Close()

	var cfg Config
	if err := json.NewDecoder(file).Decode(&cfg); err != nil {
		return nil, fmt.Errorf("decode config: %w", err)
	}

	if err := godotenv.Load(); err != nil && !errors.Is(err, os.ErrNotExist) {
		return nil, fmt.Errorf("load .env: %w", err)
	}
	cfg.applyEnv()
	cfg.ApplyDefaults()

	for name, db := range cfg.Databases {
		if db.DSN != "" && isSQLite(name) && !filepath.IsAbs(db.DSN) && db.DSN != ":memory:" {
			db.DSN = filepath.Join(filepath.Dir(absPath), db.DSN)
			cfg.Databases[name] = db
		}
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// ApplyDefaults fills unset fields with the values the archive has always used.
func (c *Config) ApplyDefaults() {
	if c.BasicConfig.Driver == "" {
		c.BasicConfig.Driver = "sqlite3"
	}
	if c.BasicConfig.LogLevel == "" {
		c.BasicConfig.LogLevel = "info"
	}
	if c.BasicConfig.ProgressEvery == 0 {
		c.BasicConfig.ProgressEvery = 50
	}
	if c.BasicConfig.ServerAddress == "" {
		c.BasicConfig.ServerAddress = ":8090"
	}
	if c.Schema.MessageContentColumn == "" {
		c.Schema.MessageContentColumn = "content_text"
	}
	if c.Schema.MessageRoleColumn == "" {
		c.Schema.MessageRoleColumn = "author_role"
	}
	if c.Schema.MessageTimeColumn == "" {
		c.Schema.MessageTimeColumn = "create_time"
	}
	if c.Schema.ConversationKey == "" {
		c.Schema.ConversationKey = "id"
	}
	if c.Classifier.Rules == nil {
		c.Classifier.Rules = DefaultKeywordRules()
	}
	if c.Redis.Enabled() && c.Redis.Port == 0 {
		c.Redis.Port = 6379
	}
}

// Validate checks struct tags, including column identifiers.
func (c *Config) Validate() error {
	v := validator.New()
	if err := v.RegisterValidation("sqlident", validateSQLIdent); err != nil {
		return fmt.Errorf("register validation: %w", err)
	}
	if err := v.Struct(c); err != nil {
		var verrs validator.ValidationErrors
		if errors.As(err, &verrs) && len(verrs) > 0 {
			e := verrs[0]
			return fmt.Errorf("invalid config: %s failed on %q (value %v)", e.Namespace(), e.Tag(), e.Value())
		}
		return fmt.Errorf("invalid config: %w", err)
	}
	if _, ok := c.Databases[c.BasicConfig.Driver]; !ok {
		return fmt.Errorf("database config for %s not found", c.BasicConfig.Driver)
	}
	return nil
}

// DefaultKeywordRules is the keyword table the archive shipped with. Order
// matters: the first keyword contained in a title wins.
func DefaultKeywordRules() []KeywordRule {
	id := func(v int64) *int64 { return &v }
	return []KeywordRule{
		{Keyword: "fiverr", ProjectID: id(4)},
		{Keyword: "github", ProjectID: id(1)},
		{Keyword: "xubuntu", ProjectID: id(3)},
		{Keyword: "wordpress"},
		{Keyword: "processing"},
		{Keyword: "p5.js"},
		{Keyword: "mysql"},
		{Keyword: "contabo", ProjectID: id(9)},
	}
}

func (c *Config) applyEnv() {
	driver := c.BasicConfig.Driver
	if v := os.Getenv("CHATARCHIVE_DB_DRIVER"); v != "" {
		driver = v
		c.BasicConfig.Driver = v
	}
	if driver == "" {
		driver = "sqlite3"
	}
	db := c.Databases[driver]
	changed := false
	set := func(dst *string, key string) {
		if v, ok := os.LookupEnv(key); ok {
			*dst = v
			changed = true
		}
	}
	set(&db.Host, "CHATARCHIVE_DB_HOST")
	set(&db.Username, "CHATARCHIVE_DB_USER")
	set(&db.Password, "CHATARCHIVE_DB_PASSWORD")
	set(&db.DBName, "CHATARCHIVE_DB_NAME")
	set(&db.DSN, "CHATARCHIVE_DB_DSN")
	if v := os.Getenv("CHATARCHIVE_DB_PORT"); v != "" {
		if port, err := strconv.Atoi(v); err == nil {
			db.Port = port
			changed = true
		}
	}
	if changed {
		if c.Databases == nil {
			c.Databases = map[string]DatabaseConfig{}
		}
		c.Databases[driver] = db
	}
	if v := os.Getenv("CHATARCHIVE_REDIS_ADDR"); v != "" {
		host, port := splitHostPort(v)
		c.Redis.Host = host
		if port > 0 {
			c.Redis.Port = port
		}
	}
}

func splitHostPort(addr string) (string, int) {
	host, portStr, err := net.SplitHostPort(addr)
	if err != nil {
		return addr, 0
	}
	port, err := strconv.Atoi(portStr)
	if err != nil {
		return host, 0
	}
	return host, port
}

func isSQLite(driver string) bool {
	return driver == "sqlite" || driver == "sqlite3"
}

func validateSQLIdent(fl validator.FieldLevel) bool {
	s := fl.Field().String()
	return s == "" || sqlIdentPattern.MatchString(s)
}
