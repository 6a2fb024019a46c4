package config

import (
	"errors"
	"fmt"
	"log/slog"
	"os"
	"strings"

	"github.com/go-viper/mapstructure/v2"
	"github.com/joho/godotenv"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"
)

const (
	configFileEnvName = "REPAIRSHOP_CONFIG_FILE"
	envPrefix         = "REPAIRSHOP"
)

type consumers struct {
	RecordBlockGroup   string `mapstructure:"record_block_group"`
	RecordBlockerGroup string `mapstructure:"record_blocker_group"`
	RecordSaverGroup   string `mapstructure:"record_saver_group"`
}

type topics struct {
	RecordsFromAdmin  string `mapstructure:"records_from_admin"`
	RecordsToStorage  string `mapstructure:"records_to_storage"`
	RecordBlockStream string `mapstructure:"record_block_stream"`
}

type brokerTLS struct {
	Enabled bool   `mapstructure:"enabled"`
	CA      string `mapstructure:"ca"`
	Cert    string `mapstructure:"cert"`
	Key     string `mapstructure:"key"`
}

type brokerSASL struct {
	User string `mapstructure:"user"`
	Pass string `mapstructure:"pass"`
}

type broker struct {
	SeedBrokers        []string   `mapstructure:"seed_brokers"`
	SchemaRegistryURLs []string   `mapstructure:"schema_registry_urls"`
	Topics             topics     `mapstructure:"topics"`
	Consumers          consumers  `mapstructure:"consumers"`
	TLS                brokerTLS  `mapstructure:"tls"`
	SASL               brokerSASL `mapstructure:"sasl"`
}

type contact struct {
	Phone           string `mapstructure:"phone"`
	MessageTemplate string `mapstructure:"message_template"`
}

type Config struct {
	LogLevel       slog.Level `mapstructure:"log_level"`
	HTTPServerAddr string     `mapstructure:"http_server_addr"`
	SQLDB          string     `mapstructure:"sql_db"`
	Broker         broker     `mapstructure:"broker"`
	Contact        contact    `mapstructure:"contact"`
}

var defaults = map[string]any{
	"log_level":                             "info",
	"http_server_addr":                      ":8080",
	"sql_db":                                "",
	"broker.seed_brokers":                   []string{"localhost:9092"},
	"broker.schema_registry_urls":           []string{"http://localhost:8081"},
	"broker.topics.records_from_admin":      "records_from_admin",
	"broker.topics.records_to_storage":      "records_to_storage",
	"broker.topics.record_block_stream":     "record_block_stream",
	"broker.consumers.record_block_group":   "record_block_group",
	"broker.consumers.record_blocker_group": "record_blocker_group",
	"broker.consumers.record_saver_group":   "record_saver_group",
	"broker.tls.enabled":                    false,
	"broker.tls.ca":                         "",
	"broker.tls.cert":                       "",
	"broker.tls.key":                        "",
	"broker.sasl.user":                      "",
	"broker.sasl.pass":                      "",
	"contact.phone":                         "",
	"contact.message_template":              "",
}

// Load reads the config file named by --config or REPAIRSHOP_CONFIG_FILE.
// REPAIRSHOP_* variables override file values, e.g. REPAIRSHOP_BROKER_SASL_PASS.
// Exits the process on failure.
func Load() Config {
	if os.Getenv("APP_ENV") == "local" {
		err := godotenv.Load()
		if err != nil && !errors.Is(err, os.ErrNotExist) {
			die(err)
		}
	}

	cfg, err := LoadFile(getConfigFilepath())
	if err != nil {
		die(err)
	}
	return cfg
}

func LoadFile(path string) (Config, error) {
	const op = "config.LoadFile"

	v := viper.New()
	for key, value := range defaults {
		v.SetDefault(key, value)
	}
	v.SetEnvPrefix(envPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	v.SetConfigFile(path)
	if err := v.ReadInConfig(); err != nil {
		return Config{}, fmt.Errorf("%s: %w", op, err)
	}

	var cfg Config
	err := v.UnmarshalExact(&cfg, viper.DecodeHook(
		mapstructure.ComposeDecodeHookFunc(
			mapstructure.TextUnmarshallerHookFunc(),
			mapstructure.StringToSliceHookFunc(","),
		),
	))
	if err != nil {
		return Config{}, fmt.Errorf("%s: %w", op, err)
	}

	if err := cfg.validate(); err != nil {
		return Config{}, fmt.Errorf("%s: %w", op, err)
	}
	return cfg, nil
}

func (c Config) validate() error {
	var errs []error
	if c.SQLDB == "" {
		errs = append(errs, errors.New("sql_db: required"))
	}
	if len(c.Broker.SeedBrokers) == 0 {
		errs = append(errs, errors.New("broker.seed_brokers: required"))
	}
	if c.Contact.Phone == "" {
		errs = append(errs, errors.New("contact.phone: required"))
	}
	t := c.Broker.TLS
	if t.Enabled && (t.CA == "" || t.Cert == "" || t.Key == "") {
		errs = append(errs, errors.New("broker.tls: ca, cert and key are required"))
	}
	return errors.Join(errs...)
}

func getConfigFilepath() string {
	cmdLine := pflag.NewFlagSet(os.Args[0], pflag.ExitOnError)
	cmdLine.ParseErrorsWhitelist.UnknownFlags = true
	arg := cmdLine.String("config", "/config.yaml", "config file")
	_ = cmdLine.Parse(os.Args[1:])
	env, ok := os.LookupEnv(configFileEnvName)
	if ok {
		return env
	}
	return *arg
}

func die(err error) {
	fmt.Printf("failed to load config file: %v\n", err)
	os.Exit(2)
}

func (c Config) Print() {
	template := `
	General:
	LogLevel=%q
	HTTPServerAddr=%q
	SQLDB=%q
	ContactPhone=%q

	BrokerConfig:
	SeedBrokers=%q
	SchemaRegistryURLs=%q
	TLS=%t
	SASLUser=%q
	Topics:
		RecordsFromAdmin=%q
		RecordsToStorage=%q
		RecordBlockStream=%q
	Consumers:
		RecordBlockGroup=%q
		RecordBlockerGroup=%q
		RecordSaverGroup=%q

`
	fmt.Println("Loaded config:")
	fmt.Printf(
		strings.TrimLeft(template, "\n"),
		c.LogLevel,
		c.HTTPServerAddr,
		maskDSN(c.SQLDB),
		c.Contact.Phone,
		c.Broker.SeedBrokers,
		c.Broker.SchemaRegistryURLs,
		c.Broker.TLS.Enabled,
		c.Broker.SASL.User,
		c.Broker.Topics.RecordsFromAdmin,
		c.Broker.Topics.RecordsToStorage,
		c.Broker.Topics.RecordBlockStream,
		c.Broker.Consumers.RecordBlockGroup,
		c.Broker.Consumers.RecordBlockerGroup,
		c.Broker.Consumers.RecordSaverGroup,
	)
}

// maskDSN hides the password of a postgres URL.
func maskDSN(dsn string) string {
	scheme, rest, ok := strings.Cut(dsn, "://")
	if !ok {
		return dsn
	}
	userinfo, host, ok := strings.Cut(rest, "@")
	if !ok {
		return dsn
	}
	user, _, hasPass := strings.Cut(userinfo, ":")
	if !hasPass {
		return dsn
	}
	return scheme + "://" + user + ":***@" + host
}
