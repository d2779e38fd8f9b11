package config

import (
	"errors"
	"fmt"
	"reflect"
	"strings"
	"time"

	"github.com/shopspring/decimal"
	"github.com/spf13/cobra"

	"github.com/simaogato/indexfund-backend/internal/domain"
)

// Storage backends
const (
	StorageMemory   = "memory"
	StoragePostgres = "postgres"
)

// ServerConfig is the configuration of the serve command
type ServerConfig struct {
	Log        Log
	Database   Database
	Redis      Redis
	Server     Server
	Fund       Fund
	Governance Governance
	Auth       Auth
}

type Log struct {
	Level  string
	Path   string
	Pretty bool
}

type Database struct {
	Storage  string
	Host     string
	Port     string
	Database string
	User     string
	Password string
	SSLMode  string `mapstructure:"ssl-mode"`
}

type Redis struct {
	Addr           string
	Password       string
	DB             int
	OutboundStream string `mapstructure:"outbound-stream"`
	InboundStream  string `mapstructure:"inbound-stream"`
	Group          string
	Consumer       string
	MaxLen         int64 `mapstructure:"max-len"`
}

type Server struct {
	Port int
}

// Fund holds the runtime constants of the fund
type Fund struct {
	Treasury           string
	Controller         string
	SelfLocation       string        `mapstructure:"self-location"`
	Reporters          []string      `mapstructure:"reporters"`
	TransferableAssets []string      `mapstructure:"transferable-assets"`
	MinimumRedemption  string        `mapstructure:"minimum-redemption"`
	GenesisFile        string        `mapstructure:"genesis-file"`
	GenesisTime        string        `mapstructure:"genesis-time"`
	BlockTime          time.Duration `mapstructure:"block-time"`
}

type Governance struct {
	MinPeriod       uint64 `mapstructure:"min-period"`
	MaxPeriod       uint64 `mapstructure:"max-period"`
	MinCouncilVotes int    `mapstructure:"min-council-votes"`
	Threshold       string
}

// Auth maps API tokens to accounts. Tokens are "token=account" pairs.
type Auth struct {
	Tokens []string
	Roots  []string
}

func SetupLogFlags(logConf *Log, cmd *cobra.Command) {
	cmd.PersistentFlags().StringVar(&logConf.Level, "log.level", "info", "log level")
	cmd.PersistentFlags().BoolVar(&logConf.Pretty, "log.pretty", false, "pretty logs")
	cmd.PersistentFlags().StringVar(&logConf.Path, "log.path", "", "log file path, appended to stdout output")
}

func SetupDatabaseFlags(databaseConf *Database, cmd *cobra.Command) {
	cmd.PersistentFlags().StringVar(&databaseConf.Storage, "database.storage", StorageMemory, "storage backend (memory or postgres)")
	cmd.PersistentFlags().StringVar(&databaseConf.Host, "database.host", "localhost", "database host")
	cmd.PersistentFlags().StringVar(&databaseConf.Port, "database.port", "5432", "database port")
	cmd.PersistentFlags().StringVar(&databaseConf.Database, "database.database", "indexfund", "database name")
	cmd.PersistentFlags().StringVar(&databaseConf.User, "database.user", "postgres", "database user")
	cmd.PersistentFlags().StringVar(&databaseConf.Password, "database.password", "", "database password")
	cmd.PersistentFlags().StringVar(&databaseConf.SSLMode, "database.ssl-mode", "disable", "database sslmode")
}

func SetupRedisFlags(redisConf *Redis, cmd *cobra.Command) {
	cmd.PersistentFlags().StringVar(&redisConf.Addr, "redis.addr", "", "redis address; messaging is disabled when empty")
	cmd.PersistentFlags().StringVar(&redisConf.Password, "redis.password", "", "redis password")
	cmd.PersistentFlags().IntVar(&redisConf.DB, "redis.db", 0, "redis database")
	cmd.PersistentFlags().StringVar(&redisConf.OutboundStream, "redis.outbound-stream", "indexfund:xcm:outbound", "stream receiving outbound instructions")
	cmd.PersistentFlags().StringVar(&redisConf.InboundStream, "redis.inbound-stream", "indexfund:xcm:inbound", "stream carrying confirmations")
	cmd.PersistentFlags().StringVar(&redisConf.Group, "redis.group", "indexfund", "consumer group for confirmations")
	cmd.PersistentFlags().StringVar(&redisConf.Consumer, "redis.consumer", "indexfund-1", "consumer name within the group")
	cmd.PersistentFlags().Int64Var(&redisConf.MaxLen, "redis.max-len", 100000, "approximate cap of the outbound stream (0 keeps everything)")
}

func SetupServerFlags(serverConf *Server, cmd *cobra.Command) {
	cmd.PersistentFlags().IntVar(&serverConf.Port, "server.port", 8080, "inbound grpc port")
}

func SetupFundFlags(fundConf *Fund, cmd *cobra.Command) {
	cmd.PersistentFlags().StringVar(&fundConf.Treasury, "fund.treasury", "treasury", "account holding the basket assets")
	cmd.PersistentFlags().StringVar(&fundConf.Controller, "fund.controller", "controller", "account controlling remote bonds")
	cmd.PersistentFlags().StringVar(&fundConf.SelfLocation, "fund.self-location", "../parachain(2000)", "this chain as seen from the relay chain")
	cmd.PersistentFlags().StringSliceVar(&fundConf.Reporters, "fund.reporters", nil, "accounts allowed to report prices (empty allows any signed account)")
	cmd.PersistentFlags().StringSliceVar(&fundConf.TransferableAssets, "fund.transferable-assets", nil, "assets that can be sent cross-chain")
	cmd.PersistentFlags().StringVar(&fundConf.MinimumRedemption, "fund.minimum-redemption", "1", "smallest redeemable amount of index units")
	cmd.PersistentFlags().StringVar(&fundConf.GenesisFile, "fund.genesis-file", "", "genesis yaml applied at startup")
	cmd.PersistentFlags().StringVar(&fundConf.GenesisTime, "fund.genesis-time", "", "RFC3339 time of block 0 (default is process start)")
	cmd.PersistentFlags().DurationVar(&fundConf.BlockTime, "fund.block-time", 6*time.Second, "duration of one block")
}

func SetupGovernanceFlags(govConf *Governance, cmd *cobra.Command) {
	cmd.PersistentFlags().Uint64Var(&govConf.MinPeriod, "governance.min-period", 10, "blocks before a proposal may close without quorum")
	cmd.PersistentFlags().Uint64Var(&govConf.MaxPeriod, "governance.max-period", 100800, "blocks after which a proposal expires")
	cmd.PersistentFlags().IntVar(&govConf.MinCouncilVotes, "governance.min-council-votes", 1, "council members that must vote")
	cmd.PersistentFlags().StringVar(&govConf.Threshold, "governance.threshold", "0.5", "share of the council that must vote aye")
}

func SetupAuthFlags(authConf *Auth, cmd *cobra.Command) {
	cmd.PersistentFlags().StringSliceVar(&authConf.Tokens, "auth.tokens", nil, "token=account pairs")
	cmd.PersistentFlags().StringSliceVar(&authConf.Roots, "auth.roots", nil, "accounts with root origin")
}

// Validate checks every section
func (conf *ServerConfig) Validate() error {
	if err := validateDatabaseConf(conf.Database); err != nil {
		return err
	}
	if _, err := conf.Fund.Location(); err != nil {
		return err
	}
	if _, err := conf.Fund.Minimum(); err != nil {
		return err
	}
	if _, err := conf.Fund.Genesis(time.Time{}); err != nil {
		return err
	}
	if conf.Fund.BlockTime <= 0 {
		return errors.New("fund block-time must be positive")
	}
	if _, err := conf.Governance.Rules(); err != nil {
		return err
	}
	if _, err := conf.Auth.TokenTable(); err != nil {
		return err
	}
	if conf.Server.Port <= 0 || conf.Server.Port > 65535 {
		return fmt.Errorf("server port %d out of range", conf.Server.Port)
	}
	return nil
}

func validateDatabaseConf(dbConf Database) error {
	switch dbConf.Storage {
	case StorageMemory:
		return nil
	case StoragePostgres:
	default:
		return fmt.Errorf("unknown database storage %q", dbConf.Storage)
	}
	if dbConf.Host == "" {
		return errors.New("database host must be set")
	}
	if dbConf.Port == "" {
		return errors.New("database port must be set")
	}
	if dbConf.Database == "" {
		return errors.New("database name (i.e. database) must be set")
	}
	if dbConf.User == "" {
		return errors.New("database user must be set")
	}
	return nil
}

// ConnectionString returns the lib/pq connection string
func (dbConf Database) ConnectionString() string {
	return fmt.Sprintf("host=%s port=%s user=%s password=%s dbname=%s sslmode=%s",
		dbConf.Host, dbConf.Port, dbConf.User, dbConf.Password, dbConf.Database, dbConf.SSLMode)
}

// Location parses the fund's own location
func (f Fund) Location() (domain.Location, error) {
	loc, err := domain.ParseLocation(f.SelfLocation)
	if err != nil {
		return loc, fmt.Errorf("fund self-location: %w", err)
	}
	return loc, nil
}

// Minimum parses the minimum redemption
func (f Fund) Minimum() (domain.Balance, error) {
	b, err := domain.ParseBalance(f.MinimumRedemption)
	if err != nil {
		return 0, fmt.Errorf("fund minimum-redemption: %w", err)
	}
	return b, nil
}

// Genesis returns the time of block 0, or fallback when none is configured
func (f Fund) Genesis(fallback time.Time) (time.Time, error) {
	if f.GenesisTime == "" {
		return fallback, nil
	}
	t, err := time.Parse(time.RFC3339, f.GenesisTime)
	if err != nil {
		return t, fmt.Errorf("fund genesis-time: %w", err)
	}
	return t, nil
}

// ReporterAccounts converts the reporter list
func (f Fund) ReporterAccounts() []domain.AccountID {
	return accounts(f.Reporters)
}

// Assets converts the transferable asset list
func (f Fund) Assets() []domain.AssetID {
	out := make([]domain.AssetID, 0, len(f.TransferableAssets))
	for _, a := range f.TransferableAssets {
		out = append(out, domain.AssetID(strings.TrimSpace(a)))
	}
	return out
}

// Rules converts the governance section into voting rules
func (g Governance) Rules() (domain.VotingRules, error) {
	var rules domain.VotingRules
	if g.MinPeriod > g.MaxPeriod {
		return rules, fmt.Errorf("governance min-period %d exceeds max-period %d", g.MinPeriod, g.MaxPeriod)
	}
	if g.MinCouncilVotes < 0 {
		return rules, errors.New("governance min-council-votes must not be negative")
	}
	threshold, err := decimal.NewFromString(g.Threshold)
	if err != nil {
		return rules, fmt.Errorf("governance threshold: %w", err)
	}
	if threshold.IsNegative() || threshold.GreaterThan(decimal.NewFromInt(1)) {
		return rules, fmt.Errorf("governance threshold %s must be within [0, 1]", threshold)
	}
	return domain.VotingRules{
		Period:          domain.VotingPeriodRange{Min: g.MinPeriod, Max: g.MaxPeriod},
		MinCouncilVotes: g.MinCouncilVotes,
		Threshold:       threshold,
	}, nil
}

// TokenTable parses the token=account pairs
func (a Auth) TokenTable() (map[string]domain.AccountID, error) {
	table := make(map[string]domain.AccountID, len(a.Tokens))
	for _, pair := range a.Tokens {
		token, account, ok := strings.Cut(pair, "=")
		token, account = strings.TrimSpace(token), strings.TrimSpace(account)
		if !ok || token == "" || account == "" {
			return nil, fmt.Errorf("auth token %q must be token=account", pair)
		}
		if _, dup := table[token]; dup {
			return nil, fmt.Errorf("auth token for %s is listed twice", account)
		}
		table[token] = domain.AccountID(account)
	}
	return table, nil
}

// RootAccounts converts the root list
func (a Auth) RootAccounts() []domain.AccountID {
	return accounts(a.Roots)
}

func accounts(list []string) []domain.AccountID {
	out := make([]domain.AccountID, 0, len(list))
	for _, s := range list {
		out = append(out, domain.AccountID(strings.TrimSpace(s)))
	}
	return out
}

// CheckSuperfluousKeys returns the config file keys that no section reads
func CheckSuperfluousKeys(keys []string) []string {
	valid := make(map[string]struct{})
	for _, section := range []any{Log{}, Database{}, Redis{}, Server{}, Fund{}, Governance{}, Auth{}} {
		for _, key := range getValidConfigKeys(section, "") {
			valid[key] = struct{}{}
		}
	}

	var ignored []string
	for _, key := range keys {
		if _, ok := valid[key]; !ok {
			ignored = append(ignored, key)
		}
	}
	return ignored
}

// Reads the Viper mapstructure tag to get the valid keys for a given config struct
func getValidConfigKeys(section any, baseName string) (keys []string) {
	v := reflect.ValueOf(section)
	typeOfS := v.Type()

	if baseName == "" {
		baseName = strings.ToLower(typeOfS.Name())
	}

	for i := 0; i < v.NumField(); i++ {
		field := typeOfS.Field(i)
		name := field.Tag.Get("mapstructure")
		if name == "" {
			name = field.Name
		}
		keys = append(keys, fmt.Sprintf("%v.%v", baseName, strings.ToLower(name)))
	}
	return
}
