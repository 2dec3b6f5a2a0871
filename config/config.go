package config

import (
	"flag"
	"os"
	"strings"
	"sync"
	"time"
)

const (
	defaultServerAddress = ":8080"
	defaultDatabaseDSN   = ""
	defaultLogLevel      = "debug"
	defaultTempOrderTTL  = 24 * time.Hour
	defaultSweepInterval = 10 * time.Minute
)

// SystemAccounts are the platform-owned ledger accounts. The ids are resolved
// from configuration at startup, never hard-coded into ledger code.
type SystemAccounts struct {
	CashID         string
	CashName       string
	CardBankID     string
	CardBankName   string
	WechatBankID   string
	WechatBankName string
}

type Config struct {
	ServerAddr   string
	DatabaseDSN  string
	RedisAddr    string
	KafkaBrokers []string
	LogLevel     string
	AuthTokenKey string

	System SystemAccounts

	TempOrderTTL  time.Duration
	SweepInterval time.Duration
}

var (
	once      sync.Once
	singleton *Config
)

// New returns new Config. It parses command line and environment variables only once.
func New() (*Config, error) {
	once.Do(func() {
		cfg := Config{
			TempOrderTTL:  defaultTempOrderTTL,
			SweepInterval: defaultSweepInterval,
		}

		// initialize flags
		flag.StringVar(&cfg.ServerAddr, "a", defaultServerAddress, "marketplace server address")
		flag.StringVar(&cfg.DatabaseDSN, "d", defaultDatabaseDSN, "marketplace database DSN")
		flag.StringVar(&cfg.RedisAddr, "r", "", "redis address for settlement locks")
		flag.StringVar(&cfg.LogLevel, "l", defaultLogLevel, "log level")

		flag.Parse()

		// if environment variable is set, then using it
		if runAddrEnv := os.Getenv("RUN_ADDRESS"); runAddrEnv != "" {
			cfg.ServerAddr = runAddrEnv
		}
		if dataBaseURIEnv := os.Getenv("DATABASE_URI"); dataBaseURIEnv != "" {
			cfg.DatabaseDSN = dataBaseURIEnv
		}
		if redisAddrEnv := os.Getenv("REDIS_ADDR"); redisAddrEnv != "" {
			cfg.RedisAddr = redisAddrEnv
		}
		if logLevelEnv := os.Getenv("LOG_LEVEL"); logLevelEnv != "" {
			cfg.LogLevel = logLevelEnv
		}
		if brokersEnv := os.Getenv("KAFKA_BROKERS"); brokersEnv != "" {
			cfg.KafkaBrokers = splitCSV(brokersEnv)
		}
		if keyEnv := os.Getenv("AUTH_TOKEN_KEY"); keyEnv != "" {
			cfg.AuthTokenKey = keyEnv
		}
		if ttlEnv := os.Getenv("TEMP_ORDER_TTL"); ttlEnv != "" {
			if d, err := time.ParseDuration(ttlEnv); err == nil {
				cfg.TempOrderTTL = d
			}
		}

		cfg.System = SystemAccounts{
			CashID:         getenv("CASH_ACCOUNT_ID", "cash-bank"),
			CashName:       getenv("CASH_ACCOUNT_NAME", "Cash Bank"),
			CardBankID:     getenv("CARD_BANK_ACCOUNT_ID", "card-bank"),
			CardBankName:   getenv("CARD_BANK_ACCOUNT_NAME", "Card Bank"),
			WechatBankID:   getenv("WECHAT_BANK_ACCOUNT_ID", "wechat-bank"),
			WechatBankName: getenv("WECHAT_BANK_ACCOUNT_NAME", "Wechat Bank"),
		}

		singleton = &cfg
	})

	return singleton, nil
}

func getenv(k, def string) string {
	if v := os.Getenv(k); v != "" {
		return v
	}
	return def
}

func splitCSV(s string) []string {
	parts := strings.Split(s, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if t := strings.TrimSpace(p); t != "" {
			out = append(out, t)
		}
	}
	return out
}
