package server

import (
	"encoding/json"
	"flag"
	"fmt"
	"os"
	"strconv"

	"taskmanager/internal/domain/errors"
)

type Config struct {
	Addr        string
	Port        int
	DBStr       string
	MigratePath string
	TokenSecret string
	InMemory    bool
}

const (
	defaultAddr        = "0.0.0.0"
	defaultPort        = 8080
	defaultDBStr       = "postgresql://shouldbeinVaultuser:shouldbeinVaultpassword@db:5432/taskmanager?sslmode=disable"
	defaultMigratePath = "migrations"
	defaultTokenSecret = "shouldbeinVaultsecret"
)

var (
	addr        = flag.String("addr", defaultAddr, "адрес сервера (по умолчанию 0.0.0.0)")
	port        = flag.Int("port", defaultPort, "порт сервера (по умолчанию 8080)")
	dbstr       = flag.String("dbstr", defaultDBStr, "строка подключения к БД (по умолчанию стандартная)")
	dbDsn       = flag.String("dbdsn", "", "DSN для подключения к базе данных (приоритетнее dbstr)")
	migratePath = flag.String("migratepath", defaultMigratePath, "путь к папке с миграциями")
	tokenSecret = flag.String("secret", "", "секрет для подписи JWT")
	inMemory    = flag.Bool("inmemory", false, "хранить данные только в памяти, без БД")
	configFile  = flag.String("c", "", "путь к файлу конфигурации JSON")
	parsed      = false
)

func ReadConfig() *Config {
	if !parsed {
		flag.Parse()
		parsed = true
	}

	cfg := &Config{
		Addr:        defaultAddr,
		Port:        defaultPort,
		DBStr:       defaultDBStr,
		MigratePath: defaultMigratePath,
		TokenSecret: defaultTokenSecret,
	}

	jsonConfig := loadJSONConfig()
	if jsonConfig != nil {
		cfg = jsonConfig
	}

	cfg = applyEnvOverrides(cfg)
	cfg = applyFlagOverrides(cfg)

	if cfg.TokenSecret == "" {
		cfg.TokenSecret = defaultTokenSecret
	}

	return cfg
}

func loadJSONConfig() *Config {
	configPath := *configFile
	if configPath == "" {
		configPath = os.Getenv("CONFIG")
	}

	if configPath == "" {
		return nil
	}

	fmt.Printf("Загрузка JSON конфигурации из: %s\n", configPath)
	data, err := os.ReadFile(configPath)
	if err != nil {
		fmt.Printf("Warning: %s %s: %v\n", errors.ErrConfigFileReadFailed.Error(), configPath, err)
		return nil
	}

	var jsonConfig Config
	if err := json.Unmarshal(data, &jsonConfig); err != nil {
		fmt.Printf("Warning: %s: %v\n", errors.ErrConfigParseFailed.Error(), err)
		return nil
	}

	fmt.Printf("JSON конфигурация успешно загружена из: %s\n", configPath)
	return &jsonConfig
}

func applyEnvOverrides(cfg *Config) *Config {
	if addr := os.Getenv("ADDR"); addr != "" {
		cfg.Addr = addr
	}
	if port := os.Getenv("PORT"); port != "" {
		if p, err := strconv.Atoi(port); err != nil {
			fmt.Printf("Warning: %s в переменной окружения PORT: %s\n", errors.ErrConfigInvalidFormat.Error(), port)
		} else if p < 1 || p > 65535 {
			fmt.Printf("Warning: %s - порт должен быть от 1 до 65535: %d\n", errors.ErrConfigInvalidFormat.Error(), p)
		} else {
			cfg.Port = p
		}
	}
	if dbStr := os.Getenv("DB_STR"); dbStr != "" {
		cfg.DBStr = dbStr
	}
	if migratePath := os.Getenv("MIGRATE_PATH"); migratePath != "" {
		cfg.MigratePath = migratePath
	}
	if secret := os.Getenv("TOKEN_SECRET"); secret != "" {
		cfg.TokenSecret = secret
	}
	if inMem := os.Getenv("IN_MEMORY"); inMem != "" {
		if v, err := strconv.ParseBool(inMem); err != nil {
			fmt.Printf("Warning: %s в переменной окружения IN_MEMORY: %s\n", errors.ErrConfigInvalidFormat.Error(), inMem)
		} else {
			cfg.InMemory = v
		}
	}

	return cfg
}

// Флаги применяются последними и только если заданы явно.
func applyFlagOverrides(cfg *Config) *Config {
	set := map[string]bool{}
	flag.Visit(func(f *flag.Flag) { set[f.Name] = true })

	if set["addr"] {
		cfg.Addr = *addr
	}
	if set["port"] {
		cfg.Port = *port
	}
	if set["migratepath"] {
		cfg.MigratePath = *migratePath
	}
	if set["secret"] {
		cfg.TokenSecret = *tokenSecret
	}
	if set["inmemory"] {
		cfg.InMemory = *inMemory
	}
	if set["dbdsn"] && *dbDsn != "" {
		cfg.DBStr = *dbDsn
	} else if set["dbstr"] {
		cfg.DBStr = *dbstr
	}

	return cfg
}
