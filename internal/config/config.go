package config

import (
	"encoding/json"
	"flag"
	"os"
	"strconv"
	"strings"
)

type Config struct {
	Port        string `json:"port"`
	DBURL       string `json:"dbUrl"`
	CatalogDir  string `json:"catalogDir"`
	AutoMigrate bool   `json:"autoMigrate"`

	LogLevel  string `json:"logLevel"`
	LogPretty bool   `json:"logPretty"`
}

func def() Config {
	return Config{
		Port:        "8080",
		DBURL:       "",
		CatalogDir:  "catalog",
		AutoMigrate: true,

		LogLevel:  "info",
		LogPretty: false,
	}
}

func loadJSON(path string) (Config, error) {
	c := def()
	b, err := os.ReadFile(path)
	if err != nil {
		return c, err
	}
	if err := json.Unmarshal(b, &c); err != nil {
		return c, err
	}
	return c, nil
}

func getenv(k, fallback string) string {
	if v, ok := os.LookupEnv(k); ok && strings.TrimSpace(v) != "" {
		return v
	}
	return fallback
}
func getenvBool(k string, fallback bool) bool {
	if v, ok := os.LookupEnv(k); ok {
		v = strings.TrimSpace(strings.ToLower(v))
		if v == "1" || v == "true" || v == "yes" {
			return true
		}
		if v == "0" || v == "false" || v == "no" {
			return false
		}
	}
	return fallback
}

// LoadWithPath читает JSON по указанному пути, потом применяет ENV и флаги.
func LoadWithPath(jsonPath string) Config {
	cfg := def()

	// JSON (если файл существует)
	if st, err := os.Stat(jsonPath); err == nil && !st.IsDir() {
		if c2, err := loadJSON(jsonPath); err == nil {
			cfg = c2
		}
	}

	// ENV overrides
	cfg.Port = getenv("FABRIKA_PORT", cfg.Port)
	cfg.DBURL = getenv("FABRIKA_DB_URL", cfg.DBURL)
	cfg.CatalogDir = getenv("FABRIKA_CATALOG_DIR", cfg.CatalogDir)
	cfg.AutoMigrate = getenvBool("FABRIKA_AUTO_MIGRATE", cfg.AutoMigrate)
	cfg.LogLevel = getenv("FABRIKA_LOG_LEVEL", cfg.LogLevel)
	cfg.LogPretty = getenvBool("FABRIKA_LOG_PRETTY", cfg.LogPretty)

	// Flags overrides
	configPath := flag.String("config", jsonPath, "Path to config JSON")
	port := flag.String("port", cfg.Port, "HTTP port")
	db := flag.String("db", cfg.DBURL, "Postgres URL")
	catalogDir := flag.String("catalog", cfg.CatalogDir, "Path to schema catalog directory")
	auto := flag.String("auto-migrate", strconv.FormatBool(cfg.AutoMigrate), "Apply DDL on start (true/false)")
	logLevel := flag.String("log-level", cfg.LogLevel, "Log level (trace/debug/info/warn/error)")

	flag.Parse()

	// Если через флаг передали другой конфиг — перечитаем
	if *configPath != jsonPath {
		return LoadWithPath(*configPath)
	}

	cfg.Port = strings.TrimSpace(*port)
	cfg.DBURL = strings.TrimSpace(*db)
	cfg.CatalogDir = strings.TrimSpace(*catalogDir)
	cfg.AutoMigrate = strings.EqualFold(strings.TrimSpace(*auto), "true") ||
		strings.EqualFold(strings.TrimSpace(*auto), "1") ||
		strings.EqualFold(strings.TrimSpace(*auto), "yes")
	cfg.LogLevel = strings.TrimSpace(*logLevel)

	return cfg
}
