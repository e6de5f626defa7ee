package main

import (
	"context"
	"os"
	"time"

	"github.com/rs/zerolog"

	"fabrika/internal/api"
	"fabrika/internal/catalog"
	"fabrika/internal/config"
	"fabrika/internal/meta"
	"fabrika/internal/pg"
)

func main() {
	cfg := config.LoadWithPath("config.json")

	log := newLogger(cfg)

	if cfg.DBURL == "" {
		log.Fatal().Msg("database URL is required (FABRIKA_DB_URL or -db)")
	}

	// 1. Подключаемся к Postgres
	db, err := pg.Open(cfg.DBURL)
	if err != nil {
		log.Fatal().Err(err).Msg("postgres connection failed")
	}
	defer db.Close()

	// 2. Накатываем схему (idempotent)
	if cfg.AutoMigrate {
		if err := pg.ApplyDDL(db, log, pg.GenerateDDL()); err != nil {
			log.Fatal().Err(err).Msg("DDL apply failed")
		}
		log.Info().Msg("schema applied")
	}

	ctx, cancel := context.WithTimeout(context.Background(), time.Minute)
	defer cancel()

	// 3. Накатываем YAML-каталог схемы, если папка есть
	if st, err := os.Stat(cfg.CatalogDir); err == nil && st.IsDir() {
		cat, err := catalog.LoadDir(cfg.CatalogDir)
		if err != nil {
			log.Fatal().Err(err).Str("dir", cfg.CatalogDir).Msg("catalog load failed")
		}
		if err := catalog.Apply(ctx, db, cat, log); err != nil {
			log.Fatal().Err(err).Msg("catalog apply failed")
		}
	}

	// 4. Грузим метаданные в реестр
	snap, err := meta.Load(ctx, db)
	if err != nil {
		log.Fatal().Err(err).Msg("metadata load failed")
	}
	reg := meta.NewRegistry(snap)
	log.Info().
		Int("entity_types", len(snap.EntityTypes)).
		Int("attributes", len(snap.Attributes)).
		Int("forms", len(snap.Forms)).
		Msg("metadata loaded")

	for _, issue := range reg.Lint() {
		log.Warn().Str("entity_type", issue.EntityType).Str("field", issue.Field).
			Str("code", issue.Code).Msg(issue.Message)
	}

	// 5. Запускаем REST API сервер
	srv := api.NewServer(db, reg, log)
	log.Info().Str("port", cfg.Port).Msg("starting server")
	if err := api.RunServer(":"+cfg.Port, srv); err != nil {
		log.Fatal().Err(err).Msg("server stopped")
	}
}

func newLogger(cfg config.Config) zerolog.Logger {
	level, err := zerolog.ParseLevel(cfg.LogLevel)
	if err != nil {
		level = zerolog.InfoLevel
	}
	var log zerolog.Logger
	if cfg.LogPretty {
		log = zerolog.New(zerolog.ConsoleWriter{Out: os.Stderr}).Level(level).With().Timestamp().Logger()
	} else {
		log = zerolog.New(os.Stderr).Level(level).With().Timestamp().Logger()
	}
	return log
}
