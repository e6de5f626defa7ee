// Package pg — подключение к Postgres и накат фиксированной схемы.
package pg

import (
	"context"
	"database/sql"
	"time"

	_ "github.com/jackc/pgx/v5/stdlib" // driver: pgx
)

const pingTimeout = 5 * time.Second

// PoolConfig — размеры пула соединений database/sql.
type PoolConfig struct {
	MaxOpen     int
	MaxIdle     int
	MaxLifetime time.Duration
}

func DefaultPool() PoolConfig {
	return PoolConfig{MaxOpen: 10, MaxIdle: 5, MaxLifetime: 30 * time.Minute}
}

// Open открывает пул с дефолтными настройками и проверяет соединение.
func Open(url string) (*sql.DB, error) {
	return OpenPool(url, DefaultPool())
}

// OpenPool открывает пул с заданными размерами; мёртвый URL ловится сразу
// ping'ом, а не первым запросом.
func OpenPool(url string, pool PoolConfig) (*sql.DB, error) {
	db, err := sql.Open("pgx", url)
	if err != nil {
		return nil, err
	}
	db.SetConnMaxLifetime(pool.MaxLifetime)
	db.SetMaxOpenConns(pool.MaxOpen)
	db.SetMaxIdleConns(pool.MaxIdle)

	ctx, cancel := context.WithTimeout(context.Background(), pingTimeout)
	defer cancel()
	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, err
	}
	return db, nil
}
