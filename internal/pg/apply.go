package pg

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/jackc/pgx/v5/pgconn"
	"github.com/rs/zerolog"
)

// ApplyDDL выполняет map[phase]sql. Ожидается idempotent DDL (create ... if not exists).
func ApplyDDL(db *sql.DB, log zerolog.Logger, ddl map[string]string) error {
	// стабильно: по имени фазы
	keys := make([]string, 0, len(ddl))
	for k := range ddl {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Minute)
	defer cancel()

	for _, k := range keys {
		sqlText := strings.TrimSpace(ddl[k])
		if sqlText == "" {
			continue
		}
		if _, err := db.ExecContext(ctx, sqlText); err != nil {
			// pgx/stdlib возвращает *pgconn.PgError; duplicate_object (42710) игнорируем
			var pgErr *pgconn.PgError
			if errors.As(err, &pgErr) && pgErr.Code == "42710" {
				log.Warn().Str("phase", k).Str("constraint", pgErr.ConstraintName).
					Msg("DDL skipped (already exists)")
				continue
			}
			// подстраховка по фразе (на случай других объектов)
			e := strings.ToLower(err.Error())
			if strings.Contains(e, "already exists") || strings.Contains(e, "duplicate") {
				log.Warn().Str("phase", k).Err(err).Msg("DDL skipped (already exists)")
				continue
			}
			return fmt.Errorf("DDL apply failed at %s: %w", k, err)
		}
	}
	return nil
}
