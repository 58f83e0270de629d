package db

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/go-sql-driver/mysql"
	"github.com/rs/zerolog/log"

	"github.com/yourorg/stoplist/internal/config"
)

// DSN builds the MariaDB data source name for cfg.
func DSN(cfg config.DBConfig) string {
	mc := mysql.NewConfig()
	mc.User = cfg.User
	mc.Passwd = cfg.Pass
	mc.Net = "tcp"
	mc.Addr = fmt.Sprintf("%s:%s", cfg.Host, cfg.Port)
	mc.DBName = cfg.Name
	mc.ParseTime = true
	mc.Loc = time.UTC
	mc.Params = map[string]string{"charset": "utf8mb4"}
	return mc.FormatDSN()
}

// Connect opens and pings the archive database.
func Connect(ctx context.Context, cfg config.DBConfig) (*sql.DB, error) {
	conn, err := sql.Open("mysql", DSN(cfg))
	if err != nil {
		return nil, err
	}
	conn.SetMaxOpenConns(4)
	conn.SetConnMaxLifetime(5 * time.Minute)

	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := conn.PingContext(pingCtx); err != nil {
		conn.Close()
		return nil, fmt.Errorf("ping %s:%s/%s: %w", cfg.Host, cfg.Port, cfg.Name, err)
	}
	return conn, nil
}

// EnsureSchema creates the snapshot table if it does not exist.
func EnsureSchema(ctx context.Context, db *sql.DB, skip bool) error {
	if skip {
		log.Info().Msg("EnsureSchema: skipped (DB_SKIP_SCHEMA)")
		return nil
	}

	if _, err := db.ExecContext(ctx, `
		CREATE TABLE IF NOT EXISTS stop_snapshots (
			id BIGINT AUTO_INCREMENT PRIMARY KEY,
			run_id CHAR(36) NOT NULL,
			route_id VARCHAR(64) NOT NULL,
			direction VARCHAR(8) NOT NULL,
			fetched_at DATETIME(3) NOT NULL,
			seq INT NOT NULL,
			arrival_info VARCHAR(64) NOT NULL DEFAULT '',
			stop_number VARCHAR(16) NOT NULL DEFAULT '',
			stop_name VARCHAR(255) NOT NULL DEFAULT '',
			stop_id VARCHAR(64) NOT NULL DEFAULT '',
			latitude DOUBLE NOT NULL,
			longitude DOUBLE NOT NULL,
			KEY idx_stop_snapshots_route (route_id, direction, fetched_at),
			KEY idx_stop_snapshots_run (run_id)
		) ENGINE=InnoDB DEFAULT CHARSET=utf8mb4;
	`); err != nil {
		return fmt.Errorf("create stop_snapshots: %w", err)
	}

	return nil
}
