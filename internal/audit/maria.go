package audit

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	"github.com/annel0/block-gravity/internal/world/block"
	_ "github.com/go-sql-driver/mysql"
)

// MariaConfig содержит настройки подключения к MariaDB
type MariaConfig struct {
	Host     string `yaml:"host"`     // например, localhost
	Port     int    `yaml:"port"`     // например, 3306
	Database string `yaml:"database"` // например, gravity
	Username string `yaml:"username"` // пользователь БД
	Password string `yaml:"password"` // пароль БД
}

// MariaRepo реализует Repository для MariaDB
type MariaRepo struct {
	db *sql.DB
}

// NewMariaRepo создает подключение к MariaDB и таблицу журнала
func NewMariaRepo(cfg MariaConfig) (*MariaRepo, error) {
	// Устанавливаем значения по умолчанию
	if cfg.Host == "" {
		cfg.Host = "localhost"
	}
	if cfg.Port == 0 {
		cfg.Port = 3306
	}
	if cfg.Database == "" {
		cfg.Database = "gravity"
	}

	dsn := fmt.Sprintf("%s:%s@tcp(%s:%d)/%s?charset=utf8mb4&parseTime=True&loc=UTC",
		cfg.Username, cfg.Password, cfg.Host, cfg.Port, cfg.Database)

	db, err := sql.Open("mysql", dsn)
	if err != nil {
		return nil, fmt.Errorf("не удалось открыть подключение к MariaDB: %w", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("не удалось подключиться к MariaDB: %w", err)
	}

	repo := &MariaRepo{db: db}
	if err := repo.createTables(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("не удалось создать таблицы: %w", err)
	}
	return repo, nil
}

// createTables создает таблицу журнала
func (m *MariaRepo) createTables(ctx context.Context) error {
	createAuditTable := `
	CREATE TABLE IF NOT EXISTS gravity_audit (
		id CHAR(36) NOT NULL PRIMARY KEY,
		action VARCHAR(16) NOT NULL,
		x INT NOT NULL,
		y INT NOT NULL,
		z INT NOT NULL,
		kind SMALLINT UNSIGNED NOT NULL,
		name VARCHAR(64) NOT NULL,
		source VARCHAR(64) NOT NULL,
		at DATETIME(6) NOT NULL,
		INDEX idx_cell (x, y, z),
		INDEX idx_at (at)
	) ENGINE=InnoDB DEFAULT CHARSET=utf8mb4 COLLATE=utf8mb4_unicode_ci;`

	if _, err := m.db.ExecContext(ctx, createAuditTable); err != nil {
		return fmt.Errorf("не удалось создать таблицу gravity_audit: %w", err)
	}
	return nil
}

// Save записывает одну запись
func (m *MariaRepo) Save(ctx context.Context, r Record) error {
	query := `INSERT INTO gravity_audit (id, action, x, y, z, kind, name, source, at)
			  VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`

	_, err := m.db.ExecContext(ctx, query, r.ID, string(r.Action), r.Cell.X, r.Cell.Y, r.Cell.Z,
		uint16(r.Kind), r.Name, r.Source, r.At.UTC())
	if err != nil {
		return fmt.Errorf("ошибка записи журнала: %w", err)
	}
	return nil
}

// List возвращает записи от новых к старым
func (m *MariaRepo) List(ctx context.Context, q Query) ([]Record, error) {
	query, args := buildListQuery(q)

	rows, err := m.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("ошибка чтения журнала: %w", err)
	}
	defer rows.Close()

	var out []Record
	for rows.Next() {
		var (
			r      Record
			action string
			kind   uint16
		)
		if err := rows.Scan(&r.ID, &action, &r.Cell.X, &r.Cell.Y, &r.Cell.Z, &kind, &r.Name, &r.Source, &r.At); err != nil {
			return nil, fmt.Errorf("ошибка разбора записи журнала: %w", err)
		}
		r.Action = Action(action)
		r.Kind = block.BlockID(kind)
		out = append(out, r)
	}
	return out, rows.Err()
}

// buildListQuery собирает SELECT по фильтрам Query.
func buildListQuery(q Query) (string, []interface{}) {
	var (
		where []string
		args  []interface{}
	)
	if q.Cell != nil {
		where = append(where, "x = ? AND y = ? AND z = ?")
		args = append(args, q.Cell.X, q.Cell.Y, q.Cell.Z)
	}
	if q.Action != "" {
		where = append(where, "action = ?")
		args = append(args, string(q.Action))
	}
	if !q.Since.IsZero() {
		where = append(where, "at >= ?")
		args = append(args, q.Since.UTC())
	}

	var sb strings.Builder
	sb.WriteString("SELECT id, action, x, y, z, kind, name, source, at FROM gravity_audit")
	if len(where) > 0 {
		sb.WriteString(" WHERE ")
		sb.WriteString(strings.Join(where, " AND "))
	}
	sb.WriteString(" ORDER BY at DESC LIMIT ?")
	args = append(args, q.limit())
	return sb.String(), args
}

// Close закрывает подключение к БД
func (m *MariaRepo) Close() error {
	return m.db.Close()
}
