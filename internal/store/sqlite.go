package store

import (
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	_ "github.com/mattn/go-sqlite3"

	"github.com/xiaopang/profilebot/internal/model"
)

// Memory opens a process-private database that disappears on Close.
const Memory = ":memory:"

// Store 活动日志存储
type Store struct {
	db *sql.DB
}

// New 创建存储实例。dbPath 为空或 ":memory:" 时使用内存库。
func New(dbPath string) (*Store, error) {
	dsn := Memory
	if dbPath != "" && dbPath != Memory {
		// 确保目录存在
		if err := os.MkdirAll(filepath.Dir(dbPath), 0755); err != nil {
			return nil, fmt.Errorf("create db dir: %w", err)
		}
		dsn = dbPath + "?_journal_mode=WAL"
	}

	db, err := sql.Open("sqlite3", dsn)
	if err != nil {
		return nil, fmt.Errorf("open db: %w", err)
	}
	// every pooled connection to :memory: would be a separate database
	db.SetMaxOpenConns(1)

	store := &Store{db: db}
	if err := store.migrate(); err != nil {
		db.Close()
		return nil, fmt.Errorf("migrate: %w", err)
	}
	return store, nil
}

// migrate 数据库迁移
func (s *Store) migrate() error {
	schema := `
	CREATE TABLE IF NOT EXISTS activity_logs (
		seq INTEGER PRIMARY KEY AUTOINCREMENT,
		id TEXT NOT NULL UNIQUE,
		ts INTEGER NOT NULL,
		user_id TEXT NOT NULL,
		action TEXT NOT NULL,
		details TEXT NOT NULL DEFAULT '',
		level TEXT NOT NULL
	);

	CREATE INDEX IF NOT EXISTS idx_activity_ts ON activity_logs(ts);
	CREATE INDEX IF NOT EXISTS idx_activity_user ON activity_logs(user_id);
	CREATE INDEX IF NOT EXISTS idx_activity_action ON activity_logs(action);
	`
	_, err := s.db.Exec(schema)
	return err
}

// Close 关闭数据库
func (s *Store) Close() error {
	return s.db.Close()
}

// SaveLog appends one entry.
func (s *Store) SaveLog(e model.LogEntry) error {
	_, err := s.db.Exec(`
		INSERT INTO activity_logs (id, ts, user_id, action, details, level)
		VALUES (?, ?, ?, ?, ?, ?)
	`, e.ID, e.Timestamp.UnixNano(), e.UserID, e.Action, e.Details, string(e.Level))
	return err
}

// TrimLogs keeps only the newest keep entries.
func (s *Store) TrimLogs(keep int) (int64, error) {
	result, err := s.db.Exec(`
		DELETE FROM activity_logs
		WHERE seq NOT IN (SELECT seq FROM activity_logs ORDER BY seq DESC LIMIT ?)
	`, keep)
	if err != nil {
		return 0, err
	}
	return result.RowsAffected()
}

// QueryLogs returns the newest query.Limit entries matching the optional
// user and action filters, oldest first. Limit <= 0 means no limit.
func (s *Store) QueryLogs(query model.LogQuery) ([]model.LogEntry, error) {
	var where []string
	var args []any
	if query.UserID != "" {
		where = append(where, "user_id = ?")
		args = append(args, query.UserID)
	}
	if query.Action != "" {
		where = append(where, "action = ?")
		args = append(args, query.Action)
	}

	q := "SELECT id, ts, user_id, action, details, level FROM activity_logs"
	if len(where) > 0 {
		q += " WHERE " + strings.Join(where, " AND ")
	}
	q += " ORDER BY seq DESC"
	if query.Limit > 0 {
		q += fmt.Sprintf(" LIMIT %d", query.Limit)
	}

	rows, err := s.db.Query(q, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var logs []model.LogEntry
	for rows.Next() {
		var (
			e     model.LogEntry
			ts    int64
			level string
		)
		if err := rows.Scan(&e.ID, &ts, &e.UserID, &e.Action, &e.Details, &level); err != nil {
			return nil, err
		}
		e.Timestamp = time.Unix(0, ts)
		e.Level = model.LogLevel(level)
		logs = append(logs, e)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	// 倒序查询后翻转为时间正序
	for i, j := 0, len(logs)-1; i < j; i, j = i+1, j-1 {
		logs[i], logs[j] = logs[j], logs[i]
	}
	return logs, nil
}

// LogStats 汇总日志条目
func (s *Store) LogStats() (model.LogStats, error) {
	var stats model.LogStats
	err := s.db.QueryRow(`
		SELECT
			COUNT(*),
			COALESCE(SUM(CASE WHEN level = 'error' THEN 1 ELSE 0 END), 0),
			COALESCE(SUM(CASE WHEN level = 'warn' THEN 1 ELSE 0 END), 0),
			COUNT(DISTINCT user_id)
		FROM activity_logs
	`).Scan(&stats.TotalLogs, &stats.ErrorCount, &stats.WarnCount, &stats.UniqueUsers)
	return stats, err
}

// CleanOldLogs 清理 before 及更早的日志
func (s *Store) CleanOldLogs(before time.Time) (int64, error) {
	result, err := s.db.Exec(`DELETE FROM activity_logs WHERE ts <= ?`, before.UnixNano())
	if err != nil {
		return 0, err
	}
	return result.RowsAffected()
}
