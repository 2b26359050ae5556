package storage

import (
	"database/sql"
	"fmt"
	"strings"

	"chatarchive/internal/config"

	_ "github.com/go-sql-driver/mysql"
	_ "github.com/mattn/go-sqlite3"
)

// Open connects to the database configured for dbType.
func Open(dbType string, cfg *config.Config) (*sql.DB, error) {
	dbCfg, ok := cfg.Databases[dbType]
	if !ok {
		return nil, fmt.Errorf("database config for %s not found", dbType)
	}

	var (
		db  *sql.DB
		err error
	)

	switch strings.ToLower(dbType) {
	case "sqlite", "sqlite3":
		if dbCfg.DSN == "" {
			return nil, fmt.Errorf("sqlite dsn must be provided")
		}
		db, err = sql.Open("sqlite3", sqliteDSN(dbCfg.DSN))
		if err != nil {
			return nil, fmt.Errorf("open sqlite database: %w", err)
		}
		// in-memory databases are per connection
		if strings.Contains(dbCfg.DSN, ":memory:") {
			db.SetMaxOpenConns(1)
		}
	case "mysql":
		dsn := dbCfg.DSN
		if dsn == "" {
			params := dbCfg.Params
			if params == "" {
				// message times are DATETIME and scanned into time.Time
				params = "parseTime=true&charset=utf8mb4&loc=UTC"
			}
			port := dbCfg.Port
			if port == 0 {
				port = 3306
			}
			dsn = fmt.Sprintf("%s:%s@tcp(%s:%d)/%s?%s",
				dbCfg.Username,
				dbCfg.Password,
				dbCfg.Host,
				port,
				dbCfg.DBName,
				params,
			)
		}
		db, err = sql.Open("mysql", dsn)
		if err != nil {
			return nil, fmt.Errorf("open mysql database: %w", err)
		}
	default:
		return nil, fmt.Errorf("unsupported driver: %s", dbType)
	}

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}
	return db, nil
}

// sqliteDSN turns on foreign key enforcement for every pooled connection
// unless the dsn already sets it.
func sqliteDSN(dsn string) string {
	if strings.Contains(dsn, "_foreign_keys=") || strings.Contains(dsn, "_fk=") {
		return dsn
	}
	sep := "?"
	if strings.Contains(dsn, "?") {
		sep = "&"
	}
	return dsn + sep + "_foreign_keys=on"
}

// Migrate ensures the required tables are present.
func Migrate(db *sql.DB, driver string, cols Columns) error {
	var stmts []string
	switch strings.ToLower(driver) {
	case "sqlite", "sqlite3":
		stmts = []string{
			`CREATE TABLE IF NOT EXISTS projects (
				id INTEGER PRIMARY KEY AUTOINCREMENT,
				name TEXT NOT NULL,
				description TEXT,
				chatgpt_project_id TEXT,
				is_starred INTEGER NOT NULL DEFAULT 0,
				created_at DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP
			)`,
			`CREATE INDEX IF NOT EXISTS idx_projects_chatgpt ON projects(chatgpt_project_id)`,
			`CREATE TABLE IF NOT EXISTS conversations (
				id TEXT PRIMARY KEY,
				title TEXT NOT NULL,
				conversation_id TEXT,
				create_time REAL,
				update_time REAL,
				is_archived INTEGER NOT NULL DEFAULT 0,
				is_starred INTEGER NOT NULL DEFAULT 0,
				default_model_slug TEXT,
				project_id INTEGER,
				gizmo_id TEXT,
				FOREIGN KEY(project_id) REFERENCES projects(id) ON DELETE SET NULL
			)`,
			`CREATE INDEX IF NOT EXISTS idx_conversations_project ON conversations(project_id)`,
			`CREATE INDEX IF NOT EXISTS idx_conversations_gizmo ON conversations(gizmo_id)`,
			fmt.Sprintf(`CREATE TABLE IF NOT EXISTS messages (
				id TEXT PRIMARY KEY,
				conversation_id TEXT NOT NULL,
				parent_message_id TEXT,
				content_type TEXT NOT NULL DEFAULT 'text',
				%s TEXT NOT NULL,
				%s TEXT NOT NULL,
				author_name TEXT,
				%s DATETIME,
				status TEXT,
				end_turn INTEGER NOT NULL DEFAULT 0,
				weight REAL NOT NULL DEFAULT 1,
				channel TEXT,
				recipient TEXT,
				FOREIGN KEY(conversation_id) REFERENCES conversations(id) ON DELETE CASCADE
			)`, cols.MessageContent, cols.MessageRole, cols.MessageTime),
			`CREATE INDEX IF NOT EXISTS idx_messages_conversation ON messages(conversation_id)`,
		}
	case "mysql":
		stmts = []string{
			`CREATE TABLE IF NOT EXISTS projects (
				id BIGINT UNSIGNED NOT NULL AUTO_INCREMENT,
				name VARCHAR(255) NOT NULL,
				description TEXT,
				chatgpt_project_id VARCHAR(255),
				is_starred TINYINT(1) NOT NULL DEFAULT 0,
				created_at DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP,
				PRIMARY KEY (id),
				INDEX idx_projects_chatgpt (chatgpt_project_id)
			) ENGINE=InnoDB DEFAULT CHARSET=utf8mb4`,
			`CREATE TABLE IF NOT EXISTS conversations (
				id VARCHAR(255) NOT NULL,
				title VARCHAR(500) NOT NULL,
				conversation_id VARCHAR(255),
				create_time DOUBLE,
				update_time DOUBLE,
				is_archived TINYINT(1) NOT NULL DEFAULT 0,
				is_starred TINYINT(1) NOT NULL DEFAULT 0,
				default_model_slug VARCHAR(100),
				project_id BIGINT UNSIGNED,
				gizmo_id VARCHAR(255),
				PRIMARY KEY (id),
				INDEX idx_conversations_project (project_id),
				INDEX idx_conversations_gizmo (gizmo_id),
				CONSTRAINT fk_conversations_project FOREIGN KEY (project_id) REFERENCES projects(id) ON DELETE SET NULL
			) ENGINE=InnoDB DEFAULT CHARSET=utf8mb4`,
			fmt.Sprintf(`CREATE TABLE IF NOT EXISTS messages (
				id VARCHAR(255) NOT NULL,
				conversation_id VARCHAR(255) NOT NULL,
				parent_message_id VARCHAR(255),
				content_type VARCHAR(100) NOT NULL DEFAULT 'text',
				%s LONGTEXT NOT NULL,
				%s VARCHAR(50) NOT NULL,
				author_name VARCHAR(255),
				%s DATETIME NULL,
				status VARCHAR(100),
				end_turn TINYINT(1) NOT NULL DEFAULT 0,
				weight DOUBLE NOT NULL DEFAULT 1,
				channel VARCHAR(100),
				recipient VARCHAR(255),
				PRIMARY KEY (id),
				INDEX idx_messages_conversation (conversation_id),
				CONSTRAINT fk_messages_conversation FOREIGN KEY (conversation_id) REFERENCES conversations(id) ON DELETE CASCADE
			) ENGINE=InnoDB DEFAULT CHARSET=utf8mb4`, cols.MessageContent, cols.MessageRole, cols.MessageTime),
		}
	default:
		return fmt.Errorf("unsupported driver for migration: %s", driver)
	}

	for _, stmt := range stmts {
		if _, err := db.Exec(stmt); err != nil {
			return fmt.Errorf("migrate (%s): %w", driver, err)
		}
	}
	return nil
}
