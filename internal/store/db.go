package store

import (
	"fmt"
	"log/slog"
	"strings"
	"time"

	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

const memory = ":memory:"

// Store is the audit database. Path is the file it was opened from, so a
// config reload can tell whether the same database is still wanted.
type Store struct {
	DB   *gorm.DB
	Path string
}

func New(path string, quiet bool) (*Store, error) {
	config := &gorm.Config{
		Logger: logger.New(gormWriter{}, logger.Config{
			SlowThreshold:             200 * time.Millisecond,
			LogLevel:                  logger.Warn,
			IgnoreRecordNotFoundError: true,
		}),
	}
	if quiet {
		config.Logger = logger.Default.LogMode(logger.Silent)
	}

	db, err := gorm.Open(sqlite.Open(dsn(path)), config)
	if err != nil {
		return nil, fmt.Errorf("open %s: %w", path, err)
	}

	sqlDB, err := db.DB()
	if err != nil {
		return nil, err
	}

	if path == memory {
		// Every connection would get its own empty database.
		sqlDB.SetMaxOpenConns(1)
	} else {
		sqlDB.SetMaxOpenConns(4)
	}
	sqlDB.SetMaxIdleConns(2)
	sqlDB.SetConnMaxLifetime(time.Hour)

	if err := db.AutoMigrate(&ConnectionRecord{}); err != nil {
		return nil, fmt.Errorf("migrate %s: %w", path, err)
	}

	return &Store{DB: db, Path: path}, nil
}

// dsn adds the pragmas a file database is opened with. Connections are
// recorded from many goroutines, so writers wait on the lock instead of
// failing with SQLITE_BUSY.
func dsn(path string) string {
	if path == memory || strings.Contains(path, "?") {
		return path
	}
	return path + "?_busy_timeout=5000&_journal_mode=WAL"
}

func (s *Store) Close() error {
	sqlDB, err := s.DB.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}

// gormWriter sends gorm's slow query and error reports to the process logger.
type gormWriter struct{}

func (gormWriter) Printf(format string, args ...any) {
	msg := strings.Join(strings.Fields(fmt.Sprintf(format, args...)), " ")
	slog.Default().Warn(msg, "component", "gorm")
}
