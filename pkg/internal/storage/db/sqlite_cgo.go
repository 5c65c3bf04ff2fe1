//go:build !no_sqlite && cgo

package db

import (
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"

	"github.com/clintagossett/artvault/pkg/configs"
)

// createSQLiteDialector 创建基于 cgo 的 SQLite dialector.
func createSQLiteDialector(dsn string) gorm.Dialector {
	return sqlite.Open(dsn)
}

func init() {
	RegisterDialectorFactory(configs.SQLite, createSQLiteDialector)
}
