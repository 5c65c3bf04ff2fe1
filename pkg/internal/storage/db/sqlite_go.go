//go:build !no_sqlite && !cgo

package db

import (
	"github.com/glebarez/sqlite"
	"gorm.io/gorm"

	"github.com/clintagossett/artvault/pkg/configs"
)

// createSQLiteDialector 创建纯 Go SQLite dialector（无 cgo）.
func createSQLiteDialector(dsn string) gorm.Dialector {
	return sqlite.Open(dsn)
}

func init() {
	RegisterDialectorFactory(configs.SQLite, createSQLiteDialector)
}
