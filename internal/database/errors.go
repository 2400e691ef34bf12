package database

import (
	"errors"
	"strings"

	"github.com/go-sql-driver/mysql"
	"modernc.org/sqlite"
	sqlite3 "modernc.org/sqlite/lib"
)

const (
	mysqlDuplicateEntry    = 1062
	mysqlNoReferencedRow   = 1452
	mysqlRowIsReferenced   = 1451
	sqliteUniqueViolation  = sqlite3.SQLITE_CONSTRAINT_UNIQUE
	sqlitePrimaryKeyClash  = sqlite3.SQLITE_CONSTRAINT_PRIMARYKEY
	sqliteForeignKeyFailed = sqlite3.SQLITE_CONSTRAINT_FOREIGNKEY
)

// IsUniqueViolation reports whether err is a unique-constraint failure from
// either backend.
func IsUniqueViolation(err error) bool {
	var me *mysql.MySQLError
	if errors.As(err, &me) {
		return me.Number == mysqlDuplicateEntry
	}
	var se *sqlite.Error
	if errors.As(err, &se) {
		code := se.Code()
		if code == sqliteUniqueViolation || code == sqlitePrimaryKeyClash {
			return true
		}
		return code&0xff == sqlite3.SQLITE_CONSTRAINT && strings.Contains(se.Error(), "UNIQUE")
	}
	return false
}

// IsForeignKeyViolation reports whether err is a foreign-key failure, either
// a missing parent row on insert or a restricted parent on delete.
func IsForeignKeyViolation(err error) bool {
	var me *mysql.MySQLError
	if errors.As(err, &me) {
		return me.Number == mysqlNoReferencedRow || me.Number == mysqlRowIsReferenced
	}
	var se *sqlite.Error
	if errors.As(err, &se) {
		code := se.Code()
		if code == sqliteForeignKeyFailed {
			return true
		}
		return code&0xff == sqlite3.SQLITE_CONSTRAINT && strings.Contains(se.Error(), "FOREIGN KEY")
	}
	return false
}
