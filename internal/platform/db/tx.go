package db

import (
	"context"
	"database/sql"
	"database/sql/driver"
	"errors"
	"net"

	mysql "github.com/go-sql-driver/mysql"
)

type DBTX interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

// Txを開始して fn を実行。fn が nil を返せば COMMIT、エラーなら ROLLBACK。
func RunInTx(ctx context.Context, db *sql.DB, opts *sql.TxOptions, fn func(ctx context.Context, tx DBTX) error) error {
	tx, err := db.BeginTx(ctx, opts)
	if err != nil {
		return err
	}

	if err := fn(ctx, tx); err != nil {
		_ = tx.Rollback()
		return err
	}
	return tx.Commit()
}

// 読み取り専用Tx
func ReadOnly(ctx context.Context, db *sql.DB, fn func(ctx context.Context, tx DBTX) error) error {
	return RunInTx(ctx, db, &sql.TxOptions{ReadOnly: true}, fn)
}

// MySQL error numbers used for classification.
const (
	ErDupEntry          = 1062
	ErLockWaitTimeout   = 1205
	ErLockDeadlock      = 1213
	ErNoReferencedRow   = 1452
	ErSerializationFail = 3101
)

// IsWriteConflict: コミット時の競合（デッドロック・ロック待ちタイムアウト）
func IsWriteConflict(err error) bool {
	var me *mysql.MySQLError
	if errors.As(err, &me) {
		switch me.Number {
		case ErLockDeadlock, ErLockWaitTimeout, ErSerializationFail:
			return true
		}
	}
	return false
}

func IsDuplicate(err error) bool {
	var me *mysql.MySQLError
	return errors.As(err, &me) && me.Number == ErDupEntry
}

// IsMissingReference: 外部キーの参照先が存在しない
func IsMissingReference(err error) bool {
	var me *mysql.MySQLError
	return errors.As(err, &me) && me.Number == ErNoReferencedRow
}

// IsUnavailable reports whether err means the database could not be reached at all.
func IsUnavailable(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, driver.ErrBadConn) || errors.Is(err, mysql.ErrInvalidConn) || errors.Is(err, sql.ErrConnDone) {
		return true
	}
	var oe *net.OpError
	return errors.As(err, &oe)
}
