package bookings

import (
	"database/sql"
	"errors"
	"fmt"
	"testing"

	mysql "github.com/go-sql-driver/mysql"
	"github.com/stretchr/testify/assert"
)

func TestClassifyStoreErrors(t *testing.T) {
	cases := []struct {
		name string
		in   error
		want Code
	}{
		{"no rows", sql.ErrNoRows, CodeNotFound},
		{"deadlock", &mysql.MySQLError{Number: 1213}, CodeSlotUnavailable},
		{"duplicate number", &mysql.MySQLError{Number: 1062}, CodeConflict},
		{"product removed", fmt.Errorf("insert: %w", &mysql.MySQLError{Number: 1452}), CodeNotFound},
		{"connection lost", mysql.ErrInvalidConn, CodeUnavailable},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.want, codeOf(t, translate(classify(tc.in))))
		})
	}

	assert.True(t, errors.Is(classify(&mysql.MySQLError{Number: 1452}), ErrProductNotFound))
	assert.Equal(t, "NOT_FOUND: product not found", translate(classify(&mysql.MySQLError{Number: 1452})).Error())
	assert.Nil(t, classify(nil))
}
