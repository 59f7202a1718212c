package web

import (
	"database/sql"
	"strconv"
)

func itoa(n int64) string {
	return strconv.FormatInt(n, 10)
}

func nullString(s string) sql.NullString {
	return sql.NullString{String: s, Valid: true}
}
