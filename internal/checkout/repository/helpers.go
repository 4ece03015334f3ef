package repository

import (
	"database/sql"

	apperrors "github.com/allisson/checkout/internal/errors"
)

// requireOne returns notFound unless result affected exactly one row.
func requireOne(result sql.Result, notFound error) error {
	affected, err := result.RowsAffected()
	if err != nil {
		return apperrors.Wrap(err, "failed to read affected rows")
	}
	if affected != 1 {
		return notFound
	}
	return nil
}

func nullString(s string) sql.NullString {
	return sql.NullString{String: s, Valid: s != ""}
}
