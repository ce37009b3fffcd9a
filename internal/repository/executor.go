package repository

import "github.com/jmoiron/sqlx"

// executor returns exec when a unit of work supplied one, otherwise the pool.
func executor(db *sqlx.DB, exec sqlx.ExtContext) sqlx.ExtContext {
	if exec != nil {
		return exec
	}
	return db
}
