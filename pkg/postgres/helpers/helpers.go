package helpers

import "gorm.io/gorm"

// WrapTxAndCommit executes a database function within a transaction. If tx is
// non-nil the caller already owns the transaction and commit/rollback is left
// to them; otherwise a new transaction is opened and resolved here based on
// the function's result.
func WrapTxAndCommit[T any](fn func(*gorm.DB) (T, error), db *gorm.DB, tx *gorm.DB) (T, error) {
	exists := tx != nil

	if !exists {
		tx = db.Begin()
	}

	res, err := fn(tx)

	if err != nil && !exists {
		tx.Rollback()
	}
	if err == nil && !exists {
		tx.Commit()
	}
	return res, err
}
