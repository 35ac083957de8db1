// Package postgres implements the store interfaces on PostgreSQL through
// database/sql and the pgx driver, and owns the embedded goose migrations.
//
// Each store can be rebound to a transaction with WithTx; Stores groups them
// and implements store.Transactor for the processors.
package postgres
