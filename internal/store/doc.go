// Package store declares the persistence interfaces the processors depend
// on, the error sentinels implementations must return, and the transaction
// helper shared by the SQL implementations.
package store
