// Package testdb provides helpers for integration tests that need a real
// PostgreSQL database.
//
// Tests using it are guarded by the integration build tag and skip
// themselves when no database URL is configured:
//
//	GOALFORGE_TEST_DB_URL=postgres://... go test -tags=integration ./...
//
// Open migrates the schema once per database URL and WithTx gives each test
// a transaction that is rolled back afterwards.
package testdb
