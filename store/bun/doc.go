// Package bunstore implements store.Store on PostgreSQL through the Bun
// ORM. Claims use a single conditional UPDATE so competing workers never
// both win a lease, and RunInTx carries the transaction through the
// context so handler side effects and the recorded request outcome
// commit together.
//
// Usage:
//
//	sqldb := sql.OpenDB(pgdriver.NewConnector(pgdriver.WithDSN(dsn)))
//	db := bun.NewDB(sqldb, pgdialect.New())
//	s := bunstore.New(db)
//	if err := s.Migrate(ctx); err != nil { ... }
package bunstore
