package postgres

import (
	"context"
	"database/sql"
	"log/slog"

	"github.com/phrazzld/goalforge/internal/store"
)

// Stores wires every PostgreSQL store to one connection pool and implements
// store.Transactor by rebinding them to a transaction.
type Stores struct {
	db *sql.DB

	Users         *PostgresUserStore
	Goals         *PostgresGoalStore
	Plans         *PostgresPlanStore
	Tasks         *PostgresTaskStore
	Interactions  *PostgresInteractionStore
	Notifications *PostgresNotificationStore
}

// NewStores creates every store on db.
func NewStores(db *sql.DB, logger *slog.Logger) *Stores {
	return &Stores{
		db:            db,
		Users:         NewPostgresUserStore(db, logger),
		Goals:         NewPostgresGoalStore(db, logger),
		Plans:         NewPostgresPlanStore(db, logger),
		Tasks:         NewPostgresTaskStore(db, logger),
		Interactions:  NewPostgresInteractionStore(db, logger),
		Notifications: NewPostgresNotificationStore(db, logger),
	}
}

var _ store.Transactor = (*Stores)(nil)

// Bundle returns the pool-bound stores as a store.Stores value.
func (s *Stores) Bundle() store.Stores {
	return store.Stores{
		Users:         s.Users,
		Goals:         s.Goals,
		Plans:         s.Plans,
		Tasks:         s.Tasks,
		Interactions:  s.Interactions,
		Notifications: s.Notifications,
	}
}

// WithinTx implements store.Transactor.
func (s *Stores) WithinTx(ctx context.Context, fn func(ctx context.Context, tx store.Stores) error) error {
	return store.RunInTransaction(ctx, s.db, func(ctx context.Context, tx *sql.Tx) error {
		return fn(ctx, store.Stores{
			Users:         s.Users.WithTx(tx),
			Goals:         s.Goals.WithTx(tx),
			Plans:         s.Plans.WithTx(tx),
			Tasks:         s.Tasks.WithTx(tx),
			Interactions:  s.Interactions.WithTx(tx),
			Notifications: s.Notifications.WithTx(tx),
		})
	})
}
