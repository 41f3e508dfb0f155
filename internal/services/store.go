package services

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/bookwarden/bookwarden/internal/database/queries"
)

// Store bundles the query layer with the connection pool so operations that
// issue more than one statement can run them in a single transaction.
// Single-statement operations go through the embedded Queries directly.
type Store struct {
	*queries.Queries
	pool *pgxpool.Pool
}

func NewStore(pool *pgxpool.Pool) *Store {
	return &Store{
		Queries: queries.New(pool),
		pool:    pool,
	}
}

func (s *Store) execTx(ctx context.Context, fn func(*queries.Queries) error) error {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer func() { _ = tx.Rollback(ctx) }()

	if err := fn(s.Queries.WithTx(tx)); err != nil {
		return err
	}
	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}
	return nil
}

// ExecLoanTx runs fn against a querier bound to one transaction. Either
// every statement fn issues commits or none of them do.
func (s *Store) ExecLoanTx(ctx context.Context, fn func(LoanQuerier) error) error {
	return s.execTx(ctx, func(q *queries.Queries) error { return fn(q) })
}

// ExecReservationTx is ExecLoanTx for waitlist operations.
func (s *Store) ExecReservationTx(ctx context.Context, fn func(ReservationQuerier) error) error {
	return s.execTx(ctx, func(q *queries.Queries) error { return fn(q) })
}
