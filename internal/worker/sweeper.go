// Package worker runs the periodic expiry sweep.  Tickets and READY
// reservations expire lazily on the request paths that touch them; the
// sweep is the backstop that also expires rows nobody touches, so a
// pickup window that lapses overnight still passes the hold to the next
// reader in line.
package worker

import (
    "context"
    "database/sql"
    "log"
    "time"

    "github.com/minhnq/library-lending/internal/config"
    "github.com/minhnq/library-lending/internal/model"
    "github.com/minhnq/library-lending/internal/queue"
    "github.com/minhnq/library-lending/internal/repository"
    queue_publisher "github.com/minhnq/library-lending/internal/service"
)

// Sweeper expires overdue tickets and lapsed pickup windows on a timer.
type Sweeper struct {
    DB            *sql.DB
    Cfg           config.Config
    Books         *repository.BookRepo
    BorrowTickets *repository.BorrowTicketRepo
    ReturnTickets *repository.ReturnTicketRepo
    Reservations  *repository.ReservationRepo
}

func NewSweeper(db *sql.DB, cfg config.Config, books *repository.BookRepo,
    bt *repository.BorrowTicketRepo, rt *repository.ReturnTicketRepo,
    rv *repository.ReservationRepo) *Sweeper {
    if db == nil || books == nil || bt == nil || rt == nil || rv == nil {
        panic("nil dependency passed to NewSweeper")
    }
    return &Sweeper{DB: db, Cfg: cfg, Books: books, BorrowTickets: bt, ReturnTickets: rt, Reservations: rv}
}

// Run sweeps once immediately, then on every tick until ctx is cancelled.
func (s *Sweeper) Run(ctx context.Context) {
    interval := time.Duration(s.Cfg.Policy.SweepIntervalMin) * time.Minute
    ticker := time.NewTicker(interval)
    defer ticker.Stop()

    s.sweep(ctx)
    for {
        select {
        case <-ctx.Done():
            log.Println("[sweeper] stopping")
            return
        case <-ticker.C:
            s.sweep(ctx)
        }
    }
}

func (s *Sweeper) sweep(ctx context.Context) {
    now := time.Now().UTC()

    if n, err := s.BorrowTickets.ExpireOld(ctx, now); err != nil {
        log.Printf("[sweeper] expire borrow tickets: %v", err)
    } else if n > 0 {
        log.Printf("[sweeper] expired %d borrow ticket(s)", n)
    }
    if n, err := s.ReturnTickets.ExpireOld(ctx, now); err != nil {
        log.Printf("[sweeper] expire return tickets: %v", err)
    } else if n > 0 {
        log.Printf("[sweeper] expired %d return ticket(s)", n)
    }

    bookIDs, err := s.Reservations.BooksWithExpiredReady(ctx, now)
    if err != nil {
        log.Printf("[sweeper] list lapsed holds: %v", err)
        return
    }
    for _, bookID := range bookIDs {
        if err := s.rollHold(ctx, bookID, now); err != nil {
            log.Printf("[sweeper] roll hold for book %d: %v", bookID, err)
        }
    }
}

// rollHold expires the lapsed READY hold on one book and promotes the next
// reader in line, inside one transaction on the book row.
func (s *Sweeper) rollHold(ctx context.Context, bookID uint64, now time.Time) error {
    window := time.Duration(s.Cfg.Policy.HoldWindowHours) * time.Hour

    tx, err := s.DB.BeginTx(ctx, nil)
    if err != nil {
        return err
    }
    committed := false
    defer func() {
        if !committed {
            _ = tx.Rollback()
        }
    }()

    book, err := s.Books.GetByIDForUpdateTx(ctx, tx, bookID)
    if err != nil {
        return err
    }
    promoted, err := s.Reservations.ExpireAndPromoteTx(ctx, tx, book, now, window)
    if err != nil {
        return err
    }
    if err := tx.Commit(); err != nil {
        return err
    }
    committed = true

    if promoted != nil {
        s.announce(promoted, book)
    }
    return nil
}

func (s *Sweeper) announce(rv *model.Reservation, book *model.Book) {
    ev := queue.HoldReadyEvent{
        ReservationID: rv.ID,
        UserID:        rv.UserID,
        BookID:        book.ID,
        BookTitle:     book.Title,
    }
    if rv.ReadyAt != nil {
        ev.ReadyAt = rv.ReadyAt.UTC().Format(time.RFC3339)
    }
    if rv.ExpireAt != nil {
        ev.ExpireAt = rv.ExpireAt.UTC().Format(time.RFC3339)
    }
    go func() {
        ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
        defer cancel()
        _ = queue_publisher.PublishHoldReady(ctx, ev)
    }()
}
