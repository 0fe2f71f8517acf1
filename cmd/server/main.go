package main

import (
    "context"
    "log"
    "os/signal"
    "syscall"
    "time"

    "github.com/joho/godotenv"
    "github.com/labstack/echo/v4"
    echomw "github.com/labstack/echo/v4/middleware"

    "github.com/minhnq/library-lending/internal/config"
    "github.com/minhnq/library-lending/internal/database"
    "github.com/minhnq/library-lending/internal/handler"
    "github.com/minhnq/library-lending/internal/middleware"
    "github.com/minhnq/library-lending/internal/queue"
    "github.com/minhnq/library-lending/internal/repository"
    "github.com/minhnq/library-lending/internal/router"
    "github.com/minhnq/library-lending/internal/worker"
)

const shutdownTimeout = 10 * time.Second

func main() {
    // .env is optional; in production the variables come from the host.
    _ = godotenv.Load()
    cfg := config.Load()

    db, err := database.Open(cfg.DBUser, cfg.DBPass, cfg.DBHost, cfg.DBPort, cfg.DBName)
    if err != nil {
        log.Fatalf("database: %v", err)
    }
    defer db.Close()

    // Redis backs the rate limiter and the catalog cache.  Both degrade to
    // pass-through when Redis is unreachable at startup.
    rdb := config.NewRedisClient()
    if rdb == nil {
        log.Println("redis unavailable, rate limiting and catalog cache disabled")
    }

    users := repository.NewUserRepo(db)
    tokens := repository.NewTokenRepo(db)
    books := repository.NewBookRepo(db)
    loans := repository.NewLoanRepo(db)
    borrowTickets := repository.NewBorrowTicketRepo(db)
    returnTickets := repository.NewReturnTicketRepo(db)
    reservations := repository.NewReservationRepo(db)
    payments := repository.NewPaymentRepo(db)

    auth := handler.NewAuthHandler(cfg, users, tokens, reservations)
    book := handler.NewBookHandler(books)
    ticket := handler.NewTicketHandler(db, cfg, users, books, loans, borrowTickets, returnTickets, reservations)
    desk := handler.NewDeskHandler(db, cfg, users, books, loans, borrowTickets, returnTickets, reservations)
    loan := handler.NewLoanHandler(db, cfg, users, books, loans, reservations)
    reservation := handler.NewReservationHandler(db, books, reservations)
    payment := handler.NewPaymentHandler(db, cfg, users, loans, payments)

    var limiter, catalogCache echo.MiddlewareFunc
    if rdb != nil {
        limiter = middleware.NewTokenBucket(config.LoadRateLimitConfig(), rdb)
        catalogCache = middleware.NewCatalogCache(config.LoadCacheConfig(), rdb)
    }

    e := echo.New()
    e.HideBanner = true
    e.Use(echomw.Recover())
    e.Use(echomw.Logger())

    router.RegisterRoutes(e)
    router.RegisterAuth(e, auth, cfg.JWTSecret)
    router.RegisterCatalog(e, book, catalogCache)
    router.RegisterReader(e, cfg.JWTSecret, limiter, ticket, loan, reservation, payment)
    router.RegisterDesk(e, cfg.JWTSecret, desk, book)
    router.RegisterPaymentCallbacks(e, payment)

    ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
    defer stop()

    sweeper := worker.NewSweeper(db, cfg, books, borrowTickets, returnTickets, reservations)
    go sweeper.Run(ctx)

    go func() {
        if err := queue.StartNotificationConsumer(); err != nil {
            log.Printf("notification consumer: %v", err)
        }
    }()

    go func() {
        addr := ":" + cfg.Port
        log.Printf("listening on %s (env=%s)", addr, cfg.Env)
        if err := e.Start(addr); err != nil {
            log.Printf("server: %v", err)
            stop()
        }
    }()

    <-ctx.Done()
    log.Println("shutting down")
    shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
    defer cancel()
    if err := e.Shutdown(shutdownCtx); err != nil {
        log.Printf("shutdown: %v", err)
    }
}
