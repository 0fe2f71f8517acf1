// Package database opens the MySQL pool the lending service runs on.
package database

import (
    "context"
    "database/sql"
    "fmt"
    "os"
    "strconv"
    "time"

    _ "github.com/go-sql-driver/mysql"
)

// Pool defaults.  Desk confirmations, the hold sweeper and the IPN all
// hold short row-lock transactions concurrently; a modest pool keeps lock
// queues shallow on a single branch and the knobs below raise it for
// bigger deployments.
const (
    defaultMaxOpenConns       = 25
    defaultMaxIdleConns       = 10
    defaultConnMaxLifetimeMin = 30
)

func poolInt(key string, def int) int {
    if s := os.Getenv(key); s != "" {
        if n, err := strconv.Atoi(s); err == nil && n > 0 {
            return n
        }
    }
    return def
}

// Open connects to MySQL and verifies the connection before returning.
// The DSN pins parseTime so DATETIME columns scan into time.Time, and
// loc=UTC because every due date, ticket expiry and fine quote in this
// service is UTC arithmetic.  Pool sizing reads DB_MAX_OPEN_CONNS,
// DB_MAX_IDLE_CONNS and DB_CONN_MAX_LIFETIME_MIN when set.
func Open(user, pass, host, port, name string) (*sql.DB, error) {
    auth := user
    if pass != "" {
        auth = fmt.Sprintf("%s:%s", user, pass)
    }
    dsn := fmt.Sprintf("%s@tcp(%s:%s)/%s?charset=utf8mb4&parseTime=true&loc=UTC&timeout=5s",
        auth, host, port, name)

    db, err := sql.Open("mysql", dsn)
    if err != nil {
        return nil, err
    }

    db.SetMaxOpenConns(poolInt("DB_MAX_OPEN_CONNS", defaultMaxOpenConns))
    db.SetMaxIdleConns(poolInt("DB_MAX_IDLE_CONNS", defaultMaxIdleConns))
    db.SetConnMaxLifetime(time.Duration(poolInt("DB_CONN_MAX_LIFETIME_MIN", defaultConnMaxLifetimeMin)) * time.Minute)

    ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
    defer cancel()
    if err := db.PingContext(ctx); err != nil {
        _ = db.Close()
        return nil, err
    }
    return db, nil
}
