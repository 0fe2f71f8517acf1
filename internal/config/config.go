package config // package config loads application configuration from environment variables

import (
    "log"     // log is used to report configuration errors and halt execution
    "os"      // os provides access to environment variables
    "strconv" // strconv converts strings to other types
)

// Config holds all runtime configuration values.  Each field corresponds to
// an environment variable.  Required values (ports, database credentials,
// secrets) abort startup when missing; lending-policy values carry the
// defaults the library operates with in production.
type Config struct {
    Env            string // application environment (e.g. "dev", "prod")
    Port           string // HTTP port to listen on
    BaseURL        string // absolute base URL used when building QR scan links
    DBUser         string // database username
    DBPass         string // database password (optional)
    DBHost         string // database host address
    DBPort         string // database port number
    DBName         string // database name
    JWTSecret      string // secret used to sign JWTs
    AccessTTLMin   int    // access token time-to-live in minutes
    RefreshTTLDays int    // refresh token time-to-live in days
    BcryptCost     int    // bcrypt cost for password hashing

    Policy Policy // lending rules (fines, caps, windows)
    VNPay  VNPay  // payment provider credentials and endpoints
}

// Policy groups the lending rules that gate borrowing, returning and fines.
// All monetary values are VND; windows are expressed in hours or days to
// mirror how the rules are stated by the library.
type Policy struct {
    FinePerDay          int64 // fine charged per whole late day per copy (VND)
    FreeDays            int   // grace days after the due date before fines accrue
    TicketTTLHours      int   // borrow/return ticket lifetime
    HoldWindowHours     int   // exclusivity window of a READY reservation
    MaxBooksStandard    int   // open-loan copy cap for standard accounts
    MaxBooksMember      int   // open-loan copy cap for members
    MaxDaysStandard     int   // longest borrow period for standard accounts
    MaxDaysMember       int   // longest borrow period for members
    ExtendThresholdDays int   // extension allowed only this close to the due date
    ExtendMaxStandard   int   // max extension days for standard accounts
    ExtendMaxMember     int   // max extension days for members
    MonthlyPrice        int64 // membership price per month (VND)
    SweepIntervalMin    int   // background expiry sweep interval in minutes
}

// VNPay carries the merchant credentials and URLs for the payment provider.
// HashSecret signs every outbound parameter set and verifies every inbound
// callback; it must match the value issued by the provider.
type VNPay struct {
    TmnCode             string // merchant terminal code
    HashSecret          string // shared HMAC-SHA512 secret
    PayURL              string // provider checkout endpoint
    ReturnURL           string // browser return URL for fine payments (optional)
    ReturnURLMembership string // browser return URL for membership payments (optional)
}

// Load reads configuration values from environment variables and returns a
// Config.  Required variables are enforced by must() and missing values
// cause the program to exit with a fatal log message.
func Load() Config {
    return Config{
        Env:            must("APP_ENV"),      // environment (dev/test/prod)
        Port:           must("APP_PORT"),     // port to bind the HTTP server
        BaseURL:        must("APP_BASE_URL"), // e.g. https://library.example.com
        DBUser:         must("DB_USER"),      // database user
        DBPass:         os.Getenv("DB_PASS"), // database password (empty allowed)
        DBHost:         must("DB_HOST"),      // database host
        DBPort:         must("DB_PORT"),      // database port
        DBName:         must("DB_NAME"),      // database name
        JWTSecret:      must("JWT_SECRET"),   // secret used for signing JWTs
        AccessTTLMin:   mustInt("ACCESS_TOKEN_TTL_MIN"),   // TTL for access tokens in minutes
        RefreshTTLDays: mustInt("REFRESH_TOKEN_TTL_DAYS"), // TTL for refresh tokens in days
        BcryptCost:     mustInt("BCRYPT_COST"),            // bcrypt cost factor
        Policy:         loadPolicy(),
        VNPay: VNPay{
            TmnCode:             must("VNPAY_TMN_CODE"),
            HashSecret:          must("VNPAY_HASH_SECRET"),
            PayURL:              must("VNPAY_PAY_URL"),
            ReturnURL:           os.Getenv("VNPAY_RETURN_URL"),
            ReturnURLMembership: os.Getenv("VNPAY_RETURN_URL_MEMBERSHIP"),
        },
    }
}

// loadPolicy reads the lending rules with production defaults.  Values are
// clamped to sane minimums so a typo in the environment cannot produce a
// zero ticket lifetime or a member cap below the standard cap.
func loadPolicy() Policy {
    p := Policy{
        FinePerDay:          int64(envInt("FINE_PER_DAY", 5000)),
        FreeDays:            envInt("FINE_FREE_DAYS", 0),
        TicketTTLHours:      envInt("TICKET_TTL_HOURS", 24),
        HoldWindowHours:     envInt("HOLD_WINDOW_HOURS", 24),
        MaxBooksStandard:    envInt("MAX_BOOKS_STANDARD", 2),
        MaxBooksMember:      envInt("MAX_BOOKS_MEMBER", 5),
        MaxDaysStandard:     envInt("MAX_DAYS_STANDARD", 7),
        MaxDaysMember:       envInt("MAX_DAYS_MEMBER", 14),
        ExtendThresholdDays: envInt("EXTEND_THRESHOLD_DAYS", 2),
        ExtendMaxStandard:   envInt("EXTEND_MAX_DAYS_STANDARD", 3),
        ExtendMaxMember:     envInt("EXTEND_MAX_DAYS_MEMBER", 7),
        MonthlyPrice:        int64(envInt("MEMBERSHIP_MONTHLY_PRICE", 50000)),
        SweepIntervalMin:    envInt("SWEEP_INTERVAL_MIN", 10),
    }
    if p.FinePerDay < 0 {
        p.FinePerDay = 0
    }
    if p.FreeDays < 0 {
        p.FreeDays = 0
    }
    if p.TicketTTLHours < 1 {
        p.TicketTTLHours = 1
    }
    if p.HoldWindowHours < 1 {
        p.HoldWindowHours = 1
    }
    if p.MaxBooksStandard < 1 {
        p.MaxBooksStandard = 1
    }
    if p.MaxBooksMember < p.MaxBooksStandard {
        p.MaxBooksMember = p.MaxBooksStandard
    }
    if p.MaxDaysStandard < 1 {
        p.MaxDaysStandard = 1
    }
    if p.MaxDaysMember < p.MaxDaysStandard {
        p.MaxDaysMember = p.MaxDaysStandard
    }
    if p.SweepIntervalMin < 1 {
        p.SweepIntervalMin = 1
    }
    return p
}

// must retrieves the value of a required environment variable.  If the
// variable is unset or empty, the application logs a fatal error and exits.
func must(key string) string {
    v, ok := os.LookupEnv(key)
    if !ok || v == "" {
        log.Fatalf("missing required env var: %s", key)
    }
    return v
}

// mustInt is like must() but converts the retrieved string into an integer.
// If conversion fails, the application logs a fatal error and exits.
func mustInt(key string) int {
    s := must(key)
    n, err := strconv.Atoi(s)
    if err != nil {
        log.Fatalf("invalid int for %s: %q", key, s)
    }
    return n
}
