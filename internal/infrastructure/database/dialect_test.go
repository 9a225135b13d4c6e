package database

import (
	"errors"
	"net/url"
	"slices"
	"strings"
	"testing"

	"github.com/go-sql-driver/mysql"
)

func TestParseConnectionString(t *testing.T) {
	const (
		mattnParams   = "_busy_timeout=5000&_foreign_keys=on&_mutex=full"
		moderncParams = "_pragma=busy_timeout(5000)&_pragma=foreign_keys(1)"
	)

	tests := []struct {
		name         string
		url          string
		wantDriver   string
		wantFamily   string
		wantEmbedded bool
		wantDSN      string
	}{
		{
			name:         "relative sqlite file",
			url:          "sqlite:///./database.db",
			wantDriver:   "sqlite3",
			wantFamily:   FamilySQLite,
			wantEmbedded: true,
			wantDSN:      "./database.db?" + mattnParams + "&_journal_mode=WAL&_synchronous=NORMAL",
		},
		{
			name:         "absolute sqlite file",
			url:          "sqlite:////var/lib/stockapi/app.db",
			wantDriver:   "sqlite3",
			wantFamily:   FamilySQLite,
			wantEmbedded: true,
			wantDSN:      "/var/lib/stockapi/app.db?" + mattnParams + "&_journal_mode=WAL&_synchronous=NORMAL",
		},
		{
			name:         "sqlite memory",
			url:          "sqlite:///:memory:",
			wantDriver:   "sqlite3",
			wantFamily:   FamilySQLite,
			wantEmbedded: true,
			wantDSN:      ":memory:?" + mattnParams,
		},
		{
			name:         "bare sqlite scheme is memory",
			url:          "sqlite://",
			wantDriver:   "sqlite3",
			wantFamily:   FamilySQLite,
			wantEmbedded: true,
			wantDSN:      ":memory:?" + mattnParams,
		},
		{
			name:         "user params come first",
			url:          "sqlite3:///./x.db?cache=shared",
			wantDriver:   "sqlite3",
			wantFamily:   FamilySQLite,
			wantEmbedded: true,
			wantDSN:      "./x.db?cache=shared&" + mattnParams + "&_journal_mode=WAL&_synchronous=NORMAL",
		},
		{
			name:         "upper case scheme",
			url:          "SQLITE+MATTN:///:memory:",
			wantDriver:   "sqlite3",
			wantFamily:   FamilySQLite,
			wantEmbedded: true,
			wantDSN:      ":memory:?" + mattnParams,
		},
		{
			name:         "modernc memory",
			url:          "sqlite+modernc:///:memory:",
			wantDriver:   "sqlite",
			wantFamily:   FamilySQLite,
			wantEmbedded: true,
			wantDSN:      ":memory:?" + moderncParams,
		},
		{
			name:         "modernc file",
			url:          "sqlite+modernc:///./database.db",
			wantDriver:   "sqlite",
			wantFamily:   FamilySQLite,
			wantEmbedded: true,
			wantDSN:      "./database.db?" + moderncParams + "&_pragma=journal_mode(WAL)",
		},
		{
			name:       "postgres",
			url:        "postgres://stock:secret@db:5432/stocks?sslmode=disable",
			wantDriver: "pgx",
			wantFamily: FamilyPostgres,
			wantDSN:    "postgres://stock:secret@db:5432/stocks?sslmode=disable",
		},
		{
			name:       "postgresql with driver suffix",
			url:        "postgresql+pgx://db/stocks",
			wantDriver: "pgx",
			wantFamily: FamilyPostgres,
			wantDSN:    "postgres://db/stocks",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg, err := ParseConnectionString(tt.url)
			if err != nil {
				t.Fatalf("ParseConnectionString(%q) error = %v", tt.url, err)
			}
			if cfg.Dialect.Driver != tt.wantDriver {
				t.Errorf("Driver = %q, want %q", cfg.Dialect.Driver, tt.wantDriver)
			}
			if cfg.Dialect.Name != tt.wantFamily {
				t.Errorf("Dialect.Name = %q, want %q", cfg.Dialect.Name, tt.wantFamily)
			}
			if cfg.IsEmbedded() != tt.wantEmbedded {
				t.Errorf("IsEmbedded() = %v, want %v", cfg.IsEmbedded(), tt.wantEmbedded)
			}
			if cfg.DSN != tt.wantDSN {
				t.Errorf("DSN = %q, want %q", cfg.DSN, tt.wantDSN)
			}
			if cfg.URL != tt.url {
				t.Errorf("URL = %q, want %q", cfg.URL, tt.url)
			}
		})
	}
}

func TestParseConnectionString_MySQL(t *testing.T) {
	cfg, err := ParseConnectionString("mysql://root:secret@db/stocks?charset=utf8mb4")
	if err != nil {
		t.Fatalf("ParseConnectionString() error = %v", err)
	}
	if cfg.IsEmbedded() {
		t.Error("mysql must not be embedded")
	}
	if cfg.Dialect.Returning {
		t.Error("mysql has no RETURNING support")
	}

	parsed, err := mysql.ParseDSN(cfg.DSN)
	if err != nil {
		t.Fatalf("mysql.ParseDSN(%q) error = %v", cfg.DSN, err)
	}
	if parsed.User != "root" || parsed.Passwd != "secret" {
		t.Errorf("credentials = %q/%q, want root/secret", parsed.User, parsed.Passwd)
	}
	if parsed.Addr != "db:3306" {
		t.Errorf("Addr = %q, want db:3306", parsed.Addr)
	}
	if parsed.DBName != "stocks" {
		t.Errorf("DBName = %q, want stocks", parsed.DBName)
	}
	if !parsed.ParseTime {
		t.Error("ParseTime should be enabled")
	}
	if parsed.Params["charset"] != "utf8mb4" {
		t.Errorf("Params[charset] = %q, want utf8mb4", parsed.Params["charset"])
	}
}

func TestParseConnectionString_Errors(t *testing.T) {
	tests := []struct {
		name    string
		url     string
		wantErr error
	}{
		{"empty", "", ErrInvalidConnectionString},
		{"no scheme", "./database.db", ErrInvalidConnectionString},
		{"malformed", "://nope", ErrInvalidConnectionString},
		{"unknown scheme", "oracle://db/stocks", ErrUnsupportedScheme},
		{"postgres without host", "postgres:///stocks", ErrInvalidConnectionString},
		{"mysql without host", "mysql:///stocks", ErrInvalidConnectionString},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := ParseConnectionString(tt.url)
			if !errors.Is(err, tt.wantErr) {
				t.Errorf("ParseConnectionString(%q) error = %v, want %v", tt.url, err, tt.wantErr)
			}
		})
	}
}

func TestConnectionConfig_Redacted(t *testing.T) {
	cfg, err := ParseConnectionString("postgres://stock:hunter2@db/stocks")
	if err != nil {
		t.Fatalf("ParseConnectionString() error = %v", err)
	}
	if strings.Contains(cfg.Redacted(), "hunter2") {
		t.Errorf("Redacted() = %q leaks the password", cfg.Redacted())
	}
	if !strings.Contains(cfg.Redacted(), "stock:") {
		t.Errorf("Redacted() = %q, want the user kept", cfg.Redacted())
	}
}

func TestConnectionConfig_Identity(t *testing.T) {
	identity := func(raw string) string {
		t.Helper()
		cfg, err := ParseConnectionString(raw)
		if err != nil {
			t.Fatalf("ParseConnectionString(%q) error = %v", raw, err)
		}
		return cfg.Identity()
	}

	base := identity("sqlite:///./stocks.db")
	for _, raw := range []string{"SQLite:///./stocks.db", " sqlite:///./stocks.db\t", "sqlite3:///./stocks.db"} {
		if got := identity(raw); got != base {
			t.Errorf("Identity(%q) = %q, want %q", raw, got, base)
		}
	}

	for _, raw := range []string{"sqlite+modernc:///./stocks.db", "sqlite:///./other.db", "postgres://db/stocks"} {
		if got := identity(raw); got == base {
			t.Errorf("Identity(%q) = %q, want it distinct from sqlite:///./stocks.db", raw, got)
		}
	}
}

func TestSQLitePath(t *testing.T) {
	tests := []struct {
		raw  string
		want string
	}{
		{"sqlite:///./database.db", "./database.db"},
		{"sqlite:////var/db/app.db", "/var/db/app.db"},
		{"sqlite://app.db", "app.db"},
		{"sqlite:///:memory:", ":memory:"},
		{"sqlite://", ":memory:"},
	}

	for _, tt := range tests {
		t.Run(tt.raw, func(t *testing.T) {
			u, err := url.Parse(tt.raw)
			if err != nil {
				t.Fatalf("url.Parse(%q) error = %v", tt.raw, err)
			}
			if got := sqlitePath(u); got != tt.want {
				t.Errorf("sqlitePath(%q) = %q, want %q", tt.raw, got, tt.want)
			}
		})
	}
}

func TestSchemes(t *testing.T) {
	schemes := Schemes()
	for _, want := range []string{"sqlite", "sqlite3", "sqlite+mattn", "sqlite+modernc", "postgres", "postgresql", "mysql"} {
		if !slices.Contains(schemes, want) {
			t.Errorf("Schemes() = %v, missing %q", schemes, want)
		}
	}
	if !slices.IsSorted(schemes) {
		t.Errorf("Schemes() = %v, want sorted", schemes)
	}
}

func TestRegisterDialect_Panics(t *testing.T) {
	tests := []struct {
		name    string
		scheme  string
		dialect Dialect
	}{
		{"duplicate", "sqlite", Dialect{Name: FamilySQLite, Driver: "sqlite3", DSN: mattnDSN}},
		{"missing driver", "sqlite+nodriver", Dialect{Name: FamilySQLite, DSN: mattnDSN}},
		{"missing dsn", "sqlite+nodsn", Dialect{Name: FamilySQLite, Driver: "sqlite3"}},
		{"empty scheme", "", Dialect{Name: FamilySQLite, Driver: "sqlite3", DSN: mattnDSN}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			defer func() {
				if recover() == nil {
					t.Errorf("RegisterDialect(%q) did not panic", tt.scheme)
				}
			}()
			RegisterDialect(tt.scheme, tt.dialect)
		})
	}
}
