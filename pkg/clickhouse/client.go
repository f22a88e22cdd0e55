package clickhouse

import (
	"context"
	"database/sql"
	"fmt"
	"net/url"
	"time"

	_ "github.com/ClickHouse/clickhouse-go/v2"
)

// Client is the connection pool behind the trade archive.
type Client struct {
	db *sql.DB
}

// Option configures NewClient.
type Option func(*dsnParams)

// dsnParams is everything that ends up in the connection string.
type dsnParams struct {
	host, database     string
	user, password     string
	port               int
	http               bool
	asyncInsert, await bool
	dial, read, maxRun time.Duration
}

func WithHost(host string) Option { return func(p *dsnParams) { p.host = host } }
func WithPort(port int) Option    { return func(p *dsnParams) { p.port = port } }

func WithDatabase(name string) Option { return func(p *dsnParams) { p.database = name } }

func WithCredentials(user, password string) Option {
	return func(p *dsnParams) { p.user, p.password = user, password }
}

// WithHTTP switches from the native protocol to HTTP.
func WithHTTP(enabled bool) Option { return func(p *dsnParams) { p.http = enabled } }

// WithAsyncInsert lets the server buffer inserts; with wait the insert
// returns only after the buffer is flushed.
func WithAsyncInsert(enabled, wait bool) Option {
	return func(p *dsnParams) { p.asyncInsert, p.await = enabled, wait }
}

func WithTimeouts(dial, read time.Duration) Option {
	return func(p *dsnParams) { p.dial, p.read = dial, read }
}

func WithMaxExecutionTime(d time.Duration) Option { return func(p *dsnParams) { p.maxRun = d } }

// NewClient opens a pool and pings the server within the dial timeout.
func NewClient(opts ...Option) (*Client, error) {
	p := &dsnParams{
		port:     9000,
		database: "default",
		user:     "default",
		dial:     5 * time.Second,
		read:     10 * time.Second,
	}
	for _, opt := range opts {
		opt(p)
	}
	if p.host == "" {
		return nil, fmt.Errorf("clickhouse: host is required")
	}

	db, err := sql.Open("clickhouse", buildDSN(p))
	if err != nil {
		return nil, fmt.Errorf("clickhouse open: %w", err)
	}
	// trade batches are written by a single pipeline worker
	db.SetMaxOpenConns(4)
	db.SetMaxIdleConns(2)
	db.SetConnMaxLifetime(5 * time.Minute)

	ctx, cancel := context.WithTimeout(context.Background(), p.dial)
	defer cancel()
	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("clickhouse ping %s:%d: %w", p.host, p.port, err)
	}

	return &Client{db: db}, nil
}

func (c *Client) Health(ctx context.Context) error {
	return c.db.PingContext(ctx)
}

func (c *Client) Close() error {
	if c.db == nil {
		return nil
	}
	return c.db.Close()
}

// InitSchema runs idempotent DDL statements in order.
func (c *Client) InitSchema(ctx context.Context, stmts []string) error {
	for _, stmt := range stmts {
		if _, err := c.db.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("init schema: %w", err)
		}
	}
	return nil
}

// InsertBatch inserts rows through one prepared statement inside a
// transaction, which the driver sends as a single native block.
func (c *Client) InsertBatch(ctx context.Context, query string, rows [][]any) error {
	if len(rows) == 0 {
		return nil
	}

	tx, err := c.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin batch: %w", err)
	}
	stmt, err := tx.PrepareContext(ctx, query)
	if err != nil {
		_ = tx.Rollback()
		return fmt.Errorf("prepare batch: %w", err)
	}
	defer stmt.Close()

	for _, row := range rows {
		if _, err := stmt.ExecContext(ctx, row...); err != nil {
			_ = tx.Rollback()
			return fmt.Errorf("append row: %w", err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit batch: %w", err)
	}
	return nil
}

func buildDSN(p *dsnParams) string {
	scheme := "clickhouse"
	if p.http {
		scheme = "http"
	}

	q := url.Values{}
	if p.dial > 0 {
		q.Set("dial_timeout", p.dial.String())
	}
	if p.read > 0 {
		q.Set("read_timeout", p.read.String())
	}
	if p.maxRun > 0 {
		q.Set("max_execution_time", fmt.Sprint(int(p.maxRun.Seconds())))
	}
	if p.asyncInsert {
		q.Set("async_insert", "1")
		if p.await {
			q.Set("wait_for_async_insert", "1")
		}
	}

	u := url.URL{
		Scheme:   scheme,
		User:     url.UserPassword(p.user, p.password),
		Host:     fmt.Sprintf("%s:%d", p.host, p.port),
		Path:     "/" + p.database,
		RawQuery: q.Encode(),
	}
	return u.String()
}
