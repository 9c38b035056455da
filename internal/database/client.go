package database

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"gorm.io/driver/mysql"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"dynaccess/pkg/dynaccess"
)

// accessRule maps the proxy manager's access_list_client table. The domain
// column is provisioned by the one-time migration in migrate.go, not by
// the reconciliation pass.
type accessRule struct {
	ID      uint   `gorm:"primaryKey"`
	Address string `gorm:"column:address"`
	Domain  string `gorm:"column:domain"`
}

func (accessRule) TableName() string {
	return "access_list_client"
}

// Client is the rule store backed by the proxy manager's database. Every
// call is bounded by the configured timeout.
type Client struct {
	db      *gorm.DB
	timeout time.Duration
}

// Open connects to the database with the given DSN.
func Open(dsn string, timeout time.Duration) (*Client, error) {
	db, err := gorm.Open(mysql.Open(dsn), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	if err != nil {
		return nil, fmt.Errorf("%w: %v", dynaccess.ErrDatabaseUnavailable, err)
	}
	return NewWithDB(db, timeout), nil
}

// NewWithDB wraps an existing gorm connection. Used by tests and by
// callers that manage the connection themselves.
func NewWithDB(db *gorm.DB, timeout time.Duration) *Client {
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	return &Client{db: db, timeout: timeout}
}

func (c *Client) callCtx(ctx context.Context) (context.Context, context.CancelFunc) {
	return context.WithTimeout(ctx, c.timeout)
}

// Ping verifies the database is reachable. A failure here is fatal for
// the whole pass; no partial access is attempted afterwards.
func (c *Client) Ping(ctx context.Context) error {
	ctx, cancel := c.callCtx(ctx)
	defer cancel()

	sqlDB, err := c.db.DB()
	if err != nil {
		return fmt.Errorf("%w: %v", dynaccess.ErrDatabaseUnavailable, err)
	}
	if err := sqlDB.PingContext(ctx); err != nil {
		return fmt.Errorf("%w: %v", dynaccess.ErrDatabaseUnavailable, err)
	}
	return nil
}

// ListRules returns every access-rule row.
func (c *Client) ListRules(ctx context.Context) ([]dynaccess.Rule, error) {
	ctx, cancel := c.callCtx(ctx)
	defer cancel()

	var rows []accessRule
	if err := c.db.WithContext(ctx).Order("id").Find(&rows).Error; err != nil {
		return nil, fmt.Errorf("%w: list rules: %v", dynaccess.ErrDatabaseUnavailable, err)
	}

	rules := make([]dynaccess.Rule, 0, len(rows))
	for _, row := range rows {
		rules = append(rules, dynaccess.Rule{ID: row.ID, Domain: row.Domain, Address: row.Address})
	}
	return rules, nil
}

// UpdateAddress rewrites the address of the single row matching both the
// domain and the old address. The double predicate guards against two
// domains racing to claim the same stale IP. A CIDR suffix on the stored
// address ("1.2.3.4/32") is preserved on the new value. Rows are never
// inserted; a missing match is dynaccess.ErrRuleNotFound.
func (c *Client) UpdateAddress(ctx context.Context, domain, oldIP, newIP string) error {
	ctx, cancel := c.callCtx(ctx)
	defer cancel()

	var row accessRule
	err := c.db.WithContext(ctx).
		Where("domain = ? AND (address = ? OR address LIKE ?)", domain, oldIP, oldIP+"/%").
		First(&row).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return dynaccess.ErrRuleNotFound
	}
	if err != nil {
		return fmt.Errorf("find rule for %s: %w", domain, err)
	}

	newAddr := newIP
	if idx := strings.IndexByte(row.Address, '/'); idx >= 0 {
		newAddr = newIP + row.Address[idx:]
	}

	res := c.db.WithContext(ctx).
		Model(&accessRule{}).
		Where("id = ? AND address = ?", row.ID, row.Address).
		Update("address", newAddr)
	if res.Error != nil {
		return fmt.Errorf("update rule for %s: %w", domain, res.Error)
	}
	if res.RowsAffected == 0 {
		// The row moved between the read and the write.
		return dynaccess.ErrRuleNotFound
	}
	return nil
}

// RestoreDomain re-tags a rule row that lost its domain value. Only rows
// with an empty domain and the given address are touched; it reports
// whether any row was updated.
func (c *Client) RestoreDomain(ctx context.Context, ip, domain string) (bool, error) {
	ctx, cancel := c.callCtx(ctx)
	defer cancel()

	res := c.db.WithContext(ctx).
		Model(&accessRule{}).
		Where("(address = ? OR address LIKE ?) AND (domain IS NULL OR domain = '')", ip, ip+"/%").
		Update("domain", domain)
	if res.Error != nil {
		return false, fmt.Errorf("restore domain %s: %w", domain, res.Error)
	}
	return res.RowsAffected > 0, nil
}
