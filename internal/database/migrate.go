package database

import (
	"fmt"
)

// EnsureDomainColumn adds the domain column to the rule table if it is
// not there yet. This is the one-time migration the reconciliation pass
// depends on; the pass itself never alters schema.
func (c *Client) EnsureDomainColumn() error {
	migrator := c.db.Migrator()
	if migrator.HasColumn(&accessRule{}, "domain") {
		return nil
	}
	if err := migrator.AddColumn(&accessRule{}, "domain"); err != nil {
		return fmt.Errorf("add domain column: %w", err)
	}
	return nil
}

// DropDomainColumn removes the domain column again, undoing
// EnsureDomainColumn. The mapping file is left alone.
func (c *Client) DropDomainColumn() error {
	migrator := c.db.Migrator()
	if !migrator.HasColumn(&accessRule{}, "domain") {
		return nil
	}
	if err := migrator.DropColumn(&accessRule{}, "domain"); err != nil {
		return fmt.Errorf("drop domain column: %w", err)
	}
	return nil
}
