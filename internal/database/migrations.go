package database

import (
	"fmt"
	"log"

	"gorm.io/gorm"
)

// AddIndexes adds the case-insensitive lookup indexes used by the identity
// registry. AutoMigrate cannot express expression indexes.
func AddIndexes(db *gorm.DB) error {
	indexes := []struct {
		table  string
		name   string
		expr   string
		unique bool
	}{
		// Emails differing only in case are the same identity.
		{"users", "idx_users_email_lower", "LOWER(email)", true},
		// Discord usernames of ghosts may collide, so this one only speeds up lookups.
		{"users", "idx_users_username_lower", "LOWER(username)", false},
	}

	dialect := db.Dialector.Name()

	for _, idx := range indexes {
		if db.Migrator().HasIndex(idx.table, idx.name) {
			continue
		}

		expr := idx.expr
		// MySQL functional key parts need their own parentheses.
		if dialect == "mysql" {
			expr = "(" + expr + ")"
		}

		kind := "INDEX"
		if idx.unique {
			kind = "UNIQUE INDEX"
		}

		sql := fmt.Sprintf("CREATE %s %s ON %s (%s)", kind, idx.name, idx.table, expr)
		if err := db.Exec(sql).Error; err != nil {
			return fmt.Errorf("failed to create index %s: %w", idx.name, err)
		}

		log.Printf("Created index %s on %s(%s)", idx.name, idx.table, idx.expr)
	}

	return nil
}
