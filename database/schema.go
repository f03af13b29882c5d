package database

import (
	"database/sql"
	"fmt"

	"github.com/apex/log"
)

// InitSchema creates the tables this service owns if they do not exist.
// The users table is a read-only mirror kept in sync by the identity
// provider's sync job; it is created here so a fresh deployment works.
func InitSchema(db *sql.DB) error {
	statements := []string{
		`CREATE TABLE IF NOT EXISTS reports (
			seq BIGINT NOT NULL AUTO_INCREMENT,
			id VARCHAR(64) NOT NULL,
			type ENUM('safe', 'unsafe') NOT NULL,
			description TEXT NOT NULL,
			latitude DOUBLE NOT NULL,
			longitude DOUBLE NOT NULL,
			author_id VARCHAR(128) NOT NULL,
			author_display_name VARCHAR(255) NOT NULL,
			image_url VARCHAR(512) NOT NULL DEFAULT '',
			created_at TIMESTAMP NOT NULL DEFAULT CURRENT_TIMESTAMP,
			updated_at TIMESTAMP NOT NULL DEFAULT CURRENT_TIMESTAMP ON UPDATE CURRENT_TIMESTAMP,
			PRIMARY KEY (seq),
			UNIQUE KEY idx_reports_id (id),
			KEY idx_reports_author (author_id),
			KEY idx_reports_created (created_at)
		) ENGINE=InnoDB DEFAULT CHARSET=utf8mb4`,
		`CREATE TABLE IF NOT EXISTS users (
			uid VARCHAR(128) NOT NULL,
			email VARCHAR(255) NOT NULL DEFAULT '',
			display_name VARCHAR(255) NOT NULL DEFAULT '',
			verified_contributor BOOLEAN NOT NULL DEFAULT FALSE,
			avatar_url VARCHAR(512) NOT NULL DEFAULT '',
			created_at TIMESTAMP NOT NULL DEFAULT CURRENT_TIMESTAMP,
			PRIMARY KEY (uid)
		) ENGINE=InnoDB DEFAULT CHARSET=utf8mb4`,
	}

	for _, stmt := range statements {
		if _, err := db.Exec(stmt); err != nil {
			return fmt.Errorf("initializing schema: %w", err)
		}
	}

	log.Info("Database schema initialized")
	return nil
}
