package database

import (
	"context"
	"database/sql"
	"fmt"
)

// schema creates the tables the service reads and writes.  Statements are
// idempotent so EnsureSchema can run on every start.  Rooms are owned by
// the facilities inventory; the table is only created here so a fresh
// database is usable.
var schema = []string{
	`CREATE TABLE IF NOT EXISTS rooms (
		id           BIGINT UNSIGNED NOT NULL AUTO_INCREMENT,
		name         VARCHAR(100)    NOT NULL,
		sector       VARCHAR(50)     NOT NULL,
		capacity     INT UNSIGNED    NOT NULL,
		is_available TINYINT(1)      NOT NULL DEFAULT 1,
		is_deleted   TINYINT(1)      NOT NULL DEFAULT 0,
		created_at   DATETIME        NOT NULL DEFAULT CURRENT_TIMESTAMP,
		updated_at   DATETIME        NOT NULL DEFAULT CURRENT_TIMESTAMP ON UPDATE CURRENT_TIMESTAMP,
		PRIMARY KEY (id),
		KEY idx_rooms_sector (sector, name)
	) ENGINE=InnoDB DEFAULT CHARSET=utf8mb4`,
	`CREATE TABLE IF NOT EXISTS reservations (
		id         BIGINT UNSIGNED NOT NULL AUTO_INCREMENT,
		room_id    BIGINT UNSIGNED NOT NULL,
		user_id    BIGINT UNSIGNED NOT NULL,
		start_time DATETIME        NOT NULL,
		end_time   DATETIME        NOT NULL,
		purpose    VARCHAR(500)    NOT NULL,
		status     ENUM('Pending','Approved','Rejected','Cancelled') NOT NULL DEFAULT 'Pending',
		created_at DATETIME        NOT NULL,
		updated_at DATETIME        NOT NULL,
		PRIMARY KEY (id),
		KEY idx_reservations_room_window (room_id, status, start_time, end_time),
		KEY idx_reservations_user (user_id, created_at),
		KEY idx_reservations_created (created_at),
		CONSTRAINT fk_reservations_room FOREIGN KEY (room_id) REFERENCES rooms (id),
		CONSTRAINT chk_reservations_window CHECK (start_time < end_time)
	) ENGINE=InnoDB DEFAULT CHARSET=utf8mb4`,
}

// EnsureSchema applies the table definitions.
func EnsureSchema(ctx context.Context, db *sql.DB) error {
	for i, stmt := range schema {
		if _, err := db.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("apply schema statement %d: %w", i+1, err)
		}
	}
	return nil
}
