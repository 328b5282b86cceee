package mysql

import (
	"context"
	"database/sql"
	"fmt"
)

// Tables lists the schema in dependency order.
var Tables = []struct {
	Name  string
	Query string
}{
	{"users", `
	CREATE TABLE IF NOT EXISTS users (
		id INT UNSIGNED NOT NULL AUTO_INCREMENT PRIMARY KEY,
		email VARCHAR(150) NOT NULL UNIQUE,
		name VARCHAR(150) NOT NULL,
		role ENUM('client','freelancer') NOT NULL DEFAULT 'client',
		is_admin TINYINT(1) NOT NULL DEFAULT 0,
		is_active TINYINT(1) NOT NULL DEFAULT 0,
		registration_code VARCHAR(64),
		created_at DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP,
		updated_at DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP ON UPDATE CURRENT_TIMESTAMP,
		INDEX idx_admin (is_admin)
	)`},
	{"services", `
	CREATE TABLE IF NOT EXISTS services (
		id INT UNSIGNED NOT NULL AUTO_INCREMENT PRIMARY KEY,
		user_id INT UNSIGNED NOT NULL,
		title VARCHAR(200) NOT NULL,
		description TEXT,
		price DECIMAL(12,2) NOT NULL,
		currency_code CHAR(3) NOT NULL,
		delivery_days INT NOT NULL DEFAULT 1,
		created_at DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP,
		updated_at DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP ON UPDATE CURRENT_TIMESTAMP,
		FOREIGN KEY (user_id) REFERENCES users(id),
		INDEX idx_owner (user_id)
	)`},
	{"orders", `
	CREATE TABLE IF NOT EXISTS orders (
		id INT UNSIGNED NOT NULL AUTO_INCREMENT PRIMARY KEY,
		client_id INT UNSIGNED NOT NULL,
		freelancer_id INT UNSIGNED NOT NULL,
		services_id INT UNSIGNED NULL,
		total_price DECIMAL(12,2) NOT NULL,
		currency_code CHAR(3) NOT NULL,
		status ENUM('pending','in_progress','delivered','completed','cancelled') NOT NULL DEFAULT 'pending',
		ordered_at DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP,
		updated_at DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP ON UPDATE CURRENT_TIMESTAMP,
		FOREIGN KEY (client_id) REFERENCES users(id),
		FOREIGN KEY (freelancer_id) REFERENCES users(id),
		FOREIGN KEY (services_id) REFERENCES services(id) ON DELETE SET NULL,
		INDEX idx_client_service_status (client_id, services_id, status),
		INDEX idx_freelancer (freelancer_id)
	)`},
	{"order_deliveries", `
	CREATE TABLE IF NOT EXISTS order_deliveries (
		id INT UNSIGNED NOT NULL AUTO_INCREMENT PRIMARY KEY,
		order_id INT UNSIGNED NOT NULL UNIQUE,
		message TEXT,
		file_url VARCHAR(2048) NOT NULL,
		delivered_at DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP,
		FOREIGN KEY (order_id) REFERENCES orders(id) ON DELETE CASCADE
	)`},
	{"reviews", `
	CREATE TABLE IF NOT EXISTS reviews (
		id INT UNSIGNED NOT NULL AUTO_INCREMENT PRIMARY KEY,
		order_id INT UNSIGNED NOT NULL UNIQUE,
		reviewer_id INT UNSIGNED NOT NULL,
		rating TINYINT NOT NULL,
		comment VARCHAR(500) NOT NULL,
		created_at DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP,
		FOREIGN KEY (order_id) REFERENCES orders(id) ON DELETE CASCADE,
		FOREIGN KEY (reviewer_id) REFERENCES users(id)
	)`},
	{"notification", `
	CREATE TABLE IF NOT EXISTS notification (
		id INT UNSIGNED NOT NULL AUTO_INCREMENT PRIMARY KEY,
		user_id INT UNSIGNED NOT NULL,
		sender_id INT UNSIGNED NULL,
		request_id CHAR(36) NULL,
		type ENUM('order','contact_request','review','system','support') NOT NULL,
		content VARCHAR(1000) NOT NULL,
		payload JSON NOT NULL,
		status ENUM('pending','accepted','rejected') NULL,
		is_read TINYINT(1) NOT NULL DEFAULT 0,
		created_at DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP,
		updated_at DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP ON UPDATE CURRENT_TIMESTAMP,
		FOREIGN KEY (user_id) REFERENCES users(id),
		INDEX idx_user_created (user_id, created_at),
		INDEX idx_sender_type_status (sender_id, type, status),
		INDEX idx_request (request_id)
	)`},
	{"notification_history", `
	CREATE TABLE IF NOT EXISTS notification_history (
		id INT UNSIGNED NOT NULL AUTO_INCREMENT PRIMARY KEY,
		notification_id INT UNSIGNED NOT NULL,
		user_id INT UNSIGNED NOT NULL,
		type VARCHAR(32) NOT NULL,
		content VARCHAR(1000) NOT NULL,
		status VARCHAR(16) NULL,
		is_read TINYINT(1) NOT NULL,
		action ENUM('created','read','resolved') NOT NULL,
		recorded_at DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP,
		INDEX idx_notification (notification_id)
	)`},
}

// Migrate creates any missing table.
func Migrate(ctx context.Context, db *sql.DB) error {
	for _, tbl := range Tables {
		if _, err := db.ExecContext(ctx, tbl.Query); err != nil {
			return fmt.Errorf("creating table %s: %w", tbl.Name, err)
		}
	}
	return nil
}
