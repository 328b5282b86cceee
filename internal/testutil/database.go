package testutil

import (
	"context"
	"database/sql"
	"fmt"
	"testing"

	_ "github.com/go-sql-driver/mysql"

	"gigmarket/internal/domain"
	"gigmarket/internal/infrastructure/mysql"
)

// SetupTestDB opens the test database. It expects a MySQL server on
// localhost:3306 with a database named 'gigmarket_test' and skips the test
// when none is reachable.
func SetupTestDB(t *testing.T) *sql.DB {
	dsn := "root:@tcp(localhost:3306)/gigmarket_test?parseTime=true"
	db, err := sql.Open("mysql", dsn)
	if err != nil {
		t.Fatalf("failed to open test database: %v", err)
	}

	// Verify connection
	err = db.Ping()
	if err != nil {
		t.Skipf("test database not available: %v", err)
	}

	return db
}

// CleanupTestDB empties every table and closes db.
func CleanupTestDB(t *testing.T, db *sql.DB) {
	if db == nil {
		return
	}

	for i := len(mysql.Tables) - 1; i >= 0; i-- {
		table := mysql.Tables[i].Name
		_, err := db.Exec(fmt.Sprintf("DELETE FROM %s", table))
		if err != nil {
			t.Logf("failed to clean table %s: %v", table, err)
		}
	}

	db.Close()
}

// SetupTestTables creates the schema used by the application.
func SetupTestTables(t *testing.T, db *sql.DB) {
	if err := mysql.Migrate(context.Background(), db); err != nil {
		t.Logf("failed to create tables: %v", err)
	}
}

func InsertUser(t *testing.T, db *sql.DB, email string, role domain.Role, isAdmin bool) uint {
	t.Helper()
	result, err := db.Exec(
		`INSERT INTO users (email, name, role, is_admin, is_active) VALUES (?, ?, ?, ?, 1)`,
		email, email, role, isAdmin,
	)
	if err != nil {
		t.Fatalf("failed to insert user: %v", err)
	}
	return lastID(t, result)
}

func InsertService(t *testing.T, db *sql.DB, ownerID uint, price string) uint {
	t.Helper()
	result, err := db.Exec(
		`INSERT INTO services (user_id, title, description, price, currency_code, delivery_days)
		 VALUES (?, 'Logo design', 'A logo', ?, 'USD', 3)`,
		ownerID, price,
	)
	if err != nil {
		t.Fatalf("failed to insert service: %v", err)
	}
	return lastID(t, result)
}

func InsertOrder(t *testing.T, db *sql.DB, clientID, freelancerID, serviceID uint, status domain.OrderStatus) uint {
	t.Helper()
	result, err := db.Exec(
		`INSERT INTO orders (client_id, freelancer_id, services_id, total_price, currency_code, status)
		 VALUES (?, ?, ?, 25.00, 'USD', ?)`,
		clientID, freelancerID, serviceID, status,
	)
	if err != nil {
		t.Fatalf("failed to insert order: %v", err)
	}
	return lastID(t, result)
}

func lastID(t *testing.T, result sql.Result) uint {
	id, err := result.LastInsertId()
	if err != nil {
		t.Fatalf("failed to read insert id: %v", err)
	}
	return uint(id)
}
