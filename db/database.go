package db

import (
	"database/sql"
	"fmt"
	"log"

	"DemoCrate/config"
	"DemoCrate/core/auth"

	_ "github.com/go-sql-driver/mysql" // MySQL driver
)

var DB *sql.DB

// ConnectDB establishes a connection to the database.
func ConnectDB(cfg *config.Config) error {
	dsn := fmt.Sprintf("%s:%s@tcp(%s:%s)/%s?parseTime=true",
		cfg.DBUser, cfg.DBPassword, cfg.DBHost, cfg.DBPort, cfg.DBName)

	var err error
	DB, err = sql.Open("mysql", dsn)
	if err != nil {
		return fmt.Errorf("failed to open database connection: %w", err)
	}

	if err = DB.Ping(); err != nil {
		DB.Close()
		return fmt.Errorf("failed to ping database: %w", err)
	}

	log.Println("Successfully connected to the database.")
	return nil
}

// InitDB initializes the account-side schema (organizations, staff) and seeds
// the initial organization and system admin. The pipeline tables
// (demo_tracks, demo_votes) are migrated separately through GORM.
func InitDB() error {
	if err := createOrganizationsTable(); err != nil {
		return err
	}
	if err := createStaffTable(); err != nil {
		return err
	}
	if err := seedInitialOrgAndAdmin(); err != nil {
		return err
	}

	log.Println("Database initialization and migration completed.")
	return nil
}

func createOrganizationsTable() error {
	query := `
	CREATE TABLE IF NOT EXISTS organizations (
		id INT AUTO_INCREMENT PRIMARY KEY,
		name VARCHAR(100) NOT NULL,
		require_rejection_reason BOOLEAN NOT NULL DEFAULT FALSE,
		personal_workspace BOOLEAN NOT NULL DEFAULT FALSE,
		created_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP,
		updated_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP ON UPDATE CURRENT_TIMESTAMP
	);
	`
	_, err := DB.Exec(query)
	if err != nil {
		return fmt.Errorf("failed to create organizations table: %w", err)
	}
	log.Println("Organizations table initialized successfully (or already exists).")
	return nil
}

func createStaffTable() error {
	query := `
	CREATE TABLE IF NOT EXISTS staff (
		id INT AUTO_INCREMENT PRIMARY KEY,
		org_id INT NOT NULL,
		username VARCHAR(100) NOT NULL UNIQUE,
		email VARCHAR(255) NOT NULL UNIQUE,
		password_hash VARCHAR(255) NOT NULL,
		role VARCHAR(20) NOT NULL DEFAULT 'scout',
		overrides JSON,
		created_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP,
		updated_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP ON UPDATE CURRENT_TIMESTAMP,
		CONSTRAINT fk_staff_org FOREIGN KEY (org_id) REFERENCES organizations(id) ON DELETE CASCADE
	);
	`
	_, err := DB.Exec(query)
	if err != nil {
		return fmt.Errorf("failed to create staff table: %w", err)
	}
	log.Println("Staff table initialized successfully (or already exists).")
	return nil
}

// seedInitialOrgAndAdmin 初始化默认厂牌和系统管理员账号，幂等。
func seedInitialOrgAndAdmin() error {
	var orgID int64
	err := DB.QueryRow("SELECT id FROM organizations ORDER BY id LIMIT 1").Scan(&orgID)
	if err != nil && err != sql.ErrNoRows {
		return fmt.Errorf("failed to check for existing organization: %w", err)
	}

	if err == sql.ErrNoRows {
		res, err := DB.Exec("INSERT INTO organizations (name, require_rejection_reason) VALUES (?, ?)",
			"Default Label", true)
		if err != nil {
			return fmt.Errorf("failed to insert initial organization: %w", err)
		}
		orgID, err = res.LastInsertId()
		if err != nil {
			return fmt.Errorf("failed to get ID of initial organization: %w", err)
		}
		log.Printf("Initial organization created with ID: %d", orgID)
	}

	username := "admin"
	var existingID int64
	err = DB.QueryRow("SELECT id FROM staff WHERE username = ?", username).Scan(&existingID)
	if err != nil && err != sql.ErrNoRows {
		return fmt.Errorf("failed to check for existing admin: %w", err)
	}
	if err == nil {
		log.Printf("Initial admin already exists with ID: %d. Skipping creation.", existingID)
		return nil
	}

	hashed, err := auth.HashPassword("changeme")
	if err != nil {
		return fmt.Errorf("failed to hash password for initial admin: %w", err)
	}

	res, err := DB.Exec("INSERT INTO staff (org_id, username, email, password_hash, role) VALUES (?, ?, ?, ?, ?)",
		orgID, username, "admin@democrate.local", hashed, "sysadmin")
	if err != nil {
		return fmt.Errorf("failed to insert initial admin: %w", err)
	}
	id, _ := res.LastInsertId()
	log.Printf("Initial admin 'admin' created with ID: %d (temporary password, change it)", id)
	return nil
}
