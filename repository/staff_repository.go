package repository

import (
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"DemoCrate/model"
)

// ErrDuplicateStaff 用户名或邮箱已存在
var ErrDuplicateStaff = errors.New("staff username or email already exists")

// StaffRepository defines the interface for staff account data operations.
type StaffRepository interface {
	CreateStaff(staff *model.Staff) (int64, error)
	GetStaffByID(id int64) (*model.Staff, error)
	GetStaffByUsername(username string) (*model.Staff, error)
	GetStaffByEmail(email string) (*model.Staff, error)
	UpdateOverrides(staffID int64, overrides model.PermissionSet) error
	UpdateRole(staffID int64, role string) error
}

// mysqlStaffRepository implements StaffRepository for MySQL.
type mysqlStaffRepository struct {
	db *sql.DB
}

// NewMySQLStaffRepository creates a new mysqlStaffRepository.
func NewMySQLStaffRepository(db *sql.DB) StaffRepository {
	return &mysqlStaffRepository{db: db}
}

const staffColumns = "id, org_id, username, email, password_hash, role, overrides, created_at, updated_at"

// CreateStaff adds a new staff account to the database.
func (r *mysqlStaffRepository) CreateStaff(staff *model.Staff) (int64, error) {
	query := "INSERT INTO staff (org_id, username, email, password_hash, role, overrides) VALUES (?, ?, ?, ?, ?, ?)"
	stmt, err := r.db.Prepare(query)
	if err != nil {
		return 0, fmt.Errorf("failed to prepare create staff statement: %w", err)
	}
	defer stmt.Close()

	overrides, err := staff.Overrides.Value()
	if err != nil {
		return 0, fmt.Errorf("failed to encode overrides: %w", err)
	}

	res, err := stmt.Exec(staff.OrgID, staff.Username, staff.Email, staff.PasswordHash, staff.Role, overrides)
	if err != nil {
		// MySQL 1062: duplicate entry on unique key
		if strings.Contains(err.Error(), "Error 1062") || strings.Contains(err.Error(), "Duplicate entry") {
			return 0, ErrDuplicateStaff
		}
		return 0, fmt.Errorf("failed to execute create staff statement: %w", err)
	}

	id, err := res.LastInsertId()
	if err != nil {
		return 0, fmt.Errorf("failed to get last insert ID for staff: %w", err)
	}
	return id, nil
}

func (r *mysqlStaffRepository) scanStaff(row *sql.Row, context string) (*model.Staff, error) {
	staff := &model.Staff{}
	var overrides sql.NullString
	err := row.Scan(&staff.ID, &staff.OrgID, &staff.Username, &staff.Email, &staff.PasswordHash, &staff.Role, &overrides, &staff.CreatedAt, &staff.UpdatedAt)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, nil // Staff not found
		}
		return nil, fmt.Errorf("failed to scan staff row for %s: %w", context, err)
	}
	if overrides.Valid {
		if err := staff.Overrides.Scan(overrides.String); err != nil {
			return nil, fmt.Errorf("failed to decode overrides for %s: %w", context, err)
		}
	}
	return staff, nil
}

// GetStaffByID retrieves a staff member by their ID.
func (r *mysqlStaffRepository) GetStaffByID(id int64) (*model.Staff, error) {
	query := "SELECT " + staffColumns + " FROM staff WHERE id = ?"
	return r.scanStaff(r.db.QueryRow(query, id), fmt.Sprintf("ID %d", id))
}

// GetStaffByUsername retrieves a staff member by their username.
func (r *mysqlStaffRepository) GetStaffByUsername(username string) (*model.Staff, error) {
	query := "SELECT " + staffColumns + " FROM staff WHERE username = ?"
	return r.scanStaff(r.db.QueryRow(query, username), fmt.Sprintf("username %s", username))
}

// GetStaffByEmail retrieves a staff member by their email address.
func (r *mysqlStaffRepository) GetStaffByEmail(email string) (*model.Staff, error) {
	query := "SELECT " + staffColumns + " FROM staff WHERE email = ?"
	return r.scanStaff(r.db.QueryRow(query, email), fmt.Sprintf("email %s", email))
}

// UpdateOverrides replaces a staff member's permission overrides.
func (r *mysqlStaffRepository) UpdateOverrides(staffID int64, overrides model.PermissionSet) error {
	encoded, err := overrides.Value()
	if err != nil {
		return fmt.Errorf("failed to encode overrides: %w", err)
	}

	_, err = r.db.Exec("UPDATE staff SET overrides = ? WHERE id = ?", encoded, staffID)
	if err != nil {
		return fmt.Errorf("failed to update overrides for staff %d: %w", staffID, err)
	}
	return nil
}

// UpdateRole updates a staff member's role.
func (r *mysqlStaffRepository) UpdateRole(staffID int64, role string) error {
	switch role {
	case model.RoleOwner, model.RoleManager, model.RoleScout, model.RoleSystemAdmin:
	default:
		return fmt.Errorf("unknown role: %q", role)
	}

	_, err := r.db.Exec("UPDATE staff SET role = ? WHERE id = ?", role, staffID)
	if err != nil {
		return fmt.Errorf("failed to update role for staff %d: %w", staffID, err)
	}
	return nil
}
