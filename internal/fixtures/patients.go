// Package fixtures creates the demo patients database used by the seed
// command and by tests.
package fixtures

import (
	"context"
	"database/sql"
	"fmt"
)

// Schema creates the patients table.
const Schema = `
CREATE TABLE IF NOT EXISTS patients (
	id INTEGER PRIMARY KEY AUTOINCREMENT,
	first_name TEXT NOT NULL,
	last_name TEXT NOT NULL,
	date_of_birth TEXT NOT NULL,
	gender TEXT,
	email TEXT,
	phone TEXT,
	created_at TEXT NOT NULL DEFAULT '2024-01-15T09:00:00Z'
);
CREATE INDEX IF NOT EXISTS idx_patients_last_name ON patients(last_name);
`

// Patient is one demo patient record.
type Patient struct {
	FirstName   string
	LastName    string
	DateOfBirth string
	Gender      string
	Email       string // empty is stored as NULL
	Phone       string
}

// Patients are inserted in this order, which is deliberately not sorted
// by last name.
var Patients = []Patient{
	{"Maria", "Garcia", "1985-04-12", "female", "maria.garcia@example.com", "555-0101"},
	{"James", "Smith", "1972-11-03", "male", "james.smith@example.com", "555-0102"},
	{"Linh", "Nguyen", "1990-06-21", "female", "linh.nguyen@example.com", "555-0103"},
	{"Robert", "Anderson", "1958-02-14", "male", "", "555-0104"},
	{"Sofia", "Martinez", "2001-09-30", "female", "sofia.martinez@example.com", "555-0105"},
	{"David", "Stewart", "1969-12-08", "male", "david.stewart@example.com", ""},
	{"Emily", "Brown", "1995-03-17", "female", "emily.brown@example.com", "555-0107"},
	{"Carlos", "Sanchez", "1980-07-04", "male", "carlos.sanchez@example.com", "555-0108"},
	{"Grace", "Clark", "1948-10-25", "female", "grace.clark@example.com", "555-0109"},
	{"Michael", "Johnson", "1977-05-19", "male", "michael.johnson@example.com", "555-0110"},
	{"Ana", "Lopez", "1988-08-09", "female", "", "555-0111"},
	{"William", "Davis", "1963-01-28", "male", "william.davis@example.com", "555-0112"},
}

// Seed creates the patients table and fills it with the demo patients.
// A table that already has rows is left alone. It returns the number of
// rows inserted.
func Seed(ctx context.Context, db *sql.DB) (int, error) {
	if _, err := db.ExecContext(ctx, Schema); err != nil {
		return 0, fmt.Errorf("failed to create schema: %w", err)
	}

	var count int
	if err := db.QueryRowContext(ctx, "SELECT COUNT(*) FROM patients").Scan(&count); err != nil {
		return 0, fmt.Errorf("failed to count patients: %w", err)
	}
	if count > 0 {
		return 0, nil
	}

	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return 0, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	stmt, err := tx.PrepareContext(ctx, `INSERT INTO patients
		(first_name, last_name, date_of_birth, gender, email, phone)
		VALUES (?, ?, ?, ?, ?, ?)`)
	if err != nil {
		return 0, fmt.Errorf("failed to prepare insert: %w", err)
	}
	defer stmt.Close()

	for _, p := range Patients {
		if _, err := stmt.ExecContext(ctx, p.FirstName, p.LastName, p.DateOfBirth,
			p.Gender, nullable(p.Email), nullable(p.Phone)); err != nil {
			return 0, fmt.Errorf("failed to insert %s %s: %w", p.FirstName, p.LastName, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return 0, fmt.Errorf("failed to commit: %w", err)
	}
	return len(Patients), nil
}

func nullable(s string) any {
	if s == "" {
		return nil
	}
	return s
}
