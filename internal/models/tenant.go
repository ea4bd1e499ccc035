package models

import (
	"strings"
	"time"
)

// Tenant - Kiracı. Sahiplik CreatedByID veya mülk üzerinden kira sözleşmesi ile belirlenir.
type Tenant struct {
	ID                    uint       `gorm:"primaryKey" json:"id"`
	CreatedByID           uint       `gorm:"index;not null" json:"created_by_id"`
	FirstName             string     `gorm:"size:100;not null" json:"first_name"`
	LastName              string     `gorm:"size:100;not null" json:"last_name"`
	Email                 string     `gorm:"size:150;not null;index" json:"email"`
	Phone                 string     `gorm:"size:20" json:"phone"`
	DateOfBirth           *time.Time `json:"date_of_birth"`
	SSNLastFour           string     `gorm:"size:4" json:"ssn_last_four"`
	EmergencyContactName  string     `gorm:"size:150" json:"emergency_contact_name"`
	EmergencyContactPhone string     `gorm:"size:20" json:"emergency_contact_phone"`
	EmployerName          string     `gorm:"size:150" json:"employer_name"`
	MonthlyIncome         *float64   `json:"monthly_income"`
	Notes                 string     `gorm:"type:text" json:"notes"`
	Leases                []Lease    `gorm:"foreignKey:TenantID" json:"-"`
	CreatedAt             time.Time  `json:"created_at"`
	UpdatedAt             time.Time  `json:"updated_at"`
}

func (t Tenant) FullName() string {
	return strings.TrimSpace(t.FirstName + " " + t.LastName)
}
