package models

import (
	"math"
	"time"
)

type LeaseType string

const (
	LeaseTypeFixed        LeaseType = "fixed"          // sabit süreli
	LeaseTypeMonthToMonth LeaseType = "month_to_month" // aylık yenilenen
	LeaseTypeWeekToWeek   LeaseType = "week_to_week"   // haftalık yenilenen
)

func (t LeaseType) Valid() bool {
	switch t {
	case LeaseTypeFixed, LeaseTypeMonthToMonth, LeaseTypeWeekToWeek:
		return true
	}
	return false
}

type LeaseStatus string

const (
	LeaseStatusPending    LeaseStatus = "pending"
	LeaseStatusActive     LeaseStatus = "active"
	LeaseStatusCompleted  LeaseStatus = "completed"
	LeaseStatusTerminated LeaseStatus = "terminated"
	LeaseStatusRenewed    LeaseStatus = "renewed"
)

func (s LeaseStatus) Valid() bool {
	switch s {
	case LeaseStatusPending, LeaseStatusActive, LeaseStatusCompleted, LeaseStatusTerminated, LeaseStatusRenewed:
		return true
	}
	return false
}

// Lease - Bir mülk ile bir kiracı arasındaki kira sözleşmesi
type Lease struct {
	ID                    uint        `gorm:"primaryKey" json:"id"`
	PropertyID            uint        `gorm:"index;not null" json:"property_id"`
	Property              Property    `gorm:"foreignKey:PropertyID;constraint:OnDelete:CASCADE" json:"-"`
	TenantID              uint        `gorm:"index;not null" json:"tenant_id"`
	Tenant                Tenant      `gorm:"foreignKey:TenantID;constraint:OnDelete:CASCADE" json:"-"`
	LeaseType             LeaseType   `gorm:"size:20;not null" json:"lease_type"`
	StartDate             time.Time   `gorm:"index;not null" json:"start_date"`
	EndDate               time.Time   `gorm:"index;not null" json:"end_date"`
	RentAmount            float64     `gorm:"not null" json:"rent_amount"`
	SecurityDeposit       float64     `json:"security_deposit"`
	Status                LeaseStatus `gorm:"size:20;index;not null" json:"status"`
	PaymentDay            int         `gorm:"not null" json:"payment_day"`  // ayın kaçında ödenir
	LateFee               float64     `json:"late_fee"`                     // gecikme bedeli
	GracePeriod           int         `gorm:"not null" json:"grace_period"` // gün
	IsSecurityDepositPaid bool        `json:"is_security_deposit_paid"`
	Notes                 string      `gorm:"type:text" json:"notes"`
	CreatedByID           uint        `gorm:"index" json:"created_by_id"`
	CreatedAt             time.Time   `json:"created_at"`
	UpdatedAt             time.Time   `json:"updated_at"`
}

// IsActiveOn status active ve gün [start, end] aralığında ise true
func (l Lease) IsActiveOn(day time.Time) bool {
	day = DateOnly(day)
	return l.Status == LeaseStatusActive && !day.Before(l.StartDate) && !day.After(l.EndDate)
}

// Overlaps kapalı aralık kesişimi: existing.start <= end && existing.end >= start
func (l Lease) Overlaps(start, end time.Time) bool {
	return !l.StartDate.After(end) && !l.EndDate.Before(start)
}

// TermMonths sözleşme süresi (ay)
func (l Lease) TermMonths() int {
	months := (l.EndDate.Year()-l.StartDate.Year())*12 + int(l.EndDate.Month()) - int(l.StartDate.Month())
	if l.EndDate.Day() >= l.StartDate.Day() {
		months++
	}
	if months < 0 {
		return 0
	}
	return months
}

// DaysUntilExpiration bitişe kalan gün, bitmişse 0
func (l Lease) DaysUntilExpiration(day time.Time) int {
	d := l.EndDate.Sub(DateOnly(day)).Hours() / 24
	if d < 0 {
		return 0
	}
	return int(math.Round(d))
}

func (l Lease) CanTerminate() bool {
	return l.Status == LeaseStatusActive || l.Status == LeaseStatusPending
}

func (l Lease) CanRenew() bool {
	return l.Status == LeaseStatusActive || l.Status == LeaseStatusPending || l.Status == LeaseStatusCompleted
}
