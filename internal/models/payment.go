package models

import (
	"errors"
	"time"
)

type PaymentStatus string

const (
	PaymentStatusPending  PaymentStatus = "pending"
	PaymentStatusPaid     PaymentStatus = "paid"
	PaymentStatusPartial  PaymentStatus = "partial"
	PaymentStatusLate     PaymentStatus = "late"
	PaymentStatusDeclined PaymentStatus = "declined"
	PaymentStatusRefunded PaymentStatus = "refunded"
)

func (s PaymentStatus) Valid() bool {
	switch s {
	case PaymentStatusPending, PaymentStatusPaid, PaymentStatusPartial,
		PaymentStatusLate, PaymentStatusDeclined, PaymentStatusRefunded:
		return true
	}
	return false
}

type PaymentMethod string

const (
	PaymentMethodCash         PaymentMethod = "cash"
	PaymentMethodCheck        PaymentMethod = "check"
	PaymentMethodBankTransfer PaymentMethod = "bank_transfer"
	PaymentMethodCreditCard   PaymentMethod = "credit_card"
	PaymentMethodOnline       PaymentMethod = "online"
	PaymentMethodOther        PaymentMethod = "other"
)

func (m PaymentMethod) Valid() bool {
	switch m {
	case "", PaymentMethodCash, PaymentMethodCheck, PaymentMethodBankTransfer,
		PaymentMethodCreditCard, PaymentMethodOnline, PaymentMethodOther:
		return true
	}
	return false
}

// RentCategoryName otomatik kira ödemeleri için kullanılan kategori
const RentCategoryName = "Rent"

type PaymentCategory struct {
	ID          uint      `gorm:"primaryKey" json:"id"`
	Name        string    `gorm:"size:100;uniqueIndex;not null" json:"name"`
	Description string    `gorm:"size:255" json:"description"`
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`
}

// Payment - Kiracıdan alınan (veya beklenen) ödeme
type Payment struct {
	ID              uint             `gorm:"primaryKey" json:"id"`
	PropertyID      uint             `gorm:"index;not null" json:"property_id"`
	Property        Property         `gorm:"foreignKey:PropertyID;constraint:OnDelete:CASCADE" json:"-"`
	TenantID        uint             `gorm:"index;not null" json:"tenant_id"`
	Tenant          Tenant           `gorm:"foreignKey:TenantID;constraint:OnDelete:CASCADE" json:"-"`
	LeaseID         *uint            `gorm:"index" json:"lease_id"`
	Lease           *Lease           `gorm:"foreignKey:LeaseID;constraint:OnDelete:SET NULL" json:"-"`
	CategoryID      *uint            `gorm:"index" json:"category_id"`
	Category        *PaymentCategory `gorm:"foreignKey:CategoryID;constraint:OnDelete:SET NULL" json:"-"`
	Amount          float64          `gorm:"not null" json:"amount"`
	DueDate         time.Time        `gorm:"index;not null" json:"due_date"`
	PaymentDate     *time.Time       `gorm:"index" json:"payment_date"`
	Status          PaymentStatus    `gorm:"size:20;index;not null" json:"status"`
	PaymentMethod   PaymentMethod    `gorm:"size:20" json:"payment_method"`
	ReferenceNumber string           `gorm:"size:100" json:"reference_number"`
	Notes           string           `gorm:"type:text" json:"notes"`
	LateFees        []LateFee        `gorm:"foreignKey:PaymentID;constraint:OnDelete:CASCADE" json:"-"`
	CreatedByID     uint             `gorm:"index" json:"created_by_id"`
	CreatedAt       time.Time        `json:"created_at"`
	UpdatedAt       time.Time        `json:"updated_at"`
}

// IsOverdueAt yalnızca bekleyen ve vadesi geçmiş ödemeler için true
func (p Payment) IsOverdueAt(day time.Time) bool {
	return p.Status == PaymentStatusPending && p.DueDate.Before(DateOnly(day))
}

func (p Payment) IsOverdue() bool {
	return p.IsOverdueAt(time.Now())
}

func (p Payment) DaysOverdueAt(day time.Time) int {
	if !p.IsOverdueAt(day) {
		return 0
	}
	return int(DateOnly(day).Sub(p.DueDate).Hours() / 24)
}

// IsLate ödeme vadesinden sonra yapıldıysa true
func (p Payment) IsLate() bool {
	return p.Status == PaymentStatusPaid && p.PaymentDate != nil && p.PaymentDate.After(p.DueDate)
}

// TotalWithFees affedilmemiş gecikme bedelleri dahil toplam. LateFees preload edilmiş olmalı.
func (p Payment) TotalWithFees() float64 {
	total := p.Amount
	for _, f := range p.LateFees {
		if !f.Waived {
			total += f.Amount
		}
	}
	return total
}

var ErrLateFeeAlreadyWaived = errors.New("gecikme bedeli zaten affedilmiş")

// LateFee - Ödemeye eklenen gecikme bedeli
type LateFee struct {
	ID           uint       `gorm:"primaryKey" json:"id"`
	PaymentID    uint       `gorm:"index;not null" json:"payment_id"`
	Amount       float64    `gorm:"not null" json:"amount"`
	DateApplied  time.Time  `gorm:"not null" json:"date_applied"`
	Reason       string     `gorm:"size:255" json:"reason"`
	Waived       bool       `gorm:"not null" json:"waived"`
	WaivedByID   *uint      `json:"waived_by_id"`
	WaivedDate   *time.Time `json:"waived_date"`
	WaivedReason string     `gorm:"size:255" json:"waived_reason"`
	CreatedAt    time.Time  `json:"created_at"`
	UpdatedAt    time.Time  `json:"updated_at"`
}

// Waive tek yönlü geçiş: affedilmiş bir bedel geri alınamaz
func (f *LateFee) Waive(byUserID uint, reason string, day time.Time) error {
	if f.Waived {
		return ErrLateFeeAlreadyWaived
	}
	d := DateOnly(day)
	f.Waived = true
	f.WaivedByID = &byUserID
	f.WaivedDate = &d
	f.WaivedReason = reason
	return nil
}
