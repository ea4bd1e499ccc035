package models

import "time"

type ExpenseStatus string

const (
	ExpenseStatusPending   ExpenseStatus = "pending"
	ExpenseStatusPaid      ExpenseStatus = "paid"
	ExpenseStatusPartial   ExpenseStatus = "partial"
	ExpenseStatusCancelled ExpenseStatus = "cancelled"
)

func (s ExpenseStatus) Valid() bool {
	switch s {
	case ExpenseStatusPending, ExpenseStatusPaid, ExpenseStatusPartial, ExpenseStatusCancelled:
		return true
	}
	return false
}

type ExpenseCategory struct {
	ID          uint      `gorm:"primaryKey" json:"id"`
	Name        string    `gorm:"size:100;uniqueIndex;not null" json:"name"`
	Description string    `gorm:"size:255" json:"description"`
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`
}

// Vendor - Tedarikçi / hizmet sağlayıcı
type Vendor struct {
	ID          uint      `gorm:"primaryKey" json:"id"`
	CreatedByID uint      `gorm:"index;not null" json:"created_by_id"`
	Name        string    `gorm:"size:150;not null" json:"name"`
	ContactName string    `gorm:"size:150" json:"contact_name"`
	Email       string    `gorm:"size:150" json:"email"`
	Phone       string    `gorm:"size:20" json:"phone"`
	Address     string    `gorm:"size:255" json:"address"`
	Notes       string    `gorm:"type:text" json:"notes"`
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`
}

type Expense struct {
	ID              uint             `gorm:"primaryKey" json:"id"`
	PropertyID      uint             `gorm:"index;not null" json:"property_id"`
	Property        Property         `gorm:"foreignKey:PropertyID;constraint:OnDelete:CASCADE" json:"-"`
	CategoryID      *uint            `gorm:"index" json:"category_id"`
	Category        *ExpenseCategory `gorm:"foreignKey:CategoryID;constraint:OnDelete:SET NULL" json:"-"`
	VendorID        *uint            `gorm:"index" json:"vendor_id"`
	Vendor          *Vendor          `gorm:"foreignKey:VendorID;constraint:OnDelete:SET NULL" json:"-"`
	Amount          float64          `gorm:"not null" json:"amount"`
	Date            time.Time        `gorm:"index;not null" json:"date"`
	DueDate         *time.Time       `json:"due_date"`
	Description     string           `gorm:"size:255" json:"description"`
	Status          ExpenseStatus    `gorm:"size:20;index;not null" json:"status"`
	PaymentMethod   PaymentMethod    `gorm:"size:20" json:"payment_method"`
	ReferenceNumber string           `gorm:"size:100" json:"reference_number"`
	IsRecurring     bool             `json:"is_recurring"`
	TaxDeductible   bool             `json:"tax_deductible"`
	Notes           string           `gorm:"type:text" json:"notes"`
	CreatedByID     uint             `gorm:"index" json:"created_by_id"`
	CreatedAt       time.Time        `json:"created_at"`
	UpdatedAt       time.Time        `json:"updated_at"`
}

// IsOverdueAt ödenmemiş ve vadesi geçmiş gider
func (e Expense) IsOverdueAt(day time.Time) bool {
	if e.DueDate == nil {
		return false
	}
	if e.Status != ExpenseStatusPending && e.Status != ExpenseStatusPartial {
		return false
	}
	return e.DueDate.Before(DateOnly(day))
}
