package models

import "time"

type PropertyType string

const (
	PropertyTypeHouse      PropertyType = "house"
	PropertyTypeApartment  PropertyType = "apartment"
	PropertyTypeCondo      PropertyType = "condo"
	PropertyTypeTownhouse  PropertyType = "townhouse"
	PropertyTypeCommercial PropertyType = "commercial"
	PropertyTypeOther      PropertyType = "other"
)

func (t PropertyType) Valid() bool {
	switch t {
	case PropertyTypeHouse, PropertyTypeApartment, PropertyTypeCondo,
		PropertyTypeTownhouse, PropertyTypeCommercial, PropertyTypeOther:
		return true
	}
	return false
}

type PropertyStatus string

const (
	PropertyStatusAvailable    PropertyStatus = "available"     // boş
	PropertyStatusRented       PropertyStatus = "rented"        // kirada
	PropertyStatusMaintenance  PropertyStatus = "maintenance"   // bakımda
	PropertyStatusNotAvailable PropertyStatus = "not_available" // kullanılamaz
)

func (s PropertyStatus) Valid() bool {
	switch s {
	case PropertyStatusAvailable, PropertyStatusRented, PropertyStatusMaintenance, PropertyStatusNotAvailable:
		return true
	}
	return false
}

// Property - Kiralık mülk
type Property struct {
	ID               uint           `gorm:"primaryKey" json:"id"`
	OwnerID          uint           `gorm:"index;not null" json:"owner_id"`
	Owner            User           `gorm:"foreignKey:OwnerID;constraint:OnDelete:CASCADE" json:"-"`
	Name             string         `gorm:"size:200;not null" json:"name"`
	PropertyType     PropertyType   `gorm:"size:20;not null" json:"property_type"`
	Address          string         `gorm:"size:255;not null" json:"address"`
	City             string         `gorm:"size:100;not null;index" json:"city"`
	State            string         `gorm:"size:100" json:"state"`
	ZipCode          string         `gorm:"size:20" json:"zip_code"`
	Country          string         `gorm:"size:100" json:"country"`
	Bedrooms         int            `json:"bedrooms"`
	Bathrooms        float64        `json:"bathrooms"`
	SquareFeet       *int           `json:"square_feet"`
	MonthlyRent      float64        `gorm:"not null" json:"monthly_rent"`
	SecurityDeposit  float64        `json:"security_deposit"`
	Status           PropertyStatus `gorm:"size:20;index;not null" json:"status"`
	AcquisitionPrice *float64       `json:"acquisition_price"` // alış fiyatı, ROI için
	AcquisitionDate  *time.Time     `json:"acquisition_date"`
	CurrentValue     *float64       `json:"current_value"` // güncel değer
	Notes            string         `gorm:"type:text" json:"notes"`
	CreatedAt        time.Time      `json:"created_at"`
	UpdatedAt        time.Time      `json:"updated_at"`
}
