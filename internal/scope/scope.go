// Package scope holds the GORM scopes that restrict every query to the requesting owner.
package scope

import "gorm.io/gorm"

// OwnedProperties properties.owner_id = owner
func OwnedProperties(ownerID uint) func(*gorm.DB) *gorm.DB {
	return func(db *gorm.DB) *gorm.DB {
		return db.Where("properties.owner_id = ?", ownerID)
	}
}

// ThroughProperty property_id kolonu olan tablolar (leases, payments, expenses) için sahiplik filtresi
func ThroughProperty(table string, ownerID uint) func(*gorm.DB) *gorm.DB {
	return func(db *gorm.DB) *gorm.DB {
		return db.Where(table+".property_id IN (SELECT id FROM properties WHERE owner_id = ?)", ownerID)
	}
}

// VisibleTenants kullanıcının oluşturduğu veya mülklerinden birinde sözleşmesi olan kiracılar
func VisibleTenants(ownerID uint) func(*gorm.DB) *gorm.DB {
	return func(db *gorm.DB) *gorm.DB {
		return db.Where(
			"(tenants.created_by_id = ? OR tenants.id IN (SELECT leases.tenant_id FROM leases JOIN properties ON properties.id = leases.property_id WHERE properties.owner_id = ?))",
			ownerID, ownerID,
		)
	}
}

// OwnedVendors vendors.created_by_id = owner
func OwnedVendors(ownerID uint) func(*gorm.DB) *gorm.DB {
	return func(db *gorm.DB) *gorm.DB {
		return db.Where("vendors.created_by_id = ?", ownerID)
	}
}
