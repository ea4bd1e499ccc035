// Package report builds the income, expense, profit-loss and tenant reports.
package report

import (
	"context"
	"sort"
	"strconv"
	"time"

	"rental-backend/internal/lease"
	"rental-backend/internal/models"
	"rental-backend/internal/scope"

	"gorm.io/gorm"
)

// Params rapor filtresi; tarih aralığı her iki uçta dahil
type Params struct {
	OwnerID     uint
	Start       time.Time
	End         time.Time
	PropertyIDs []uint
}

// CurrentMonth ayın ilk ve son günü
func CurrentMonth(today time.Time) (time.Time, time.Time) {
	first, next := models.MonthBounds(models.DateOnly(today))
	return first, next.AddDate(0, 0, -1)
}

// CurrentYear yılın ilk ve son günü
func CurrentYear(today time.Time) (time.Time, time.Time) {
	first, next := models.YearBounds(models.DateOnly(today))
	return first, next.AddDate(0, 0, -1)
}

type Bucket struct {
	ID    *uint   `json:"id"`
	Name  string  `json:"name"`
	Total float64 `json:"total"`
	Count int     `json:"count"`
}

type MonthTotal struct {
	Month    string  `json:"month"` // "2024-03"
	Income   float64 `json:"income"`
	Expenses float64 `json:"expenses"`
	Profit   float64 `json:"profit"`
}

// months aralıktaki her ay için boş satır
func months(start, end time.Time) []MonthTotal {
	var out []MonthTotal
	for cur := time.Date(start.Year(), start.Month(), 1, 0, 0, 0, 0, time.UTC); !cur.After(end); cur = cur.AddDate(0, 1, 0) {
		out = append(out, MonthTotal{Month: cur.Format("2006-01")})
	}
	return out
}

func spansMonths(start, end time.Time) bool {
	return (end.Year()-start.Year())*12+int(end.Month())-int(start.Month()) > 0
}

func addToMonth(rows []MonthTotal, day time.Time, income, expense float64) {
	key := day.Format("2006-01")
	for i := range rows {
		if rows[i].Month == key {
			rows[i].Income += income
			rows[i].Expenses += expense
			rows[i].Profit = rows[i].Income - rows[i].Expenses
			return
		}
	}
}

// accumulator kovaları id (yoksa isim) ile toplar, tutara göre azalan sırada döner
type accumulator struct {
	keys    map[string]*Bucket
	ordered []*Bucket
}

func newAccumulator() *accumulator { return &accumulator{keys: map[string]*Bucket{}} }

func (a *accumulator) add(id *uint, name string, amount float64) {
	key := name
	if id != nil {
		key = strconv.FormatUint(uint64(*id), 10)
	}
	b, ok := a.keys[key]
	if !ok {
		b = &Bucket{ID: id, Name: name}
		a.keys[key] = b
		a.ordered = append(a.ordered, b)
	}
	b.Total += amount
	b.Count++
}

func (a *accumulator) buckets() []Bucket {
	out := make([]Bucket, 0, len(a.ordered))
	for _, b := range a.ordered {
		out = append(out, *b)
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].Total > out[j].Total })
	return out
}

func propertyScope(p Params) func(*gorm.DB) *gorm.DB {
	return func(db *gorm.DB) *gorm.DB {
		if len(p.PropertyIDs) > 0 {
			return db.Where("property_id IN ?", p.PropertyIDs)
		}
		return db
	}
}

func paidPayments(ctx context.Context, db *gorm.DB, p Params) ([]models.Payment, error) {
	var out []models.Payment
	err := db.WithContext(ctx).Preload("Property").Preload("Tenant").Preload("Category").
		Scopes(scope.ThroughProperty("payments", p.OwnerID), propertyScope(p)).
		Where("payments.status = ? AND payments.payment_date >= ? AND payments.payment_date <= ?",
			models.PaymentStatusPaid, models.DateOnly(p.Start), models.DateOnly(p.End)).
		Order("payments.payment_date").Order("payments.id").
		Find(&out).Error
	return out, err
}

func paidExpenses(ctx context.Context, db *gorm.DB, p Params) ([]models.Expense, error) {
	var out []models.Expense
	err := db.WithContext(ctx).Preload("Property").Preload("Category").Preload("Vendor").
		Scopes(scope.ThroughProperty("expenses", p.OwnerID), propertyScope(p)).
		Where("expenses.status = ? AND expenses.date >= ? AND expenses.date <= ?",
			models.ExpenseStatusPaid, models.DateOnly(p.Start), models.DateOnly(p.End)).
		Order("expenses.date").Order("expenses.id").
		Find(&out).Error
	return out, err
}

// -------------------------
// Income
// -------------------------

type IncomeReport struct {
	Start      string           `json:"start_date"`
	End        string           `json:"end_date"`
	Total      float64          `json:"total_income"`
	ByProperty []Bucket         `json:"by_property"`
	ByCategory []Bucket         `json:"by_category"`
	Monthly    []MonthTotal     `json:"monthly,omitempty"`
	Payments   []models.Payment `json:"-"`
}

func Income(ctx context.Context, db *gorm.DB, p Params) (*IncomeReport, error) {
	payments, err := paidPayments(ctx, db, p)
	if err != nil {
		return nil, err
	}

	r := &IncomeReport{Start: models.FormatDate(p.Start), End: models.FormatDate(p.End), Payments: payments}
	props, cats := newAccumulator(), newAccumulator()
	var monthly []MonthTotal
	if spansMonths(p.Start, p.End) {
		monthly = months(p.Start, p.End)
	}
	for _, pm := range payments {
		r.Total += pm.Amount
		pid := pm.PropertyID
		props.add(&pid, pm.Property.Name, pm.Amount)
		if pm.Category != nil {
			cid := pm.Category.ID
			cats.add(&cid, pm.Category.Name, pm.Amount)
		} else {
			cats.add(nil, uncategorized, pm.Amount)
		}
		if monthly != nil {
			addToMonth(monthly, *pm.PaymentDate, pm.Amount, 0)
		}
	}
	r.ByProperty, r.ByCategory, r.Monthly = props.buckets(), cats.buckets(), monthly
	return r, nil
}

const uncategorized = "Kategorisiz"

// -------------------------
// Expense
// -------------------------

type ExpenseReport struct {
	Start      string           `json:"start_date"`
	End        string           `json:"end_date"`
	Total      float64          `json:"total_expenses"`
	ByProperty []Bucket         `json:"by_property"`
	ByCategory []Bucket         `json:"by_category"`
	Expenses   []models.Expense `json:"-"`
}

func Expense(ctx context.Context, db *gorm.DB, p Params) (*ExpenseReport, error) {
	expenses, err := paidExpenses(ctx, db, p)
	if err != nil {
		return nil, err
	}

	r := &ExpenseReport{Start: models.FormatDate(p.Start), End: models.FormatDate(p.End), Expenses: expenses}
	props, cats := newAccumulator(), newAccumulator()
	for _, e := range expenses {
		r.Total += e.Amount
		pid := e.PropertyID
		props.add(&pid, e.Property.Name, e.Amount)
		if e.Category != nil {
			cid := e.Category.ID
			cats.add(&cid, e.Category.Name, e.Amount)
		} else {
			cats.add(nil, uncategorized, e.Amount)
		}
	}
	r.ByProperty, r.ByCategory = props.buckets(), cats.buckets()
	return r, nil
}

// -------------------------
// Profit & Loss
// -------------------------

type PropertyPL struct {
	PropertyID uint    `json:"property_id"`
	Name       string  `json:"name"`
	Income     float64 `json:"income"`
	Expenses   float64 `json:"expenses"`
	Profit     float64 `json:"profit"`
	ROI        float64 `json:"roi"`
	Share      float64 `json:"income_share"`
}

type ProfitLossReport struct {
	Start        string       `json:"start_date"`
	End          string       `json:"end_date"`
	Income       float64      `json:"total_income"`
	Expenses     float64      `json:"total_expenses"`
	NetProfit    float64      `json:"net_profit"`
	ProfitMargin float64      `json:"profit_margin"`
	Properties   []PropertyPL `json:"properties"`
	Monthly      []MonthTotal `json:"monthly"`
}

// ROI kâr / alış fiyatı * 100; alış fiyatı yoksa 0
func ROI(profit float64, acquisition *float64) float64 {
	if acquisition == nil || *acquisition == 0 {
		return 0
	}
	return profit / *acquisition * 100
}

func ProfitLoss(ctx context.Context, db *gorm.DB, p Params) (*ProfitLossReport, error) {
	var props []models.Property
	q := db.WithContext(ctx).Scopes(scope.OwnedProperties(p.OwnerID))
	if len(p.PropertyIDs) > 0 {
		q = q.Where("id IN ?", p.PropertyIDs)
	}
	if err := q.Order("name").Find(&props).Error; err != nil {
		return nil, err
	}
	payments, err := paidPayments(ctx, db, p)
	if err != nil {
		return nil, err
	}
	expenses, err := paidExpenses(ctx, db, p)
	if err != nil {
		return nil, err
	}

	r := &ProfitLossReport{Start: models.FormatDate(p.Start), End: models.FormatDate(p.End), Monthly: months(p.Start, p.End)}
	income := map[uint]float64{}
	spent := map[uint]float64{}
	for _, pm := range payments {
		r.Income += pm.Amount
		income[pm.PropertyID] += pm.Amount
		addToMonth(r.Monthly, *pm.PaymentDate, pm.Amount, 0)
	}
	for _, e := range expenses {
		r.Expenses += e.Amount
		spent[e.PropertyID] += e.Amount
		addToMonth(r.Monthly, e.Date, 0, e.Amount)
	}
	r.NetProfit = r.Income - r.Expenses
	if r.Income > 0 {
		r.ProfitMargin = r.NetProfit / r.Income * 100
	}

	r.Properties = make([]PropertyPL, 0, len(props))
	for _, prop := range props {
		row := PropertyPL{
			PropertyID: prop.ID,
			Name:       prop.Name,
			Income:     income[prop.ID],
			Expenses:   spent[prop.ID],
		}
		row.Profit = row.Income - row.Expenses
		row.ROI = ROI(row.Profit, prop.AcquisitionPrice)
		if r.Income > 0 {
			row.Share = row.Income / r.Income * 100
		}
		r.Properties = append(r.Properties, row)
	}
	return r, nil
}

// -------------------------
// Tenants
// -------------------------

type LeaseRef struct {
	ID           uint   `json:"id"`
	PropertyID   uint   `json:"property_id"`
	PropertyName string `json:"property_name"`
	EndDate      string `json:"end_date"`
}

type TenantLine struct {
	TenantID      uint      `json:"tenant_id"`
	Name          string    `json:"name"`
	TotalPaid     float64   `json:"total_paid"`
	OnTime        int       `json:"on_time_payments"`
	Late          int       `json:"late_payments"`
	PendingAmount float64   `json:"pending_amount"`
	Reliability   float64   `json:"payment_reliability"`
	CurrentLease  *LeaseRef `json:"current_lease"`
}

type TenantReport struct {
	Date    string       `json:"date"`
	Tenants []TenantLine `json:"tenants"`
}

// Reliability zamanında / (zamanında + geç) * 100; hiç ödeme yoksa 0
func Reliability(onTime, late int) float64 {
	if onTime+late == 0 {
		return 0
	}
	return float64(onTime) / float64(onTime+late) * 100
}

// Tenants sahibin mülklerinde sözleşmesi olan kiracıların ödeme karnesi
func Tenants(ctx context.Context, db *gorm.DB, ownerID uint, tenantIDs []uint, today time.Time) (*TenantReport, error) {
	today = models.DateOnly(today)
	q := db.WithContext(ctx).
		Where("tenants.id IN (SELECT leases.tenant_id FROM leases JOIN properties ON properties.id = leases.property_id WHERE properties.owner_id = ?)", ownerID)
	if len(tenantIDs) > 0 {
		q = q.Where("tenants.id IN ?", tenantIDs)
	}
	var tenants []models.Tenant
	if err := q.Order("last_name").Order("first_name").Find(&tenants).Error; err != nil {
		return nil, err
	}

	ids := make([]uint, 0, len(tenants))
	for _, tn := range tenants {
		ids = append(ids, tn.ID)
	}
	var payments []models.Payment
	if len(ids) > 0 {
		if err := db.WithContext(ctx).Scopes(scope.ThroughProperty("payments", ownerID)).
			Where("payments.tenant_id IN ?", ids).Find(&payments).Error; err != nil {
			return nil, err
		}
	}
	byTenant := map[uint][]models.Payment{}
	for _, pm := range payments {
		byTenant[pm.TenantID] = append(byTenant[pm.TenantID], pm)
	}

	r := &TenantReport{Date: models.FormatDate(today), Tenants: make([]TenantLine, 0, len(tenants))}
	for _, tn := range tenants {
		line := TenantLine{TenantID: tn.ID, Name: tn.FullName()}
		for _, pm := range byTenant[tn.ID] {
			switch pm.Status {
			case models.PaymentStatusPaid:
				line.TotalPaid += pm.Amount
				if pm.IsLate() {
					line.Late++
				} else if pm.PaymentDate != nil {
					line.OnTime++
				}
			case models.PaymentStatusPending:
				line.PendingAmount += pm.Amount
			}
		}
		line.Reliability = Reliability(line.OnTime, line.Late)

		cur, err := lease.Current(ctx, db, tn.ID, today)
		if err != nil {
			return nil, err
		}
		if cur != nil && cur.Property.OwnerID == ownerID {
			line.CurrentLease = &LeaseRef{
				ID:           cur.ID,
				PropertyID:   cur.PropertyID,
				PropertyName: cur.Property.Name,
				EndDate:      models.FormatDate(cur.EndDate),
			}
		}
		r.Tenants = append(r.Tenants, line)
	}
	return r, nil
}
