package report

import (
	"fmt"
	"time"

	"rental-backend/internal/auth"
	"rental-backend/internal/database"
	"rental-backend/internal/export"
	"rental-backend/internal/filter"
	"rental-backend/internal/httperr"
	"rental-backend/internal/models"
	"rental-backend/internal/validation"

	"github.com/gofiber/fiber/v2"
)

// params ?start_date=&end_date=&property_ids=1,2 ; tarih verilmezse def aralığı
func params(c *fiber.Ctx, def func(time.Time) (time.Time, time.Time)) (Params, error) {
	userID, err := auth.UserID(c)
	if err != nil {
		return Params{}, err
	}
	q := filter.New(c)
	start, end := q.Date("start_date"), q.Date("end_date")
	ids := q.Uints("property_ids")
	if err := q.Err(); err != nil {
		return Params{}, err
	}

	p := Params{OwnerID: userID, PropertyIDs: ids}
	p.Start, p.End = def(models.Today())
	if start != nil {
		p.Start = *start
	}
	if end != nil {
		p.End = *end
	}
	if p.Start.After(p.End) {
		return Params{}, validation.Field("end_date", "bitiş tarihi başlangıçtan önce olamaz")
	}
	return p, nil
}

func exportFormat(c *fiber.Ctx) (export.Format, error) {
	f, err := export.ParseFormat(c.Query("format"))
	if err != nil {
		return "", fiber.NewError(fiber.StatusBadRequest, err.Error())
	}
	return f, nil
}

func orNA(s string) string {
	if s == "" {
		return "N/A"
	}
	return s
}

// -------------------------
// Income
// -------------------------

func incomeTable(r *IncomeReport) export.Table {
	t := export.Table{
		Title:   fmt.Sprintf("Income Report (%s to %s)", r.Start, r.End),
		Headers: []string{"Date", "Property", "Tenant", "Category", "Amount"},
		Summary: []string{"Total Income: " + export.Money(r.Total)},
	}
	for _, p := range r.Payments {
		category := ""
		if p.Category != nil {
			category = p.Category.Name
		}
		t.Rows = append(t.Rows, []string{
			models.FormatDate(*p.PaymentDate), p.Property.Name, p.Tenant.FullName(), orNA(category), export.Money(p.Amount),
		})
	}
	return t
}

// GET /api/reports/income
func IncomeReportHandler() fiber.Handler {
	return func(c *fiber.Ctx) error {
		p, err := params(c, CurrentMonth)
		if err != nil {
			return err
		}
		r, err := Income(c.UserContext(), database.DB, p)
		if err != nil {
			return httperr.Internal("Gelir raporu hazırlanamadı", err)
		}
		return c.JSON(r)
	}
}

// GET /api/reports/income/export?format=csv|pdf|xlsx
func ExportIncomeReportHandler() fiber.Handler {
	return func(c *fiber.Ctx) error {
		f, err := exportFormat(c)
		if err != nil {
			return err
		}
		p, err := params(c, CurrentMonth)
		if err != nil {
			return err
		}
		r, err := Income(c.UserContext(), database.DB, p)
		if err != nil {
			return httperr.Internal("Gelir raporu hazırlanamadı", err)
		}
		return export.Send(c, incomeTable(r), f, export.Filename("income_report", p.Start, p.End, f))
	}
}

// -------------------------
// Expense
// -------------------------

func expenseTable(r *ExpenseReport) export.Table {
	t := export.Table{
		Title:   fmt.Sprintf("Expense Report (%s to %s)", r.Start, r.End),
		Headers: []string{"Date", "Property", "Category", "Vendor", "Description", "Amount"},
		Summary: []string{"Total Expenses: " + export.Money(r.Total)},
	}
	for _, e := range r.Expenses {
		category, vendor := "", ""
		if e.Category != nil {
			category = e.Category.Name
		}
		if e.Vendor != nil {
			vendor = e.Vendor.Name
		}
		t.Rows = append(t.Rows, []string{
			models.FormatDate(e.Date), e.Property.Name, orNA(category), orNA(vendor), e.Description, export.Money(e.Amount),
		})
	}
	return t
}

// GET /api/reports/expenses
func ExpenseReportHandler() fiber.Handler {
	return func(c *fiber.Ctx) error {
		p, err := params(c, CurrentMonth)
		if err != nil {
			return err
		}
		r, err := Expense(c.UserContext(), database.DB, p)
		if err != nil {
			return httperr.Internal("Gider raporu hazırlanamadı", err)
		}
		return c.JSON(r)
	}
}

// GET /api/reports/expenses/export
func ExportExpenseReportHandler() fiber.Handler {
	return func(c *fiber.Ctx) error {
		f, err := exportFormat(c)
		if err != nil {
			return err
		}
		p, err := params(c, CurrentMonth)
		if err != nil {
			return err
		}
		r, err := Expense(c.UserContext(), database.DB, p)
		if err != nil {
			return httperr.Internal("Gider raporu hazırlanamadı", err)
		}
		return export.Send(c, expenseTable(r), f, export.Filename("expense_report", p.Start, p.End, f))
	}
}

// -------------------------
// Profit & Loss
// -------------------------

func profitLossTable(r *ProfitLossReport) export.Table {
	t := export.Table{
		Title:   fmt.Sprintf("Profit & Loss Report (%s to %s)", r.Start, r.End),
		Headers: []string{"Property", "Income", "Expenses", "Profit", "ROI (%)"},
		Summary: []string{
			"Total Income: " + export.Money(r.Income),
			"Total Expenses: " + export.Money(r.Expenses),
			"Net Profit: " + export.Money(r.NetProfit),
		},
	}
	for _, p := range r.Properties {
		t.Rows = append(t.Rows, []string{
			p.Name, export.Money(p.Income), export.Money(p.Expenses), export.Money(p.Profit), export.Money(p.ROI),
		})
	}
	return t
}

// GET /api/reports/profit-loss
func ProfitLossReportHandler() fiber.Handler {
	return func(c *fiber.Ctx) error {
		p, err := params(c, CurrentYear)
		if err != nil {
			return err
		}
		r, err := ProfitLoss(c.UserContext(), database.DB, p)
		if err != nil {
			return httperr.Internal("Kâr/zarar raporu hazırlanamadı", err)
		}
		return c.JSON(r)
	}
}

// GET /api/reports/profit-loss/export
func ExportProfitLossReportHandler() fiber.Handler {
	return func(c *fiber.Ctx) error {
		f, err := exportFormat(c)
		if err != nil {
			return err
		}
		p, err := params(c, CurrentYear)
		if err != nil {
			return err
		}
		r, err := ProfitLoss(c.UserContext(), database.DB, p)
		if err != nil {
			return httperr.Internal("Kâr/zarar raporu hazırlanamadı", err)
		}
		return export.Send(c, profitLossTable(r), f, export.Filename("profit_loss_report", p.Start, p.End, f))
	}
}

// -------------------------
// Tenants
// -------------------------

func tenantTable(r *TenantReport) export.Table {
	t := export.Table{
		Title:   "Tenant Report (" + r.Date + ")",
		Headers: []string{"Tenant", "Total Paid", "On Time", "Late", "Pending", "Reliability (%)"},
	}
	for _, l := range r.Tenants {
		t.Rows = append(t.Rows, []string{
			l.Name, export.Money(l.TotalPaid), fmt.Sprint(l.OnTime), fmt.Sprint(l.Late),
			export.Money(l.PendingAmount), export.Money(l.Reliability),
		})
	}
	return t
}

func tenantReport(c *fiber.Ctx) (*TenantReport, error) {
	userID, err := auth.UserID(c)
	if err != nil {
		return nil, err
	}
	q := filter.New(c)
	ids := q.Uints("tenant_ids")
	if err := q.Err(); err != nil {
		return nil, err
	}
	r, err := Tenants(c.UserContext(), database.DB, userID, ids, models.Today())
	if err != nil {
		return nil, httperr.Internal("Kiracı raporu hazırlanamadı", err)
	}
	return r, nil
}

// GET /api/reports/tenants?tenant_ids=1,2
func TenantReportHandler() fiber.Handler {
	return func(c *fiber.Ctx) error {
		r, err := tenantReport(c)
		if err != nil {
			return err
		}
		return c.JSON(r)
	}
}

// GET /api/reports/tenants/export
func ExportTenantReportHandler() fiber.Handler {
	return func(c *fiber.Ctx) error {
		f, err := exportFormat(c)
		if err != nil {
			return err
		}
		r, err := tenantReport(c)
		if err != nil {
			return err
		}
		name := fmt.Sprintf("tenant_report_%s.%s", models.Today().Format("20060102"), f)
		return export.Send(c, tenantTable(r), f, name)
	}
}
