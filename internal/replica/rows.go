package replica

import (
	"database/sql"

	"github.com/tallybook/tallybook/internal/catalog"
)

// Row types mirror the catalog field order; scan functions rely on it.
// Decimals and dates travel as text and are cast by the replica views.

type invoiceRow struct {
	ID         string  `parquet:"id"`
	CompanyID  string  `parquet:"company_id"`
	ContactID  *string `parquet:"contact_id,optional"`
	Number     string  `parquet:"number"`
	Status     string  `parquet:"status"`
	IssueDate  string  `parquet:"issue_date"`
	DueDate    *string `parquet:"due_date,optional"`
	Currency   string  `parquet:"currency"`
	Subtotal   string  `parquet:"subtotal"`
	TaxTotal   string  `parquet:"tax_total"`
	Total      string  `parquet:"total"`
	AmountPaid string  `parquet:"amount_paid"`
}

type invoiceLineRow struct {
	ID          string  `parquet:"id"`
	CompanyID   string  `parquet:"company_id"`
	InvoiceID   string  `parquet:"invoice_id"`
	AccountID   *string `parquet:"account_id,optional"`
	Description string  `parquet:"description"`
	Quantity    string  `parquet:"quantity"`
	UnitPrice   string  `parquet:"unit_price"`
	TaxRate     string  `parquet:"tax_rate"`
	Amount      string  `parquet:"amount"`
}

type journalEntryRow struct {
	ID          string  `parquet:"id"`
	CompanyID   string  `parquet:"company_id"`
	Number      string  `parquet:"number"`
	EntryDate   string  `parquet:"entry_date"`
	Description string  `parquet:"description"`
	Reference   *string `parquet:"reference,optional"`
	Status      string  `parquet:"status"`
}

type journalLineRow struct {
	ID             string  `parquet:"id"`
	CompanyID      string  `parquet:"company_id"`
	JournalEntryID string  `parquet:"journal_entry_id"`
	AccountID      string  `parquet:"account_id"`
	Description    *string `parquet:"description,optional"`
	Debit          string  `parquet:"debit"`
	Credit         string  `parquet:"credit"`
}

type accountRow struct {
	ID        string `parquet:"id"`
	CompanyID string `parquet:"company_id"`
	Code      string `parquet:"code"`
	Name      string `parquet:"name"`
	Type      string `parquet:"account_type"`
	IsActive  bool   `parquet:"is_active"`
}

type contactRow struct {
	ID        string  `parquet:"id"`
	CompanyID string  `parquet:"company_id"`
	Name      string  `parquet:"name"`
	Email     *string `parquet:"email,optional"`
	Phone     *string `parquet:"phone,optional"`
	Type      string  `parquet:"contact_type"`
	TaxNumber *string `parquet:"tax_number,optional"`
}

var tables = []table{
	tableOf(catalog.Invoice, func(rows *sql.Rows) (invoiceRow, error) {
		var r invoiceRow
		err := rows.Scan(&r.ID, &r.CompanyID, &r.ContactID, &r.Number, &r.Status, &r.IssueDate, &r.DueDate,
			&r.Currency, &r.Subtotal, &r.TaxTotal, &r.Total, &r.AmountPaid)
		return r, err
	}, func(r invoiceRow) (string, string) { return r.CompanyID, r.ID }),
	tableOf(catalog.InvoiceLine, func(rows *sql.Rows) (invoiceLineRow, error) {
		var r invoiceLineRow
		err := rows.Scan(&r.ID, &r.CompanyID, &r.InvoiceID, &r.AccountID, &r.Description, &r.Quantity, &r.UnitPrice, &r.TaxRate, &r.Amount)
		return r, err
	}, func(r invoiceLineRow) (string, string) { return r.CompanyID, r.ID }),
	tableOf(catalog.JournalEntry, func(rows *sql.Rows) (journalEntryRow, error) {
		var r journalEntryRow
		err := rows.Scan(&r.ID, &r.CompanyID, &r.Number, &r.EntryDate, &r.Description, &r.Reference, &r.Status)
		return r, err
	}, func(r journalEntryRow) (string, string) { return r.CompanyID, r.ID }),
	tableOf(catalog.JournalLine, func(rows *sql.Rows) (journalLineRow, error) {
		var r journalLineRow
		err := rows.Scan(&r.ID, &r.CompanyID, &r.JournalEntryID, &r.AccountID, &r.Description, &r.Debit, &r.Credit)
		return r, err
	}, func(r journalLineRow) (string, string) { return r.CompanyID, r.ID }),
	tableOf(catalog.Account, func(rows *sql.Rows) (accountRow, error) {
		var r accountRow
		err := rows.Scan(&r.ID, &r.CompanyID, &r.Code, &r.Name, &r.Type, &r.IsActive)
		return r, err
	}, func(r accountRow) (string, string) { return r.CompanyID, r.ID }),
	tableOf(catalog.Contact, func(rows *sql.Rows) (contactRow, error) {
		var r contactRow
		err := rows.Scan(&r.ID, &r.CompanyID, &r.Name, &r.Email, &r.Phone, &r.Type, &r.TaxNumber)
		return r, err
	}, func(r contactRow) (string, string) { return r.CompanyID, r.ID }),
}
