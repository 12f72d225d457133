package catalog

var specs = map[Entity]EntitySpec{
	Invoice: {
		Entity:      Invoice,
		Table:       "invoice",
		Description: "sales invoices issued to customers",
		Fields: []Field{
			{Name: "id", Column: "id", Type: FieldString},
			{Name: TenantField, Column: tenantColumn, Type: FieldString},
			{Name: "contactId", Column: "contact_id", Type: FieldString},
			{Name: "number", Column: "number", Type: FieldString},
			{Name: "status", Column: "status", Type: FieldString, Note: "draft|sent|paid|overdue|void"},
			{Name: "issueDate", Column: "issue_date", Type: FieldDate},
			{Name: "dueDate", Column: "due_date", Type: FieldDate},
			{Name: "currency", Column: "currency", Type: FieldString},
			{Name: "subtotal", Column: "subtotal", Type: FieldDecimal},
			{Name: "taxTotal", Column: "tax_total", Type: FieldDecimal},
			{Name: "total", Column: "total", Type: FieldDecimal},
			{Name: "amountPaid", Column: "amount_paid", Type: FieldDecimal},
		},
		Relations: []Relation{
			{Name: "contact", Target: Contact, LocalField: "contactId", TargetField: "id"},
			{Name: "lines", Target: InvoiceLine, LocalField: "id", TargetField: "invoiceId"},
		},
	},
	InvoiceLine: {
		Entity:      InvoiceLine,
		Table:       "invoice_line",
		Description: "line items of an invoice",
		Fields: []Field{
			{Name: "id", Column: "id", Type: FieldString},
			{Name: TenantField, Column: tenantColumn, Type: FieldString},
			{Name: "invoiceId", Column: "invoice_id", Type: FieldString},
			{Name: "accountId", Column: "account_id", Type: FieldString},
			{Name: "description", Column: "description", Type: FieldString},
			{Name: "quantity", Column: "quantity", Type: FieldDecimal},
			{Name: "unitPrice", Column: "unit_price", Type: FieldDecimal},
			{Name: "taxRate", Column: "tax_rate", Type: FieldDecimal, Note: "percent"},
			{Name: "amount", Column: "amount", Type: FieldDecimal},
		},
		Relations: []Relation{
			{Name: "invoice", Target: Invoice, LocalField: "invoiceId", TargetField: "id"},
			{Name: "account", Target: Account, LocalField: "accountId", TargetField: "id"},
		},
	},
	JournalEntry: {
		Entity:      JournalEntry,
		Table:       "journal_entry",
		Description: "general ledger journal entries",
		Fields: []Field{
			{Name: "id", Column: "id", Type: FieldString},
			{Name: TenantField, Column: tenantColumn, Type: FieldString},
			{Name: "number", Column: "number", Type: FieldString},
			{Name: "date", Column: "entry_date", Type: FieldDate},
			{Name: "description", Column: "description", Type: FieldString},
			{Name: "reference", Column: "reference", Type: FieldString},
			{Name: "status", Column: "status", Type: FieldString, Note: "draft|posted|void"},
		},
		Relations: []Relation{
			{Name: "lines", Target: JournalLine, LocalField: "id", TargetField: "journalEntryId"},
		},
	},
	JournalLine: {
		Entity:      JournalLine,
		Table:       "journal_line",
		Description: "debit and credit lines of a journal entry",
		Fields: []Field{
			{Name: "id", Column: "id", Type: FieldString},
			{Name: TenantField, Column: tenantColumn, Type: FieldString},
			{Name: "journalEntryId", Column: "journal_entry_id", Type: FieldString},
			{Name: "accountId", Column: "account_id", Type: FieldString},
			{Name: "description", Column: "description", Type: FieldString},
			{Name: "debit", Column: "debit", Type: FieldDecimal},
			{Name: "credit", Column: "credit", Type: FieldDecimal},
		},
		Relations: []Relation{
			{Name: "journalEntry", Target: JournalEntry, LocalField: "journalEntryId", TargetField: "id"},
			{Name: "account", Target: Account, LocalField: "accountId", TargetField: "id"},
		},
	},
	Account: {
		Entity:      Account,
		Table:       "account",
		Description: "chart of accounts",
		Fields: []Field{
			{Name: "id", Column: "id", Type: FieldString},
			{Name: TenantField, Column: tenantColumn, Type: FieldString},
			{Name: "code", Column: "code", Type: FieldString},
			{Name: "name", Column: "name", Type: FieldString},
			{Name: "type", Column: "account_type", Type: FieldString, Note: "asset|liability|equity|revenue|expense"},
			{Name: "isActive", Column: "is_active", Type: FieldBool},
		},
	},
	Contact: {
		Entity:      Contact,
		Table:       "contact",
		Description: "customers and suppliers",
		Fields: []Field{
			{Name: "id", Column: "id", Type: FieldString},
			{Name: TenantField, Column: tenantColumn, Type: FieldString},
			{Name: "name", Column: "name", Type: FieldString},
			{Name: "email", Column: "email", Type: FieldString},
			{Name: "phone", Column: "phone", Type: FieldString},
			{Name: "type", Column: "contact_type", Type: FieldString, Note: "customer|supplier|both"},
			{Name: "taxNumber", Column: "tax_number", Type: FieldString},
		},
	},
}
