// internal/nlquery/schema/domains.go
package schema

// builtinDomains returns the catalog in estimation priority order: the
// narrow vocabularies (comprehensive, transactions, budget_items) are
// scanned first, tabarim last. Project words like תב"ר appear incidentally
// in questions about every other domain, so the catch-all domain must not
// shadow them.
func builtinDomains() []DomainSchema {
	return []DomainSchema{
		{
			Key:         "comprehensive",
			Label:       "תמונה מלאה",
			Description: "Cross-domain rollup: projects joined with their transaction totals and item counts",
			Fields: []FieldDefinition{
				{Name: "tabar_number", Label: "מספר תב\"ר", Type: FieldNumber, Filterable: true},
				{Name: "name", Label: "שם הפרויקט", Type: FieldString, Filterable: true},
				{Name: "ministry_name", Label: "משרד מממן", Type: FieldString, Filterable: true},
				{Name: "status", Label: "סטטוס", Type: FieldEnum, Filterable: true, Options: []string{"active", "closed", "pending"}},
				{Name: "total_authorized", Label: "תקציב מאושר", Type: FieldNumber, Filterable: true},
				{Name: "transaction_total", Label: "סך תנועות", Type: FieldNumber, Filterable: true},
				{Name: "transaction_count", Label: "מספר תנועות", Type: FieldNumber, Filterable: false},
				{Name: "item_count", Label: "מספר סעיפים", Type: FieldNumber, Filterable: false},
				{Name: "last_activity", Label: "פעילות אחרונה", Type: FieldDate, Filterable: true},
			},
			DefaultFields: []string{"tabar_number", "name", "ministry_name", "status", "total_authorized", "transaction_total", "last_activity"},
			Keywords: Keywords{
				Primary:   []string{"תמונה מלאה", "מקיף", "כל הנתונים", "סיכום כולל", "comprehensive", "overview", "full picture"},
				Secondary: []string{"סיכום", "summary"},
			},
			Examples: []ExampleQuery{
				{Query: "תמונה מלאה של הפרויקטים בשנת 2024", Description: "Full rollup of projects active in 2024"},
			},
		},
		{
			Key:         "transactions",
			Label:       "תנועות",
			Description: "Ledger transactions recorded against projects: expenses, income and adjustments",
			Fields: []FieldDefinition{
				{Name: "id", Label: "מזהה", Type: FieldNumber, Filterable: false},
				{Name: "tabar_number", Label: "מספר תב\"ר", Type: FieldRelation, Filterable: true, Reference: "tabarim"},
				{Name: "transaction_type", Label: "סוג תנועה", Type: FieldEnum, Filterable: true, Options: []string{"expense", "income", "adjustment"}},
				{Name: "order_number", Label: "מספר הזמנה", Type: FieldString, Filterable: true},
				{Name: "amount", Label: "סכום", Type: FieldNumber, Filterable: true},
				{Name: "transaction_date", Label: "תאריך תנועה", Type: FieldDate, Filterable: true},
				{Name: "status", Label: "סטטוס", Type: FieldEnum, Filterable: true, Options: []string{"pending", "approved", "paid"}},
				{Name: "description", Label: "תיאור", Type: FieldString, Filterable: true},
				{Name: "reported", Label: "דווח", Type: FieldEnum, Filterable: true, Options: []string{"yes", "no"}},
			},
			DefaultFields: []string{"tabar_number", "transaction_type", "order_number", "amount", "transaction_date", "status"},
			Keywords: Keywords{
				Primary:   []string{"תנועות", "תנועה", "עסקאות", "עסקה", "הזמנות", "הזמנה", "חשבוניות", "תשלומים", "transactions", "transaction", "payments", "invoices"},
				Secondary: []string{"סכום", "הוצאה", "הכנסה", "amount", "expense", "income"},
			},
			Examples: []ExampleQuery{
				{Query: "תנועות של תב\"ר 1234", Description: "Transactions of a given project"},
				{Query: "סכום התשלומים בשנת 2024", Description: "Total payments in 2024"},
			},
		},
		{
			Key:         "budget_items",
			Label:       "סעיפי תקציב",
			Description: "Budget line items of projects: authorized versus executed amounts per item code",
			Fields: []FieldDefinition{
				{Name: "id", Label: "מזהה", Type: FieldNumber, Filterable: false},
				{Name: "tabar_number", Label: "מספר תב\"ר", Type: FieldRelation, Filterable: true, Reference: "tabarim"},
				{Name: "budget_item_code", Label: "קוד סעיף", Type: FieldString, Filterable: true},
				{Name: "budget_item_name", Label: "שם סעיף", Type: FieldString, Filterable: true},
				{Name: "authorized_amount", Label: "סכום מאושר", Type: FieldNumber, Filterable: true},
				{Name: "executed_amount", Label: "סכום מבוצע", Type: FieldNumber, Filterable: true},
				{Name: "updated_at", Label: "עדכון אחרון", Type: FieldDate, Filterable: true},
			},
			DefaultFields: []string{"tabar_number", "budget_item_code", "budget_item_name", "authorized_amount", "executed_amount"},
			Keywords: Keywords{
				Primary:   []string{"סעיפי תקציב", "סעיפים", "סעיף", "budget items", "line items", "budget item"},
				Secondary: []string{"מאושר", "מבוצע", "ביצוע", "authorized", "executed"},
			},
			Examples: []ExampleQuery{
				{Query: "סעיפי תקציב של תב\"ר 2211", Description: "Line items of a given project"},
				{Query: "סעיפים עם ביצוע מעל 500000", Description: "Items executed above 500,000 NIS"},
			},
		},
		{
			Key:         "tabarim",
			Label:       "תב\"רים",
			Description: "Municipal development projects (tabarim): authorization, funding ministry, status and budget",
			Fields: []FieldDefinition{
				{Name: "tabar_number", Label: "מספר תב\"ר", Type: FieldNumber, Filterable: true},
				{Name: "name", Label: "שם הפרויקט", Type: FieldString, Filterable: true},
				{Name: "ministry_name", Label: "משרד מממן", Type: FieldString, Filterable: true},
				{Name: "status", Label: "סטטוס", Type: FieldEnum, Filterable: true, Options: []string{"active", "closed", "pending"}},
				{Name: "total_authorized", Label: "תקציב מאושר", Type: FieldNumber, Filterable: true},
				{Name: "year", Label: "שנת פתיחה", Type: FieldNumber, Filterable: true},
				{Name: "open_date", Label: "תאריך פתיחה", Type: FieldDate, Filterable: true},
				{Name: "close_date", Label: "תאריך סגירה", Type: FieldDate, Filterable: true},
			},
			DefaultFields: []string{"tabar_number", "name", "ministry_name", "status", "total_authorized", "year"},
			Keywords: Keywords{
				Primary:   []string{"תב\"ר", "תב\"רים", "תברים", "תבר", "פרויקטים", "פרויקט", "projects", "project", "tabar"},
				Secondary: []string{"משרד", "מאושר", "פעיל", "סגור", "budget", "ministry"},
			},
			Examples: []ExampleQuery{
				{Query: "תב\"רים של משרד החינוך", Description: "Projects funded by the Ministry of Education"},
				{Query: "כמה פרויקטים פעילים יש", Description: "Count of active projects"},
				{Query: "פרויקטים מעל מיליון שקל", Description: "Projects above one million NIS"},
			},
		},
	}
}
