package model

import "time"

// BlogPost is a row of the blog_posts table.
type BlogPost struct {
	ID          ID     `json:"id"`
	Title       string `json:"title"`
	Slug        string `json:"slug"`
	Excerpt     string `json:"excerpt,omitempty"`
	Content     string `json:"content,omitempty"`
	Author      string `json:"author,omitempty"`
	Category    string `json:"category,omitempty"`
	CoverImage  string `json:"cover_image,omitempty"`
	PublishedAt Date   `json:"published_at"`
}

// Statement types stored under financial_statements/{companyId}/.
const (
	StatementBalanceSheet    = "balance_sheet"
	StatementIncomeStatement = "income_statement"
	StatementCashFlow        = "cash_flow"
	StatementRatios          = "ratios"
)

// StatementTypes lists every statement folder in display order.
var StatementTypes = []string{
	StatementBalanceSheet,
	StatementIncomeStatement,
	StatementCashFlow,
	StatementRatios,
}

// IsStatementType reports whether s names a known statement folder.
func IsStatementType(s string) bool {
	for _, t := range StatementTypes {
		if t == s {
			return true
		}
	}
	return false
}

// DocumentFile is a financial statement stored in the documents bucket.
type DocumentFile struct {
	Name      string    `json:"name"`
	Path      string    `json:"path"`
	Size      int64     `json:"size"`
	UpdatedAt time.Time `json:"updated_at"`
}

// DocumentIndex maps statement type to the files available for it.
type DocumentIndex map[string][]DocumentFile

// LeadKind identifies which site form produced a lead.
type LeadKind string

const (
	LeadContact     LeadKind = "CONTACT"
	LeadContactForm LeadKind = "CONTACT_FORM"
	LeadPartner     LeadKind = "PARTNER"
)

// Lead is a contact or partner form submission.
type Lead struct {
	ID           string    `json:"id"`
	Kind         LeadKind  `json:"kind"`
	Name         string    `json:"name"`
	Email        string    `json:"email,omitempty"`
	Phone        string    `json:"phone,omitempty"`
	Subject      string    `json:"subject,omitempty"`
	Organization string    `json:"organization,omitempty"`
	Interest     string    `json:"interest,omitempty"`
	Message      string    `json:"message,omitempty"`
	CreatedAt    time.Time `json:"created_at"`
}
