package notifier

import (
	"fmt"
	"html"
	"net/url"
	"strings"
	"time"

	"ShareDesk/internal/model"
)

// Status is the service summary answered to /status.
type Status struct {
	ListingEntries  int
	ListingLoadedAt time.Time
	ListingErr      string
	CacheEntries    int
	LiveTransport   string
	LiveConnected   bool
	Uptime          time.Duration
}

var leadTitles = map[model.LeadKind]string{
	model.LeadContact:     "New callback request",
	model.LeadContactForm: "New contact form message",
	model.LeadPartner:     "New partner enquiry",
}

// FormatLead formats a lead for the operator chat. User input is escaped.
func FormatLead(l *model.Lead) string {
	title := leadTitles[l.Kind]
	if title == "" {
		title = "New lead"
	}
	var b strings.Builder
	b.WriteString(fmt.Sprintf("📨 <b>%s</b> | %s\n\n", title, l.CreatedAt.Format("2006-01-02 15:04")))
	field := func(label, v string) {
		if v != "" {
			b.WriteString(fmt.Sprintf("%s: %s\n", label, html.EscapeString(v)))
		}
	}
	field("Name", l.Name)
	field("Phone", l.Phone)
	field("Email", l.Email)
	field("Organization", l.Organization)
	field("Interest", l.Interest)
	field("Subject", l.Subject)
	if l.Message != "" {
		b.WriteString("\n" + html.EscapeString(l.Message) + "\n")
	}
	return b.String()
}

// FormatStatus formats the /status reply.
func FormatStatus(s Status) string {
	var b strings.Builder
	b.WriteString("📦 <b>ShareDesk status</b>\n\n")
	b.WriteString(fmt.Sprintf("Listed shares: %d\n", s.ListingEntries))
	if !s.ListingLoadedAt.IsZero() {
		b.WriteString(fmt.Sprintf("Listing loaded: %s\n", s.ListingLoadedAt.Format("2006-01-02 15:04:05")))
	}
	if s.ListingErr != "" {
		b.WriteString(fmt.Sprintf("⚠️ Last load failed: %s\n", html.EscapeString(s.ListingErr)))
	}
	b.WriteString(fmt.Sprintf("Detail cache: %d companies\n", s.CacheEntries))
	live := "off"
	if s.LiveTransport != "" {
		live = s.LiveTransport + " (disconnected)"
		if s.LiveConnected {
			live = s.LiveTransport + " (connected)"
		}
	}
	b.WriteString(fmt.Sprintf("Live updates: %s\n", live))
	b.WriteString(fmt.Sprintf("Uptime: %s\n", s.Uptime.Truncate(time.Second)))
	return b.String()
}

// FormatRecentLeads formats the /leads reply.
func FormatRecentLeads(leads []model.Lead) string {
	if len(leads) == 0 {
		return "No leads yet."
	}
	var b strings.Builder
	b.WriteString(fmt.Sprintf("🗂 <b>Last %d leads</b>\n\n", len(leads)))
	for _, l := range leads {
		contact := l.Phone
		if contact == "" {
			contact = l.Email
		}
		b.WriteString(fmt.Sprintf("%s  %s  %s  %s\n",
			l.CreatedAt.Format("01-02 15:04"), l.Kind,
			html.EscapeString(l.Name), html.EscapeString(contact)))
	}
	return b.String()
}

// WhatsAppURL builds a wa.me chat link prefilled with text. Non-digits are
// stripped from number.
func WhatsAppURL(number, text string) string {
	digits := strings.Map(func(r rune) rune {
		if r >= '0' && r <= '9' {
			return r
		}
		return -1
	}, number)
	u := "https://wa.me/" + digits
	if text != "" {
		u += "?text=" + strings.ReplaceAll(url.QueryEscape(text), "+", "%20")
	}
	return u
}

// LeadWhatsAppText is the message prefilled in the visitor's WhatsApp chat.
func LeadWhatsAppText(l *model.Lead) string {
	var b strings.Builder
	b.WriteString("Hi, I'm " + l.Name + ".")
	switch l.Kind {
	case model.LeadPartner:
		if l.Organization != "" {
			b.WriteString(" I represent " + l.Organization + ".")
		}
		b.WriteString(" I'd like to partner with you.")
	default:
		if l.Subject != "" {
			b.WriteString(" Regarding: " + l.Subject + ".")
		} else {
			b.WriteString(" I'm interested in unlisted shares.")
		}
	}
	if l.Message != "" {
		b.WriteString(" " + l.Message)
	}
	return b.String()
}
