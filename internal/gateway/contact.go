package gateway

import (
	"context"
	"encoding/json"
	"errors"
	"log"
	"net/http"
	"net/mail"
	"strings"
	"time"

	"ShareDesk/internal/model"
	"ShareDesk/internal/notifier"
)

const (
	maxFormBytes  = 64 << 10
	notifyTimeout = 30 * time.Second
)

// leadForm is the JSON body shared by the contact and partner forms.
type leadForm struct {
	Name         string `json:"name"`
	Email        string `json:"email"`
	Phone        string `json:"phone"`
	Subject      string `json:"subject"`
	Organization string `json:"organization"`
	Interest     string `json:"interest"`
	Message      string `json:"message"`
}

func (f *leadForm) trim() {
	for _, p := range []*string{&f.Name, &f.Email, &f.Phone, &f.Subject, &f.Organization, &f.Interest, &f.Message} {
		*p = strings.TrimSpace(*p)
	}
}

func (f *leadForm) lead(kind model.LeadKind) *model.Lead {
	return &model.Lead{
		Kind:         kind,
		Name:         f.Name,
		Email:        f.Email,
		Phone:        f.Phone,
		Subject:      f.Subject,
		Organization: f.Organization,
		Interest:     f.Interest,
		Message:      f.Message,
		CreatedAt:    time.Now(),
	}
}

// required fields per form
var leadRequired = map[model.LeadKind][]string{
	model.LeadContact:     {"name", "phone"},
	model.LeadContactForm: {"name", "email", "message"},
	model.LeadPartner:     {"name", "email", "phone"},
}

// validate returns field -> problem for every invalid field.
func (f *leadForm) validate(kind model.LeadKind) map[string]string {
	values := map[string]string{
		"name":    f.Name,
		"email":   f.Email,
		"phone":   f.Phone,
		"message": f.Message,
	}
	problems := make(map[string]string)
	for _, field := range leadRequired[kind] {
		if values[field] == "" {
			problems[field] = "is required"
		}
	}
	if f.Email != "" {
		if addr, err := mail.ParseAddress(f.Email); err != nil || addr.Address != f.Email {
			problems["email"] = "is not a valid email address"
		}
	}
	if f.Phone != "" && !validPhone(f.Phone) {
		problems["phone"] = "is not a valid phone number"
	}
	return problems
}

func validPhone(p string) bool {
	digits := 0
	for _, r := range p {
		switch {
		case r >= '0' && r <= '9':
			digits++
		case r == '+' || r == ' ' || r == '-' || r == '(' || r == ')':
		default:
			return false
		}
	}
	return digits >= 7 && digits <= 15
}

func (s *Server) handleContact(w http.ResponseWriter, r *http.Request) error {
	return s.submitLead(w, r, model.LeadContact)
}

func (s *Server) handleContactForm(w http.ResponseWriter, r *http.Request) error {
	return s.submitLead(w, r, model.LeadContactForm)
}

func (s *Server) handlePartner(w http.ResponseWriter, r *http.Request) error {
	return s.submitLead(w, r, model.LeadPartner)
}

// submitLead validates a form, stores it, alerts the operator in the
// background and answers with a WhatsApp link when one is configured.
func (s *Server) submitLead(w http.ResponseWriter, r *http.Request, kind model.LeadKind) error {
	var form leadForm
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxFormBytes))
	if err := dec.Decode(&form); err != nil {
		var tooBig *http.MaxBytesError
		if errors.As(err, &tooBig) {
			return &APIError{Status: http.StatusRequestEntityTooLarge, Message: "Request body too large"}
		}
		return badRequest("Invalid request body", nil)
	}
	form.trim()
	if problems := form.validate(kind); len(problems) > 0 {
		return badRequest("Validation failed", map[string]any{
			"fields":    problems,
			"submitted": form,
		})
	}

	lead := form.lead(kind)
	if err := s.recorder.RecordLead(lead); err != nil {
		log.Printf("[ERROR] record %s lead: %v", kind, err)
	}
	log.Printf("[INFO] %s lead from %s", kind, lead.Name)

	if s.notifier != nil && s.notifier.Enabled() {
		text := notifier.FormatLead(lead)
		go func() {
			ctx, cancel := context.WithTimeout(s.bg, notifyTimeout)
			defer cancel()
			if err := s.notifier.Notify(ctx, text); err != nil {
				log.Printf("[WARN] notify %s lead: %v", kind, err)
			}
		}()
	}

	resp := map[string]any{"success": true}
	if s.opts.WhatsAppNumber != "" {
		resp["whatsappUrl"] = notifier.WhatsAppURL(s.opts.WhatsAppNumber, notifier.LeadWhatsAppText(lead))
	} else {
		resp["message"] = "Thank you, we will get back to you shortly."
	}
	writeJSON(w, http.StatusOK, resp)
	return nil
}
