package inbox

import (
	"strings"

	"leadhunt-engine/internal/domain"
	"leadhunt-engine/internal/scrape/util"
)

// Website contact forms arrive as "Field: value" lines. Field names vary by
// form plugin, so each canonical field accepts a few spellings.
var formFields = map[string][]string{
	"name":     {"name", "full name", "your name"},
	"email":    {"email", "e-mail", "email address", "your email"},
	"phone":    {"phone", "phone number", "telephone", "mobile"},
	"location": {"location", "project address", "city", "town", "zip", "zip code"},
	"budget":   {"budget", "estimated budget", "price range"},
	"service":  {"service", "project type", "service needed", "project"},
	"message":  {"message", "details", "project details", "description", "comments"},
	"when":     {"submitted", "date", "submitted at"},
}

func formValue(text, field string) string {
	return util.ExtractLabeledValue(text, formFields[field]...)
}

// formPosting turns a form notification into a posting. ok is false when
// the mail does not look like a form submission at all.
func formPosting(m parsedMail, subject string) (domain.RawPosting, bool) {
	text := m.Text
	service := formValue(text, "service")
	message := messageBlock(text)
	if service == "" && message == "" {
		return domain.RawPosting{}, false
	}

	title := service
	if title == "" {
		title = strings.TrimSpace(subject)
	}

	desc := message
	if name := formValue(text, "name"); name != "" {
		desc = strings.TrimSpace(desc + "\nFrom: " + name)
	}
	phone := formValue(text, "phone")
	email := formValue(text, "email")
	if phone != "" {
		desc += "\nPhone: " + phone
	}
	if email != "" {
		desc += "\nEmail: " + email
	}

	p := domain.RawPosting{
		Title:       title,
		Description: strings.TrimSpace(desc),
		Location:    formValue(text, "location"),
		Budget:      formValue(text, "budget"),
		PostedText:  formValue(text, "when"),
	}
	if !m.Date.IsZero() && p.PostedText == "" {
		d := m.Date.UTC()
		p.PostedAt = &d
	}
	switch {
	case phone != "":
		p.ContactMethod = domain.ContactPhone
	case email != "":
		p.ContactMethod = domain.ContactEmail
	default:
		p.ContactMethod = domain.ContactDirect
	}
	return p, true
}

// messageBlock returns the free-text message field including the lines that
// follow it up to the next "Field:" line.
func messageBlock(text string) string {
	lines := strings.Split(text, "\n")
	for i, ln := range lines {
		label, rest, ok := strings.Cut(ln, ":")
		if !ok || !isField("message", label) {
			continue
		}
		out := []string{strings.TrimSpace(rest)}
		for _, next := range lines[i+1:] {
			if l, _, ok := strings.Cut(next, ":"); ok && isAnyField(l) {
				break
			}
			out = append(out, strings.TrimSpace(next))
		}
		return strings.TrimSpace(strings.Join(out, "\n"))
	}
	return ""
}

func isField(field, label string) bool {
	label = strings.ToLower(strings.TrimSpace(label))
	for _, f := range formFields[field] {
		if label == f {
			return true
		}
	}
	return false
}

func isAnyField(label string) bool {
	for f := range formFields {
		if isField(f, label) {
			return true
		}
	}
	return false
}
