package normalize

import (
	"regexp"
	"strings"

	"github.com/nyaruka/phonenumbers"

	"leadhunt-engine/internal/domain"
)

var phoneCandidateRe = regexp.MustCompile(`(?:\+?1[\s.-]?)?\(?\d{3}\)?[\s.-]?\d{3}[\s.-]?\d{4}`)

var kindDefaults = map[string]string{
	"imap": domain.ContactDirect,
	"rss":  domain.ContactEmail,
	"html": domain.ContactMessage,
}

func (n *Normalizer) contactMethod(raw domain.RawPosting, src domain.Source, text string) string {
	if m := strings.ToLower(strings.TrimSpace(raw.ContactMethod)); domain.ValidContactMethod(m) {
		return m
	}
	if n.FindPhone(text) != "" {
		return domain.ContactPhone
	}
	if m := strings.ToLower(strings.TrimSpace(src.ContactMethod)); domain.ValidContactMethod(m) {
		return m
	}
	if m, ok := kindDefaults[src.Kind]; ok {
		return m
	}
	return domain.ContactMessage
}

// FindPhone returns the first valid phone number in text in E.164 form.
func (n *Normalizer) FindPhone(text string) string {
	for _, c := range phoneCandidateRe.FindAllString(text, 5) {
		num, err := phonenumbers.Parse(c, n.Region)
		if err != nil {
			continue
		}
		if phonenumbers.IsValidNumber(num) {
			return phonenumbers.Format(num, phonenumbers.E164)
		}
	}
	return ""
}
