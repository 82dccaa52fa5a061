package domain

type Category string

const CategoryGeneral Category = "General"

// Source configures one adapter instance. Sources are read once at startup.
type Source struct {
	Name           string            `yaml:"name" json:"name"`
	Kind           string            `yaml:"kind" json:"kind"` // rss/html/imap
	BaseURL        string            `yaml:"base_url" json:"baseUrl"`
	Enabled        bool              `yaml:"enabled" json:"enabled"`
	Keywords       []string          `yaml:"keywords" json:"keywords"`
	MaxResults     int               `yaml:"max_results" json:"maxResults"`
	TimeoutSeconds int               `yaml:"timeout_seconds" json:"timeoutSeconds"`
	ContactMethod  string            `yaml:"contact_method" json:"contactMethod,omitempty"`
	Selectors      map[string]string `yaml:"selectors,omitempty" json:"-"`
	IMAP           IMAPSettings      `yaml:"imap,omitempty" json:"-"`
}

type IMAPSettings struct {
	Host     string `yaml:"host"`
	Port     int    `yaml:"port"`
	Username string `yaml:"username"`
	Mailbox  string `yaml:"mailbox"`
	Subject  string `yaml:"subject"` // only messages whose subject contains this
}
