package disclosure

// Event is one unit of provider-reported activity for a company:
// a filed report (File set) or a published message (Message set).
type Event struct {
	UID     string   `json:"uid"`
	Date    string   `json:"date"`
	Subject *Subject `json:"subject"`
	File    *File    `json:"file"`
	Message *Message `json:"message"`
}

// Subject identifies the company behind an event
type Subject struct {
	ShortName string `json:"shortName"`
	FullName  string `json:"fullName"`
	INN       string `json:"inn"`
	OGRN      string `json:"ogrn"`
}

// File describes a downloadable disclosure document
type File struct {
	UID         string      `json:"uid"`
	PublicURL   string      `json:"publicUrl"`
	Description string      `json:"description"`
	Type        NamedRef    `json:"type"`
	Category    NamedRef    `json:"category"`
	RawAttrs    []Attribute `json:"attributes"`

	// Attributes is RawAttrs flattened into a name->value lookup.
	// Populated by the fetcher; every downstream date/year comparison
	// depends on O(1) access by attribute name.
	Attributes map[string]string `json:"-"`
}

// Message describes a published disclosure message
type Message struct {
	Header    string   `json:"header"`
	Text      string   `json:"text"`
	PublicURL string   `json:"publicUrl"`
	Type      NamedRef `json:"type"`
}

// NamedRef is a provider reference carrying a display name
type NamedRef struct {
	Name string `json:"name"`
}

// Attribute is one entry of the provider's nested attribute list
type Attribute struct {
	Name  string `json:"name"`
	Value string `json:"value"`
}

// Title returns the display name of a message, preferring the header
func (m *Message) Title() string {
	if m.Header != "" {
		return m.Header
	}
	return m.Type.Name
}
