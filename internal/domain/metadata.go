package domain

import "time"

// AuthorDescriptor is an author as reported by a metadata source.
type AuthorDescriptor struct {
	Name     string `json:"name"`
	SourceID string `json:"source_id,omitempty"`
	ORCID    string `json:"orcid,omitempty"`
}

// PaperMetadata is the normalized result of a metadata fetch.
type PaperMetadata struct {
	ID              string             `json:"arxiv_id"`
	Version         int                `json:"arxiv_version,omitempty"`
	Title           string             `json:"title"`
	Abstract        string             `json:"abstract"`
	Authors         []AuthorDescriptor `json:"authors"`
	Categories      []string           `json:"categories"`
	PrimaryCategory string             `json:"primary_category"`
	DOI             string             `json:"doi,omitempty"`
	JournalRef      string             `json:"journal_ref,omitempty"`
	URL             string             `json:"url"`
	PDFURL          string             `json:"pdf_url"`
	PublishedAt     *time.Time         `json:"published_at,omitempty"`
	UpdatedAt       *time.Time         `json:"updated_at,omitempty"`
}

// AuthorNames returns the descriptor names in order.
func (m *PaperMetadata) AuthorNames() []string {
	names := make([]string, 0, len(m.Authors))
	for _, a := range m.Authors {
		names = append(names, a.Name)
	}
	return names
}
