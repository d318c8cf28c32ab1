package domain

import (
	"encoding/json"
	"strconv"
	"time"

	"gorm.io/datatypes"
)

type PaperStatus string

const (
	StatusPlanned PaperStatus = "PLANNED"
	StatusReading PaperStatus = "READING"
	StatusRead    PaperStatus = "READ"
)

// Valid reports whether s is one of the known statuses.
func (s PaperStatus) Valid() bool {
	switch s {
	case StatusPlanned, StatusReading, StatusRead:
		return true
	}
	return false
}

var PaperStatuses = []PaperStatus{StatusPlanned, StatusReading, StatusRead}

type PaperSource string

const (
	SourceArxiv  PaperSource = "ARXIV"
	SourceURL    PaperSource = "URL"
	SourceManual PaperSource = "MANUAL"
)

type DiscoverySourceType string

const (
	DiscoveredFromPaper DiscoverySourceType = "PAPER"
	DiscoveredFromText  DiscoverySourceType = "TEXT"
)

// User owns every other row.
type User struct {
	ID        uint64    `json:"id"`
	Email     *string   `gorm:"size:255;uniqueIndex" json:"email"`
	CreatedAt time.Time `json:"created_at"`
}

type Category struct {
	ID        uint64    `json:"id"`
	UserID    uint64    `gorm:"not null;uniqueIndex:uq_category_user_name,priority:1" json:"user_id"`
	Name      string    `gorm:"size:100;not null;uniqueIndex:uq_category_user_name,priority:2" json:"name"`
	CreatedAt time.Time `json:"created_at"`
}

// Paper is one tracked work. OrderIndex orders papers within (UserID, Status);
// no index enforces uniqueness. Writers keep it distinct: ordering.Top for new
// and re-statused papers, ordering.Place for moves, and ReorderList, which only
// permutes the listed papers' existing values.
type Paper struct {
	ID         uint64      `json:"id"`
	UserID     uint64      `gorm:"not null;uniqueIndex:uq_paper_user_arxiv_id,priority:1;index:idx_paper_scope,priority:1" json:"user_id"`
	Title      string      `gorm:"size:500;not null" json:"title"`
	Abstract   *string     `gorm:"type:text" json:"abstract"`
	URL        *string     `gorm:"size:500" json:"url"`
	PDFURL     *string     `gorm:"column:pdf_url;size:500" json:"pdf_url"`
	Source     PaperSource `gorm:"size:16;not null;default:MANUAL" json:"source"`
	Status     PaperStatus `gorm:"size:16;not null;default:PLANNED;index:idx_paper_scope,priority:2" json:"status"`
	CategoryID *uint64     `gorm:"index" json:"category_id"`
	Category   *Category   `gorm:"constraint:OnDelete:SET NULL" json:"category,omitempty"`
	OrderIndex int64       `gorm:"not null;index:idx_paper_scope,priority:3" json:"order_index"`
	Likes      int         `gorm:"not null;default:0" json:"likes"`
	Notes      *string     `gorm:"type:text" json:"notes"`

	ArxivID              *string        `gorm:"size:50;uniqueIndex:uq_paper_user_arxiv_id,priority:2" json:"arxiv_id"`
	ArxivVersion         *int           `json:"arxiv_version"`
	ArxivPrimaryCategory *string        `gorm:"size:50" json:"arxiv_primary_category"`
	ArxivCategories      datatypes.JSON `json:"arxiv_categories"`
	ArxivPublishedAt     *time.Time     `json:"arxiv_published_at"`
	ArxivUpdatedAt       *time.Time     `json:"arxiv_updated_at"`

	DOI         *string `gorm:"column:doi;size:100" json:"doi"`
	JournalRef  *string `gorm:"size:200" json:"journal_ref"`
	CitationKey *string `gorm:"size:100" json:"citation_key"`
	VenueYear   *string `gorm:"size:100" json:"venue_year"`

	CreatedAt time.Time  `json:"created_at"`
	UpdatedAt time.Time  `json:"updated_at"`
	ReadAt    *time.Time `json:"read_at"`

	// Authors is loaded by the repository in position order.
	Authors []Author `gorm:"-" json:"authors"`
}

// DisplayArxivID renders the canonical id with its version, e.g. 2301.12345v2.
func (p *Paper) DisplayArxivID() string {
	if p.ArxivID == nil {
		return ""
	}
	if p.ArxivVersion == nil || *p.ArxivVersion == 0 {
		return *p.ArxivID
	}
	return *p.ArxivID + "v" + strconv.Itoa(*p.ArxivVersion)
}

// Tags decodes ArxivCategories.
func (p *Paper) Tags() []string {
	if len(p.ArxivCategories) == 0 {
		return nil
	}
	var tags []string
	if err := json.Unmarshal(p.ArxivCategories, &tags); err != nil {
		return nil
	}
	return tags
}

// EncodeTags builds the json column value for a tag list.
func EncodeTags(tags []string) datatypes.JSON {
	if len(tags) == 0 {
		return nil
	}
	b, err := json.Marshal(tags)
	if err != nil {
		return nil
	}
	return datatypes.JSON(b)
}

// Author is a per-user identity record. ORCID and SourceID are unique per user when set.
type Author struct {
	ID        uint64    `json:"id"`
	UserID    uint64    `gorm:"not null;uniqueIndex:uq_author_user_orcid,priority:1;uniqueIndex:uq_author_user_source,priority:1;index:idx_author_user_slug,priority:1" json:"user_id"`
	Name      string    `gorm:"size:255;not null" json:"name"`
	ORCID     *string   `gorm:"column:orcid;size:50;uniqueIndex:uq_author_user_orcid,priority:2" json:"orcid"`
	SourceID  *string   `gorm:"size:100;uniqueIndex:uq_author_user_source,priority:2" json:"source_id"`
	Slug      string    `gorm:"size:255;not null;index:idx_author_user_slug,priority:2" json:"slug"`
	CreatedAt time.Time `json:"created_at"`
}

// PaperAuthor links a paper to an author at a 0-based position.
type PaperAuthor struct {
	ID        uint64    `json:"id"`
	PaperID   uint64    `gorm:"not null;index;uniqueIndex:uq_paper_author,priority:1;uniqueIndex:uq_paper_author_position,priority:1" json:"paper_id"`
	AuthorID  uint64    `gorm:"not null;index;uniqueIndex:uq_paper_author,priority:2" json:"author_id"`
	Position  int       `gorm:"not null;default:0;uniqueIndex:uq_paper_author_position,priority:2" json:"position"`
	CreatedAt time.Time `json:"created_at"`
}

type EffortLog struct {
	ID        uint64    `json:"id"`
	UserID    uint64    `gorm:"not null;index" json:"user_id"`
	PaperID   uint64    `gorm:"not null;index" json:"paper_id"`
	Points    int       `gorm:"not null;default:1" json:"points"`
	Note      *string   `gorm:"type:text" json:"note"`
	CreatedAt time.Time `json:"created_at"`
}

type DiscoverySource struct {
	ID            uint64              `json:"id"`
	PaperID       uint64              `gorm:"not null;index" json:"paper_id"`
	SourceType    DiscoverySourceType `gorm:"size:16;not null" json:"source_type"`
	SourceArxivID *string             `gorm:"size:50" json:"source_arxiv_id"`
	SourcePaperID *uint64             `gorm:"index" json:"source_paper_id"`
	SourceText    *string             `gorm:"type:text" json:"source_text"`
	CreatedAt     time.Time           `json:"created_at"`
}
