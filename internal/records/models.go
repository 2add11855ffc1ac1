package records

// CVRecord is the dashboard-facing shape of one analyzed candidate.
type CVRecord struct {
	ID                 string `json:"id"`
	FirstName          string `json:"firstName"`
	LastName           string `json:"lastName"`
	Email              string `json:"email"`
	Universities       string `json:"universities"`
	ResumeSummary      string `json:"resumeSummary"`
	DetectedGaps       string `json:"detectedGaps"`
	InterviewQuestions string `json:"interviewQuestions"`
	HolderSummary      string `json:"holderSummary"`
	CVURL              string `json:"cvUrl"`
	UploadDate         string `json:"uploadDate"`
}

// SortField enumerates the sortable columns. Anything else falls back to
// SortByUploadDate.
type SortField string

const (
	SortByUploadDate SortField = "uploadDate"
	SortByFirstName  SortField = "firstName"
	SortByLastName   SortField = "lastName"
	SortByEmail      SortField = "email"
)

// SortDirection is asc or desc, defaulting to desc.
type SortDirection string

const (
	SortAsc  SortDirection = "asc"
	SortDesc SortDirection = "desc"
)

// SearchParams shape a record query.
type SearchParams struct {
	Search        string
	SortBy        SortField
	SortDirection SortDirection
	Page          int
	PageSize      int
}

// Normalize applies the fallback rules: unknown sort fields become upload
// date, unknown directions become descending, page and size get sane floors.
func (p SearchParams) Normalize() SearchParams {
	switch p.SortBy {
	case SortByUploadDate, SortByFirstName, SortByLastName, SortByEmail:
	default:
		p.SortBy = SortByUploadDate
	}
	switch p.SortDirection {
	case SortAsc, SortDesc:
	default:
		p.SortDirection = SortDesc
	}
	if p.Page < 1 {
		p.Page = 1
	}
	if p.PageSize < 1 {
		p.PageSize = 10
	}
	return p
}

// Page is a query result plus pagination metadata.
type Page struct {
	Records         []CVRecord `json:"records"`
	TotalRecords    int        `json:"totalRecords"`
	TotalPages      int        `json:"totalPages"`
	CurrentPage     int        `json:"currentPage"`
	HasNextPage     bool       `json:"hasNextPage"`
	HasPreviousPage bool       `json:"hasPreviousPage"`
}
