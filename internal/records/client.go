package records

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"cvintake/internal/platform/config"
	"cvintake/pkg/platform/sentinel"
)

// Airtable column names for each sortable field. "Univeristies " keeps the
// upstream base's typo; renaming the column there breaks the mapping.
const (
	fieldFirstName    = "First Name"
	fieldLastName     = "Last Name"
	fieldEmail        = "Email"
	fieldUniversities = "Univeristies "
	fieldSummary      = "doc_resume_summary"
	fieldGaps         = "detected_gaps_1"
	fieldQuestions    = "interview_questions"
	fieldHolder       = "holder_summary"
	fieldCV           = "CV"
	fieldTime         = "Time"
)

var sortFieldColumns = map[SortField]string{
	SortByUploadDate: fieldTime,
	SortByFirstName:  fieldFirstName,
	SortByLastName:   fieldLastName,
	SortByEmail:      fieldEmail,
}

// Client is a thin boundary over the Airtable REST API. The intake core does
// not depend on its internals; it only triggers dashboard refreshes after a
// batch completes.
type Client struct {
	cfg    config.AirtableConfig
	client *http.Client
	now    func() time.Time
}

// NewClient creates an Airtable records client.
func NewClient(cfg config.AirtableConfig) *Client {
	return &Client{
		cfg:    cfg,
		client: &http.Client{Timeout: 15 * time.Second},
		now:    time.Now,
	}
}

type airtableRecord struct {
	ID     string         `json:"id"`
	Fields map[string]any `json:"fields"`
}

type airtableListResponse struct {
	Records []airtableRecord `json:"records"`
	Offset  string           `json:"offset"`
}

// List queries candidate records with search, sort, and pagination. Airtable
// has no offset-based pagination, so pages are walked up to page*pageSize
// records and sliced locally, mirroring the dashboard contract.
func (c *Client) List(ctx context.Context, params SearchParams) (*Page, error) {
	params = params.Normalize()

	maxRecords := params.Page * params.PageSize
	collected := make([]CVRecord, 0, maxRecords)

	offset := ""
	for {
		batch, next, err := c.listPage(ctx, params, maxRecords, offset)
		if err != nil {
			return nil, err
		}
		collected = append(collected, batch...)
		if next == "" || len(collected) >= maxRecords {
			break
		}
		offset = next
	}

	total := len(collected)
	totalPages := (total + params.PageSize - 1) / params.PageSize

	start := (params.Page - 1) * params.PageSize
	end := start + params.PageSize
	if start > total {
		start = total
	}
	if end > total {
		end = total
	}

	return &Page{
		Records:         collected[start:end],
		TotalRecords:    total,
		TotalPages:      totalPages,
		CurrentPage:     params.Page,
		HasNextPage:     params.Page < totalPages,
		HasPreviousPage: params.Page > 1,
	}, nil
}

func (c *Client) listPage(ctx context.Context, params SearchParams, maxRecords int, offset string) ([]CVRecord, string, error) {
	q := url.Values{}
	q.Set("maxRecords", fmt.Sprintf("%d", maxRecords))
	q.Set("sort[0][field]", sortFieldColumns[params.SortBy])
	q.Set("sort[0][direction]", string(params.SortDirection))
	if params.Search != "" {
		q.Set("filterByFormula", searchFormula(params.Search))
	}
	if offset != "" {
		q.Set("offset", offset)
	}

	endpoint := fmt.Sprintf("%s/%s/%s?%s",
		c.cfg.BaseURL, c.cfg.BaseID, url.PathEscape(c.cfg.TableName), q.Encode())

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return nil, "", fmt.Errorf("build records request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+c.cfg.APIKey)

	resp, err := c.client.Do(req)
	if err != nil {
		return nil, "", fmt.Errorf("fetch records: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, "", statusError(resp.StatusCode)
	}

	var body airtableListResponse
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		return nil, "", fmt.Errorf("decode records response: %w", err)
	}

	out := make([]CVRecord, 0, len(body.Records))
	for _, rec := range body.Records {
		out = append(out, transformRecord(rec))
	}
	return out, body.Offset, nil
}

// Create inserts one candidate record.
func (c *Client) Create(ctx context.Context, rec CVRecord) (*CVRecord, error) {
	uploadDate := rec.UploadDate
	if uploadDate == "" {
		uploadDate = c.now().UTC().Format(time.RFC3339)
	}

	payload := map[string]any{
		"fields": map[string]any{
			fieldFirstName:    rec.FirstName,
			fieldLastName:     rec.LastName,
			fieldEmail:        rec.Email,
			fieldUniversities: rec.Universities,
			fieldSummary:      rec.ResumeSummary,
			fieldGaps:         rec.DetectedGaps,
			fieldQuestions:    rec.InterviewQuestions,
			fieldHolder:       rec.HolderSummary,
			fieldCV:           rec.CVURL,
			fieldTime:         uploadDate,
		},
	}
	raw, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("marshal record: %w", err)
	}

	endpoint := fmt.Sprintf("%s/%s/%s",
		c.cfg.BaseURL, c.cfg.BaseID, url.PathEscape(c.cfg.TableName))
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(raw))
	if err != nil {
		return nil, fmt.Errorf("build create request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+c.cfg.APIKey)
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("create record: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK && resp.StatusCode != http.StatusCreated {
		return nil, statusError(resp.StatusCode)
	}

	var created airtableRecord
	if err := json.NewDecoder(resp.Body).Decode(&created); err != nil {
		return nil, fmt.Errorf("decode created record: %w", err)
	}
	out := transformRecord(created)
	return &out, nil
}

// statusError maps Airtable HTTP failures onto sentinel facts so the handler
// can translate them without parsing messages.
func statusError(status int) error {
	switch {
	case status == http.StatusNotFound:
		return fmt.Errorf("airtable returned status %d: %w", status, sentinel.ErrNotFound)
	case status == http.StatusTooManyRequests || status >= 500:
		return fmt.Errorf("airtable returned status %d: %w", status, sentinel.ErrUnavailable)
	default:
		return fmt.Errorf("airtable returned status %d", status)
	}
}

// searchFormula builds a case-insensitive OR search across name and email
// columns.
func searchFormula(search string) string {
	needle := strings.ToLower(strings.ReplaceAll(search, `"`, ``))
	conditions := []string{
		fmt.Sprintf(`SEARCH(LOWER("%s"), LOWER({%s}))`, needle, fieldFirstName),
		fmt.Sprintf(`SEARCH(LOWER("%s"), LOWER({%s}))`, needle, fieldLastName),
		fmt.Sprintf(`SEARCH(LOWER("%s"), LOWER({%s}))`, needle, fieldEmail),
	}
	return "OR(" + strings.Join(conditions, ", ") + ")"
}

func transformRecord(rec airtableRecord) CVRecord {
	return CVRecord{
		ID:                 rec.ID,
		FirstName:          stringField(rec.Fields, fieldFirstName),
		LastName:           stringField(rec.Fields, fieldLastName),
		Email:              stringField(rec.Fields, fieldEmail),
		Universities:       stringField(rec.Fields, fieldUniversities),
		ResumeSummary:      stringField(rec.Fields, fieldSummary),
		DetectedGaps:       stringField(rec.Fields, fieldGaps),
		InterviewQuestions: stringField(rec.Fields, fieldQuestions),
		HolderSummary:      stringField(rec.Fields, fieldHolder),
		CVURL:              stringField(rec.Fields, fieldCV),
		UploadDate:         stringField(rec.Fields, fieldTime),
	}
}

func stringField(fields map[string]any, key string) string {
	if v, ok := fields[key].(string); ok {
		return v
	}
	return ""
}
