package webhook

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"strconv"
	"time"
)

// File is one payload forwarded to the analysis webhook.
type File struct {
	ID   string
	Name string
	MIME string
	Size int64
	Data []byte
}

// Result is the webhook's optional response body. Any 2xx counts as success
// even with an empty body.
type Result struct {
	Status    string `json:"status"`
	Candidate string `json:"candidate"`
	Message   string `json:"message"`
}

// Client submits files to the external analysis webhook as multipart form
// data with per-file metadata fields.
type Client struct {
	url    string
	client *http.Client
	now    func() time.Time
}

// New creates a webhook client with the given submission timeout.
func New(url string, timeout time.Duration) *Client {
	return &Client{
		url:    url,
		client: &http.Client{Timeout: timeout},
		now:    time.Now,
	}
}

// Forward posts one or more files to the webhook. Non-2xx responses and
// transport failures are errors; a 2xx with a malformed body is still a
// success with an empty Result.
func (c *Client) Forward(ctx context.Context, files []File) (*Result, error) {
	if c.url == "" {
		return nil, fmt.Errorf("webhook URL not configured")
	}
	if len(files) == 0 {
		return nil, fmt.Errorf("no files to forward")
	}

	var body bytes.Buffer
	writer := multipart.NewWriter(&body)
	for i, f := range files {
		part, err := writer.CreateFormFile(fmt.Sprintf("attachment_%d", i), f.Name)
		if err != nil {
			return nil, fmt.Errorf("build multipart part: %w", err)
		}
		if _, err := part.Write(f.Data); err != nil {
			return nil, fmt.Errorf("write multipart part: %w", err)
		}
	}

	meta := map[string]string{
		"fileCount":  strconv.Itoa(len(files)),
		"uploadedAt": c.now().UTC().Format(time.RFC3339),
	}
	for _, f := range files {
		// Per-file descriptive metadata keyed by file ID.
		meta["fileName_"+f.ID] = f.Name
		meta["fileSize_"+f.ID] = strconv.FormatInt(f.Size, 10)
		meta["mimeType_"+f.ID] = f.MIME
	}
	fileIDs := make([]string, 0, len(files))
	for _, f := range files {
		fileIDs = append(fileIDs, f.ID)
	}
	idsJSON, _ := json.Marshal(fileIDs)
	meta["fileIds"] = string(idsJSON)

	for k, v := range meta {
		if err := writer.WriteField(k, v); err != nil {
			return nil, fmt.Errorf("write metadata field %s: %w", k, err)
		}
	}
	if err := writer.Close(); err != nil {
		return nil, fmt.Errorf("finalize multipart body: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.url, &body)
	if err != nil {
		return nil, fmt.Errorf("build webhook request: %w", err)
	}
	req.Header.Set("Content-Type", writer.FormDataContentType())

	resp, err := c.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("post to webhook: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, fmt.Errorf("webhook returned status %d", resp.StatusCode)
	}

	var result Result
	raw, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err == nil && len(raw) > 0 {
		// The body is optional; ignore parse failures on a 2xx.
		_ = json.Unmarshal(raw, &result)
	}
	return &result, nil
}
