package feed

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"os"
	"path/filepath"
	"strings"
	"time"

	"bracketlab/adapters/excel"
	"bracketlab/domain/game"
	"bracketlab/internal"
	"bracketlab/internal/errors"

	"github.com/tidwall/gjson"
)

// Config describes a JSON game feed: a local .json file or an http(s) endpoint
type Config struct {
	Location string
	// DataPath is a gjson path to the array of game records; the document root
	// when empty
	DataPath string
	// CursorPath locates the next page cursor in an http response. Paging stops
	// when it is empty or missing.
	CursorPath  string
	CursorParam string // query parameter carrying the cursor (default "cursor")
	MaxPages    int    // default 20
	Headers     map[string]string
	BearerToken string
	Timeout     time.Duration // default 30s
}

// Reader loads games from a JSON feed
type Reader struct {
	config Config
	client *http.Client
	logger *internal.Logger
}

// IsFeed reports whether a data location should be read as a JSON feed
func IsFeed(location string) bool {
	lower := strings.ToLower(location)
	return strings.HasPrefix(lower, "http://") || strings.HasPrefix(lower, "https://") ||
		filepath.Ext(lower) == ".json"
}

// NewReader creates a feed reader, filling in defaults
func NewReader(config Config, logger *internal.Logger) *Reader {
	if config.DataPath == "" {
		config.DataPath = "@this"
	}
	if config.CursorParam == "" {
		config.CursorParam = "cursor"
	}
	if config.MaxPages < 1 {
		config.MaxPages = 20
	}
	if config.Timeout == 0 {
		config.Timeout = 30 * time.Second
	}
	if logger == nil {
		logger = internal.DefaultLogger
	}
	return &Reader{
		config: config,
		client: &http.Client{Timeout: config.Timeout},
		logger: logger,
	}
}

// ReadGames fetches every page, flattens the records into rows and builds the
// dataset the same way spreadsheet exports are read
func (r *Reader) ReadGames(ctx context.Context) (*game.Dataset, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	var records []gjson.Result
	if r.remote() {
		cursor := ""
		for page := 0; page < r.config.MaxPages; page++ {
			body, err := r.fetch(ctx, cursor)
			if err != nil {
				return nil, err
			}
			batch, err := r.extract(body)
			if err != nil {
				return nil, err
			}
			records = append(records, batch...)
			r.logger.Debug("page %d: %d records", page+1, len(batch))

			cursor = r.nextCursor(body)
			if cursor == "" || len(batch) == 0 {
				break
			}
			if page+1 == r.config.MaxPages {
				r.logger.Warn("stopped after %d pages with more available", r.config.MaxPages)
			}
		}
	} else {
		body, err := os.ReadFile(r.config.Location)
		if err != nil {
			if os.IsNotExist(err) {
				return nil, errors.InvalidInput(fmt.Sprintf("JSON file not found: %s", r.config.Location))
			}
			return nil, errors.Wrapf(err, "failed to read %s", r.config.Location)
		}
		if records, err = r.extract(body); err != nil {
			return nil, err
		}
	}

	data := rows(records)
	if len(data.Rows) == 0 {
		return nil, errors.InvalidInput(fmt.Sprintf("no game records at %q in %s", r.config.DataPath, r.config.Location))
	}
	return excel.BuildDataset(data, r.config.Location, r.logger)
}

func (r *Reader) remote() bool {
	lower := strings.ToLower(r.config.Location)
	return strings.HasPrefix(lower, "http://") || strings.HasPrefix(lower, "https://")
}

func (r *Reader) fetch(ctx context.Context, cursor string) ([]byte, error) {
	u, err := url.Parse(r.config.Location)
	if err != nil {
		return nil, errors.InvalidInput(fmt.Sprintf("invalid feed URL %q: %v", r.config.Location, err))
	}
	if cursor != "" {
		q := u.Query()
		q.Set(r.config.CursorParam, cursor)
		u.RawQuery = q.Encode()
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u.String(), nil)
	if err != nil {
		return nil, errors.Wrap(err, "failed to build feed request")
	}
	req.Header.Set("Accept", "application/json")
	for k, v := range r.config.Headers {
		req.Header.Set(k, v)
	}
	if r.config.BearerToken != "" {
		req.Header.Set("Authorization", "Bearer "+r.config.BearerToken)
	}

	start := time.Now()
	resp, err := r.client.Do(req)
	if err != nil {
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		return nil, errors.ExternalServiceError("feed", fmt.Errorf("GET %s: %w", u.Redacted(), err))
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, errors.Wrap(err, "failed to read feed response")
	}
	r.logger.Trace("GET %s: %d in %s", u.Redacted(), resp.StatusCode, time.Since(start))
	if resp.StatusCode != http.StatusOK {
		return nil, errors.ExternalServiceError("feed", fmt.Errorf("GET %s returned status %d", u.Redacted(), resp.StatusCode))
	}
	return body, nil
}

// extract returns the records at DataPath; a single object counts as one record
func (r *Reader) extract(body []byte) ([]gjson.Result, error) {
	if !gjson.ValidBytes(body) {
		return nil, errors.InvalidInput(fmt.Sprintf("%s is not valid JSON", r.config.Location))
	}
	result := gjson.GetBytes(body, r.config.DataPath)
	switch {
	case !result.Exists():
		return nil, errors.InvalidInput(fmt.Sprintf("data path %q not found in %s", r.config.DataPath, r.config.Location))
	case result.IsArray():
		return result.Array(), nil
	case result.IsObject():
		return []gjson.Result{result}, nil
	default:
		return nil, errors.InvalidInput(fmt.Sprintf("data path %q is not an array or object", r.config.DataPath))
	}
}

func (r *Reader) nextCursor(body []byte) string {
	if r.config.CursorPath == "" {
		return ""
	}
	return gjson.GetBytes(body, r.config.CursorPath).String()
}

// rows flattens records into spreadsheet-style rows. Headers follow the order in
// which keys first appear; nulls become blank cells.
func rows(records []gjson.Result) *excel.ExcelData {
	data := &excel.ExcelData{}
	seen := make(map[string]bool)
	for _, rec := range records {
		if !rec.IsObject() {
			continue
		}
		row := make(excel.RawRowData)
		rec.ForEach(func(key, value gjson.Result) bool {
			name := strings.TrimSpace(key.String())
			if !seen[name] {
				seen[name] = true
				data.Headers = append(data.Headers, name)
			}
			if value.Type != gjson.Null {
				row[name] = strings.TrimSpace(value.String())
			}
			return true
		})
		data.Rows = append(data.Rows, row)
	}
	return data
}
