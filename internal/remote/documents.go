package remote

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"path"
	"sort"
	"strings"
	"time"

	"ShareDesk/internal/model"
)

// SignedURLTTL is how long a document download link stays valid.
const SignedURLTTL = time.Hour

// DocumentPrefix returns the folder holding one statement type for a company.
func DocumentPrefix(companyID, statementType string) string {
	return path.Join("financial_statements", companyID, statementType)
}

type storageObject struct {
	Name      string     `json:"name"`
	ID        *string    `json:"id"`
	UpdatedAt model.Date `json:"updated_at"`
	Metadata  *struct {
		Size     int64  `json:"size"`
		Mimetype string `json:"mimetype"`
	} `json:"metadata"`
}

// ListDocuments returns the CSV statements uploaded for a company, grouped by
// statement type. Types without files map to an empty slice.
func (c *Client) ListDocuments(ctx context.Context, companyID string) (model.DocumentIndex, error) {
	index := make(model.DocumentIndex, len(model.StatementTypes))
	for _, st := range model.StatementTypes {
		files, err := c.listFolder(ctx, DocumentPrefix(companyID, st))
		if err != nil && !errors.Is(err, ErrNotFound) {
			return nil, err
		}
		index[st] = files
	}
	return index, nil
}

// ListStatementFiles returns the files of one statement type, newest first.
func (c *Client) ListStatementFiles(ctx context.Context, companyID, statementType string) ([]model.DocumentFile, error) {
	files, err := c.listFolder(ctx, DocumentPrefix(companyID, statementType))
	if err != nil {
		return nil, err
	}
	sort.SliceStable(files, func(i, j int) bool {
		return files[i].UpdatedAt.After(files[j].UpdatedAt)
	})
	return files, nil
}

func (c *Client) listFolder(ctx context.Context, prefix string) ([]model.DocumentFile, error) {
	body := map[string]any{
		"prefix": prefix,
		"limit":  100,
		"offset": 0,
		"sortBy": map[string]string{"column": "name", "order": "asc"},
	}
	var objects []storageObject
	if err := c.post(ctx, "list documents", "/storage/v1/object/list/"+c.bucket, body, &objects); err != nil {
		return nil, err
	}

	files := make([]model.DocumentFile, 0, len(objects))
	for _, o := range objects {
		// Folders come back without an id.
		if o.ID == nil || !strings.HasSuffix(strings.ToLower(o.Name), ".csv") {
			continue
		}
		f := model.DocumentFile{
			Name: o.Name,
			Path: path.Join(prefix, o.Name),
		}
		if o.UpdatedAt.Valid {
			f.UpdatedAt = o.UpdatedAt.Time
		}
		if o.Metadata != nil {
			f.Size = o.Metadata.Size
		}
		files = append(files, f)
	}
	return files, nil
}

// SignDocument returns a time-limited download URL for an object path.
func (c *Client) SignDocument(ctx context.Context, objectPath string, ttl time.Duration) (string, error) {
	if ttl <= 0 {
		ttl = SignedURLTTL
	}
	var out struct {
		SignedURL string `json:"signedURL"`
	}
	endpoint := "/storage/v1/object/sign/" + c.bucket + "/" + escapePath(objectPath)
	err := c.post(ctx, "sign document", endpoint, map[string]int{"expiresIn": int(ttl.Seconds())}, &out)
	if err != nil {
		var se *StatusError
		if errors.As(err, &se) && strings.Contains(strings.ToLower(se.Body), "not_found") {
			return "", fmt.Errorf("sign %s: %w", objectPath, ErrNotFound)
		}
		return "", err
	}
	if out.SignedURL == "" {
		return "", fmt.Errorf("sign %s: empty signed url", objectPath)
	}
	if strings.HasPrefix(out.SignedURL, "http://") || strings.HasPrefix(out.SignedURL, "https://") {
		return out.SignedURL, nil
	}
	return c.baseURL + "/storage/v1" + out.SignedURL, nil
}

func escapePath(p string) string {
	parts := strings.Split(p, "/")
	for i, s := range parts {
		parts[i] = url.PathEscape(s)
	}
	return strings.Join(parts, "/")
}
