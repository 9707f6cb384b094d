package apiclient

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"mime"
	"net/http"
	"strings"

	"portal/internal/upstream"
)

// Invoices returns one page of the caller's invoices.
func (c *Client) Invoices(ctx context.Context, page, limit int) (*Page[Invoice], error) {
	return paged[Invoice](ctx, c, "invoices", page, limit)
}

func (c *Client) InvoicesByOrganization(ctx context.Context, organizationID string) ([]Invoice, error) {
	return list[Invoice](ctx, c, "invoices/organization/"+segment(organizationID))
}

func (c *Client) Invoice(ctx context.Context, id string) (*Invoice, error) {
	return one[Invoice](ctx, c, http.MethodGet, "invoices/"+segment(id), nil)
}

// DownloadInvoice fetches the invoice document.
func (c *Client) DownloadInvoice(ctx context.Context, id string) (*InvoiceFile, error) {
	resp, err := c.Download(ctx, "invoices/"+segment(id)+"/download")
	if err != nil {
		return nil, err
	}

	file := &InvoiceFile{
		Filename:    "invoice-" + id + ".pdf",
		ContentType: resp.Header.Get("Content-Type"),
		Content:     resp.Body,
	}
	if _, params, err := mime.ParseMediaType(resp.Header.Get("Content-Disposition")); err == nil && params["filename"] != "" {
		file.Filename = params["filename"]
	}
	return file, nil
}

// Health calls the backend's unversioned /health endpoint.
func (c *Client) Health(ctx context.Context) (*HealthStatus, error) {
	base, err := c.resolver.BaseURL(ctx)
	if err != nil {
		return nil, err
	}
	origin := strings.TrimSuffix(base, upstream.APIPath)

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, origin+"/health", nil)
	if err != nil {
		return nil, err
	}
	resp, err := c.http.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		io.Copy(io.Discard, resp.Body)
		return nil, fmt.Errorf("health check returned status %d", resp.StatusCode)
	}

	var status HealthStatus
	if err := json.NewDecoder(resp.Body).Decode(&status); err != nil {
		return nil, fmt.Errorf("decode health: %w", err)
	}
	return &status, nil
}
