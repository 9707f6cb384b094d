package actions

import (
	"context"
	"mime"
	"net/http"
	"regexp"
	"time"

	"portal/internal/session"
	"portal/internal/storage"
)

func (s *Service) Invoices(ctx context.Context, jar *session.Cookies) Result {
	return s.run(ctx, jar, call{
		name:     "get_invoices",
		method:   http.MethodGet,
		endpoint: "invoices",
		fallback: "Failed to get invoices",
	})
}

func (s *Service) InvoicesByOrganization(ctx context.Context, jar *session.Cookies, organizationID string) Result {
	return s.run(ctx, jar, call{
		name:     "get_organization_invoices",
		method:   http.MethodGet,
		endpoint: "invoices/organization/" + segment(organizationID),
		fallback: "Failed to get organization invoices",
	})
}

func (s *Service) Invoice(ctx context.Context, jar *session.Cookies, id string) Result {
	return s.run(ctx, jar, call{
		name:     "get_invoice",
		method:   http.MethodGet,
		endpoint: "invoices/" + segment(id),
		fallback: "Failed to get invoice",
	})
}

// InvoiceDownload is the data of a successful DownloadInvoice. Exactly one of URL and Content is set.
type InvoiceDownload struct {
	Filename    string     `json:"filename"`
	ContentType string     `json:"content_type"`
	Size        int        `json:"size"`
	URL         string     `json:"url,omitempty"`
	ExpiresAt   *time.Time `json:"expires_at,omitempty"`
	Content     []byte     `json:"content,omitempty"`
}

// DownloadInvoice fetches the invoice document. With an archive configured the document is
// stored there and a presigned URL is returned; otherwise it is returned inline.
func (s *Service) DownloadInvoice(ctx context.Context, jar *session.Cookies, id string) Result {
	const name = "download_invoice"

	token, found := s.sessions.BearerToken(ctx, jar)
	if !found {
		return s.fail(ctx, name, noToken())
	}

	resp, err := s.backend.Download(ctx, "invoices/"+segment(id)+"/download", token)
	if err != nil {
		return s.fail(ctx, name, unexpected(err))
	}
	if !resp.OK() {
		return s.fail(ctx, name, rejected(resp, "Failed to download invoice"))
	}

	contentType := resp.Header.Get("Content-Type")
	if contentType == "" {
		contentType = "application/pdf"
	}
	dl := InvoiceDownload{
		Filename:    attachmentName(resp.Header.Get("Content-Disposition"), "invoice-"+id+".pdf"),
		ContentType: contentType,
		Size:        len(resp.Body),
	}

	if s.archive != nil {
		link, expires, err := s.archiveInvoice(ctx, id, dl.Filename, contentType, resp.Body)
		if err == nil {
			dl.URL = link
			dl.ExpiresAt = &expires
			return ok(dl, "Invoice downloaded successfully")
		}
		s.logger.WarnContext(ctx, "invoice archive unavailable, returning inline", "invoice_id", id, "error", err)
	}

	dl.Content = resp.Body
	return ok(dl, "Invoice downloaded successfully")
}

func (s *Service) archiveInvoice(ctx context.Context, id, filename, contentType string, body []byte) (string, time.Time, error) {
	key := storage.InvoiceKey(id, filename)
	if err := s.archive.Put(ctx, key, contentType, body); err != nil {
		return "", time.Time{}, err
	}
	link, err := s.archive.PresignedDownloadURL(ctx, key, s.urlTTL)
	if err != nil {
		return "", time.Time{}, err
	}
	return link, time.Now().Add(s.urlTTL).UTC(), nil
}

var filenamePattern = regexp.MustCompile(`filename="?([^";]+)"?`)

// attachmentName extracts the filename from a Content-Disposition header.
func attachmentName(disposition, fallback string) string {
	if disposition == "" {
		return fallback
	}
	if _, params, err := mime.ParseMediaType(disposition); err == nil && params["filename"] != "" {
		return params["filename"]
	}
	if m := filenamePattern.FindStringSubmatch(disposition); m != nil {
		return m[1]
	}
	return fallback
}

func (s *Service) MarkInvoicePaid(ctx context.Context, jar *session.Cookies, id string) Result {
	return s.run(ctx, jar, call{
		name:     "mark_invoice_paid",
		method:   http.MethodPost,
		endpoint: "invoices/" + segment(id) + "/mark-paid",
		fallback: "Failed to mark invoice as paid",
		success:  "Invoice marked as paid successfully",
	})
}

func (s *Service) SendInvoiceReminder(ctx context.Context, jar *session.Cookies, id string) Result {
	return s.run(ctx, jar, call{
		name:     "send_invoice_reminder",
		method:   http.MethodPost,
		endpoint: "invoices/" + segment(id) + "/send-reminder",
		fallback: "Failed to send invoice reminder",
		success:  "Invoice reminder sent successfully",
	})
}
