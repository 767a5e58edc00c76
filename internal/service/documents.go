package service

import (
	"context"
	"fmt"
	"net/http"
	"path"
	"strings"
	"time"

	"github.com/boddenberg/invoicing-bfa-go/internal/domain"
	"github.com/boddenberg/invoicing-bfa-go/internal/port"
	"github.com/boddenberg/invoicing-bfa-go/internal/state"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel/attribute"
	"go.uber.org/zap"
)

const (
	maxLogoBytes = 2 << 20
	defaultNotes = "Thank you for your business!"
)

// Documents creates and transitions invoices and quotations on top of the
// store, filling numbering and dates from the account settings.
type Documents struct {
	store  *Store
	blobs  port.BlobStorage
	now    func() time.Time
	newID  func() string
	logger *zap.Logger
}

// NewDocuments creates the document helpers. blobs may be nil when logo
// uploads are not configured.
func NewDocuments(store *Store, blobs port.BlobStorage, logger *zap.Logger) *Documents {
	return &Documents{store: store, blobs: blobs, now: time.Now, newID: uuid.NewString, logger: logger}
}

func (d *Documents) today() string { return domain.Today(d.now()) }

func (d *Documents) timestamp() string { return d.now().UTC().Format(time.RFC3339) }

func (d *Documents) freshItems(items []domain.LineItem) ([]domain.LineItem, error) {
	out := make([]domain.LineItem, len(items))
	for i, it := range items {
		if it.Quantity < 0 || it.Rate < 0 {
			return nil, &domain.ErrValidation{Field: fmt.Sprintf("items[%d]", i), Message: "quantity and rate must not be negative"}
		}
		it.ID = d.newID()
		out[i] = it
	}
	return out, nil
}

// ============================================================
// Invoices
// ============================================================

// NewInvoice fills the defaults of draft and adds it. Empty fields take the
// next number, today's date, a due date paymentTerms days out and the
// default currency.
func (d *Documents) NewInvoice(ctx context.Context, draft domain.Invoice) (domain.Invoice, error) {
	ctx, span := tracer.Start(ctx, "Documents.NewInvoice")
	defer span.End()

	var inv domain.Invoice
	next, err := d.store.Update(ctx, func(s state.State) ([]state.Action, error) {
		var err error
		inv, err = d.buildInvoice(s.Settings, draft)
		if err != nil {
			return nil, err
		}
		return []state.Action{state.NewAddInvoice(inv)}, nil
	})
	if err != nil {
		return domain.Invoice{}, err
	}
	span.SetAttributes(attribute.String("invoice.id", inv.ID))
	return storedInvoice(next, inv), nil
}

// DuplicateInvoice copies an invoice as a new draft with the next number and
// today's dates.
func (d *Documents) DuplicateInvoice(ctx context.Context, id string) (domain.Invoice, error) {
	ctx, span := tracer.Start(ctx, "Documents.DuplicateInvoice")
	defer span.End()

	var inv domain.Invoice
	next, err := d.store.Update(ctx, func(s state.State) ([]state.Action, error) {
		src, ok := s.FindInvoice(id)
		if !ok {
			return nil, &domain.ErrNotFound{Resource: "invoice", ID: id}
		}
		cp := src
		cp.InvoiceNumber = ""
		cp.Status = domain.InvoiceDraft
		cp.IssueDate = ""
		cp.DueDate = ""
		cp.PaidDate = nil

		var err error
		inv, err = d.buildInvoice(s.Settings, cp)
		if err != nil {
			return nil, err
		}
		return []state.Action{state.NewAddInvoice(inv)}, nil
	})
	if err != nil {
		return domain.Invoice{}, err
	}
	span.SetAttributes(attribute.String("invoice.id", inv.ID))
	return storedInvoice(next, inv), nil
}

func storedInvoice(next state.State, inv domain.Invoice) domain.Invoice {
	if stored, ok := next.FindInvoice(inv.ID); ok {
		return stored
	}
	return inv
}

// buildInvoice validates draft and fills its defaults from settings. It runs
// inside Store.Update so the number it takes is still the next one when the
// invoice lands.
func (d *Documents) buildInvoice(settings domain.Settings, draft domain.Invoice) (domain.Invoice, error) {
	inv := draft

	if inv.Status == "" {
		inv.Status = domain.InvoiceDraft
	}
	if !inv.Status.Valid() {
		return domain.Invoice{}, &domain.ErrValidation{Field: "status", Message: fmt.Sprintf("unknown invoice status %q", inv.Status)}
	}
	if inv.Currency == "" {
		inv.Currency = settings.DefaultCurrency
	}
	if !domain.SupportedCurrency(inv.Currency) {
		return domain.Invoice{}, &domain.ErrValidation{Field: "currency", Message: fmt.Sprintf("unsupported currency %q", inv.Currency)}
	}
	items, err := d.freshItems(inv.Items)
	if err != nil {
		return domain.Invoice{}, err
	}
	inv.Items = items

	inv.ID = d.newID()
	if inv.InvoiceNumber == "" {
		inv.InvoiceNumber = settings.NextInvoiceNumber()
	}
	if inv.IssueDate == "" {
		inv.IssueDate = d.today()
	}
	if inv.DueDate == "" {
		due, err := domain.AddDays(inv.IssueDate, settings.PaymentTerms)
		if err != nil {
			return domain.Invoice{}, err
		}
		inv.DueDate = due
	}
	if inv.TaxRate == 0 && !inv.EnableTax {
		inv.TaxRate = settings.DefaultTaxRate
	}
	if inv.BillingType == "" {
		inv.BillingType = domain.BillingQuantity
	}
	if inv.Notes == "" {
		inv.Notes = defaultNotes
	}
	if inv.Status == domain.InvoicePaid && inv.PaidDate == nil {
		today := d.today()
		inv.PaidDate = &today
	}
	inv.CreatedAt = d.timestamp()
	inv.Recalculate()
	return inv, nil
}

// SetInvoiceStatus moves an invoice to status. Marking it paid records
// today as the paid date.
func (d *Documents) SetInvoiceStatus(ctx context.Context, id string, status domain.InvoiceStatus) (domain.Invoice, error) {
	ctx, span := tracer.Start(ctx, "Documents.SetInvoiceStatus")
	defer span.End()

	if !status.Valid() {
		return domain.Invoice{}, &domain.ErrValidation{Field: "status", Message: fmt.Sprintf("unknown invoice status %q", status)}
	}
	if _, ok := d.store.State().FindInvoice(id); !ok {
		return domain.Invoice{}, &domain.ErrNotFound{Resource: "invoice", ID: id}
	}

	patch := domain.Patch{"id": id, "status": string(status)}
	if status == domain.InvoicePaid {
		patch["paidDate"] = d.today()
	}
	next := d.store.Dispatch(ctx, state.NewUpdate(state.UpdateInvoice, patch))
	inv, _ := next.FindInvoice(id)
	return inv, nil
}

// ============================================================
// Quotations
// ============================================================

// NewQuotation fills the defaults of draft and adds it. validUntil defaults
// to paymentTerms days after the issue date.
func (d *Documents) NewQuotation(ctx context.Context, draft domain.Quotation) (domain.Quotation, error) {
	ctx, span := tracer.Start(ctx, "Documents.NewQuotation")
	defer span.End()

	var q domain.Quotation
	next, err := d.store.Update(ctx, func(s state.State) ([]state.Action, error) {
		var err error
		q, err = d.buildQuotation(s.Settings, draft)
		if err != nil {
			return nil, err
		}
		return []state.Action{state.NewAddQuotation(q)}, nil
	})
	if err != nil {
		return domain.Quotation{}, err
	}
	if stored, ok := next.FindQuotation(q.ID); ok {
		q = stored
	}
	span.SetAttributes(attribute.String("quotation.id", q.ID))
	return q, nil
}

func (d *Documents) buildQuotation(settings domain.Settings, draft domain.Quotation) (domain.Quotation, error) {
	q := draft

	if q.Status == "" {
		q.Status = domain.QuotationDraft
	}
	if !q.Status.Valid() {
		return domain.Quotation{}, &domain.ErrValidation{Field: "status", Message: fmt.Sprintf("unknown quotation status %q", q.Status)}
	}
	if q.Currency == "" {
		q.Currency = settings.DefaultCurrency
	}
	if !domain.SupportedCurrency(q.Currency) {
		return domain.Quotation{}, &domain.ErrValidation{Field: "currency", Message: fmt.Sprintf("unsupported currency %q", q.Currency)}
	}
	items, err := d.freshItems(q.Items)
	if err != nil {
		return domain.Quotation{}, err
	}
	q.Items = items

	q.ID = d.newID()
	if q.QuotationNumber == "" {
		q.QuotationNumber = settings.NextQuotationNumber()
	}
	if q.IssueDate == "" {
		q.IssueDate = d.today()
	}
	if q.ValidUntil == "" {
		until, err := domain.AddDays(q.IssueDate, settings.PaymentTerms)
		if err != nil {
			return domain.Quotation{}, err
		}
		q.ValidUntil = until
	}
	if q.TaxRate == 0 && !q.EnableTax {
		q.TaxRate = settings.DefaultTaxRate
	}
	if q.BillingType == "" {
		q.BillingType = domain.BillingQuantity
	}
	q.CreatedAt = d.timestamp()
	q.Recalculate()
	return q, nil
}

// SetQuotationStatus moves a quotation to status.
func (d *Documents) SetQuotationStatus(ctx context.Context, id string, status domain.QuotationStatus) (domain.Quotation, error) {
	ctx, span := tracer.Start(ctx, "Documents.SetQuotationStatus")
	defer span.End()

	if !status.Valid() {
		return domain.Quotation{}, &domain.ErrValidation{Field: "status", Message: fmt.Sprintf("unknown quotation status %q", status)}
	}
	if _, ok := d.store.State().FindQuotation(id); !ok {
		return domain.Quotation{}, &domain.ErrNotFound{Resource: "quotation", ID: id}
	}

	next := d.store.Dispatch(ctx, state.NewUpdate(state.UpdateQuotation, domain.Patch{"id": id, "status": string(status)}))
	q, _ := next.FindQuotation(id)
	return q, nil
}

// ConvertQuotation issues a draft invoice from a quotation and marks the
// quotation accepted. Both land in one store update, so a quotation is
// converted at most once.
func (d *Documents) ConvertQuotation(ctx context.Context, id string) (domain.Invoice, error) {
	ctx, span := tracer.Start(ctx, "Documents.ConvertQuotation")
	defer span.End()

	var inv domain.Invoice
	next, err := d.store.Update(ctx, func(s state.State) ([]state.Action, error) {
		q, ok := s.FindQuotation(id)
		if !ok {
			return nil, &domain.ErrNotFound{Resource: "quotation", ID: id}
		}
		if q.Status == domain.QuotationAccepted {
			return nil, &domain.ErrConflict{Message: "quotation already accepted"}
		}

		var err error
		inv, err = d.buildInvoice(s.Settings, domain.Invoice{
			ClientID:       q.ClientID,
			BankAccountID:  q.BankAccountID,
			Status:         domain.InvoiceDraft,
			Items:          q.Items,
			EnableTax:      q.EnableTax,
			TaxRate:        q.TaxRate,
			EnableDiscount: q.EnableDiscount,
			Discount:       q.Discount,
			Currency:       q.Currency,
			BillingType:    q.BillingType,
			Notes:          q.Notes,
			Terms:          q.Terms,
		})
		if err != nil {
			return nil, err
		}
		return []state.Action{
			state.NewAddInvoice(inv),
			state.NewUpdate(state.UpdateQuotation, domain.Patch{"id": id, "status": string(domain.QuotationAccepted)}),
		}, nil
	})
	if err != nil {
		return domain.Invoice{}, err
	}
	span.SetAttributes(attribute.String("invoice.id", inv.ID))
	return storedInvoice(next, inv), nil
}

// ============================================================
// Logo
// ============================================================

var logoExtensions = map[string]string{
	"image/png":  ".png",
	"image/jpeg": ".jpg",
	"image/gif":  ".gif",
	"image/webp": ".webp",
}

// UploadLogo stores an image under the user's folder and points the
// business logo setting at its public URL.
func (d *Documents) UploadLogo(ctx context.Context, filename string, content []byte) (string, error) {
	ctx, span := tracer.Start(ctx, "Documents.UploadLogo")
	defer span.End()

	if d.blobs == nil {
		return "", &domain.ErrValidation{Field: "logo", Message: "file storage is not configured"}
	}
	user, err := d.store.currentUser()
	if err != nil {
		return "", err
	}
	if len(content) == 0 {
		return "", &domain.ErrValidation{Field: "logo", Message: "file is empty"}
	}
	if len(content) > maxLogoBytes {
		return "", &domain.ErrValidation{Field: "logo", Message: "image size should be less than 2MB"}
	}

	contentType := http.DetectContentType(content)
	ext, ok := logoExtensions[contentType]
	if !ok {
		return "", &domain.ErrValidation{Field: "logo", Message: "please select an image file"}
	}
	if strings.EqualFold(path.Ext(filename), ".jpeg") && ext == ".jpg" {
		ext = ".jpeg"
	}

	key := fmt.Sprintf("%s/logo-%s%s", user.ID, d.newID(), ext)
	span.SetAttributes(attribute.String("blob.key", key))
	if err := d.blobs.Upload(ctx, key, contentType, content); err != nil {
		d.logger.Error("documents: logo upload failed",
			zap.String("user_id", user.ID),
			zap.Error(err),
		)
		return "", err
	}

	url := d.blobs.PublicURL(key)
	d.store.Dispatch(ctx, state.NewUpdateSettings(domain.Patch{"businessLogo": url}))
	return url, nil
}

// RemoveLogo clears the business logo setting. The stored file is kept.
func (d *Documents) RemoveLogo(ctx context.Context) {
	d.store.Dispatch(ctx, state.NewUpdateSettings(domain.Patch{"businessLogo": nil}))
}
