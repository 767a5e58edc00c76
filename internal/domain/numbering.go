package domain

import (
	"fmt"
	"time"
)

// DateLayout is the calendar date format used by every date field.
const DateLayout = "2006-01-02"

// FormatDocumentNumber renders PREFIX-NNNN with at least four digits.
func FormatDocumentNumber(prefix string, n int) string {
	return fmt.Sprintf("%s-%04d", prefix, n)
}

// NextInvoiceNumber is the number the next ADD_INVOICE should carry.
func (s Settings) NextInvoiceNumber() string {
	return FormatDocumentNumber(s.InvoicePrefix, s.InvoiceNextNumber)
}

// NextQuotationNumber is the number the next ADD_QUOTATION should carry.
func (s Settings) NextQuotationNumber() string {
	return FormatDocumentNumber(s.QuotationPrefix, s.QuotationNextNumber)
}

// Today formats now as a calendar date.
func Today(now time.Time) string {
	return now.Format(DateLayout)
}

// AddDays returns date shifted by days.
func AddDays(date string, days int) (string, error) {
	t, err := time.Parse(DateLayout, date)
	if err != nil {
		return "", &ErrValidation{Field: "date", Message: fmt.Sprintf("invalid date %q", date)}
	}
	return t.AddDate(0, 0, days).Format(DateLayout), nil
}

// FormatDuration renders seconds as HH:MM:SS.
func FormatDuration(seconds int64) string {
	if seconds < 0 {
		seconds = 0
	}
	return fmt.Sprintf("%02d:%02d:%02d", seconds/3600, (seconds%3600)/60, seconds%60)
}
