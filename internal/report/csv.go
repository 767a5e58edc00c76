package report

import (
	"encoding/csv"
	"fmt"
	"io"
	"strconv"

	"github.com/boddenberg/invoicing-bfa-go/internal/state"
)

// CSVHeader is the first row of every export.
var CSVHeader = []string{"Type", "Date", "Description", "Amount", "Status"}

// WriteCSV writes invoices then expenses as one financial report.
func WriteCSV(w io.Writer, s state.State) error {
	cw := csv.NewWriter(w)
	defer cw.Flush()

	if err := cw.Write(CSVHeader); err != nil {
		return err
	}

	for _, inv := range s.Invoices {
		row := []string{
			"Invoice",
			inv.IssueDate,
			fmt.Sprintf("%s - %s", inv.InvoiceNumber, ClientName(s, inv.ClientID)),
			formatAmount(inv.Total),
			string(inv.Status),
		}
		if err := cw.Write(row); err != nil {
			return err
		}
	}

	for _, e := range s.Expenses {
		row := []string{"Expense", e.Date, e.Description, formatAmount(e.Amount), "Paid"}
		if err := cw.Write(row); err != nil {
			return err
		}
	}

	cw.Flush()
	return cw.Error()
}

func formatAmount(v float64) string {
	return strconv.FormatFloat(v, 'f', -1, 64)
}
