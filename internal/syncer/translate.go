// Package syncer mirrors dispatched actions to the remote store.
// Translate turns an action into an ordered batch of mutations; the Outbox
// applies batches asynchronously and never reports failures to the caller.
package syncer

import (
	"encoding/json"
	"fmt"

	"github.com/boddenberg/invoicing-bfa-go/internal/domain"
	"github.com/boddenberg/invoicing-bfa-go/internal/mapping"
	"github.com/boddenberg/invoicing-bfa-go/internal/port"
	"github.com/boddenberg/invoicing-bfa-go/internal/state"
)

// Batch is the ordered list of mutations produced by one action.
type Batch struct {
	Action    state.ActionType
	UserID    string
	Mutations []port.Mutation
}

// Empty reports whether the batch has nothing to write.
func (b Batch) Empty() bool { return len(b.Mutations) == 0 }

var totalsColumns = []string{"subtotal", "tax_amount", "discount_amount", "total"}

// Translate derives the remote writes for action a. next is the state after
// the reduction; userID is the user that was signed in before it.
// Actions that carry no remote effect, or any action without a user, yield
// an empty batch.
func Translate(a state.Action, next state.State, userID string) (Batch, error) {
	b := Batch{Action: a.Type, UserID: userID}
	if userID == "" {
		return b, nil
	}

	var err error
	switch a.Type {
	case state.AddClient:
		err = b.insert(mapping.Clients, a.Payload)
	case state.AddExpense:
		err = b.insert(mapping.Expenses, a.Payload)
	case state.AddTimeEntry:
		err = b.insert(mapping.TimeEntries, a.Payload)
	case state.AddBankAccount:
		err = b.insert(mapping.BankAccounts, a.Payload)
	case state.AddInvoice:
		inv, ok := a.Payload.(domain.Invoice)
		if !ok {
			return b, payloadError(a)
		}
		if stored, found := next.FindInvoice(inv.ID); found {
			inv = stored
		}
		if err = b.insert(mapping.Invoices, inv); err == nil {
			b.insertItems(mapping.InvoiceItems, inv.ID, inv.Items)
		}
	case state.AddQuotation:
		q, ok := a.Payload.(domain.Quotation)
		if !ok {
			return b, payloadError(a)
		}
		if stored, found := next.FindQuotation(q.ID); found {
			q = stored
		}
		if err = b.insert(mapping.Quotations, q); err == nil {
			b.insertItems(mapping.QuotationItems, q.ID, q.Items)
		}

	case state.UpdateClient:
		err = b.update(mapping.Clients, a.Payload, nil)
	case state.UpdateExpense:
		err = b.update(mapping.Expenses, a.Payload, nil)
	case state.UpdateTimeEntry:
		err = b.update(mapping.TimeEntries, a.Payload, nil)
	case state.UpdateBankAccount:
		err = b.update(mapping.BankAccounts, a.Payload, nil)
	case state.UpdateInvoice:
		err = b.update(mapping.Invoices, a.Payload, func(id string) (any, []domain.LineItem, bool) {
			inv, ok := next.FindInvoice(id)
			return inv, inv.Items, ok
		})
	case state.UpdateQuotation:
		err = b.update(mapping.Quotations, a.Payload, func(id string) (any, []domain.LineItem, bool) {
			q, ok := next.FindQuotation(id)
			return q, q.Items, ok
		})

	case state.DeleteClient:
		err = b.delete(mapping.Clients, a.Payload)
	case state.DeleteInvoice:
		err = b.delete(mapping.Invoices, a.Payload)
	case state.DeleteQuotation:
		err = b.delete(mapping.Quotations, a.Payload)
	case state.DeleteExpense:
		err = b.delete(mapping.Expenses, a.Payload)
	case state.DeleteTimeEntry:
		err = b.delete(mapping.TimeEntries, a.Payload)
	case state.DeleteBankAccount:
		err = b.delete(mapping.BankAccounts, a.Payload)

	case state.UpdateSettings:
		p, ok := a.Payload.(domain.Patch)
		if !ok {
			return b, payloadError(a)
		}
		row, rerr := mapping.SettingsRow(p, next.Settings)
		if rerr != nil {
			return b, rerr
		}
		b.Mutations = append(b.Mutations, port.Mutation{
			Op:     port.OpUpdate,
			Table:  mapping.Profiles.Name,
			Filter: port.Filter{Column: "id", Value: userID},
			Rows:   []mapping.Row{row},
		})
	}
	for i := range b.Mutations {
		b.Mutations[i].Owner = userID
	}
	return b, err
}

func payloadError(a state.Action) error {
	return &domain.ErrValidation{Field: "payload", Message: fmt.Sprintf("unexpected payload %T for %s", a.Payload, a.Type)}
}

func (b *Batch) insert(t mapping.Table, entity any) error {
	row, err := mapping.EntityRow(t, entity, b.UserID)
	if err != nil {
		return err
	}
	b.Mutations = append(b.Mutations, port.Mutation{Op: port.OpInsert, Table: t.Name, Rows: []mapping.Row{row}})
	return nil
}

func (b *Batch) insertItems(t mapping.Table, parentID string, items []domain.LineItem) {
	if len(items) == 0 {
		return
	}
	b.Mutations = append(b.Mutations, port.Mutation{
		Op:    port.OpInsert,
		Table: t.Name,
		Rows:  mapping.ItemRows(t, parentID, items),
	})
}

// lookup returns the post-update document and its items.
type lookup func(id string) (doc any, items []domain.LineItem, found bool)

// update sends only the patched columns. For documents, patched totals are
// dropped and the recomputed ones resent whenever the patch touched a totals
// input or a total; a patch carrying items replaces the children wholesale:
// delete by parent id, then insert.
func (b *Batch) update(t mapping.Table, payload any, doc lookup) error {
	p, ok := payload.(domain.Patch)
	if !ok || p.ID() == "" {
		return &domain.ErrValidation{Field: "payload", Message: "update requires a patch with an id"}
	}
	id := p.ID()
	row := mapping.PatchRow(t, p)
	delete(row, "id")

	var items []domain.LineItem
	if doc != nil {
		for _, col := range totalsColumns {
			delete(row, col)
		}
		entity, docItems, found := doc(id)
		if found && (p.AffectsTotals() || p.SetsDerived()) {
			full, err := mapping.EntityRow(t, entity, b.UserID)
			if err != nil {
				return err
			}
			for _, col := range totalsColumns {
				row[col] = full[col]
			}
		}
		if p.Has("items") {
			if found {
				items = docItems
			} else {
				var err error
				if items, err = decodeItems(p["items"]); err != nil {
					return err
				}
			}
		}
	}

	if len(row) > 0 {
		b.Mutations = append(b.Mutations, port.Mutation{
			Op:     port.OpUpdate,
			Table:  t.Name,
			Filter: port.Filter{Column: "id", Value: id},
			Rows:   []mapping.Row{row},
		})
	}
	if doc != nil && p.Has("items") {
		child := mapping.InvoiceItems
		if t.Name == mapping.Quotations.Name {
			child = mapping.QuotationItems
		}
		b.Mutations = append(b.Mutations, port.Mutation{
			Op:     port.OpDelete,
			Table:  child.Name,
			Filter: port.Filter{Column: child.Parent, Value: id},
		})
		b.insertItems(child, id, items)
	}
	return nil
}

func (b *Batch) delete(t mapping.Table, payload any) error {
	id, ok := payload.(string)
	if !ok || id == "" {
		return &domain.ErrValidation{Field: "payload", Message: "delete requires an id"}
	}
	b.Mutations = append(b.Mutations, port.Mutation{
		Op:     port.OpDelete,
		Table:  t.Name,
		Filter: port.Filter{Column: "id", Value: id},
	})
	return nil
}

func decodeItems(v any) ([]domain.LineItem, error) {
	raw, err := json.Marshal(v)
	if err != nil {
		return nil, err
	}
	var items []domain.LineItem
	if err := json.Unmarshal(raw, &items); err != nil {
		return nil, &domain.ErrValidation{Field: "items", Message: err.Error()}
	}
	return items, nil
}
