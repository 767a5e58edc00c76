package sqlgen

import (
	"github.com/boddenberg/invoicing-bfa-go/internal/domain"
	"github.com/boddenberg/invoicing-bfa-go/internal/mapping"
	"github.com/boddenberg/invoicing-bfa-go/internal/port"
)

// Mutation builds the statements applying m on behalf of m.Owner. Updates and
// deletes must be filtered on a known column; every statement is narrowed to
// rows the owner holds.
func Mutation(d Dialect, m port.Mutation) ([]Statement, error) {
	t, ok := mapping.Lookup(m.Table)
	if !ok {
		return nil, &domain.ErrValidation{Field: "table", Message: "unknown table " + m.Table}
	}
	if err := m.CheckOwner(t); err != nil {
		return nil, err
	}

	switch m.Op {
	case port.OpInsert:
		stmts, err := Insert(d, t, m.Rows)
		if err != nil || len(stmts) == 0 || t.Parent == "" {
			return stmts, err
		}
		guard, err := ParentGuard(d, t, m.Rows, m.Owner)
		if err != nil {
			return nil, err
		}
		return append([]Statement{guard}, stmts...), nil
	case port.OpUpdate:
		if len(m.Rows) != 1 {
			return nil, &domain.ErrValidation{Field: "rows", Message: "update needs exactly one row"}
		}
		if err := checkFilter(t, m.Filter); err != nil {
			return nil, err
		}
		st, err := Update(d, t, m.Rows[0], m.Filter.Column, m.Filter.Value, m.Owner)
		if err != nil {
			return nil, err
		}
		return []Statement{st}, nil
	case port.OpDelete:
		if err := checkFilter(t, m.Filter); err != nil {
			return nil, err
		}
		st, err := Delete(d, t, m.Filter.Column, m.Filter.Value, m.Owner)
		if err != nil {
			return nil, err
		}
		return []Statement{st}, nil
	default:
		return nil, &domain.ErrValidation{Field: "op", Message: "unknown op " + string(m.Op)}
	}
}

func checkFilter(t mapping.Table, f port.Filter) error {
	if _, ok := t.ByTransport(f.Column); !ok || f.Value == "" {
		return &domain.ErrValidation{Field: "filter", Message: "writes must filter on a known column"}
	}
	return nil
}

// CheckGuard compares the count a guard statement returned with its
// expectation.
func CheckGuard(st Statement, count int64) error {
	if count != int64(st.Expect) {
		return &domain.ErrUnauthorized{Message: "line items must belong to a document of the writing account"}
	}
	return nil
}
