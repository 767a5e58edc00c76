package mapping

import (
	"bytes"
	"encoding/json"
	"fmt"

	"github.com/boddenberg/invoicing-bfa-go/internal/domain"
)

// ToPatch flattens an entity into its application-named fields.
// Numbers decode as json.Number so integer columns keep their precision.
func ToPatch(entity any) (domain.Patch, error) {
	raw, err := json.Marshal(entity)
	if err != nil {
		return nil, fmt.Errorf("encode entity: %w", err)
	}
	dec := json.NewDecoder(bytes.NewReader(raw))
	dec.UseNumber()
	var p domain.Patch
	if err := dec.Decode(&p); err != nil {
		return nil, fmt.Errorf("decode entity fields: %w", err)
	}
	return p, nil
}

// PatchRow translates the application keys of p into transport columns.
// Keys with no column (derived or nested fields such as items) are skipped,
// so only the fields present in p reach the remote store.
func PatchRow(t Table, p domain.Patch) Row {
	row := Row{}
	for k, v := range p {
		c, ok := t.ByApp(k)
		if !ok {
			continue
		}
		if value, keep := normalize(c, v); keep {
			row[c.Transport] = value
		}
	}
	return row
}

// EntityRow converts a whole entity into an insert row owned by userID.
func EntityRow(t Table, entity any, userID string) (Row, error) {
	p, err := ToPatch(entity)
	if err != nil {
		return nil, err
	}
	row := PatchRow(t, p)
	if t.Owner != "" {
		row[t.Owner] = userID
	}
	return row, nil
}

// ItemRows builds child rows for a document's line items, preserving order.
// Items without an id let the store generate one.
func ItemRows(t Table, parentID string, items []domain.LineItem) []Row {
	rows := make([]Row, 0, len(items))
	for i, it := range items {
		row := Row{
			t.Parent:      parentID,
			"position":    i,
			"description": it.Description,
			"quantity":    it.Quantity,
			"rate":        it.Rate,
		}
		if it.ID != "" {
			row["id"] = it.ID
		}
		rows = append(rows, row)
	}
	return rows
}

// SettingsRow builds the profile update for a settings patch: the named
// profile columns present in the patch plus the full merged settings blob.
func SettingsRow(patch domain.Patch, merged domain.Settings) (Row, error) {
	row := PatchRow(Profiles, patch)
	blob, err := ToPatch(merged)
	if err != nil {
		return nil, err
	}
	row[SettingsColumn] = map[string]any(blob)
	return row, nil
}

// normalize converts an application value into the transport representation
// of column c. It reports false when the key should be left out entirely.
func normalize(c Column, v any) (any, bool) {
	switch c.Kind {
	case KindInteger:
		switch n := v.(type) {
		case json.Number:
			if i, err := n.Int64(); err == nil {
				return i, true
			}
			f, _ := n.Float64()
			return int64(f), true
		case float64:
			return int64(n), true
		case int:
			return int64(n), true
		}
	case KindNumber:
		switch n := v.(type) {
		case json.Number:
			f, _ := n.Float64()
			return f, true
		case int:
			return float64(n), true
		case int64:
			return float64(n), true
		}
	case KindTimestamp:
		// Empty timestamps are left to the store default.
		if s, ok := v.(string); ok && s == "" {
			return nil, false
		}
	}
	if c.Nullable {
		if s, ok := v.(string); ok && s == "" {
			return nil, true
		}
	}
	return v, true
}
