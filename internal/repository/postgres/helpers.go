package postgres

import (
	"database/sql"
	"encoding/json"
	"fmt"
	"strings"
	"time"
)

// rowScanner is satisfied by *sql.Row and *sql.Rows.
type rowScanner interface {
	Scan(dest ...any) error
}

// setBuilder accumulates "col = $n" fragments for dynamic UPDATEs.
type setBuilder struct {
	sets []string
	args []any
}

func (b *setBuilder) add(col string, val any) {
	b.args = append(b.args, val)
	b.sets = append(b.sets, fmt.Sprintf("%s = $%d", col, len(b.args)))
}

// raw appends a fragment without a bind parameter.
func (b *setBuilder) raw(fragment string) {
	b.sets = append(b.sets, fragment)
}

// next returns the placeholder for the following argument and binds it.
func (b *setBuilder) next(val any) string {
	b.args = append(b.args, val)
	return fmt.Sprintf("$%d", len(b.args))
}

func (b *setBuilder) empty() bool { return len(b.sets) == 0 }

func joinComma(parts []string) string {
	return strings.Join(parts, ", ")
}

func strPtr(ns sql.NullString) *string {
	if !ns.Valid {
		return nil
	}
	s := ns.String
	return &s
}

func intPtr(ni sql.NullInt64) *int {
	if !ni.Valid {
		return nil
	}
	v := int(ni.Int64)
	return &v
}

func timePtr(nt sql.NullTime) *time.Time {
	if !nt.Valid {
		return nil
	}
	t := nt.Time
	return &t
}

func marshalFields(m map[string]string) ([]byte, error) {
	if m == nil {
		m = map[string]string{}
	}
	return json.Marshal(m)
}

func unmarshalFields(raw []byte) (map[string]string, error) {
	if len(raw) == 0 {
		return map[string]string{}, nil
	}
	var generic map[string]any
	if err := json.Unmarshal(raw, &generic); err != nil {
		return nil, fmt.Errorf("decode fields: %w", err)
	}
	m := make(map[string]string, len(generic))
	for k, v := range generic {
		switch tv := v.(type) {
		case nil:
		case string:
			m[k] = tv
		default:
			m[k] = fmt.Sprint(tv)
		}
	}
	return m, nil
}
