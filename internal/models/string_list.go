package models

import (
	"database/sql/driver"

	"github.com/lib/pq"
)

// StringList is an ordered list of strings persisted as a Postgres text[] column.
type StringList []string

// Value implements driver.Valuer.
func (l StringList) Value() (driver.Value, error) {
	if l == nil {
		return pq.StringArray{}.Value()
	}
	return pq.StringArray(l).Value()
}

// Scan implements sql.Scanner.
func (l *StringList) Scan(src interface{}) error {
	var arr pq.StringArray
	if err := arr.Scan(src); err != nil {
		return err
	}
	if len(arr) == 0 {
		*l = nil
		return nil
	}
	*l = StringList(arr)
	return nil
}
