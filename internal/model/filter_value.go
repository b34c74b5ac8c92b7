package model

import (
	"database/sql/driver"
	"strconv"

	"gorm.io/datatypes"
	"gorm.io/gorm"
	"gorm.io/gorm/schema"
)

// FilterValue is a section's raw filter argument kept as JSON in a text
// column. A JSON-typed column would let SQLite coerce a bare id such as 7
// to an integer, which datatypes.JSON cannot scan back.
type FilterValue datatypes.JSON

func (FilterValue) GormDataType() string { return "text" }

func (FilterValue) GormDBDataType(*gorm.DB, *schema.Field) string { return "text" }

func (v FilterValue) Value() (driver.Value, error) {
	return datatypes.JSON(v).Value()
}

// Scan also accepts numbers, which rows written into a JSON-typed column
// hold for scalar ids.
func (v *FilterValue) Scan(src any) error {
	switch n := src.(type) {
	case int64:
		*v = FilterValue(strconv.FormatInt(n, 10))
		return nil
	case float64:
		*v = FilterValue(strconv.FormatFloat(n, 'f', -1, 64))
		return nil
	}
	return (*datatypes.JSON)(v).Scan(src)
}

func (v FilterValue) MarshalJSON() ([]byte, error) {
	return datatypes.JSON(v).MarshalJSON()
}

func (v *FilterValue) UnmarshalJSON(b []byte) error {
	return (*datatypes.JSON)(v).UnmarshalJSON(b)
}

func (v FilterValue) String() string { return string(v) }

