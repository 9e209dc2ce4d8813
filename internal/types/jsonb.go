package types

import (
	"database/sql"
	"database/sql/driver"
	"encoding/json"
	"fmt"
)

var (
	_ sql.Scanner   = (*StoredPreferences)(nil)
	_ driver.Valuer = StoredPreferences{}
	_ sql.Scanner   = (*PushSubscription)(nil)
	_ driver.Valuer = PushSubscription{}
)

// scanJSONB decodes a JSONB column value. Drivers hand back either []byte or
// string depending on the wire format.
func scanJSONB(dest any, value any) error {
	var data []byte
	switch v := value.(type) {
	case nil:
		return nil
	case []byte:
		data = v
	case string:
		data = []byte(v)
	default:
		return fmt.Errorf("jsonb: unsupported scan type %T", value)
	}
	if len(data) == 0 {
		return nil
	}
	return json.Unmarshal(data, dest)
}

// Scan implements sql.Scanner.
func (p *StoredPreferences) Scan(value any) error {
	type alias StoredPreferences
	return scanJSONB((*alias)(p), value)
}

// Value implements driver.Valuer.
func (p StoredPreferences) Value() (driver.Value, error) {
	type alias StoredPreferences
	return json.Marshal(alias(p))
}

// Scan implements sql.Scanner.
func (s *PushSubscription) Scan(value any) error {
	type alias PushSubscription
	return scanJSONB((*alias)(s), value)
}

// Value implements driver.Valuer.
func (s PushSubscription) Value() (driver.Value, error) {
	type alias PushSubscription
	return json.Marshal(alias(s))
}
