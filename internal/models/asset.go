package models

// AssetRecord is the canonical asset entity. ID is the only value used to
// address a record in the repository and is immutable after creation, as is
// CreatedAt (milliseconds since epoch). History is append-only.
type AssetRecord struct {
	ID           string         `json:"id" dynamodbav:"id"`
	Model        string         `json:"model" dynamodbav:"model"`
	SerialNumber string         `json:"serialNumber" dynamodbav:"serialNumber"`
	Site         string         `json:"site" dynamodbav:"site"`
	Country      string         `json:"country,omitempty" dynamodbav:"country"`
	Comments     string         `json:"comments,omitempty" dynamodbav:"comments"`
	Status       Status         `json:"status" dynamodbav:"status"`
	CreatedAt    int64          `json:"createdAt" dynamodbav:"createdAt"`
	History      []HistoryEntry `json:"history" dynamodbav:"history"`
}

// HistoryEntry records a single field's value transition. OldValue is nil
// only for the initial creation entry.
type HistoryEntry struct {
	Timestamp int64   `json:"timestamp" dynamodbav:"timestamp"`
	Field     string  `json:"field" dynamodbav:"field"`
	OldValue  *string `json:"oldValue" dynamodbav:"oldValue"`
	NewValue  string  `json:"newValue" dynamodbav:"newValue"`
}

// AssetPatch is the closed set of fields an update may touch. ID, CreatedAt
// and History are not part of the patch surface on purpose.
type AssetPatch struct {
	Model        *string `json:"model,omitempty"`
	SerialNumber *string `json:"serialNumber,omitempty"`
	Site         *string `json:"site,omitempty"`
	Country      *string `json:"country,omitempty"`
	Comments     *string `json:"comments,omitempty"`
	Status       *Status `json:"status,omitempty"`
}

// IsZero reports whether the patch carries no fields at all.
func (p AssetPatch) IsZero() bool {
	return p.Model == nil && p.SerialNumber == nil && p.Site == nil &&
		p.Country == nil && p.Comments == nil && p.Status == nil
}

// Clone returns a copy of the record with its own history slice, so callers
// can extend the history without aliasing the original.
func (a AssetRecord) Clone() AssetRecord {
	out := a
	out.History = make([]HistoryEntry, len(a.History))
	copy(out.History, a.History)
	return out
}

// ApplyDefaults fills in values older backend records may omit: an
// unset/unknown status becomes Normal and a nil history becomes empty.
func (a *AssetRecord) ApplyDefaults() {
	if _, ok := ParseStatus(string(a.Status)); !ok {
		a.Status = StatusNormal
	}
	if a.History == nil {
		a.History = []HistoryEntry{}
	}
}
