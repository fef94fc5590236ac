package pipeline

import (
	"encoding/json"
	"strings"

	"github.com/paperchat/paperchat/internal/storage"
)

type entityRecord struct {
	Type  string `json:"type"`
	Text  string `json:"text"`
	Count int    `json:"count"`
}

// parseEntities decodes the model's entity listing. Models wrap JSON in
// markdown fences or chatter around it, so the parser slices out the
// outermost array before decoding. Returns ok=false when no valid array
// can be recovered; missing fields fall back to type "unknown" and count 1.
func parseEntities(raw string) ([]storage.ExtractedEntity, bool) {
	s := strings.TrimSpace(raw)
	start := strings.Index(s, "[")
	end := strings.LastIndex(s, "]")
	if start < 0 || end <= start {
		return nil, false
	}

	var records []entityRecord
	if err := json.Unmarshal([]byte(s[start:end+1]), &records); err != nil {
		return nil, false
	}

	entities := make([]storage.ExtractedEntity, 0, len(records))
	for _, r := range records {
		typ := r.Type
		if typ == "" {
			typ = "unknown"
		}
		count := r.Count
		if count <= 0 {
			count = 1
		}
		entities = append(entities, storage.ExtractedEntity{
			Type:  typ,
			Text:  r.Text,
			Count: count,
		})
	}
	return entities, true
}
