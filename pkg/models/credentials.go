package models

import (
	"fmt"
	"strings"
)

// Credential is the single normalized shape for skills and certifications.
// Upstream data carries these inconsistently (plain strings in older rows,
// labeled objects in newer ones); normalization happens here, at the
// ingestion boundary, so the scoring loop never re-parses.
type Credential struct {
	ID    string `json:"id"`
	Label string `json:"label,omitempty"`
}

// NormalizeCredential converts a raw skill/certification value into a
// Credential. Accepted shapes: Credential, plain string, or a map carrying
// "id" and/or "label"/"name" keys.
func NormalizeCredential(raw any) (Credential, error) {
	switch v := raw.(type) {
	case Credential:
		if v.ID == "" {
			v.ID = slugify(v.Label)
		}
		if v.ID == "" {
			return Credential{}, &ValidationError{Field: "credential", Reason: "empty credential"}
		}
		return v, nil
	case string:
		if strings.TrimSpace(v) == "" {
			return Credential{}, &ValidationError{Field: "credential", Reason: "empty credential"}
		}
		return Credential{ID: slugify(v), Label: v}, nil
	case map[string]any:
		id, _ := v["id"].(string)
		label, _ := v["label"].(string)
		if label == "" {
			label, _ = v["name"].(string)
		}
		if id == "" {
			id = slugify(label)
		}
		if id == "" {
			return Credential{}, &ValidationError{Field: "credential", Reason: "credential object missing id and label"}
		}
		return Credential{ID: id, Label: label}, nil
	default:
		return Credential{}, &ValidationError{Field: "credential", Reason: fmt.Sprintf("unsupported credential shape %T", raw)}
	}
}

// NormalizeCredentialList normalizes a mixed-shape list, dropping entries
// that cannot be normalized rather than failing the whole list.
func NormalizeCredentialList(raw []any) []Credential {
	out := make([]Credential, 0, len(raw))
	for _, r := range raw {
		c, err := NormalizeCredential(r)
		if err != nil {
			continue
		}
		out = append(out, c)
	}
	return out
}

func slugify(s string) string {
	s = strings.ToLower(strings.TrimSpace(s))
	var b strings.Builder
	pending := false
	for _, r := range s {
		if r >= 'a' && r <= 'z' || r >= '0' && r <= '9' {
			if pending && b.Len() > 0 {
				b.WriteByte('_')
			}
			pending = false
			b.WriteRune(r)
		} else {
			pending = true
		}
	}
	return b.String()
}
