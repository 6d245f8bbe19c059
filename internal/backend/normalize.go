package backend

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/mitchellh/mapstructure"

	"github.com/BTreeMap/LeadPipe/internal/models"
)

var (
	leadTypeKeys      = []string{"lead_types", "leadTypes", "leadtypes", "lead_types_options"}
	serviceKeys       = []string{"service_types", "serviceTypes", "services", "treatments", "treatmentOptions"}
	faqKeys           = []string{"faqs", "FAQs", "faq", "questions"}
	treatmentPlanKeys = []string{"treatment_plans", "treatmentPlans"}
)

// NormalizeContext converts the backend's context JSON into a typed Context. The payload may be
// wrapped in a "data" object and uses several spellings for the same lists.
func NormalizeContext(userID string, raw map[string]any) (*models.Context, error) {
	src := raw
	if inner, ok := raw["data"].(map[string]any); ok {
		src = inner
	}

	c := &models.Context{
		UserID:      userID,
		Profession:  profession(src),
		Integration: models.DefaultIntegration(),
	}
	c.LeadTypes = leadTypes(firstPresent(src, leadTypeKeys))
	c.Services = services(firstPresent(src, serviceKeys))

	if v := firstPresent(src, faqKeys); v != nil {
		if err := decode(v, &c.FAQs); err != nil {
			return nil, fmt.Errorf("failed to decode faqs: %w", err)
		}
	}
	if v, ok := src["integration"].(map[string]any); ok {
		if err := decode(v, &c.Integration); err != nil {
			return nil, fmt.Errorf("failed to decode integration: %w", err)
		}
	}
	if v := firstPresent(src, treatmentPlanKeys); v != nil {
		if err := decode(v, &c.TreatmentPlans); err != nil {
			return nil, fmt.Errorf("failed to decode treatment plans: %w", err)
		}
	}
	if v, ok := src["workflows"].([]any); ok {
		if err := decode(activeByDefault(v), &c.Workflows); err != nil {
			return nil, fmt.Errorf("failed to decode workflows: %w", err)
		}
	}
	if v, ok := src["app"].(map[string]any); ok {
		c.App.ID = firstString(v, "_id", "id")
	}
	return c, nil
}

// decode maps loosely typed JSON onto out using the mapstructure tags. Numbers given as strings
// and similar mismatches are tolerated.
func decode(input, out any) error {
	dec, err := mapstructure.NewDecoder(&mapstructure.DecoderConfig{
		TagName:          "mapstructure",
		Result:           out,
		WeaklyTypedInput: true,
	})
	if err != nil {
		return err
	}
	return dec.Decode(input)
}

// firstPresent returns the first value under keys that is not null, empty or an empty list.
func firstPresent(src map[string]any, keys []string) any {
	for _, k := range keys {
		v, ok := src[k]
		if !ok || v == nil {
			continue
		}
		switch t := v.(type) {
		case string:
			if t == "" {
				continue
			}
		case []any:
			if len(t) == 0 {
				continue
			}
		}
		return v
	}
	return nil
}

func firstString(m map[string]any, keys ...string) string {
	for _, k := range keys {
		if s := stringify(m[k]); s != "" {
			return s
		}
	}
	return ""
}

func stringify(v any) string {
	switch t := v.(type) {
	case nil:
		return ""
	case string:
		return strings.TrimSpace(t)
	case float64:
		return strconv.FormatFloat(t, 'f', -1, 64)
	default:
		return strings.TrimSpace(fmt.Sprint(t))
	}
}

// leadTypes accepts objects with value/id/text or bare strings. Missing values fall back to the
// 1-based position.
func leadTypes(v any) []models.LeadTypeOption {
	items, _ := v.([]any)
	out := make([]models.LeadTypeOption, 0, len(items))
	for i, item := range items {
		pos := strconv.Itoa(i + 1)
		if m, ok := item.(map[string]any); ok {
			id := firstString(m, "id", "_id")
			value := firstString(m, "value", "id")
			if value == "" {
				value = pos
			}
			text := firstString(m, "text")
			if text == "" {
				text = value
			}
			if id == "" {
				id = pos
			}
			out = append(out, models.LeadTypeOption{ID: id, Value: value, Text: text})
			continue
		}
		if s := stringify(item); s != "" {
			out = append(out, models.LeadTypeOption{ID: pos, Value: s, Text: s})
		}
	}
	return out
}

// services accepts bare strings or objects with name/title/description.
func services(v any) []models.ServiceOption {
	items, _ := v.([]any)
	out := make([]models.ServiceOption, 0, len(items))
	for _, item := range items {
		if m, ok := item.(map[string]any); ok {
			name := firstString(m, "name", "title")
			if name == "" {
				continue
			}
			out = append(out, models.ServiceOption{Name: name, Description: firstString(m, "description")})
			continue
		}
		if s := stringify(item); s != "" {
			out = append(out, models.ServiceOption{Name: s})
		}
	}
	return out
}

func profession(src map[string]any) string {
	if user, ok := src["user"].(map[string]any); ok {
		if p := firstString(user, "professionDescription", "profession"); p != "" {
			return p
		}
	}
	return firstString(src, "professionDescription", "profession")
}

// activeByDefault marks workflow questions active unless the payload says otherwise.
func activeByDefault(workflows []any) []any {
	for _, wf := range workflows {
		m, ok := wf.(map[string]any)
		if !ok {
			continue
		}
		if _, ok := m["_id"]; !ok {
			if id, ok := m["id"]; ok {
				m["_id"] = id
			}
		}
		qs, _ := m["questions"].([]any)
		for _, q := range qs {
			qm, ok := q.(map[string]any)
			if !ok {
				continue
			}
			if _, ok := qm["isActive"]; !ok {
				qm["isActive"] = true
			}
			if _, ok := qm["_id"]; !ok {
				if id, ok := qm["id"]; ok {
					qm["_id"] = id
				}
			}
		}
	}
	return workflows
}
