package scoring

import (
	"bytes"
	"encoding/json"
	"sort"
	"strconv"
	"strings"

	"formbuilder-service/internal/domain"
)

// RawAnswer is an answer as submitted by a client. The type-specific payload
// may sit at the top level or nested under "answer".
type RawAnswer struct {
	QuestionID     string
	QuestionType   domain.QuestionType
	Answer         json.RawMessage
	Categorization json.RawMessage
	Blanks         json.RawMessage
	SubAnswers     json.RawMessage
	Text           json.RawMessage
	TimeSpent      int
}

// UnmarshalJSON decodes leniently: unknown fields are ignored and scalar ids
// of any JSON type are accepted. A value that is not an object decodes to an
// empty answer, which scoring drops as an unknown question.
func (r *RawAnswer) UnmarshalJSON(data []byte) error {
	*r = RawAnswer{}
	var fields map[string]json.RawMessage
	if err := json.Unmarshal(data, &fields); err != nil {
		return nil
	}
	r.QuestionID, _ = looseString(fields["questionId"])
	qt, _ := looseString(fields["questionType"])
	r.QuestionType = domain.QuestionType(qt)
	r.Answer = fields["answer"]
	r.Categorization = fields["categorization"]
	r.Blanks = fields["blanks"]
	r.SubAnswers = fields["subAnswers"]
	r.Text = fields["text"]
	if ts, ok := looseString(fields["timeSpent"]); ok {
		if v, err := strconv.ParseFloat(ts, 64); err == nil && v > 0 {
			r.TimeSpent = int(v)
		}
	}
	return nil
}

// MarshalJSON writes the populated fields back in wire form.
func (r RawAnswer) MarshalJSON() ([]byte, error) {
	out := map[string]any{
		"questionId":   r.QuestionID,
		"questionType": r.QuestionType,
	}
	for key, raw := range map[string]json.RawMessage{
		"answer":         r.Answer,
		"categorization": r.Categorization,
		"blanks":         r.Blanks,
		"subAnswers":     r.SubAnswers,
		"text":           r.Text,
	} {
		if len(raw) > 0 {
			out[key] = raw
		}
	}
	if r.TimeSpent > 0 {
		out["timeSpent"] = r.TimeSpent
	}
	return json.Marshal(out)
}

// DropReason explains why an answer did not contribute to the score.
type DropReason string

const (
	DropUnknownQuestion DropReason = "unknown_question"
	DropTypeMismatch    DropReason = "type_mismatch"
	DropDuplicate       DropReason = "duplicate"
	DropMalformed       DropReason = "malformed_payload"
)

// Issue records an anomaly found while normalizing an answer.
type Issue struct {
	QuestionID string     `json:"questionId"`
	Reason     DropReason `json:"reason"`
}

// Normalize maps raw onto the canonical answer for q. ok is false when the
// payload could not be read; the returned answer is then empty but still
// typed, so it scores zero.
func Normalize(q domain.Question, raw RawAnswer) (answer domain.Answer, ok bool) {
	answer = domain.Answer{QuestionID: q.ID, QuestionType: q.Type, TimeSpent: raw.TimeSpent}
	payload := selectPayload(q.Type, raw)
	if isEmpty(payload) {
		fillEmpty(&answer)
		return answer, true
	}

	switch q.Type {
	case domain.QuestionCategorize:
		answer.Categorization, ok = normalizeCategorization(q, payload)
	case domain.QuestionCloze:
		answer.Blanks, ok = normalizeBlanks(q, payload)
	case domain.QuestionComprehension:
		answer.SubAnswers, ok = normalizeSubAnswers(q, payload)
	case domain.QuestionText:
		answer.Text, ok = looseString(payload)
	}
	fillEmpty(&answer)
	return answer, ok
}

func fillEmpty(a *domain.Answer) {
	switch a.QuestionType {
	case domain.QuestionCategorize:
		if a.Categorization == nil {
			a.Categorization = []domain.CategoryPlacement{}
		}
	case domain.QuestionCloze:
		if a.Blanks == nil {
			a.Blanks = []domain.BlankAnswer{}
		}
	case domain.QuestionComprehension:
		if a.SubAnswers == nil {
			a.SubAnswers = []domain.SubAnswer{}
		}
	}
}

var wrapperKeys = map[domain.QuestionType][]string{
	domain.QuestionCategorize:    {"categorization", "categories"},
	domain.QuestionCloze:         {"blanks"},
	domain.QuestionComprehension: {"subAnswers"},
	domain.QuestionText:          {"text", "answer"},
}

// selectPayload prefers the top-level typed field and falls back to the
// nested "answer" value, unwrapping {"<key>": ...} envelopes.
func selectPayload(t domain.QuestionType, raw RawAnswer) json.RawMessage {
	var top json.RawMessage
	switch t {
	case domain.QuestionCategorize:
		top = raw.Categorization
	case domain.QuestionCloze:
		top = raw.Blanks
	case domain.QuestionComprehension:
		top = raw.SubAnswers
	case domain.QuestionText:
		top = raw.Text
	}
	if !isEmpty(top) {
		return top
	}
	payload := raw.Answer
	var obj map[string]json.RawMessage
	if json.Unmarshal(payload, &obj) == nil {
		for _, key := range wrapperKeys[t] {
			if inner, ok := obj[key]; ok {
				return inner
			}
		}
	}
	return payload
}

func isEmpty(raw json.RawMessage) bool {
	trimmed := bytes.TrimSpace(raw)
	return len(trimmed) == 0 || bytes.Equal(trimmed, []byte("null"))
}

// looseString reads a JSON scalar as text.
func looseString(raw json.RawMessage) (string, bool) {
	if isEmpty(raw) {
		return "", true
	}
	var s string
	if err := json.Unmarshal(raw, &s); err == nil {
		return s, true
	}
	var n json.Number
	dec := json.NewDecoder(bytes.NewReader(raw))
	dec.UseNumber()
	if err := dec.Decode(&n); err == nil {
		return n.String(), true
	}
	var b bool
	if err := json.Unmarshal(raw, &b); err == nil {
		return strconv.FormatBool(b), true
	}
	return "", false
}

type keyedValue struct {
	key   string
	value string
	index int // position in a bare array, -1 otherwise
}

// keyedEntries accepts [{<idField>, answer}], {key: value} and ["v", ...].
func keyedEntries(raw json.RawMessage, idField string) ([]keyedValue, bool) {
	var list []json.RawMessage
	if err := json.Unmarshal(raw, &list); err == nil {
		out := make([]keyedValue, 0, len(list))
		for i, elem := range list {
			var obj map[string]json.RawMessage
			if json.Unmarshal(elem, &obj) == nil {
				key, okKey := looseString(obj[idField])
				value, okVal := looseString(obj["answer"])
				if !okKey || !okVal || key == "" {
					continue
				}
				out = append(out, keyedValue{key: key, value: value, index: -1})
				continue
			}
			value, okVal := looseString(elem)
			if !okVal {
				continue
			}
			out = append(out, keyedValue{key: strconv.Itoa(i), value: value, index: i})
		}
		return out, true
	}

	var obj map[string]json.RawMessage
	if err := json.Unmarshal(raw, &obj); err != nil {
		return nil, false
	}
	keys := make([]string, 0, len(obj))
	for k := range obj {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	out := make([]keyedValue, 0, len(obj))
	for _, k := range keys {
		value, ok := looseString(obj[k])
		if !ok {
			continue
		}
		out = append(out, keyedValue{key: k, value: value, index: -1})
	}
	return out, true
}

// resolveSlot maps an entry onto a slot id, by id first and index second.
func resolveSlot(entry keyedValue, ids []string, byID map[string]int) (int, bool) {
	if entry.index < 0 {
		if pos, ok := byID[entry.key]; ok {
			return pos, true
		}
	}
	if pos, err := strconv.Atoi(entry.key); err == nil && pos >= 0 && pos < len(ids) {
		return pos, true
	}
	return 0, false
}

func normalizeBlanks(q domain.Question, raw json.RawMessage) ([]domain.BlankAnswer, bool) {
	entries, ok := keyedEntries(raw, "blankId")
	if !ok {
		return nil, false
	}
	blanks := domain.ResolveBlanks(q)
	ids := make([]string, len(blanks))
	byID := make(map[string]int, len(blanks))
	for i, b := range blanks {
		ids[i] = b.ID
		byID[b.ID] = i
	}
	values := make([]*string, len(blanks))
	for _, e := range entries {
		pos, found := resolveSlot(e, ids, byID)
		if !found || values[pos] != nil {
			continue
		}
		v := e.value
		values[pos] = &v
	}
	out := make([]domain.BlankAnswer, 0, len(blanks))
	for i, v := range values {
		if v != nil {
			out = append(out, domain.BlankAnswer{BlankID: ids[i], Answer: *v})
		}
	}
	return out, true
}

func normalizeSubAnswers(q domain.Question, raw json.RawMessage) ([]domain.SubAnswer, bool) {
	entries, ok := keyedEntries(raw, "subQuestionId")
	if !ok {
		return nil, false
	}
	ids := make([]string, len(q.SubQuestions))
	byID := make(map[string]int, len(q.SubQuestions))
	for i, sq := range q.SubQuestions {
		ids[i] = sq.ID
		byID[sq.ID] = i
	}
	values := make([]*string, len(ids))
	for _, e := range entries {
		pos, found := resolveSlot(e, ids, byID)
		if !found || values[pos] != nil {
			continue
		}
		v := e.value
		values[pos] = &v
	}
	out := make([]domain.SubAnswer, 0, len(ids))
	for i, v := range values {
		if v != nil {
			out = append(out, domain.SubAnswer{SubQuestionID: ids[i], Answer: *v})
		}
	}
	return out, true
}

func normalizeCategorization(q domain.Question, raw json.RawMessage) ([]domain.CategoryPlacement, bool) {
	placed, ok := readPlacements(raw)
	if !ok {
		return nil, false
	}

	categoryByKey := make(map[string]string, len(q.Categories)*2)
	for _, c := range q.Categories {
		if c.Name != "" {
			categoryByKey[c.Name] = c.ID
		}
	}
	for _, c := range q.Categories {
		categoryByKey[c.ID] = c.ID
	}
	itemByKey := make(map[string]string, len(q.Items)*2)
	for _, it := range q.Items {
		if it.Text != "" {
			itemByKey[it.Text] = it.ID
		}
	}
	for _, it := range q.Items {
		itemByKey[it.ID] = it.ID
	}

	items := make(map[string][]string, len(q.Categories))
	for _, p := range placed {
		categoryID, known := categoryByKey[strings.TrimSpace(p.CategoryID)]
		if !known {
			continue
		}
		for _, key := range p.ItemIDs {
			if itemID, ok := itemByKey[strings.TrimSpace(key)]; ok && !contains(items[categoryID], itemID) {
				items[categoryID] = append(items[categoryID], itemID)
			}
		}
	}

	out := make([]domain.CategoryPlacement, 0, len(items))
	for _, c := range q.Categories {
		if ids, ok := items[c.ID]; ok {
			out = append(out, domain.CategoryPlacement{CategoryID: c.ID, ItemIDs: ids})
			delete(items, c.ID)
		}
	}
	return out, true
}

// readPlacements accepts [{categoryId, itemIds}] or {category: [items]}.
func readPlacements(raw json.RawMessage) ([]domain.CategoryPlacement, bool) {
	var list []struct {
		CategoryID json.RawMessage   `json:"categoryId"`
		ItemIDs    []json.RawMessage `json:"itemIds"`
	}
	if err := json.Unmarshal(raw, &list); err == nil {
		out := make([]domain.CategoryPlacement, 0, len(list))
		for _, p := range list {
			id, ok := looseString(p.CategoryID)
			if !ok || id == "" {
				continue
			}
			out = append(out, domain.CategoryPlacement{CategoryID: id, ItemIDs: stringList(p.ItemIDs)})
		}
		return out, true
	}

	var obj map[string][]json.RawMessage
	if err := json.Unmarshal(raw, &obj); err != nil {
		return nil, false
	}
	keys := make([]string, 0, len(obj))
	for k := range obj {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	out := make([]domain.CategoryPlacement, 0, len(obj))
	for _, k := range keys {
		out = append(out, domain.CategoryPlacement{CategoryID: k, ItemIDs: stringList(obj[k])})
	}
	return out, true
}

func stringList(raws []json.RawMessage) []string {
	out := make([]string, 0, len(raws))
	for _, r := range raws {
		if s, ok := looseString(r); ok && s != "" {
			out = append(out, s)
		}
	}
	return out
}

func contains(list []string, s string) bool {
	for _, v := range list {
		if v == s {
			return true
		}
	}
	return false
}
