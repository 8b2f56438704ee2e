package openai

import (
	"encoding/json"
	"errors"
	"strings"
)

// text decodes a field that may be a string, an array of strings or
// content parts, or null. Any other shape decodes to "".
type text string

func (t *text) UnmarshalJSON(data []byte) error {
	var s string
	if err := json.Unmarshal(data, &s); err == nil {
		*t = text(s)
		return nil
	}

	var items []json.RawMessage
	if err := json.Unmarshal(data, &items); err != nil {
		*t = ""
		return nil
	}

	var sb strings.Builder
	for _, item := range items {
		var part contentPart
		if err := json.Unmarshal(item, &part); err == nil {
			sb.WriteString(string(part.Text))
			continue
		}
		var s string
		if err := json.Unmarshal(item, &s); err == nil {
			sb.WriteString(s)
		}
	}
	*t = text(sb.String())
	return nil
}

// loose decodes into T when the shape matches and leaves the zero value
// otherwise.
type loose[T any] struct {
	val T
}

func (l *loose[T]) UnmarshalJSON(data []byte) error {
	var v T
	if err := json.Unmarshal(data, &v); err == nil {
		l.val = v
	}
	return nil
}

type contentPart struct {
	Type loose[string] `json:"type"`
	Text text          `json:"text"`
}

// parts decodes message content given as parts, strings, or one bare string.
type parts []contentPart

func (p *parts) UnmarshalJSON(data []byte) error {
	*p = nil

	var s string
	if err := json.Unmarshal(data, &s); err == nil {
		*p = parts{{Text: text(s)}}
		return nil
	}

	var items []json.RawMessage
	if err := json.Unmarshal(data, &items); err != nil {
		return nil
	}
	for _, item := range items {
		var part contentPart
		if err := json.Unmarshal(item, &part); err == nil {
			*p = append(*p, part)
			continue
		}
		if err := json.Unmarshal(item, &s); err == nil {
			*p = append(*p, contentPart{Text: text(s)})
		}
	}
	return nil
}

type outputItem struct {
	Type    loose[string] `json:"type"`
	Content parts         `json:"content"`
}

type wrappedResponse struct {
	OutputText text `json:"output_text"`
}

type chatChoice struct {
	Message loose[struct {
		Content text `json:"content"`
	}] `json:"message"`
}

// responseBody covers the Responses and Chat Completions shapes. Fields of
// an unexpected type decode to their zero value.
type responseBody struct {
	Error      json.RawMessage            `json:"error"`
	OutputText text                       `json:"output_text"`
	Response   loose[wrappedResponse]     `json:"response"`
	Output     loose[[]loose[outputItem]] `json:"output"`
	Choices    loose[[]loose[chatChoice]] `json:"choices"`
}

var errNotJSON = errors.New("response body is not valid JSON")

// decodeBody fails only on malformed JSON. A well-formed body of any other
// shape yields an empty responseBody.
func decodeBody(raw []byte) (*responseBody, error) {
	if !json.Valid(raw) {
		return nil, errNotJSON
	}
	var body responseBody
	_ = json.Unmarshal(raw, &body)
	return &body, nil
}

type extractor func(*responseBody) string

var responseExtractors = []extractor{
	directOutputText,
	wrappedOutputText,
	nestedOutputContent,
	firstChoiceContent,
	legacyOutputBlock,
}

var chatExtractors = []extractor{
	firstChoiceContent,
}

// extractText applies extractors in order and returns the first non-empty
// trimmed result.
func extractText(body *responseBody, extractors []extractor) string {
	for _, extract := range extractors {
		if s := strings.TrimSpace(extract(body)); s != "" {
			return s
		}
	}
	return ""
}

func directOutputText(b *responseBody) string {
	return string(b.OutputText)
}

func wrappedOutputText(b *responseBody) string {
	return string(b.Response.val.OutputText)
}

func nestedOutputContent(b *responseBody) string {
	for _, item := range b.Output.val {
		for _, part := range item.val.Content {
			kind := part.Type.val
			if (kind == "output_text" || kind == "text") && strings.TrimSpace(string(part.Text)) != "" {
				return string(part.Text)
			}
		}
	}
	return ""
}

func firstChoiceContent(b *responseBody) string {
	if len(b.Choices.val) == 0 {
		return ""
	}
	return string(b.Choices.val[0].val.Message.val.Content)
}

func legacyOutputBlock(b *responseBody) string {
	if len(b.Output.val) == 0 {
		return ""
	}
	for _, part := range b.Output.val[0].val.Content {
		if strings.TrimSpace(string(part.Text)) != "" {
			return string(part.Text)
		}
	}
	return ""
}
