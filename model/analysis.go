package model

import (
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"sort"
	"strings"
	"unicode/utf8"
)

// ErrInvalidResult is wrapped by every AnalysisResult validation failure.
var ErrInvalidResult = errors.New("model: invalid analysis result")

// Emotion is the dominant emotion label reported by the analyzer.
type Emotion string

const (
	EmotionHappy     Emotion = "HAPPY"
	EmotionSad       Emotion = "SAD"
	EmotionAngry     Emotion = "ANGRY"
	EmotionNeutral   Emotion = "NEUTRAL"
	EmotionFearful   Emotion = "FEARFUL"
	EmotionDisgusted Emotion = "DISGUSTED"
	EmotionSurprised Emotion = "SURPRISED"
)

var knownEmotions = map[Emotion]struct{}{
	EmotionHappy:     {},
	EmotionSad:       {},
	EmotionAngry:     {},
	EmotionNeutral:   {},
	EmotionFearful:   {},
	EmotionDisgusted: {},
	EmotionSurprised: {},
}

// ParseEmotion accepts a label in any letter case and returns its canonical form.
func ParseEmotion(s string) (Emotion, error) {
	e := Emotion(strings.ToUpper(strings.TrimSpace(s)))
	if _, ok := knownEmotions[e]; !ok {
		return "", fmt.Errorf("%w: unknown emotion %q", ErrInvalidResult, s)
	}
	return e, nil
}

// AnalysisFields is the mutable input used to build an AnalysisResult.
type AnalysisFields struct {
	Emotion    Emotion
	Intensity  float64
	Confidence float64
	Keywords   []string
	Events     []string
	Transcript string
	Language   string
}

// AnalysisResult is an immutable, validated analyzer output.
//
// Keywords keep their order. Events form a set: they are deduplicated and
// sorted on construction so that equal sets always encode identically.
type AnalysisResult struct {
	emotion    Emotion
	intensity  float64
	confidence float64
	keywords   []string
	events     []string
	transcript string
	language   string
}

// NewAnalysisResult validates f and returns the immutable record.
func NewAnalysisResult(f AnalysisFields) (AnalysisResult, error) {
	emotion, err := ParseEmotion(string(f.Emotion))
	if err != nil {
		return AnalysisResult{}, err
	}
	if err := checkUnit("intensity", f.Intensity); err != nil {
		return AnalysisResult{}, err
	}
	if err := checkUnit("confidence", f.Confidence); err != nil {
		return AnalysisResult{}, err
	}
	keywords := make([]string, 0, len(f.Keywords))
	for i, k := range f.Keywords {
		if !utf8.ValidString(k) {
			return AnalysisResult{}, fmt.Errorf("%w: keywords[%d] is not valid UTF-8", ErrInvalidResult, i)
		}
		keywords = append(keywords, k)
	}
	events, err := normalizeEvents(f.Events)
	if err != nil {
		return AnalysisResult{}, err
	}
	if !utf8.ValidString(f.Transcript) {
		return AnalysisResult{}, fmt.Errorf("%w: transcript is not valid UTF-8", ErrInvalidResult)
	}
	if !utf8.ValidString(f.Language) {
		return AnalysisResult{}, fmt.Errorf("%w: language is not valid UTF-8", ErrInvalidResult)
	}
	return AnalysisResult{
		emotion:    emotion,
		intensity:  f.Intensity,
		confidence: f.Confidence,
		keywords:   keywords,
		events:     events,
		transcript: f.Transcript,
		language:   f.Language,
	}, nil
}

func checkUnit(name string, v float64) error {
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return fmt.Errorf("%w: %s must be a finite number", ErrInvalidResult, name)
	}
	if v < 0 || v > 1 {
		return fmt.Errorf("%w: %s %v outside [0,1]", ErrInvalidResult, name, v)
	}
	return nil
}

func normalizeEvents(in []string) ([]string, error) {
	seen := make(map[string]struct{}, len(in))
	out := make([]string, 0, len(in))
	for i, e := range in {
		if e == "" {
			return nil, fmt.Errorf("%w: events[%d] is empty", ErrInvalidResult, i)
		}
		if !utf8.ValidString(e) {
			return nil, fmt.Errorf("%w: events[%d] is not valid UTF-8", ErrInvalidResult, i)
		}
		if _, dup := seen[e]; dup {
			continue
		}
		seen[e] = struct{}{}
		out = append(out, e)
	}
	sort.Strings(out)
	return out, nil
}

// Validate re-checks the invariants. The zero value is invalid.
func (r AnalysisResult) Validate() error {
	_, err := NewAnalysisResult(r.Fields())
	return err
}

func (r AnalysisResult) Emotion() Emotion    { return r.emotion }
func (r AnalysisResult) Intensity() float64  { return r.intensity }
func (r AnalysisResult) Confidence() float64 { return r.confidence }
func (r AnalysisResult) Transcript() string  { return r.transcript }
func (r AnalysisResult) Language() string    { return r.language }

func (r AnalysisResult) Keywords() []string { return append([]string(nil), r.keywords...) }
func (r AnalysisResult) Events() []string   { return append([]string(nil), r.events...) }

// Fields returns a copy of the record's contents.
func (r AnalysisResult) Fields() AnalysisFields {
	return AnalysisFields{
		Emotion:    r.emotion,
		Intensity:  r.intensity,
		Confidence: r.confidence,
		Keywords:   r.Keywords(),
		Events:     r.Events(),
		Transcript: r.transcript,
		Language:   r.language,
	}
}

// resultJSON is the one wire shape of an AnalysisResult.
type resultJSON struct {
	Emotion    Emotion  `json:"emotion"`
	Intensity  float64  `json:"intensity"`
	Confidence float64  `json:"confidence"`
	Keywords   []string `json:"keywords"`
	Events     []string `json:"events"`
	Transcript string   `json:"transcript"`
	Language   string   `json:"language"`
}

// MarshalJSON emits the fixed schema. Keys are not sorted here; callers that
// need canonical bytes use canon.EncodeResult.
func (r AnalysisResult) MarshalJSON() ([]byte, error) {
	if err := r.Validate(); err != nil {
		return nil, err
	}
	return json.Marshal(resultJSON{
		Emotion:    r.emotion,
		Intensity:  r.intensity,
		Confidence: r.confidence,
		Keywords:   r.keywords,
		Events:     r.events,
		Transcript: r.transcript,
		Language:   r.language,
	})
}

func (r *AnalysisResult) UnmarshalJSON(b []byte) error {
	var m map[string]any
	if err := json.Unmarshal(b, &m); err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidResult, err)
	}
	parsed, err := AnalysisResultFromMap(m)
	if err != nil {
		return err
	}
	*r = parsed
	return nil
}

// AnalysisResultFromMap converts dynamically shaped analyzer output into the
// fixed-schema record.
//
// "raw_text" is accepted as an alias of "transcript". Unknown keys are ignored.
// Numbers may be float64, json.Number or any Go integer type.
func AnalysisResultFromMap(m map[string]any) (AnalysisResult, error) {
	if m == nil {
		return AnalysisResult{}, fmt.Errorf("%w: missing result", ErrInvalidResult)
	}
	var f AnalysisFields
	var err error

	emotion, ok := m["emotion"].(string)
	if !ok {
		return AnalysisResult{}, fmt.Errorf("%w: emotion must be a string", ErrInvalidResult)
	}
	f.Emotion = Emotion(emotion)

	if f.Intensity, err = numberField(m, "intensity"); err != nil {
		return AnalysisResult{}, err
	}
	if f.Confidence, err = numberField(m, "confidence"); err != nil {
		return AnalysisResult{}, err
	}
	if f.Keywords, err = stringsField(m, "keywords"); err != nil {
		return AnalysisResult{}, err
	}
	if f.Events, err = stringsField(m, "events"); err != nil {
		return AnalysisResult{}, err
	}
	transcriptKey := "transcript"
	if _, ok := m[transcriptKey]; !ok {
		transcriptKey = "raw_text"
	}
	if f.Transcript, err = stringField(m, transcriptKey); err != nil {
		return AnalysisResult{}, err
	}
	if f.Language, err = stringField(m, "language"); err != nil {
		return AnalysisResult{}, err
	}
	return NewAnalysisResult(f)
}

func numberField(m map[string]any, key string) (float64, error) {
	switch v := m[key].(type) {
	case float64:
		return v, nil
	case float32:
		return float64(v), nil
	case int:
		return float64(v), nil
	case int64:
		return float64(v), nil
	case json.Number:
		f, err := v.Float64()
		if err != nil {
			return 0, fmt.Errorf("%w: %s: %v", ErrInvalidResult, key, err)
		}
		return f, nil
	case nil:
		return 0, fmt.Errorf("%w: missing %s", ErrInvalidResult, key)
	default:
		return 0, fmt.Errorf("%w: %s must be a number, got %T", ErrInvalidResult, key, v)
	}
}

func stringField(m map[string]any, key string) (string, error) {
	switch v := m[key].(type) {
	case string:
		return v, nil
	case nil:
		return "", nil
	default:
		return "", fmt.Errorf("%w: %s must be a string, got %T", ErrInvalidResult, key, v)
	}
}

func stringsField(m map[string]any, key string) ([]string, error) {
	switch v := m[key].(type) {
	case nil:
		return nil, nil
	case []string:
		return append([]string(nil), v...), nil
	case []any:
		out := make([]string, 0, len(v))
		for i, item := range v {
			s, ok := item.(string)
			if !ok {
				return nil, fmt.Errorf("%w: %s[%d] must be a string, got %T", ErrInvalidResult, key, i, item)
			}
			out = append(out, s)
		}
		return out, nil
	default:
		return nil, fmt.Errorf("%w: %s must be a list of strings, got %T", ErrInvalidResult, key, v)
	}
}
