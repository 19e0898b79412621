package stages

import (
	"context"
	"strings"
	"unicode"

	"github.com/ternarybob/arbor"
	"github.com/ternarybob/trendreel/internal/models"
)

// genericTags are platform tags that say nothing about the content. They are
// only used as an algorithm tag when an item carries nothing else.
var genericTags = map[string]bool{
	"shorts": true, "short": true, "fyp": true, "foryou": true,
	"viral": true, "trending": true, "youtubeshorts": true,
}

// structureWords maps a title word to the content structure it signals.
// The key itself is counted, so every structure key occurs in some title.
var structureWords = map[string]bool{
	"analysis": true, "experiment": true, "tutorial": true, "review": true,
	"challenge": true, "reaction": true, "vs": true, "versus": true,
	"explained": true, "compilation": true, "timelapse": true, "unboxing": true,
	"hack": true, "hacks": true, "guide": true, "test": true, "ranking": true,
	"recap": true, "breakdown": true, "story": true,
}

var verbWords = map[string]bool{
	"make": true, "makes": true, "build": true, "builds": true, "try": true,
	"tries": true, "test": true, "tests": true, "explain": true, "explains": true,
	"cook": true, "cooks": true, "mix": true, "mixes": true, "melt": true,
	"melts": true, "create": true, "creates": true, "fix": true, "fixes": true,
	"compare": true, "compares": true, "react": true, "reacts": true,
	"learn": true, "learns": true, "transform": true, "transforms": true,
	"drop": true, "drops": true, "break": true, "breaks": true, "win": true,
	"wins": true, "beat": true, "beats": true, "turn": true, "turns": true,
	"save": true, "saves": true, "predict": true, "predicts": true,
	"reveal": true, "reveals": true, "destroy": true, "destroys": true,
}

var stopWords = map[string]bool{
	"a": true, "an": true, "the": true, "and": true, "or": true, "of": true,
	"in": true, "on": true, "to": true, "for": true, "with": true, "is": true,
	"are": true, "this": true, "that": true, "my": true, "your": true,
	"i": true, "you": true, "we": true, "it": true, "at": true, "by": true,
	"from": true, "how": true, "what": true, "why": true, "when": true,
	"new": true, "best": true, "top": true, "most": true, "ever": true,
}

// extraction is the categorical breakdown of a single source item.
type extraction struct {
	verb, subject, object, structure, algorithmTag string
}

// TrendSignalStage turns source items into frequency distributions.
type TrendSignalStage struct {
	logger arbor.ILogger
}

// NewTrendSignalStage creates the trend signal stage.
func NewTrendSignalStage(logger arbor.ILogger) *TrendSignalStage {
	return &TrendSignalStage{logger: logger}
}

// Name returns the stage name.
func (s *TrendSignalStage) Name() models.StageName {
	return models.StageTrendSignals
}

// Execute extracts signals. Each item contributes at most one key per bucket,
// so the counts of a bucket never exceed the number of items.
func (s *TrendSignalStage) Execute(ctx context.Context, items []models.SourceItem) (*models.TrendSignals, error) {
	if len(items) == 0 {
		return nil, invalidInput(s.Name(), "source item sequence is empty")
	}
	for i := range items {
		if err := items[i].Validate(); err != nil {
			return nil, invalidInput(s.Name(), "source item %d: %v", i, err)
		}
	}

	signals := models.NewTrendSignals()
	for _, item := range items {
		ex := extract(item)
		count(signals.Verbs, ex.verb)
		count(signals.Subjects, ex.subject)
		count(signals.Objects, ex.object)
		count(signals.Structures, ex.structure)
		count(signals.AlgorithmTags, ex.algorithmTag)
	}

	if signals.IsEmpty() {
		return nil, invalidInput(s.Name(), "no signals could be extracted from %d source items", len(items))
	}

	if s.logger != nil {
		s.logger.Debug().
			Int("items", len(items)).
			Int("verbs", len(signals.Verbs)).
			Int("subjects", len(signals.Subjects)).
			Int("objects", len(signals.Objects)).
			Int("structures", len(signals.Structures)).
			Int("algorithm_tags", len(signals.AlgorithmTags)).
			Msg("Trend signals extracted")
	}

	return signals, nil
}

func count(bucket map[string]int, key string) {
	if key != "" {
		bucket[key]++
	}
}

// extract applies the fixed extraction heuristic to one item.
func extract(item models.SourceItem) extraction {
	var ex extraction
	ex.algorithmTag = primaryTag(item.Tags)

	var content []string
	for _, word := range tokenize(item.Title) {
		switch {
		case structureWords[word] && ex.structure == "":
			ex.structure = word
		case isVerb(word) && ex.verb == "":
			ex.verb = word
		case stopWords[word] || isNumber(word) || structureWords[word] || isVerb(word):
		default:
			content = append(content, word)
		}
	}

	if len(content) > 0 {
		ex.subject = content[0]
	}
	if len(content) > 1 {
		ex.object = content[len(content)-1]
	}
	return ex
}

// tokenize lower-cases a title and splits it into letter/digit words.
func tokenize(title string) []string {
	return strings.FieldsFunc(strings.ToLower(title), func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsDigit(r)
	})
}

// primaryTag returns the first non-generic tag, or the first tag when all
// are generic.
func primaryTag(tags []string) string {
	first := ""
	for _, raw := range tags {
		// Tags sometimes arrive as one "#a,#b" string.
		for _, part := range strings.FieldsFunc(raw, func(r rune) bool { return r == ',' || unicode.IsSpace(r) }) {
			tag := strings.ToLower(strings.TrimLeft(part, "#"))
			if tag == "" {
				continue
			}
			if first == "" {
				first = tag
			}
			if !genericTags[tag] {
				return tag
			}
		}
	}
	return first
}

func isVerb(word string) bool {
	if verbWords[word] {
		return true
	}
	return len(word) > 5 && strings.HasSuffix(word, "ing")
}

func isNumber(word string) bool {
	for _, r := range word {
		if !unicode.IsDigit(r) {
			return false
		}
	}
	return true
}
