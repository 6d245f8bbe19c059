package extract

import (
	"log/slog"
	"regexp"
	"sort"
	"strconv"
	"strings"

	"github.com/BTreeMap/LeadPipe/internal/models"
)

// Tier ranks how a match was found. Higher tiers are stronger.
type Tier int

const (
	// TierNone means nothing matched.
	TierNone Tier = iota
	// TierKeyword is a meaningful-word overlap match.
	TierKeyword
	// TierPartial is a substring or word-set containment match.
	TierPartial
	// TierExact is a case-insensitive equality match.
	TierExact
)

func (t Tier) String() string {
	switch t {
	case TierExact:
		return "exact"
	case TierPartial:
		return "partial"
	case TierKeyword:
		return "keyword"
	}
	return "none"
}

// LeadTypeMatch is the result of MatchLeadType.
type LeadTypeMatch struct {
	Option models.LeadTypeOption
	Tier   Tier
}

// ServiceMatch is the result of MatchService.
type ServiceMatch struct {
	Name string
	Tier Tier
}

var (
	punctuation  = regexp.MustCompile(`[^\w\s]`)
	choiceNumber = regexp.MustCompile(`^(\d{1,2})[.)]?$`)

	leadTypeStopWords = newWordSet("i", "would", "like", "to", "a", "an", "the", "my", "me", "for", "with", "is", "are", "am", "please", "want", "some")
	serviceStopWords  = newWordSet("i", "would", "like", "to", "a", "an", "the", "my", "me", "for", "with", "is", "are", "am",
		"well", "can", "you", "tell", "about", "do", "does", "what", "how", "much", "cost", "price", "pricing", "information", "info")
)

type wordSet map[string]struct{}

func newWordSet(words ...string) wordSet {
	s := make(wordSet, len(words))
	for _, w := range words {
		s[w] = struct{}{}
	}
	return s
}

func (s wordSet) has(w string) bool {
	_, ok := s[w]
	return ok
}

// meaningfulWords returns the distinct words longer than two characters that are not stop words.
func meaningfulWords(text string, stop wordSet) wordSet {
	out := make(wordSet)
	for _, w := range strings.Fields(text) {
		if len(w) > 2 && (stop == nil || !stop.has(w)) {
			out[w] = struct{}{}
		}
	}
	return out
}

// overlap returns the words present in both sets, sorted.
func overlap(a, b wordSet) []string {
	var common []string
	for w := range a {
		if b.has(w) {
			common = append(common, w)
		}
	}
	sort.Strings(common)
	return common
}

func normalize(s string) string {
	return punctuation.ReplaceAllString(strings.ToLower(strings.TrimSpace(s)), "")
}

func containsEither(a, b string) bool {
	if a == "" || b == "" {
		return false
	}
	return strings.Contains(a, b) || strings.Contains(b, a)
}

// MatchLeadType matches text against the lead-type options in three passes: exact equality with
// text or value, then containment of the option text or value in the input (or of an input with
// meaningful words in the option, on word boundaries), then an overlap of at least two words
// outside leadTypeStopWords. A stronger pass always wins over a weaker one; within a pass the first option wins, except the
// keyword pass which keeps the highest overlap.
func MatchLeadType(text string, options []models.LeadTypeOption) (LeadTypeMatch, bool) {
	input := strings.ToLower(strings.TrimSpace(text))
	if input == "" || len(options) == 0 {
		return LeadTypeMatch{}, false
	}

	for _, lt := range options {
		optText := strings.ToLower(strings.TrimSpace(lt.Text))
		optValue := strings.ToLower(strings.TrimSpace(lt.Value))
		if (optText != "" && optText == input) || (optValue != "" && optValue == input) {
			slog.Debug("extract.MatchLeadType: exact match", "value", lt.Value)
			return LeadTypeMatch{Option: lt, Tier: TierExact}, true
		}
	}

	inputNorm := normalize(input)
	inputWords := meaningfulWords(inputNorm, leadTypeStopWords)
	reverse := len(inputWords) > 0
	for _, lt := range options {
		if contained(normalize(lt.Text), inputNorm, reverse) {
			slog.Debug("extract.MatchLeadType: text containment match", "value", lt.Value)
			return LeadTypeMatch{Option: lt, Tier: TierPartial}, true
		}
		if contained(normalize(lt.Value), inputNorm, reverse) {
			slog.Debug("extract.MatchLeadType: value containment match", "value", lt.Value)
			return LeadTypeMatch{Option: lt, Tier: TierPartial}, true
		}
	}

	best, bestScore := -1, 0
	for i, lt := range options {
		textWords := meaningfulWords(normalize(lt.Text), leadTypeStopWords)
		if len(textWords) == 0 {
			continue
		}
		if score := len(overlap(textWords, inputWords)); score >= 2 && score > bestScore {
			best, bestScore = i, score
		}
	}
	if best >= 0 {
		slog.Debug("extract.MatchLeadType: keyword match", "value", options[best].Value, "score", bestScore)
		return LeadTypeMatch{Option: options[best], Tier: TierKeyword}, true
	}
	return LeadTypeMatch{}, false
}

// contained reports whether opt occurs in input or, when reverse is set, input occurs in opt as
// whole words. Both arguments must already be normalized.
func contained(opt, input string, reverse bool) bool {
	if opt == "" || input == "" {
		return false
	}
	return strings.Contains(input, opt) || (reverse && containsWords(opt, input))
}

// containsWords reports whether phrase occurs in text on word boundaries.
func containsWords(text, phrase string) bool {
	text = strings.Join(strings.Fields(text), " ")
	phrase = strings.Join(strings.Fields(phrase), " ")
	if phrase == "" {
		return false
	}
	return strings.Contains(" "+text+" ", " "+phrase+" ")
}

// MatchService matches text against service names: exact, then containment, then word overlap.
// Overlap of two or more meaningful words is a strong match; a single shared word counts when the
// service name has at most two meaningful words or the shared word has four or more letters.
func MatchService(text string, services []string) (ServiceMatch, bool) {
	input := strings.ToLower(strings.TrimSpace(text))
	if input == "" || len(services) == 0 {
		return ServiceMatch{}, false
	}
	inputNorm := normalize(input)

	for _, name := range services {
		lower := strings.ToLower(strings.TrimSpace(name))
		if lower == "" {
			continue
		}
		if lower == input || normalize(lower) == inputNorm {
			slog.Debug("extract.MatchService: exact match", "service", name)
			return ServiceMatch{Name: name, Tier: TierExact}, true
		}
	}

	for _, name := range services {
		lower := strings.ToLower(strings.TrimSpace(name))
		if containsEither(lower, input) {
			slog.Debug("extract.MatchService: contains match", "service", name)
			return ServiceMatch{Name: name, Tier: TierPartial}, true
		}
	}

	inputWords := meaningfulWords(inputNorm, serviceStopWords)
	best, bestScore := -1, 0
	for i, name := range services {
		serviceWords := meaningfulWords(normalize(name), serviceStopWords)
		if len(serviceWords) == 0 {
			continue
		}
		common := overlap(serviceWords, inputWords)
		score := len(common)
		switch {
		case score >= 2:
		case score == 1 && (len(serviceWords) <= 2 || len(common[0]) >= 4):
		default:
			continue
		}
		if score > bestScore {
			best, bestScore = i, score
		}
	}
	if best >= 0 {
		slog.Debug("extract.MatchService: keyword match", "service", services[best], "score", bestScore)
		return ServiceMatch{Name: services[best], Tier: TierKeyword}, true
	}
	return ServiceMatch{}, false
}

// MatchOption resolves a free-text answer to one of options. The answer must equal an option after
// normalization or contain exactly one option's text on word boundaries; anything else is left to
// the caller to record verbatim.
func MatchOption(text string, options []string) (string, bool) {
	input := strings.Join(strings.Fields(normalize(text)), " ")
	if input == "" {
		return "", false
	}
	for _, o := range options {
		if strings.Join(strings.Fields(normalize(o)), " ") == input {
			return o, true
		}
	}
	found := ""
	for _, o := range options {
		if containsWords(input, normalize(o)) {
			if found != "" {
				slog.Debug("extract.MatchOption: ambiguous answer", "first", found, "second", o)
				return "", false
			}
			found = o
		}
	}
	return found, found != ""
}

// ChoiceNumber interprets a bare numeric reply such as "2" or "2." as a 0-based index into a list of n options.
func ChoiceNumber(text string, n int) (int, bool) {
	m := choiceNumber.FindStringSubmatch(strings.TrimSpace(text))
	if m == nil {
		return 0, false
	}
	idx, err := strconv.Atoi(m[1])
	if err != nil || idx < 1 || idx > n {
		return 0, false
	}
	return idx - 1, true
}
