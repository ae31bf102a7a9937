package stemmer

import (
	"testing"

	"github.com/kljensen/snowball/english"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestStem_Exceptions(t *testing.T) {
	cases := map[string]string{
		"skis":    "ski",
		"skies":   "sky",
		"dying":   "die",
		"news":    "news",
		"proceed": "proceed",
		"outing":  "outing",
		"atlas":   "atlas",
	}
	for in, want := range cases {
		assert.Equal(t, want, Stem(in), "stem(%q)", in)
	}
}

func TestStem_ShortTokensUnchanged(t *testing.T) {
	for _, in := range []string{"", "a", "is", "by", "ox"} {
		assert.Equal(t, in, Stem(in))
	}
}

func TestStem_KnownForms(t *testing.T) {
	cases := []struct {
		in   string
		want string
	}{
		{"cats", "cat"},
		{"caresses", "caress"},
		{"ponies", "poni"},
		{"ties", "tie"},
		{"running", "run"},
		{"hopping", "hop"},
		{"hoping", "hope"},
		{"agreed", "agre"},
		{"feed", "feed"},
		{"bled", "bled"},
		{"happy", "happi"},
		{"cry", "cri"},
		{"say", "say"},
		{"national", "nation"},
		{"relational", "relat"},
		{"generously", "generous"},
		{"knightly", "knight"},
		{"elephants", "eleph"},
	}
	for _, tc := range cases {
		t.Run(tc.in, func(t *testing.T) {
			assert.Equal(t, tc.want, Stem(tc.in))
		})
	}
}

// baseWords are combined with inflectional and derivational endings to
// build the cross-check vocabulary.
var baseWords = []string{
	"consign", "consist", "console", "consolidate", "conspire", "constant",
	"knack", "knave", "knead", "knee", "kneel", "knell", "knife", "knight",
	"knit", "knock", "generate", "communism", "communicate", "arsenal",
	"hope", "formal", "electric", "adjust", "depend", "adopt", "irritate",
	"replace", "control", "roll", "rate", "cease", "probate", "sensation",
	"youth", "boy", "say", "gold", "green", "elephant", "attempt", "attach",
	"nation", "relate", "happy", "cry", "run", "hop", "agree", "feed",
	"bleed", "fly", "try", "play", "obey", "sing", "gas", "kiwi", "gap",
	"this", "bus", "press", "tie", "lie", "die", "sky", "ski", "exceed",
	"proceed", "succeed", "bias", "atlas", "news", "luxury", "analogy",
	"criticize", "operate", "condition", "effect", "radical", "hesitate",
	"abandon", "theory", "mystery", "zoo", "circus", "river", "valley",
	"shoe", "canoe", "axe", "eye", "dye", "ox", "x", "s", "a",
}

var endings = []string{
	"", "s", "es", "'s", "s'", "'", "ed", "ing", "ingly", "edly", "eed",
	"ly", "li", "ness", "ful", "fulness", "fully", "ment", "ments",
	"ement", "er", "ers", "ation", "ational", "ations", "ize", "izer",
	"ization", "ism", "alism", "ist", "ity", "ive", "ively", "iveness",
	"ative", "able", "ably", "ability", "al", "ally", "ality", "alize",
	"ence", "ency", "ance", "ic", "ical", "icate", "icity", "ous", "ously",
	"ousness", "ion", "ions", "logy", "logies", "ies", "ied", "y",
}

func vocabulary() []string {
	words := make([]string, 0, len(baseWords)*len(endings))
	for _, b := range baseWords {
		for _, e := range endings {
			words = append(words, b+e)
		}
	}
	return words
}

func TestStem_MatchesSnowball(t *testing.T) {
	words := vocabulary()
	require.Greater(t, len(words), 5000)
	for _, w := range words {
		assert.Equal(t, english.Stem(w, true), Stem(w), "stem(%q)", w)
	}
}

func TestStem_ApostropheRemnants(t *testing.T) {
	cases := map[string]string{
		"s's":  "s",
		"x's":  "x",
		"'s's": "s",
		"as's": "as",
	}
	for in, want := range cases {
		require.NotPanics(t, func() { Stem(in) }, "stem(%q)", in)
		assert.Equal(t, want, Stem(in), "stem(%q)", in)
	}
}

func TestStem_Idempotent(t *testing.T) {
	words := []string{
		"cats", "running", "knights", "consolation", "national",
		"generously", "happy", "caresses", "elephants", "skis", "news",
	}
	for _, w := range words {
		once := Stem(w)
		assert.Equal(t, once, Stem(once), "stem(stem(%q))", w)
	}
}
