// Package stemmer implements the Porter2 (English Snowball) stemming
// algorithm. Stems produced here are the keys of the per-stem index shards,
// so the output must match the stemmer the shard builder used byte for byte.
package stemmer

import "strings"

// exceptions are irregular forms mapped directly to their stems. Identity
// entries stop the regular steps from mangling invariant words.
var exceptions = map[string]string{
	"skis":   "ski",
	"skies":  "sky",
	"dying":  "die",
	"lying":  "lie",
	"tying":  "tie",
	"idly":   "idl",
	"gently": "gentl",
	"ugly":   "ugli",
	"early":  "earli",
	"only":   "onli",
	"singly": "singl",
	"sky":    "sky",
	"news":   "news",
	"howe":   "howe",
	"atlas":  "atlas",
	"cosmos": "cosmos",
	"bias":   "bias",
	"andes":  "andes",
}

// postStep1a words are returned as soon as step 1a leaves them in this form.
var postStep1a = map[string]struct{}{
	"inning":  {},
	"outing":  {},
	"canning": {},
	"herring": {},
	"earring": {},
	"proceed": {},
	"exceed":  {},
	"succeed": {},
}

// regionPrefixes override the R1 computation for words starting with them.
var regionPrefixes = []string{"gener", "commun", "arsen"}

type rule struct {
	suffix      string
	replacement string
}

// step2Rules are ordered longest first within each shared tail so the first
// match is the longest one.
var step2Rules = []rule{
	{"ization", "ize"},
	{"ational", "ate"},
	{"fulness", "ful"},
	{"ousness", "ous"},
	{"iveness", "ive"},
	{"tional", "tion"},
	{"biliti", "ble"},
	{"lessli", "less"},
	{"entli", "ent"},
	{"ation", "ate"},
	{"alism", "al"},
	{"aliti", "al"},
	{"ousli", "ous"},
	{"iviti", "ive"},
	{"fulli", "ful"},
	{"enci", "ence"},
	{"anci", "ance"},
	{"abli", "able"},
	{"izer", "ize"},
	{"ator", "ate"},
	{"alli", "al"},
	{"bli", "ble"},
	{"ogi", "og"},
	{"li", ""},
}

var step3Rules = []rule{
	{"ational", "ate"},
	{"tional", "tion"},
	{"alize", "al"},
	{"icate", "ic"},
	{"iciti", "ic"},
	{"ative", ""},
	{"ical", "ic"},
	{"ness", ""},
	{"ful", ""},
}

var step4Suffixes = []string{
	"ement", "ance", "ence", "able", "ible", "ment",
	"ant", "ent", "ism", "ate", "iti", "ous", "ive", "ize", "ion",
	"al", "er", "ic",
}

// word is the working state of one stemming run. r1 and r2 are 1-based
// region offsets: a suffix lies inside a region when
// len(remainder)+1 >= offset.
type word struct {
	runes []rune
	r1    int
	r2    int
}

// Stem returns the Porter2 stem of token. Tokens shorter than three
// characters are returned unchanged.
func Stem(token string) string {
	runes := []rune(token)
	if len(runes) < 3 {
		return token
	}
	if stem, ok := exceptions[token]; ok {
		return stem
	}

	w := &word{runes: runes}
	w.preflight()
	if len(w.runes) < 3 {
		return w.String()
	}
	w.markRegions()
	w.step0()
	w.step1a()
	if _, ok := postStep1a[w.String()]; ok {
		return w.String()
	}
	w.step1b()
	w.step1c()
	w.step2()
	w.step3()
	w.step4()
	w.step5()
	return w.String()
}

func (w *word) String() string {
	return strings.ReplaceAll(string(w.runes), "Y", "y")
}

func isVowel(r rune) bool {
	switch r {
	case 'a', 'e', 'i', 'o', 'u', 'y':
		return true
	}
	return false
}

func isDouble(r rune) bool {
	switch r {
	case 'b', 'd', 'f', 'g', 'm', 'n', 'p', 'r', 't':
		return true
	}
	return false
}

func isLiEnding(r rune) bool {
	switch r {
	case 'c', 'd', 'e', 'g', 'h', 'k', 'm', 'n', 'r', 't':
		return true
	}
	return false
}

// preflight drops a leading apostrophe and marks consonantal y as Y.
func (w *word) preflight() {
	if w.runes[0] == '\'' {
		w.runes = w.runes[1:]
	}
	for i, r := range w.runes {
		if r != 'y' {
			continue
		}
		if i == 0 || isVowel(w.runes[i-1]) {
			w.runes[i] = 'Y'
		}
	}
}

func (w *word) markRegions() {
	w.r1 = 0
	s := string(w.runes)
	for _, prefix := range regionPrefixes {
		if strings.HasPrefix(s, prefix) {
			w.r1 = len([]rune(prefix)) + 1
			break
		}
	}
	if w.r1 == 0 {
		w.r1 = regionAfter(w.runes, 0)
	}
	w.r2 = regionAfter(w.runes, w.r1-1)
}

// regionAfter returns the 1-based offset of the region that starts after
// the first non-vowel following a vowel, searching from index from.
func regionAfter(runes []rune, from int) int {
	for i := from + 1; i < len(runes); i++ {
		if !isVowel(runes[i]) && isVowel(runes[i-1]) {
			return i + 2
		}
	}
	return len(runes) + 1
}

func (w *word) hasSuffix(suffix string) bool {
	return strings.HasSuffix(string(w.runes), suffix)
}

// remainder is the length of the word once suffix is removed.
func (w *word) remainder(suffix string) int {
	return len(w.runes) - len([]rune(suffix))
}

func (w *word) inR1(suffix string) bool {
	return w.remainder(suffix)+1 >= w.r1
}

func (w *word) inR2(suffix string) bool {
	return w.remainder(suffix)+1 >= w.r2
}

func (w *word) replace(suffix, replacement string) {
	w.runes = append(w.runes[:w.remainder(suffix)], []rune(replacement)...)
}

func (w *word) containsVowel(end int) bool {
	if end <= 0 {
		return false
	}
	for _, r := range w.runes[:end] {
		if isVowel(r) {
			return true
		}
	}
	return false
}

// endsShortSyllable reports whether runes[:end] ends in a short syllable.
func (w *word) endsShortSyllable(end int) bool {
	if end == 2 {
		return isVowel(w.runes[0]) && !isVowel(w.runes[1])
	}
	if end < 3 {
		return false
	}
	a, b, c := w.runes[end-3], w.runes[end-2], w.runes[end-1]
	if isVowel(a) || !isVowel(b) || isVowel(c) {
		return false
	}
	return c != 'w' && c != 'x' && c != 'Y'
}

func (w *word) isShort() bool {
	return w.endsShortSyllable(len(w.runes)) && w.r1 > len(w.runes)
}

func (w *word) step0() {
	for _, suffix := range []string{"'s'", "'s", "'"} {
		if w.hasSuffix(suffix) {
			w.replace(suffix, "")
			return
		}
	}
}

func (w *word) step1a() {
	switch {
	case w.hasSuffix("sses"):
		w.replace("sses", "ss")
	case w.hasSuffix("ied"), w.hasSuffix("ies"):
		suffix := string(w.runes[len(w.runes)-3:])
		if w.remainder(suffix) > 1 {
			w.replace(suffix, "i")
		} else {
			w.replace(suffix, "ie")
		}
	case w.hasSuffix("us"), w.hasSuffix("ss"):
	case w.hasSuffix("s"):
		// the vowel must not sit directly before the s
		if len(w.runes) > 2 && w.containsVowel(len(w.runes)-2) {
			w.replace("s", "")
		}
	}
}

func (w *word) step1b() {
	for _, suffix := range []string{"eedly", "eed"} {
		if w.hasSuffix(suffix) {
			if w.inR1(suffix) {
				w.replace(suffix, "ee")
			}
			return
		}
	}
	for _, suffix := range []string{"ingly", "edly", "ing", "ed"} {
		if !w.hasSuffix(suffix) {
			continue
		}
		if !w.containsVowel(w.remainder(suffix)) {
			return
		}
		w.replace(suffix, "")
		switch {
		case w.hasSuffix("at"), w.hasSuffix("bl"), w.hasSuffix("iz"):
			w.runes = append(w.runes, 'e')
		case len(w.runes) >= 2 && w.runes[len(w.runes)-1] == w.runes[len(w.runes)-2] && isDouble(w.runes[len(w.runes)-1]):
			w.runes = w.runes[:len(w.runes)-1]
		case w.isShort():
			w.runes = append(w.runes, 'e')
		}
		return
	}
}

func (w *word) step1c() {
	n := len(w.runes)
	if n < 3 {
		return
	}
	last := w.runes[n-1]
	if (last == 'y' || last == 'Y') && !isVowel(w.runes[n-2]) {
		w.runes[n-1] = 'i'
	}
}

func (w *word) step2() {
	for _, r := range step2Rules {
		if !w.hasSuffix(r.suffix) {
			continue
		}
		if !w.inR1(r.suffix) {
			return
		}
		switch r.suffix {
		case "ogi":
			if n := w.remainder(r.suffix); n < 1 || w.runes[n-1] != 'l' {
				return
			}
		case "li":
			if n := w.remainder(r.suffix); n < 1 || !isLiEnding(w.runes[n-1]) {
				return
			}
		}
		w.replace(r.suffix, r.replacement)
		return
	}
}

func (w *word) step3() {
	for _, r := range step3Rules {
		if !w.hasSuffix(r.suffix) {
			continue
		}
		if !w.inR1(r.suffix) {
			return
		}
		if r.suffix == "ative" && !w.inR2(r.suffix) {
			return
		}
		w.replace(r.suffix, r.replacement)
		return
	}
}

func (w *word) step4() {
	for _, suffix := range step4Suffixes {
		if !w.hasSuffix(suffix) {
			continue
		}
		if !w.inR2(suffix) {
			return
		}
		if suffix == "ion" {
			n := w.remainder(suffix)
			if n < 1 || (w.runes[n-1] != 's' && w.runes[n-1] != 't') {
				return
			}
		}
		w.replace(suffix, "")
		return
	}
}

func (w *word) step5() {
	switch {
	case w.hasSuffix("e"):
		if w.inR2("e") || (w.inR1("e") && !w.endsShortSyllable(w.remainder("e"))) {
			w.replace("e", "")
		}
	case w.hasSuffix("ll"):
		if w.inR2("l") {
			w.replace("l", "")
		}
	}
}
