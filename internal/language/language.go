package language

import (
	"strings"

	xlanguage "golang.org/x/text/language"
	"golang.org/x/text/language/display"

	"streamclean/internal/api"
)

type entry struct {
	code2 string // ISO 639-1 (2-letter)
	code3 string // ISO 639-2 primary (3-letter)
	alt3  string // ISO 639-2 bibliographic alternate (e.g. "fre" vs "fra")
	words []string
}

// Subset that ffprobe commonly reports with a bibliographic code or a full
// word; everything else is resolved through x/text.
var languages = []entry{
	{"en", "eng", "", []string{"english"}},
	{"es", "spa", "", []string{"spanish"}},
	{"fr", "fra", "fre", []string{"french"}},
	{"de", "deu", "ger", []string{"german"}},
	{"it", "ita", "", []string{"italian"}},
	{"pt", "por", "", []string{"portuguese"}},
	{"ja", "jpn", "", []string{"japanese"}},
	{"ko", "kor", "", []string{"korean"}},
	{"zh", "zho", "chi", []string{"chinese"}},
	{"ru", "rus", "", []string{"russian"}},
	{"nl", "nld", "dut", []string{"dutch"}},
	{"cs", "ces", "cze", []string{"czech"}},
	{"el", "ell", "gre", []string{"greek"}},
	{"fa", "fas", "per", []string{"persian"}},
	{"ro", "ron", "rum", []string{"romanian"}},
	{"sk", "slk", "slo", []string{"slovak"}},
	{"is", "isl", "ice", []string{"icelandic"}},
	{"mk", "mkd", "mac", []string{"macedonian"}},
	{"sq", "sqi", "alb", []string{"albanian"}},
	{"hy", "hye", "arm", []string{"armenian"}},
	{"ka", "kat", "geo", []string{"georgian"}},
	{"eu", "eus", "baq", []string{"basque"}},
	{"ms", "msa", "may", []string{"malay"}},
	{"my", "mya", "bur", []string{"burmese"}},
	{"bo", "bod", "tib", []string{"tibetan"}},
	{"cy", "cym", "wel", []string{"welsh"}},
}

var (
	byCode2 map[string]*entry
	byCode3 map[string]*entry
	byWord  map[string]*entry
)

func init() {
	byCode2 = make(map[string]*entry, len(languages))
	byCode3 = make(map[string]*entry, len(languages)*2)
	byWord = make(map[string]*entry, len(languages))
	for i := range languages {
		e := &languages[i]
		byCode2[e.code2] = e
		byCode3[e.code3] = e
		if e.alt3 != "" {
			byCode3[e.alt3] = e
		}
		for _, w := range e.words {
			byWord[w] = e
		}
	}
}

func lookup(code string) *entry {
	if e, ok := byCode2[code]; ok {
		return e
	}
	if e, ok := byCode3[code]; ok {
		return e
	}
	if e, ok := byWord[code]; ok {
		return e
	}
	return nil
}

// Canonical maps any recognized language code or name to its ISO 639-1 code
// when one exists, falling back to x/text's canonical base language. The
// unknown sentinel and unrecognized input are returned lowercased.
func Canonical(code string) string {
	code = strings.ToLower(strings.TrimSpace(code))
	if code == "" || code == api.UnknownLanguage || code == "und" {
		return api.UnknownLanguage
	}
	if e := lookup(code); e != nil {
		return e.code2
	}
	if base, err := xlanguage.ParseBase(code); err == nil {
		return base.String()
	}
	return code
}

// DisplayName returns a human-readable English name for a language code.
// Returns "Unknown" for the unknown sentinel, or the uppercased code when
// neither the table nor x/text recognizes it.
func DisplayName(code string) string {
	canonical := Canonical(code)
	if canonical == api.UnknownLanguage {
		return "Unknown"
	}
	base, err := xlanguage.ParseBase(canonical)
	if err != nil {
		return strings.ToUpper(strings.TrimSpace(code))
	}
	if name := display.English.Languages().Name(base); name != "" {
		return name
	}
	return strings.ToUpper(strings.TrimSpace(code))
}

// Label renders a code with its display name, e.g. "eng (English)".
func Label(code string) string {
	name := DisplayName(code)
	if strings.EqualFold(name, code) {
		return code
	}
	return code + " (" + name + ")"
}

// Match resolves user input against the languages present in a listing.
// An exact match wins; otherwise the first available code that shares the
// input's canonical language is returned.
func Match(available []string, input string) (string, bool) {
	trimmed := strings.TrimSpace(input)
	for _, lang := range available {
		if lang == trimmed {
			return lang, true
		}
	}
	want := Canonical(trimmed)
	for _, lang := range available {
		if Canonical(lang) == want {
			return lang, true
		}
	}
	return "", false
}
