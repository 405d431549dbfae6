package contentfilter

import (
	"html"
	"strings"
	"unicode"
	"unicode/utf8"

	"github.com/microcosm-cc/bluemonday"

	"ppplay-api/internal/apperrors"
)

var (
	ErrEmpty      = apperrors.Validation("Please enter some content")
	ErrTooShort   = apperrors.Validation("Content must be at least 2 characters")
	ErrBannedWord = apperrors.Validation("Content contains inappropriate language")
	ErrRepetition = apperrors.Validation("Content contains excessive repetition")
)

// defaultBannedWords covers profanity, slurs, adult terms and gambling spam
var defaultBannedWords = []string{
	"시발", "씨발", "시bal", "씨bal", "ㅅㅂ", "ㅆㅂ", "ㅅ1ㅂ", "씹",
	"병신", "ㅂㅅ", "ㅄ", "븅신", "빙신",
	"개새끼", "개새", "개색끼", "개색", "개쉐이", "개쉑",
	"좆", "ㅈㄴ", "존나", "졸라", "존내",
	"미친놈", "미친년", "미친새끼", "미놈", "미년",
	"꺼져", "닥쳐", "뒤져", "뒈져", "디져",
	"지랄", "ㅈㄹ", "지럴",
	"썅", "ㅆㅇ",
	"애미", "애비", "느금마", "느금",
	"한남", "한녀", "김치녀", "김치남",
	"보지", "자지", "섹스", "sex", "야동", "포르노",
	"병신새끼", "정신병자",
	"토토", "배팅사이트", "카지노", "슬롯",
}

// charMap undoes common substitutions used to dodge the word list
var charMap = map[rune]rune{
	'0': 'o', 'ㅇ': 'o',
	'1': 'i', 'l': 'i', 'ㅣ': 'i',
	'3': 'e',
	'4': 'a',
	'5': 's',
	'7': 't',
	'@': 'a',
	'$': 's',
	'!': 'i',
}

// stripped runes are removed before matching
var stripped = map[rune]bool{'*': true, '.': true, '_': true, '-': true, ' ': true}

const (
	maxCharRun  = 10
	maxEmojiRun = 5
)

// Filter validates and sanitizes user-written text
type Filter struct {
	banned []string
	policy *bluemonday.Policy
}

// New builds a filter with the default word list plus extra words
func New(extra ...string) *Filter {
	words := append(append([]string{}, defaultBannedWords...), extra...)
	banned := make([]string, 0, len(words))
	for _, w := range words {
		if n := Normalize(w); n != "" {
			banned = append(banned, n)
		}
	}
	return &Filter{
		banned: banned,
		policy: bluemonday.StrictPolicy(),
	}
}

// Normalize lowercases, maps look-alike characters, drops separators and
// collapses runs of three or more identical runes to two.
func Normalize(text string) string {
	var b strings.Builder
	b.Grow(len(text))

	var prev rune
	run := 0
	for _, r := range strings.ToLower(text) {
		if stripped[r] {
			continue
		}
		if mapped, ok := charMap[r]; ok {
			r = mapped
		}
		if r == prev {
			run++
		} else {
			prev = r
			run = 1
		}
		if run > 2 {
			continue
		}
		b.WriteRune(r)
	}
	return b.String()
}

// ContainsBanned returns the first banned word found in text
func (f *Filter) ContainsBanned(text string) (string, bool) {
	normalized := Normalize(text)
	for _, w := range f.banned {
		if strings.Contains(normalized, w) {
			return w, true
		}
	}
	return "", false
}

// HasExcessiveRepetition reports a rune repeated 10+ times in a row, or an emoji 5+ times
func HasExcessiveRepetition(text string) bool {
	var prev rune
	run := 0
	for _, r := range text {
		if r == prev {
			run++
		} else {
			prev = r
			run = 1
		}
		if run >= maxCharRun || (isEmoji(r) && run >= maxEmojiRun) {
			return true
		}
	}
	return false
}

func isEmoji(r rune) bool {
	switch {
	case r >= 0x1F000 && r <= 0x1FAFF:
		return true
	case r >= 0x2600 && r <= 0x27BF:
		return true
	}
	return unicode.Is(unicode.So, r)
}

// Validate checks text against the length, word list and repetition rules
func (f *Filter) Validate(text string) error {
	trimmed := strings.TrimSpace(text)
	if trimmed == "" {
		return ErrEmpty
	}
	if utf8.RuneCountInString(trimmed) < 2 {
		return ErrTooShort
	}
	if _, found := f.ContainsBanned(trimmed); found {
		return ErrBannedWord
	}
	if HasExcessiveRepetition(trimmed) {
		return ErrRepetition
	}
	return nil
}

// Sanitize strips HTML markup and null bytes and trims whitespace
func (f *Filter) Sanitize(text string) string {
	text = strings.ReplaceAll(text, "\x00", "")
	text = html.UnescapeString(f.policy.Sanitize(text))
	return strings.TrimSpace(text)
}
