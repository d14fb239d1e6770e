package similarity

import (
	"strings"
	"unicode"
)

var soundexCodes = map[rune]byte{
	'B': '1', 'F': '1', 'P': '1', 'V': '1',
	'C': '2', 'G': '2', 'J': '2', 'K': '2', 'Q': '2', 'S': '2', 'X': '2', 'Z': '2',
	'D': '3', 'T': '3',
	'L': '4',
	'M': '5', 'N': '5',
	'R': '6',
}

// Soundex returns the four-character American Soundex code of s. Non-letters
// are ignored; an input without letters yields "".
func Soundex(s string) string {
	var letters []rune
	for _, r := range strings.ToUpper(s) {
		if unicode.IsLetter(r) && r < unicode.MaxASCII {
			letters = append(letters, r)
		}
	}
	if len(letters) == 0 {
		return ""
	}

	code := []byte{byte(letters[0])}
	prev := soundexCodes[letters[0]]
	for _, r := range letters[1:] {
		if len(code) == 4 {
			break
		}
		c, ok := soundexCodes[r]
		switch {
		case ok && c != prev:
			code = append(code, c)
			prev = c
		case !ok && r != 'H' && r != 'W':
			// Vowels separate equal codes; H and W do not.
			prev = 0
		}
	}
	for len(code) < 4 {
		code = append(code, '0')
	}
	return string(code)
}

// SoundexMatch is a phonetic metric: 1 when both strings share a Soundex
// code, 0 otherwise.
func SoundexMatch(a, b string) float64 {
	ca, cb := Soundex(a), Soundex(b)
	if ca == "" || cb == "" {
		if a == b {
			return 1.0
		}
		return 0.0
	}
	if ca == cb {
		return 1.0
	}
	return 0.0
}
