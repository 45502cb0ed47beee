package platform

import "strings"

// posixSpecial lists the characters that are always backslash escaped in an
// unquoted POSIX segment.
const posixSpecial = "~`#$&*()|[]{};<>?!\\"

// SplitQuotes splits s into alternating unquoted and quoted segments using
// double quotes as pair delimiters. Even indices were outside quotes, odd
// indices were inside them. A trailing unmatched quote stays in the final
// unquoted segment.
//
//	-a -b="123" "example.com"  =>  [-a -b=, 123, " ", example.com]
func SplitQuotes(s string) []string {
	var splits []string
	start := 0
	for {
		begin := strings.IndexByte(s[start:], '"')
		if begin < 0 {
			break
		}
		begin += start
		end := strings.IndexByte(s[begin+1:], '"')
		if end < 0 {
			break
		}
		end += begin + 1
		splits = append(splits, s[start:begin], s[begin+1:end])
		start = end + 1
	}
	if start < len(s) {
		splits = append(splits, s[start:])
	}
	return splits
}

// EscapeWindows escapes a single argument for cmd.exe. Quoted segments are
// kept verbatim.
func EscapeWindows(arg string) string {
	var b strings.Builder
	for i, seg := range SplitQuotes(arg) {
		if i%2 == 1 {
			b.WriteString(`"` + seg + `"`)
			continue
		}
		escapeSet(&b, seg, "^&<>|", '^')
	}
	return b.String()
}

// EscapePOSIX escapes a single argument for a POSIX shell. Single quotes are
// escaped only when the argument holds an odd number of them.
func EscapePOSIX(arg string) string {
	special := posixSpecial
	if strings.Count(arg, "'")%2 == 1 {
		special += "'"
	}
	var b strings.Builder
	for i, seg := range SplitQuotes(arg) {
		if i%2 == 1 {
			b.WriteByte('"')
			escapeSet(&b, seg, `$!\`, '\\')
			b.WriteByte('"')
			continue
		}
		escapeSet(&b, seg, special, '\\')
	}
	return b.String()
}

func escapeSet(b *strings.Builder, s, set string, prefix byte) {
	// Every escaped character is ASCII, so bytes are copied through as is.
	for i := 0; i < len(s); i++ {
		if strings.IndexByte(set, s[i]) >= 0 {
			b.WriteByte(prefix)
		}
		b.WriteByte(s[i])
	}
}
