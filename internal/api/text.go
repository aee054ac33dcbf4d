package api

import (
	"strings"

	"golang.org/x/net/html"
)

// PlainText strips markup and the byte-order mark some editions prefix to
// the first verse, collapsing whitespace.
func PlainText(s string) string {
	s = strings.TrimPrefix(s, "\ufeff")
	if !strings.ContainsAny(s, "<&") {
		return strings.TrimSpace(s)
	}

	var out strings.Builder
	z := html.NewTokenizer(strings.NewReader(s))
	for {
		switch z.Next() {
		case html.ErrorToken:
			return strings.Join(strings.Fields(out.String()), " ")
		case html.TextToken:
			out.Write(z.Text())
			out.WriteByte(' ')
		}
	}
}
