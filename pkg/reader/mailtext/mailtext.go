// Package mailtext turns bank alert emails into plain text that the SMS parser
// can read.
package mailtext

import (
	"encoding/base64"
	"fmt"
	"io"
	"mime"
	"mime/multipart"
	"mime/quotedprintable"
	"net/mail"
	"strings"

	"golang.org/x/net/html"
)

// maxDepth bounds multipart nesting.
const maxDepth = 8

// HTMLToText extracts the visible text of an HTML document, one line per
// block element, with whitespace collapsed.
func HTMLToText(s string) string {
	z := html.NewTokenizer(strings.NewReader(s))
	var b strings.Builder
	skip := 0
	for {
		switch z.Next() {
		case html.ErrorToken:
			return Collapse(b.String())
		case html.StartTagToken, html.SelfClosingTagToken:
			name, _ := z.TagName()
			switch string(name) {
			case "script", "style", "head", "title":
				skip++
			case "br", "p", "div", "tr", "li", "table", "h1", "h2", "h3", "h4":
				b.WriteByte('\n')
			case "td", "th":
				b.WriteByte(' ')
			}
		case html.EndTagToken:
			name, _ := z.TagName()
			switch string(name) {
			case "script", "style", "head", "title":
				if skip > 0 {
					skip--
				}
			case "p", "div", "tr", "li", "table":
				b.WriteByte('\n')
			}
		case html.TextToken:
			if skip == 0 {
				b.Write(z.Text())
			}
		}
	}
}

// Collapse squeezes runs of whitespace and joins the non-empty lines of s, so
// that table cells and paragraphs read like one SMS body.
func Collapse(s string) string {
	var lines []string
	for _, line := range strings.Split(s, "\n") {
		line = strings.Join(strings.Fields(line), " ")
		if line != "" {
			lines = append(lines, line)
		}
	}
	return strings.Join(lines, " ")
}

// Body returns the text of a parsed email. text/plain parts are preferred;
// HTML parts are converted when no plain part exists.
func Body(msg *mail.Message) (string, error) {
	plain, htmlText, err := walk(msg.Header.Get("Content-Type"), msg.Header.Get("Content-Transfer-Encoding"), msg.Body, 0)
	if err != nil {
		return "", err
	}
	if strings.TrimSpace(plain) != "" {
		return Collapse(plain), nil
	}
	if htmlText != "" {
		return HTMLToText(htmlText), nil
	}
	return "", nil
}

func walk(contentType, encoding string, r io.Reader, depth int) (plain, htmlText string, err error) {
	if depth > maxDepth {
		return "", "", fmt.Errorf("multipart nesting deeper than %d", maxDepth)
	}
	if contentType == "" {
		contentType = "text/plain"
	}
	mediaType, params, err := mime.ParseMediaType(contentType)
	if err != nil {
		// Unparsable types are read as plain text.
		mediaType = "text/plain"
	}

	if strings.HasPrefix(mediaType, "multipart/") {
		mr := multipart.NewReader(r, params["boundary"])
		for {
			part, err := mr.NextRawPart()
			if err == io.EOF {
				break
			}
			if err != nil {
				return plain, htmlText, fmt.Errorf("reading multipart: %w", err)
			}
			p, h, err := walk(part.Header.Get("Content-Type"), part.Header.Get("Content-Transfer-Encoding"), part, depth+1)
			if err != nil {
				return plain, htmlText, err
			}
			if plain == "" {
				plain = p
			}
			if htmlText == "" {
				htmlText = h
			}
		}
		return plain, htmlText, nil
	}

	data, err := io.ReadAll(decode(encoding, r))
	if err != nil {
		return "", "", fmt.Errorf("decoding %s part: %w", mediaType, err)
	}
	switch mediaType {
	case "text/plain":
		return string(data), "", nil
	case "text/html":
		return "", string(data), nil
	default:
		return "", "", nil
	}
}

func decode(encoding string, r io.Reader) io.Reader {
	switch strings.ToLower(strings.TrimSpace(encoding)) {
	case "quoted-printable":
		return quotedprintable.NewReader(r)
	case "base64":
		return base64.NewDecoder(base64.StdEncoding, r)
	default:
		return r
	}
}

// Address returns the bare address of a From header, or the raw value when it
// does not parse.
func Address(from string) string {
	addr, err := mail.ParseAddress(from)
	if err != nil {
		return strings.TrimSpace(from)
	}
	return addr.Address
}
