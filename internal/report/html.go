package report

import (
	"bytes"
	"fmt"
	"html"
	"strings"

	"github.com/yuin/goldmark"
	"github.com/yuin/goldmark/extension"
)

const htmlStyle = `body{font-family:Georgia,serif;max-width:820px;margin:2rem auto;padding:0 1rem;color:#222;line-height:1.55}
h1,h2,h3{font-family:Helvetica,Arial,sans-serif;color:#1a3c5e}
pre{background:#f5f5f5;padding:1rem;overflow-x:auto;font-size:.85rem}
table{border-collapse:collapse}td,th{border:1px solid #ccc;padding:.35rem .6rem}`

// RenderHTML converts a composed report into a standalone HTML document.
// The report body is plain text with markdown-ish headings, which goldmark
// handles as-is.
func RenderHTML(title, body string) (string, error) {
	md := goldmark.New(goldmark.WithExtensions(extension.GFM))
	var rendered bytes.Buffer
	if err := md.Convert([]byte(body), &rendered); err != nil {
		return "", fmt.Errorf("render report html: %w", err)
	}

	var b strings.Builder
	b.WriteString("<!DOCTYPE html>\n<html><head><meta charset=\"utf-8\">")
	fmt.Fprintf(&b, "<title>%s</title>", html.EscapeString(title))
	fmt.Fprintf(&b, "<style>%s</style>", htmlStyle)
	b.WriteString("</head><body>\n")
	b.Write(rendered.Bytes())
	b.WriteString("\n</body></html>\n")
	return b.String(), nil
}
