package pipeline

import (
	"bytes"
	"fmt"
	"strings"

	"github.com/PuerkitoBio/goquery"
	"github.com/jhillyerd/enmime"
	pdf "github.com/ledongthuc/pdf"
	"github.com/xuri/excelize/v2"

	"quoteflow/internal/util"
)

type ParsedEmail struct {
	Subject     string
	Sender      string
	Body        string
	Attachments []string
}

// ParseEmailRaw turns a stored RFC 5322 message into classifier input. The
// plain text part wins; HTML-only messages are flattened to text. With
// withAttachments, readable xlsx and pdf attachment text is appended to Body.
func ParseEmailRaw(raw []byte, withAttachments bool) (ParsedEmail, error) {
	env, err := enmime.ReadEnvelope(bytes.NewReader(raw))
	if err != nil {
		return ParsedEmail{}, fmt.Errorf("read envelope: %w", err)
	}

	out := ParsedEmail{
		Subject: env.GetHeader("Subject"),
		Sender:  env.GetHeader("From"),
		Body:    strings.TrimSpace(env.Text),
	}
	// enmime down-converts HTML-only mail itself; use our flattening instead.
	if env.HTML != "" && !hasPlainPart(env.Root) {
		out.Body = htmlToText(env.HTML)
	}

	parts := []string{out.Body}
	for _, att := range env.Attachments {
		filename := strings.TrimSpace(att.FileName)
		if filename == "" {
			filename = "attachment"
		}
		out.Attachments = append(out.Attachments, filename)
		if !withAttachments {
			continue
		}
		text, err := attachmentText(filename, att.Content)
		if err != nil || text == "" {
			continue
		}
		parts = append(parts, text)
	}
	out.Body = strings.TrimSpace(strings.Join(parts, "\n"))

	return out, nil
}

func hasPlainPart(root *enmime.Part) bool {
	if root == nil {
		return false
	}
	return root.BreadthMatchFirst(func(p *enmime.Part) bool {
		return p.ContentType == "text/plain" && p.Disposition != "attachment"
	}) != nil
}

// htmlToText keeps block and table-cell boundaries so phrases from separate
// cells do not run together.
func htmlToText(html string) string {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(html))
	if err != nil {
		return ""
	}
	doc.Find("script,style,head").Remove()
	doc.Find("br").ReplaceWithHtml("\n")
	doc.Find("td,th").Each(func(_ int, cell *goquery.Selection) {
		cell.AppendHtml(" ")
	})
	doc.Find("p,div,tr,li,h1,h2,h3,h4,table").Each(func(_ int, block *goquery.Selection) {
		block.AppendHtml("\n")
	})

	return strings.Join(splitLines(doc.Text()), "\n")
}

func attachmentText(filename string, content []byte) (string, error) {
	lower := strings.ToLower(filename)
	switch {
	case strings.HasSuffix(lower, ".xlsx"):
		return xlsxText(content)
	case strings.HasSuffix(lower, ".pdf"):
		return pdfText(content)
	default:
		return "", nil
	}
}

func xlsxText(content []byte) (string, error) {
	f, err := excelize.OpenReader(bytes.NewReader(content))
	if err != nil {
		return "", err
	}
	defer f.Close()

	lines := []string{}
	for _, sheet := range f.GetSheetList() {
		rows, err := f.GetRows(sheet)
		if err != nil {
			continue
		}
		for _, row := range rows {
			cells := make([]string, 0, len(row))
			for _, c := range row {
				if c = normalizeSpaces(c); c != "" {
					cells = append(cells, c)
				}
			}
			if len(cells) > 0 {
				lines = append(lines, strings.Join(cells, " "))
			}
		}
	}
	return strings.Join(lines, "\n"), nil
}

func pdfText(content []byte) (string, error) {
	r, err := pdf.NewReader(bytes.NewReader(content), int64(len(content)))
	if err != nil {
		return "", err
	}

	lines := []string{}
	for i := 1; i <= r.NumPage(); i++ {
		p := r.Page(i)
		if p.V.IsNull() {
			continue
		}
		text, err := p.GetPlainText(nil)
		if err != nil {
			continue
		}
		lines = append(lines, splitLines(text)...)
	}
	return strings.Join(lines, "\n"), nil
}

func splitLines(text string) []string {
	text = strings.ReplaceAll(text, "\r\n", "\n")
	parts := strings.Split(text, "\n")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if p = normalizeSpaces(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}

func normalizeSpaces(input string) string {
	return util.CollapseSpaces(strings.ReplaceAll(input, "\u00a0", " "))
}
