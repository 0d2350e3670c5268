package extract

import (
	"bytes"
	"strings"
	"unicode/utf8"

	"github.com/yuin/goldmark"
	"github.com/yuin/goldmark/ast"
	"github.com/yuin/goldmark/text"
	"golang.org/x/text/encoding/charmap"
)

// decodeUTF8 drops invalid byte sequences instead of replacing them.
func decodeUTF8(data []byte) string {
	if utf8.Valid(data) {
		return string(data)
	}
	var sb strings.Builder
	sb.Grow(len(data))
	for len(data) > 0 {
		r, size := utf8.DecodeRune(data)
		if r != utf8.RuneError || size > 1 {
			sb.WriteRune(r)
		}
		data = data[size:]
	}
	return sb.String()
}

func decodeLatin1(data []byte) (string, error) {
	out, err := charmap.ISO8859_1.NewDecoder().Bytes(data)
	if err != nil {
		return "", err
	}
	return string(out), nil
}

var markdownParser = goldmark.New().Parser()

// markdownText keeps the readable text of a markdown document and drops the
// markup. Blocks are separated by blank lines.
func markdownText(data []byte) string {
	src := []byte(decodeUTF8(data))
	doc := markdownParser.Parse(text.NewReader(src))
	var buf bytes.Buffer
	_ = ast.Walk(doc, func(n ast.Node, entering bool) (ast.WalkStatus, error) {
		switch node := n.(type) {
		case *ast.Text:
			if !entering {
				return ast.WalkContinue, nil
			}
			buf.Write(node.Segment.Value(src))
			if node.SoftLineBreak() || node.HardLineBreak() {
				buf.WriteByte('\n')
			}
		case *ast.String:
			if entering {
				buf.Write(node.Value)
			}
		case *ast.FencedCodeBlock, *ast.CodeBlock:
			if !entering {
				return ast.WalkContinue, nil
			}
			lines := n.Lines()
			for i := 0; i < lines.Len(); i++ {
				seg := lines.At(i)
				buf.Write(seg.Value(src))
			}
			buf.WriteByte('\n')
			return ast.WalkSkipChildren, nil
		default:
			if !entering && n.Type() == ast.TypeBlock && n.Kind() != ast.KindDocument && buf.Len() > 0 {
				buf.WriteString("\n\n")
			}
		}
		return ast.WalkContinue, nil
	})
	return collapseBlankLines(buf.String())
}

func collapseBlankLines(s string) string {
	lines := strings.Split(s, "\n")
	out := make([]string, 0, len(lines))
	blank := 0
	for _, line := range lines {
		line = strings.TrimRight(line, " \t")
		if line == "" {
			blank++
			if blank > 1 {
				continue
			}
		} else {
			blank = 0
		}
		out = append(out, line)
	}
	return strings.TrimSpace(strings.Join(out, "\n"))
}
