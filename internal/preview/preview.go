// Package preview renders stored files to HTML for the browser client.
// Markdown goes through goldmark with GFM extensions, recognised source
// files are highlighted with chroma, and everything else is escaped text.
package preview

import (
	"bytes"
	"html"
	"path/filepath"
	"regexp"
	"strings"
	"unicode/utf8"

	"github.com/alecthomas/chroma/v2"
	chromahtml "github.com/alecthomas/chroma/v2/formatters/html"
	"github.com/alecthomas/chroma/v2/lexers"
	"github.com/alecthomas/chroma/v2/styles"
	"github.com/yuin/goldmark"
	highlighting "github.com/yuin/goldmark-highlighting/v2"
	"github.com/yuin/goldmark/ast"
	"github.com/yuin/goldmark/extension"
	"github.com/yuin/goldmark/parser"
	gmhtml "github.com/yuin/goldmark/renderer/html"
	"github.com/yuin/goldmark/text"
)

// Kind describes how a file was rendered.
type Kind string

// Render kinds.
const (
	KindMarkdown Kind = "markdown"
	KindCode     Kind = "code"
	KindText     Kind = "text"
	KindBinary   Kind = "binary"
)

const styleName = "monokai"

var (
	anchorStrip  = regexp.MustCompile(`[^a-z0-9\-\p{Han}\p{Hiragana}\p{Katakana}]`)
	anchorHyphen = regexp.MustCompile(`-+`)
)

// TOCItem is a heading in a rendered markdown file.
type TOCItem struct {
	Level  int    `json:"level"`
	Title  string `json:"title"`
	Anchor string `json:"anchor"`
}

// Result is a rendered file.
type Result struct {
	Name  string    `json:"name"`
	Kind  Kind      `json:"kind"`
	Title string    `json:"title"`
	HTML  string    `json:"html"`
	TOC   []TOCItem `json:"toc"`
}

// Renderer converts file content to HTML. It is safe for concurrent use.
type Renderer struct {
	md        goldmark.Markdown
	formatter *chromahtml.Formatter
	style     *chroma.Style
}

// NewRenderer creates a renderer with the default extensions.
func NewRenderer() *Renderer {
	md := goldmark.New(
		goldmark.WithExtensions(
			extension.GFM,
			extension.Table,
			extension.Strikethrough,
			extension.TaskList,
			extension.Typographer,
			highlighting.NewHighlighting(
				highlighting.WithStyle(styleName),
				highlighting.WithFormatOptions(
					chromahtml.WithClasses(true),
				),
			),
		),
		goldmark.WithParserOptions(
			parser.WithAutoHeadingID(),
		),
		goldmark.WithRendererOptions(
			gmhtml.WithHardWraps(),
			gmhtml.WithXHTML(),
		),
	)

	style := styles.Get(styleName)
	if style == nil {
		style = styles.Fallback
	}

	return &Renderer{
		md:        md,
		formatter: chromahtml.New(chromahtml.WithClasses(true), chromahtml.WithLineNumbers(true)),
		style:     style,
	}
}

// Render converts the named file's content to HTML.
func (r *Renderer) Render(name string, source []byte) (*Result, error) {
	res := &Result{Name: name, Title: name, TOC: []TOCItem{}}

	if !isText(source) {
		res.Kind = KindBinary
		return res, nil
	}

	if isMarkdown(name) {
		var buf bytes.Buffer
		if err := r.md.Convert(source, &buf); err != nil {
			return nil, err
		}
		res.Kind = KindMarkdown
		res.HTML = buf.String()
		res.TOC = r.extractTOC(source)
		if len(res.TOC) > 0 {
			res.Title = res.TOC[0].Title
		}
		return res, nil
	}

	if lexer := lexers.Match(name); lexer != nil && lexer.Config().Name != "plaintext" {
		out, err := r.highlight(chroma.Coalesce(lexer), string(source))
		if err != nil {
			return nil, err
		}
		res.Kind = KindCode
		res.HTML = out
		return res, nil
	}

	res.Kind = KindText
	res.HTML = "<pre>" + html.EscapeString(string(source)) + "</pre>"
	return res, nil
}

// CSS returns the stylesheet for highlighted output.
func (r *Renderer) CSS() (string, error) {
	var buf bytes.Buffer
	if err := r.formatter.WriteCSS(&buf, r.style); err != nil {
		return "", err
	}
	return buf.String(), nil
}

func (r *Renderer) highlight(lexer chroma.Lexer, source string) (string, error) {
	iterator, err := lexer.Tokenise(nil, source)
	if err != nil {
		return "", err
	}
	var buf bytes.Buffer
	if err := r.formatter.Format(&buf, r.style, iterator); err != nil {
		return "", err
	}
	return buf.String(), nil
}

// extractTOC walks the AST to collect headings.
func (r *Renderer) extractTOC(source []byte) []TOCItem {
	doc := r.md.Parser().Parse(text.NewReader(source))

	toc := []TOCItem{}
	err := ast.Walk(doc, func(n ast.Node, entering bool) (ast.WalkStatus, error) {
		if !entering {
			return ast.WalkContinue, nil
		}
		if heading, ok := n.(*ast.Heading); ok {
			title := headingText(heading, source)
			toc = append(toc, TOCItem{
				Level:  heading.Level,
				Title:  title,
				Anchor: anchor(title),
			})
		}
		return ast.WalkContinue, nil
	})
	if err != nil {
		return []TOCItem{}
	}
	return toc
}

func headingText(n ast.Node, source []byte) string {
	var buf bytes.Buffer
	for child := n.FirstChild(); child != nil; child = child.NextSibling() {
		if t, ok := child.(*ast.Text); ok {
			buf.Write(t.Segment.Value(source))
		}
	}
	return buf.String()
}

func anchor(title string) string {
	a := strings.ReplaceAll(strings.ToLower(title), " ", "-")
	a = anchorStrip.ReplaceAllString(a, "")
	a = anchorHyphen.ReplaceAllString(a, "-")
	return strings.Trim(a, "-")
}

func isMarkdown(name string) bool {
	switch strings.ToLower(filepath.Ext(name)) {
	case ".md", ".markdown", ".mdown":
		return true
	}
	return false
}

// isText reports whether content looks like UTF-8 text.
func isText(b []byte) bool {
	if bytes.IndexByte(b, 0) >= 0 {
		return false
	}
	return utf8.Valid(b)
}
