package render

import (
	"bytes"
	"regexp"
	"strings"

	"github.com/yuin/goldmark"
	"github.com/yuin/goldmark/extension"
)

var md = goldmark.New(goldmark.WithExtensions(extension.GFM))

// Markdown converts model-written Markdown to HTML. Raw HTML in the input
// is not passed through.
func Markdown(src string) (string, error) {
	var buf bytes.Buffer
	if err := md.Convert([]byte(normalizeNumbered(src)), &buf); err != nil {
		return "", err
	}
	return buf.String(), nil
}

var inlineNumbered = regexp.MustCompile(`([^\s])[ \t]+(\d+\.)[ \t]`)

// 模型有时把编号列表写在同一行，这里在编号前补换行，让列表正常渲染。
func normalizeNumbered(src string) string {
	src = strings.ReplaceAll(src, "\r\n", "\n")
	return inlineNumbered.ReplaceAllString(src, "$1\n$2 ")
}
