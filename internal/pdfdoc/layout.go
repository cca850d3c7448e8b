package pdfdoc

import (
	"encoding/base64"
	"errors"
	"fmt"
	"strconv"
	"strings"

	"golang.org/x/net/html"
	"golang.org/x/net/html/atom"
)

// parseLayout reads MuPDF structured-text HTML: one absolutely positioned
// <p> per text line and one <img> per image block, each with a "top:..pt"
// style. Image payloads are inline data URIs.
func parseLayout(markup string, xrefs *xrefTable) (PageLayout, error) {
	root, err := html.Parse(strings.NewReader(markup))
	if err != nil {
		return PageLayout{}, fmt.Errorf("parse html: %w", err)
	}

	var layout PageLayout
	var walk func(n *html.Node)
	walk = func(n *html.Node) {
		if n.Type == html.ElementNode {
			switch n.DataAtom {
			case atom.P:
				text := strings.TrimSpace(nodeText(n))
				if text != "" {
					layout.Blocks = append(layout.Blocks, TextBlock{Text: text, Y: styleTop(attr(n, "style"))})
				}
				return
			case atom.Img:
				img, err := decodeImage(n, xrefs)
				if err == nil {
					layout.Images = append(layout.Images, img)
				}
				return
			}
		}
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			walk(c)
		}
	}
	walk(root)
	return layout, nil
}

func decodeImage(n *html.Node, xrefs *xrefTable) (PlacedImage, error) {
	mime, data, err := decodeDataURI(attr(n, "src"))
	if err != nil {
		return PlacedImage{}, err
	}
	w, h := pixelSize(data)
	return PlacedImage{
		Xref:   xrefs.lookup(data),
		Data:   data,
		Width:  w,
		Height: h,
		Ext:    extForMIME(mime),
		Y:      styleTop(attr(n, "style")),
	}, nil
}

var errNotDataURI = errors.New("image source is not a base64 data uri")

func decodeDataURI(src string) (string, []byte, error) {
	rest, ok := strings.CutPrefix(src, "data:")
	if !ok {
		return "", nil, errNotDataURI
	}
	meta, payload, ok := strings.Cut(rest, ",")
	if !ok || !strings.HasSuffix(meta, ";base64") {
		return "", nil, errNotDataURI
	}
	data, err := base64.StdEncoding.DecodeString(payload)
	if err != nil {
		return "", nil, fmt.Errorf("decode image payload: %w", err)
	}
	return strings.TrimSuffix(meta, ";base64"), data, nil
}

func extForMIME(mime string) string {
	sub, ok := strings.CutPrefix(strings.ToLower(mime), "image/")
	if !ok || sub == "" {
		return "bin"
	}
	switch sub {
	case "jpg", "pjpeg":
		return "jpeg"
	case "x-ms-bmp":
		return "bmp"
	}
	return sub
}

// styleTop extracts the "top" property of an inline style in points.
func styleTop(style string) float64 {
	for _, decl := range strings.Split(style, ";") {
		key, val, ok := strings.Cut(decl, ":")
		if !ok || strings.TrimSpace(key) != "top" {
			continue
		}
		val = strings.TrimSuffix(strings.TrimSpace(val), "pt")
		if f, err := strconv.ParseFloat(val, 64); err == nil {
			return f
		}
	}
	return 0
}

func attr(n *html.Node, key string) string {
	for _, a := range n.Attr {
		if a.Key == key {
			return a.Val
		}
	}
	return ""
}

func nodeText(n *html.Node) string {
	var b strings.Builder
	var walk func(*html.Node)
	walk = func(n *html.Node) {
		if n.Type == html.TextNode {
			b.WriteString(n.Data)
		}
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			walk(c)
		}
	}
	walk(n)
	return b.String()
}
