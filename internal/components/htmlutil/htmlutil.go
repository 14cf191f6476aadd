package htmlutil

import (
	"bytes"
	"regexp"
	"strings"
	"unicode"

	"golang.org/x/net/html"
)

// GetText returns the text of `node` and all of its descendants.
func GetText(node *html.Node) string {
	var buffer bytes.Buffer
	getTextRecursive(node, &buffer)
	return buffer.String()
}

func getTextRecursive(node *html.Node, buffer *bytes.Buffer) {
	if node == nil {
		return
	}
	if node.Type == html.TextNode {
		buffer.WriteString(node.Data)
		return
	}
	child := node.FirstChild
	for child != nil {
		getTextRecursive(child, buffer)
		child = child.NextSibling
	}
}

// TextAfter returns the text of every sibling following `node`, descending into elements.
func TextAfter(node *html.Node) string {
	var buffer bytes.Buffer
	for sibling := node.NextSibling; sibling != nil; sibling = sibling.NextSibling {
		getTextRecursive(sibling, &buffer)
	}
	return buffer.String()
}

var innerWhitespace = regexp.MustCompile(`\s\s+`)

func removeNonPrintable(s string) string {
	newStr := strings.Builder{}
	for _, c := range s {
		if unicode.IsPrint(c) || c == '\n' || c == '\t' {
			newStr.WriteRune(c)
		}
	}
	return newStr.String()
}

// CleanText strips non-printable runes, trims the text and collapses inner whitespace.
func CleanText(text string) string {
	text = removeNonPrintable(text)
	text = strings.Trim(text, " \t\n\r")
	text = innerWhitespace.ReplaceAllString(text, " ")
	return text
}
