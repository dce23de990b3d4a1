package badge

import (
	"bytes"
	"encoding/xml"
	"errors"
	"fmt"
	"io"
	"strings"
)

var (
	// ErrNoText is returned when a document contains no non-empty text node
	ErrNoText = errors.New("no text node in badge document")

	// ErrMalformed is returned when a document cannot be tokenized
	ErrMalformed = errors.New("malformed badge document")
)

// Extractor pulls the displayed count out of a badge document
type Extractor interface {
	Extract(doc []byte) (string, error)
}

// SVGTextExtractor returns the content of the last non-empty <text> element.
// Shields-style badges render the label first and the value last, each
// twice (shadow and foreground), so the trailing text node is the value.
type SVGTextExtractor struct{}

// Extract implements Extractor
func (SVGTextExtractor) Extract(doc []byte) (string, error) {
	decoder := xml.NewDecoder(bytes.NewReader(doc))
	decoder.Strict = false
	decoder.AutoClose = xml.HTMLAutoClose
	decoder.Entity = xml.HTMLEntity

	var (
		last    string
		depth   int
		current strings.Builder
	)

	for {
		token, err := decoder.Token()
		if err == io.EOF {
			break
		}
		if err != nil {
			return "", fmt.Errorf("%w: %v", ErrMalformed, err)
		}

		switch t := token.(type) {
		case xml.StartElement:
			if t.Name.Local == "text" {
				if depth == 0 {
					current.Reset()
				}
				depth++
			}
		case xml.EndElement:
			if t.Name.Local == "text" && depth > 0 {
				depth--
				if depth == 0 {
					if text := strings.TrimSpace(current.String()); text != "" {
						last = text
					}
				}
			}
		case xml.CharData:
			// includes <tspan> content nested inside <text>
			if depth > 0 {
				current.Write(t)
			}
		}
	}

	if last == "" {
		return "", ErrNoText
	}
	return last, nil
}
