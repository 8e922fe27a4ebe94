package sparql

import (
	"errors"
	"fmt"
	"net/url"
	"strings"
	"unicode"
	"unicode/utf8"
)

// LocalName returns the display form of an ontology IRI: the text after the
// last '#', then after the last '/'. A leading "has" is removed from names
// longer than three characters and the next letter is upper-cased, so
// "http://mariokart8deluxe.owl#hasGroundSpeed" becomes "GroundSpeed".
func LocalName(uri string) string {
	if uri == "" {
		return ""
	}
	name := uri
	if i := strings.LastIndex(name, "#"); i >= 0 {
		name = name[i+1:]
	}
	if i := strings.LastIndex(name, "/"); i >= 0 {
		name = name[i+1:]
	}
	if strings.HasPrefix(name, "has") && len(name) > 3 {
		rest := name[3:]
		r, size := utf8.DecodeRuneInString(rest)
		name = string(unicode.ToUpper(r)) + rest[size:]
	}
	return name
}

// LabelName returns the display form of an rdfs:label, which may itself be
// an IRI: the text after the last '#', with everything else kept as is.
func LabelName(label string) string {
	if i := strings.LastIndex(label, "#"); i >= 0 {
		return label[i+1:]
	}
	return label
}

// ErrInvalidIRI is returned for IRIs that cannot be placed in a query.
var ErrInvalidIRI = errors.New("invalid IRI")

// ValidateIRI checks that uri can be placed between angle brackets in a
// query: an absolute http(s) IRI with none of the characters SPARQL forbids.
func ValidateIRI(uri string) error {
	if uri == "" {
		return fmt.Errorf("%w: empty", ErrInvalidIRI)
	}
	if strings.ContainsAny(uri, "<>\"{}|\\^`") {
		return fmt.Errorf("%w: %q contains a forbidden character", ErrInvalidIRI, uri)
	}
	for _, r := range uri {
		if unicode.IsSpace(r) || unicode.IsControl(r) {
			return fmt.Errorf("%w: %q contains whitespace", ErrInvalidIRI, uri)
		}
	}
	u, err := url.Parse(uri)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidIRI, err)
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return fmt.Errorf("%w: %q must be http or https", ErrInvalidIRI, uri)
	}
	if u.Host == "" {
		return fmt.Errorf("%w: %q has no host", ErrInvalidIRI, uri)
	}
	return nil
}
