package sparql

import (
	"fmt"

	"github.com/tidwall/gjson"
)

// Term is one RDF term in a result row.
type Term struct {
	Type     string `json:"type"`
	Value    string `json:"value"`
	Datatype string `json:"datatype,omitempty"`
	Lang     string `json:"xml:lang,omitempty"`
}

// Binding is one result row keyed by variable name. Unbound variables are absent.
type Binding map[string]Term

// Value returns the lexical value of name, or "" when unbound.
func (b Binding) Value(name string) string {
	return b[name].Value
}

// Has reports whether name is bound in this row.
func (b Binding) Has(name string) bool {
	_, ok := b[name]
	return ok
}

// Results is a decoded application/sparql-results+json document.
type Results struct {
	Vars     []string  `json:"vars"`
	Bindings []Binding `json:"bindings"`
}

// ParseResults decodes a SPARQL JSON results document.
func ParseResults(body []byte) (*Results, error) {
	if !gjson.ValidBytes(body) {
		return nil, fmt.Errorf("invalid JSON in SPARQL response")
	}
	bindings := gjson.GetBytes(body, "results.bindings")
	if !bindings.Exists() || !bindings.IsArray() {
		return nil, fmt.Errorf("SPARQL response has no results.bindings array")
	}

	res := &Results{}
	gjson.GetBytes(body, "head.vars").ForEach(func(_, v gjson.Result) bool {
		res.Vars = append(res.Vars, v.String())
		return true
	})

	bindings.ForEach(func(_, row gjson.Result) bool {
		b := make(Binding)
		row.ForEach(func(name, term gjson.Result) bool {
			b[name.String()] = Term{
				Type:     term.Get("type").String(),
				Value:    term.Get("value").String(),
				Datatype: term.Get("datatype").String(),
				Lang:     term.Get("xml:lang").String(),
			}
			return true
		})
		res.Bindings = append(res.Bindings, b)
		return true
	})
	return res, nil
}
