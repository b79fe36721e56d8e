package acs

import (
	"io"
	"strings"

	"golang.org/x/net/html"
	"golang.org/x/net/html/atom"
)

// Form is the first HTML form of an ACS page: its action and the values of
// its named inputs.
type Form struct {
	Action string
	Method string
	Fields map[string]string
}

func (f Form) Value(name string) string {
	if f.Fields == nil {
		return ""
	}
	return f.Fields[name]
}

// ParseForm reads the first form of an HTML document. ACS pages hand the
// result back through an auto-submitting form with hidden inputs.
func ParseForm(r io.Reader) (Form, bool, error) {
	tokenizer := html.NewTokenizer(r)
	form := Form{Fields: map[string]string{}}
	inForm := false
	for {
		switch tokenizer.Next() {
		case html.ErrorToken:
			if err := tokenizer.Err(); err != io.EOF {
				return Form{}, false, err
			}
			return form, inForm, nil
		case html.EndTagToken:
			name, _ := tokenizer.TagName()
			if inForm && atom.Lookup(name) == atom.Form {
				return form, true, nil
			}
		case html.StartTagToken, html.SelfClosingTagToken:
			name, hasAttr := tokenizer.TagName()
			attrs := map[string]string{}
			for hasAttr {
				var key, value []byte
				key, value, hasAttr = tokenizer.TagAttr()
				attrs[strings.ToLower(string(key))] = string(value)
			}
			switch atom.Lookup(name) {
			case atom.Form:
				if inForm {
					continue
				}
				inForm = true
				form.Action = strings.TrimSpace(attrs["action"])
				form.Method = strings.ToUpper(strings.TrimSpace(attrs["method"]))
			case atom.Input:
				if !inForm {
					continue
				}
				if field := strings.TrimSpace(attrs["name"]); field != "" {
					form.Fields[field] = attrs["value"]
				}
			}
		}
	}
}
