package actions

import (
	"encoding/json"
	"fmt"
	"net/url"
	"strconv"
)

// Form is the read side of a submitted form. *gin.Context satisfies it.
type Form interface {
	GetPostForm(key string) (string, bool)
}

// Values adapts url.Values to Form.
type Values url.Values

func (v Values) GetPostForm(key string) (string, bool) {
	vals, ok := v[key]
	if !ok || len(vals) == 0 {
		return "", false
	}
	return vals[0], true
}

// payload builds a request body. Optional fields that are absent or empty are omitted.
type payload struct {
	form Form
	body map[string]any
	err  *Error
}

func newPayload(form Form) *payload {
	if form == nil {
		form = Values{}
	}
	return &payload{form: form, body: map[string]any{}}
}

func (p *payload) get(key string) string {
	v, _ := p.form.GetPostForm(key)
	return v
}

// Required always sends key; an absent field is sent as null.
func (p *payload) Required(key string) *payload {
	if v, ok := p.form.GetPostForm(key); ok {
		p.body[key] = v
	} else {
		p.body[key] = nil
	}
	return p
}

// String sends key only when it has a non-empty value.
func (p *payload) String(key string) *payload {
	if v := p.get(key); v != "" {
		p.body[key] = v
	}
	return p
}

// StringOr sends key, using def when it is empty.
func (p *payload) StringOr(key, def string) *payload {
	if v := p.get(key); v != "" {
		p.body[key] = v
	} else {
		p.body[key] = def
	}
	return p
}

// FirstOf sends key with the first non-empty value among key and aliases.
func (p *payload) FirstOf(key string, aliases ...string) *payload {
	for _, k := range append([]string{key}, aliases...) {
		if v := p.get(k); v != "" {
			p.body[key] = v
			return p
		}
	}
	return p
}

// RequiredFirstOf is FirstOf that sends null when every candidate is empty.
func (p *payload) RequiredFirstOf(key string, aliases ...string) *payload {
	p.FirstOf(key, aliases...)
	if _, ok := p.body[key]; !ok {
		p.body[key] = nil
	}
	return p
}

// Int sends key as an integer when present.
func (p *payload) Int(key string) *payload {
	v := p.get(key)
	if v == "" {
		return p
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		p.fail(key, err)
		return p
	}
	p.body[key] = n
	return p
}

// True sends key as true only for the literal "true".
func (p *payload) True(key string) *payload {
	p.body[key] = p.get(key) == "true"
	return p
}

// NotFalse sends key as true unless it is the literal "false".
func (p *payload) NotFalse(key string) *payload {
	p.body[key] = p.get(key) != "false"
	return p
}

// JSON sends key as a decoded JSON document when present.
func (p *payload) JSON(key string) *payload {
	v := p.get(key)
	if v == "" {
		return p
	}
	var doc any
	if err := json.Unmarshal([]byte(v), &doc); err != nil {
		p.fail(key, err)
		return p
	}
	p.body[key] = doc
	return p
}

func (p *payload) fail(key string, err error) {
	if p.err == nil {
		p.err = &Error{
			Kind:   KindValidation,
			Public: fmt.Sprintf("Invalid value for %s", key),
			Detail: err.Error(),
		}
	}
}

// Build returns the body or the first validation error.
func (p *payload) Build() (map[string]any, *Error) {
	if p.err != nil {
		return nil, p.err
	}
	return p.body, nil
}
