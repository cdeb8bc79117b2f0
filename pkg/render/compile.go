package render

import (
	"fmt"
	htmltemplate "html/template"
	"strings"
	texttemplate "text/template"
)

// compiled holds the parsed template set for one (event, locale) pair.
type compiled struct {
	subject *texttemplate.Template
	text    *texttemplate.Template
	html    *htmltemplate.Template
}

func compile(tpl Template) (*compiled, error) {
	subject, err := texttemplate.New("subject").Option("missingkey=zero").Parse(tpl.Subject)
	if err != nil {
		return nil, fmt.Errorf("%w: subject: %v", ErrInvalidTemplate, err)
	}
	text, err := texttemplate.New("text").Option("missingkey=zero").Parse(tpl.Text)
	if err != nil {
		return nil, fmt.Errorf("%w: text: %v", ErrInvalidTemplate, err)
	}
	html, err := htmltemplate.New("html").Option("missingkey=zero").Parse(tpl.HTML)
	if err != nil {
		return nil, fmt.Errorf("%w: html: %v", ErrInvalidTemplate, err)
	}
	return &compiled{subject: subject, text: text, html: html}, nil
}

func (c *compiled) execute(event, locale string, context map[string]any) (Rendered, error) {
	var title, text, html strings.Builder

	if err := c.subject.Execute(&title, context); err != nil {
		return Rendered{}, &Error{Event: event, Locale: locale, Reason: "subject execution failed", Err: err}
	}
	if err := c.text.Execute(&text, context); err != nil {
		return Rendered{}, &Error{Event: event, Locale: locale, Reason: "text execution failed", Err: err}
	}
	if err := c.html.Execute(&html, context); err != nil {
		return Rendered{}, &Error{Event: event, Locale: locale, Reason: "html execution failed", Err: err}
	}

	return Rendered{
		Title: title.String(),
		Text:  text.String(),
		HTML:  html.String(),
	}, nil
}
