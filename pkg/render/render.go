package render

import (
	"fmt"
	"strings"
	"sync"

	"golang.org/x/text/language"
)

// Rendered is the product of rendering one event template: the tuple cached
// by the template cache and handed to channel backends.
type Rendered struct {
	Title string `json:"title"`
	Text  string `json:"text"`
	HTML  string `json:"html"`
}

// Template is the authored source for one (event, locale) pair. Subject and
// Text use text/template syntax, HTML uses html/template syntax; all three
// execute against the notification's context map.
type Template struct {
	Event   string
	Locale  string
	Version int
	Subject string
	Text    string
	HTML    string
}

// Registry holds compiled templates and answers Render calls. Safe for
// concurrent use; templates are compiled once at registration.
type Registry struct {
	mu            sync.RWMutex
	templates     map[string]*compiled // event + "|" + canonical locale
	versions      map[string]int       // event -> highest registered version
	defaultLocale language.Tag
}

// RegistryOption configures a Registry.
type RegistryOption func(*Registry)

// WithDefaultLocale sets the locale used when no template matches the
// requested one. Defaults to English.
func WithDefaultLocale(locale string) RegistryOption {
	return func(r *Registry) {
		if tag, err := language.Parse(locale); err == nil {
			r.defaultLocale = tag
		}
	}
}

// NewRegistry creates an empty template registry.
func NewRegistry(opts ...RegistryOption) *Registry {
	r := &Registry{
		templates:     make(map[string]*compiled),
		versions:      make(map[string]int),
		defaultLocale: language.English,
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Register compiles and stores a template. Registering the same
// (event, locale) again replaces the previous template; the event version is
// raised to the highest version seen so stale cache entries are bypassed.
func (r *Registry) Register(tpl Template) error {
	if tpl.Event == "" {
		return fmt.Errorf("%w: empty event key", ErrInvalidTemplate)
	}

	tag, err := language.Parse(normalizeLocale(tpl.Locale))
	if err != nil {
		return fmt.Errorf("%w: locale %q: %v", ErrInvalidTemplate, tpl.Locale, err)
	}

	c, err := compile(tpl)
	if err != nil {
		return err
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	r.templates[templateKey(tpl.Event, tag)] = c
	if tpl.Version > r.versions[tpl.Event] {
		r.versions[tpl.Event] = tpl.Version
	}
	return nil
}

// Render executes the template for (event, locale) against the context map.
// Lookup order: exact locale, base language, registry default. A missing
// template or an execution failure yields a *Error.
func (r *Registry) Render(event, locale string, context map[string]any) (Rendered, error) {
	c, ok := r.lookup(event, locale)
	if !ok {
		return Rendered{}, &Error{Event: event, Locale: locale, Reason: "template not registered"}
	}
	return c.execute(event, locale, context)
}

// Version reports the highest registered version for an event. Unregistered
// events report zero, which keeps their cache keys stable.
func (r *Registry) Version(event string) int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.versions[event]
}

// Locale canonicalizes a raw locale string for use in cache keys, falling
// back to the registry default when the input does not parse.
func (r *Registry) Locale(raw string) string {
	tag, err := language.Parse(normalizeLocale(raw))
	if err != nil {
		tag = r.defaultLocale
	}
	return tag.String()
}

func (r *Registry) lookup(event, locale string) (*compiled, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	tag, err := language.Parse(normalizeLocale(locale))
	if err == nil {
		if c, ok := r.templates[templateKey(event, tag)]; ok {
			return c, true
		}
		if base, conf := tag.Base(); conf != language.No {
			if baseTag, err := language.Parse(base.String()); err == nil {
				if c, ok := r.templates[templateKey(event, baseTag)]; ok {
					return c, true
				}
			}
		}
	}

	c, ok := r.templates[templateKey(event, r.defaultLocale)]
	return c, ok
}

func templateKey(event string, tag language.Tag) string {
	return event + "|" + tag.String()
}

func normalizeLocale(locale string) string {
	if locale == "" {
		return "en"
	}
	return strings.ReplaceAll(locale, "_", "-")
}
