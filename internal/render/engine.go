// Package render turns template bodies into per-recipient email content
// using the Liquid template language.
package render

import (
	"fmt"
	"html"
	"net/url"
	"regexp"
	"strings"
	"sync"

	"github.com/osteele/liquid"
)

// Engine renders Liquid templates and caches parsed bodies by key.
type Engine struct {
	engine *liquid.Engine
	cache  sync.Map // map[string]*liquid.Template
}

// MissingVariable flags a {{ var }} with no value in the render context.
type MissingVariable struct {
	Variable string `json:"variable"`
	Message  string `json:"message"`
}

// NewEngine creates an Engine with the mailing filters registered.
func NewEngine() *Engine {
	e := &Engine{engine: liquid.NewEngine()}
	e.registerFilters()
	return e
}

func (e *Engine) registerFilters() {
	// {{ first_name | default: "Friend" }}
	e.engine.RegisterFilter("default", func(value interface{}, fallback string) interface{} {
		if value == nil {
			return fallback
		}
		if s := fmt.Sprintf("%v", value); s == "" || s == "<nil>" {
			return fallback
		}
		return value
	})

	e.engine.RegisterFilter("titlecase", func(s string) string {
		words := strings.Fields(strings.ToLower(s))
		for i, w := range words {
			words[i] = strings.ToUpper(w[:1]) + w[1:]
		}
		return strings.Join(words, " ")
	})

	e.engine.RegisterFilter("truncate", func(s string, length int) string {
		if len(s) <= length {
			return s
		}
		if length <= 3 {
			return s[:length]
		}
		return s[:length-3] + "..."
	})

	e.engine.RegisterFilter("urlencode", func(s string) string {
		return url.QueryEscape(s)
	})

	e.engine.RegisterFilter("escape", func(s string) string {
		return html.EscapeString(s)
	})

	e.engine.RegisterFilter("email_domain", func(email string) string {
		if _, domain, ok := strings.Cut(email, "@"); ok {
			return domain
		}
		return ""
	})

	e.engine.RegisterFilter("mask_email", func(email string) string {
		local, domain, ok := strings.Cut(email, "@")
		if !ok {
			return email
		}
		if len(local) <= 2 {
			return local + "***@" + domain
		}
		return local[:2] + "***@" + domain
	})
}

// Parse compiles body and reports syntax errors.
func (e *Engine) Parse(body string) error {
	_, err := e.engine.ParseString(body)
	return err
}

// Render renders body with vars. A non-empty key caches the parsed
// template; callers must change the key when the body changes.
func (e *Engine) Render(key, body string, vars map[string]interface{}) (string, error) {
	if key != "" {
		if cached, ok := e.cache.Load(key); ok {
			return cached.(*liquid.Template).RenderString(vars)
		}
	}

	tpl, err := e.engine.ParseString(body)
	if err != nil {
		return "", fmt.Errorf("parse template: %w", err)
	}
	if key != "" {
		e.cache.Store(key, tpl)
	}

	out, err := tpl.RenderString(vars)
	if err != nil {
		return "", fmt.Errorf("render template: %w", err)
	}
	return out, nil
}

// Forget drops a cached template.
func (e *Engine) Forget(key string) {
	e.cache.Delete(key)
}

var varPattern = regexp.MustCompile(`\{\{\s*([a-zA-Z_][a-zA-Z0-9_.]*?)(?:\s*\||\s*\}\})`)

// Missing lists variables referenced by body that vars does not provide.
func (e *Engine) Missing(body string, vars map[string]interface{}) []MissingVariable {
	var out []MissingVariable
	seen := make(map[string]bool)
	for _, m := range varPattern.FindAllStringSubmatch(body, -1) {
		name := strings.TrimSpace(m[1])
		if seen[name] || liquidKeywords[strings.ToLower(name)] {
			continue
		}
		seen[name] = true
		if !lookup(name, vars) {
			out = append(out, MissingVariable{
				Variable: name,
				Message:  fmt.Sprintf("Variable '%s' may not be defined for all recipients", name),
			})
		}
	}
	return out
}

func lookup(path string, vars map[string]interface{}) bool {
	var cur interface{} = vars
	for _, part := range strings.Split(path, ".") {
		m, ok := cur.(map[string]interface{})
		if !ok {
			return false
		}
		if cur, ok = m[part]; !ok {
			return false
		}
	}
	return true
}

var liquidKeywords = map[string]bool{
	"if": true, "elsif": true, "else": true, "endif": true,
	"unless": true, "endunless": true,
	"case": true, "when": true, "endcase": true,
	"for": true, "endfor": true, "forloop": true,
	"true": true, "false": true, "nil": true, "empty": true, "blank": true,
}
