package server

import (
	"bytes"
	"embed"
	"fmt"
	"html/template"
	"io/fs"
	"strings"
	"time"

	"github.com/jrsteele09/go-source-portal/agreements"
)

//go:embed templates/*
var templateFiles embed.FS

// layoutTemplate wraps every page; pages define a "content" block
const layoutTemplate = "layout.html"

func TemplateFilesFS() fs.FS {
	subFS, err := fs.Sub(templateFiles, "templates")
	if err != nil {
		panic("Failed to create templates sub filesystem: " + err.Error())
	}
	return subFS
}

// pageSet holds one parsed template per page, each joined with the layout
type pageSet struct {
	pages map[string]*template.Template
}

func parsePages(funcs template.FuncMap) (*pageSet, error) {
	fsys := TemplateFilesFS()
	names, err := fs.Glob(fsys, "*.html")
	if err != nil {
		return nil, err
	}

	set := &pageSet{pages: make(map[string]*template.Template, len(names))}
	for _, name := range names {
		if name == layoutTemplate {
			continue
		}
		tmpl, err := template.New(layoutTemplate).Funcs(funcs).ParseFS(fsys, layoutTemplate, name)
		if err != nil {
			return nil, fmt.Errorf("parse %s: %w", name, err)
		}
		set.pages[name] = tmpl
	}
	return set, nil
}

// render executes a page into memory so a template error never leaves a half
// written response
func (p *pageSet) render(name string, data any) ([]byte, error) {
	tmpl, ok := p.pages[name]
	if !ok {
		return nil, fmt.Errorf("unknown page %s", name)
	}
	var buf bytes.Buffer
	if err := tmpl.ExecuteTemplate(&buf, layoutTemplate, data); err != nil {
		return nil, fmt.Errorf("render %s: %w", name, err)
	}
	return buf.Bytes(), nil
}

func (s *Server) templateFuncs() template.FuncMap {
	return template.FuncMap{
		"url":         s.url,
		"date":        formatDate,
		"dateInput":   formatDateInput,
		"statusClass": statusClass,
		"filterURL": func(f agreements.Filter) string {
			if f == agreements.FilterAll {
				return s.url(RouteAgreements)
			}
			return withQuery(s.url(RouteAgreements), "status", string(f))
		},
		"agreementURL": func(id string) string {
			return s.url(agreementRoute(RouteAgreementDetail, id))
		},
		"offerURL": func(id string) string {
			return s.url(agreementRoute(RouteAgreementOffer, id))
		},
	}
}

func formatDate(t time.Time) string {
	if t.IsZero() {
		return "-"
	}
	return t.Format("02 Jan 2006")
}

func formatDateInput(t time.Time) string {
	if t.IsZero() {
		return ""
	}
	return t.Format(dateInputLayout)
}

func statusClass(s agreements.Status) string {
	return "status-" + strings.ToLower(string(s))
}
