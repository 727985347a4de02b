// © 2026 Ilya Mateyko. All rights reserved.
// Use of this source code is governed by the ISC
// license that can be found in the LICENSE.md file.

package main

import (
	"bytes"
	"errors"
	"fmt"
	"strings"
	"text/template"

	"go.astrophena.name/prodbot/internal/catalog"
	"go.astrophena.name/prodbot/internal/logger"
	"go.astrophena.name/prodbot/internal/tgmarkup"

	"go.starlark.net/starlark"
	"go.starlark.net/syntax"
)

// Default replies.
const (
	welcomeReply     = "👋 Hello! Send me a product number and I’ll give you the link."
	foundReply       = "🔗 **{{.Name}}** (No. {{.Number}})\n{{.Link}}"
	noLinkReply      = "⚠️ Link not found for this product."
	notFoundReply    = "❌ Product not found!"
	unavailableReply = "⚠️ Service is temporarily unavailable, please try again later."
)

// config is the bot configuration that can be changed by config.star.
type config struct {
	aliases catalog.Aliases
	replies *replies
}

type replies struct {
	welcome     string
	found       *template.Template
	noLink      string
	notFound    string
	unavailable string
}

// product is passed to the found reply template.
type product struct {
	Name   string
	Number string
	Link   string
}

func defaultConfig() *config {
	return &config{
		aliases: catalog.DefaultAliases(),
		replies: &replies{
			welcome:     welcomeReply,
			found:       template.Must(template.New("found").Parse(foundReply)),
			noLink:      noLinkReply,
			notFound:    notFoundReply,
			unavailable: unavailableReply,
		},
	}
}

// reply returns the reply for a lookup of query.
//
// The found reply is converted from Markdown with placeholders in place of
// the product fields, and the fields are filled in afterwards, so that the
// values from the table are sent exactly as they are.
func (r *replies) reply(query string, res catalog.Result) (tgmarkup.Message, error) {
	switch res.Kind {
	case catalog.Found:
		var buf bytes.Buffer
		if err := r.found.Execute(&buf, product{
			Name:   tgmarkup.Placeholder(0),
			Number: tgmarkup.Placeholder(1),
			Link:   tgmarkup.Placeholder(2),
		}); err != nil {
			return tgmarkup.Message{}, err
		}
		return tgmarkup.FromMarkdown(buf.String()).Fill(
			tgmarkup.Value{Text: res.Name},
			tgmarkup.Value{Text: query},
			tgmarkup.Value{Text: res.Link, Type: tgmarkup.URL},
		), nil
	case catalog.FoundNoLink:
		return tgmarkup.FromMarkdown(r.noLink), nil
	case catalog.NotFound:
		return tgmarkup.FromMarkdown(r.notFound), nil
	default:
		return tgmarkup.FromMarkdown(r.unavailable), nil
	}
}

var (
	errAliasesType = errors.New("aliases must be a dict of lists of strings")
	errRepliesType = errors.New("replies must be a dict of strings")
)

// parseConfig executes a config.star file and returns the configuration it
// defines, falling back to defaults for everything it leaves out.
func parseConfig(filename string, src []byte, logf logger.Logf) (*config, error) {
	globals, err := starlark.ExecFileOptions(
		&syntax.FileOptions{},
		&starlark.Thread{
			Name:  "config",
			Print: func(_ *starlark.Thread, msg string) { logf("%s", msg) },
		},
		filename,
		src,
		nil,
	)
	if err != nil {
		return nil, err
	}

	cfg := defaultConfig()

	if v, ok := globals["aliases"]; ok {
		d, ok := v.(*starlark.Dict)
		if !ok {
			return nil, fmt.Errorf("%w, got %s", errAliasesType, v.Type())
		}
		var aliases catalog.Aliases
		for _, item := range d.Items() {
			key, ok := starlark.AsString(item[0])
			if !ok {
				return nil, fmt.Errorf("%w: key %s is not a string", errAliasesType, item[0])
			}
			list, err := stringList(item[1])
			if err != nil {
				return nil, fmt.Errorf("aliases[%q]: %w", key, err)
			}
			switch key {
			case "number":
				aliases.Number = list
			case "link":
				aliases.Link = list
			case "name":
				aliases.Name = list
			default:
				return nil, fmt.Errorf("aliases: unknown field %q, want number, link or name", key)
			}
		}
		cfg.aliases = aliases
	}

	if v, ok := globals["replies"]; ok {
		d, ok := v.(*starlark.Dict)
		if !ok {
			return nil, fmt.Errorf("%w, got %s", errRepliesType, v.Type())
		}
		for _, item := range d.Items() {
			key, ok := starlark.AsString(item[0])
			if !ok {
				return nil, fmt.Errorf("%w: key %s is not a string", errRepliesType, item[0])
			}
			s, ok := starlark.AsString(item[1])
			if !ok || strings.TrimSpace(s) == "" {
				return nil, fmt.Errorf("replies[%q] must be a non-empty string", key)
			}
			switch key {
			case "welcome":
				cfg.replies.welcome = s
			case "found":
				tmpl, err := parseFoundTemplate(s)
				if err != nil {
					return nil, fmt.Errorf("replies[%q]: %w", key, err)
				}
				cfg.replies.found = tmpl
			case "no_link":
				cfg.replies.noLink = s
			case "not_found":
				cfg.replies.notFound = s
			case "unavailable":
				cfg.replies.unavailable = s
			default:
				return nil, fmt.Errorf("replies: unknown reply %q", key)
			}
		}
	}

	return cfg, nil
}

// parseFoundTemplate parses the found reply and checks that it can be
// executed, so that mistakes like unknown fields are caught on startup.
func parseFoundTemplate(s string) (*template.Template, error) {
	tmpl, err := template.New("found").Option("missingkey=error").Parse(s)
	if err != nil {
		return nil, err
	}
	if err := tmpl.Execute(new(bytes.Buffer), product{Name: "Kettle", Number: "1", Link: "https://example.com"}); err != nil {
		return nil, err
	}
	return tmpl, nil
}

func stringList(v starlark.Value) ([]string, error) {
	iter, ok := v.(starlark.Iterable)
	if !ok {
		return nil, fmt.Errorf("want a list of strings, got %s", v.Type())
	}
	var list []string
	it := iter.Iterate()
	defer it.Done()
	var x starlark.Value
	for it.Next(&x) {
		s, ok := starlark.AsString(x)
		if !ok {
			return nil, fmt.Errorf("want a list of strings, got element %s", x.Type())
		}
		list = append(list, s)
	}
	if len(list) == 0 {
		return nil, errors.New("list is empty")
	}
	return list, nil
}
