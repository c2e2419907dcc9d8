// Package stache compiles Handlebars-like templates into Go code.
//
// Templates embed Go expressions. A template is parsed, lowered into a flat
// HIR with every identifier resolved and every compile-time constant
// folded, and printed as a Render method on the template's data type. No
// template is parsed at run time.
//
// # Quick Start
//
//	env := stache.NewEnvironment(loader.NewFS(os.DirFS("views")), stache.Config{})
//	unit, err := env.Compile("page.html")
//	if err != nil {
//		log.Fatalf("%+v", err)
//	}
//	src, err := unit.Source("views", "Page")
//
// # Template Syntax
//
// Key syntax elements:
//   - Output: {{ Name }} escaped, {{{ Body }}} unescaped
//   - Helpers: {{#if Cond}}...{{else if Other}}...{{else}}...{{/if}},
//     {{#each Items}}, {{#with Item}}, {{#unless Cond}}
//   - Locals: {{ let n = len(Items) }}
//   - Partials: {{> card Item title = "x"}}, {{#> layout}}body{{/layout}}
//     and {{> @partial-block}} inside the partial
//   - JSON: {{ @json Data }}, {{ @json_pretty Data }}
//   - Raw text: {{R}}{{ not parsed }}{{/R}}
//   - Comments: {{! note }} and {{!-- note --}}
//
// A ~ next to a delimiter trims the whitespace on that side of the tag.
//
// Bare names refer to the innermost each or with target, falling back to
// the template data at the top level. Inside an each, this is the element,
// index0 and index count from 0 and 1 and first reports the first
// iteration. super.Name looks one helper further out.
//
// # Escaping
//
// Whether {{ }} output is HTML-escaped is decided per template name by
// Config.AutoEscape; DefaultAutoEscape escapes .html, .htm, .xml and .svg
// templates.
//
// # DOM Programs
//
// With Config.DOM set, Compile also builds a dom.Program: the template's
// static markup parsed once, with every dynamic position tracked by a
// dirty bit so an update touches only what changed.
package stache
