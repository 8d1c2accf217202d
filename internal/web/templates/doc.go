// Package templates holds the HTML fragments the server renders for
// HTMX clients. Components are written in .templ files; run `templ generate`
// after editing them.
package templates
