// Package dom is the narrow view of a live document that the reload engine
// needs: elements that reference stylesheets and images, the CSS object
// model behind them, and a way to reload the page. Implementations wrap an
// in-memory tree (memdom) or a real browser tab (roddom).
//
// All methods are called from the document's single event loop; none of the
// implementations are required to be safe for concurrent use.
package dom

import "errors"

var (
	// ErrUnsupported is returned when the host lacks a capability, such as
	// selector queries.
	ErrUnsupported = errors.New("dom: unsupported")

	// ErrInaccessible is returned when a stylesheet's rules cannot be read,
	// typically because it was served cross-origin.
	ErrInaccessible = errors.New("dom: stylesheet rules inaccessible")
)

// Document is a live HTML document.
type Document interface {
	// ElementsByTagName returns the elements with the given lower-case tag
	// name, in document order.
	ElementsByTagName(tag string) []Element

	// QuerySelectorAll returns the elements matching selector. It returns
	// ErrUnsupported when the host cannot evaluate selectors.
	QuerySelectorAll(selector string) ([]Element, error)

	// StyleSheets returns document.styleSheets.
	StyleSheets() []StyleSheet

	// CreateElement returns a new, detached element.
	CreateElement(tag string) Element

	// UserAgent returns the navigator user agent string.
	UserAgent() string

	// StyleFix returns the prefix-free polyfill when the page loaded one,
	// nil otherwise.
	StyleFix() StyleFix

	// Reload performs a full navigation reload.
	Reload()
}

// Element is a DOM element.
type Element interface {
	// Key identifies the element for as long as it lives in its document.
	Key() string

	// TagName returns the lower-case tag name.
	TagName() string

	// Attribute returns a content attribute.
	Attribute(name string) (string, bool)

	// Property reads an IDL property ("href", "src", "rel", "media",
	// "disabled"). URL properties are returned resolved against the
	// document base.
	Property(name string) string

	// SetProperty writes an IDL property.
	SetProperty(name, value string)

	// Style returns the element's inline style declaration.
	Style() Style

	// Sheet returns the stylesheet owned by a <link> or <style> element, or
	// nil while it has not loaded.
	Sheet() StyleSheet

	// OnLoad registers fn to run, on the document loop, when the element
	// fires its load event.
	OnLoad(fn func())

	// CloneNode returns a shallow copy of the element.
	CloneNode() Element

	// Parent returns the parent element, or nil when detached.
	Parent() Element

	// NextSibling returns the next element sibling, or nil.
	NextSibling() Element

	// InsertBefore inserts child before ref; a nil ref appends.
	InsertBefore(child, ref Element)

	// RemoveChild detaches child.
	RemoveChild(child Element)
}

// Style is a CSS declaration block addressed by camel-cased property names
// ("backgroundImage", "webkitBorderImage", "MozBorderImage").
type Style interface {
	Get(name string) string
	Set(name, value string)
}

// StyleSheet is a CSSStyleSheet.
type StyleSheet interface {
	// Key identifies the stylesheet for as long as it is attached.
	Key() string

	// Href returns the sheet's URL, empty for inline sheets.
	Href() string

	// CSSRules returns the sheet's rules, or ErrInaccessible.
	CSSRules() ([]Rule, error)

	// InsertRule parses text and inserts it at index.
	InsertRule(text string, index int) error

	// DeleteRule removes the rule at index.
	DeleteRule(index int) error
}

// RuleType mirrors CSSRule.type.
type RuleType int

const (
	UnknownRule RuleType = 0
	StyleRule   RuleType = 1
	CharsetRule RuleType = 2
	ImportRule  RuleType = 3
	MediaRule   RuleType = 4
)

// Rule is a CSSRule. Accessors that do not apply to the rule's type return
// zero values.
type Rule interface {
	Type() RuleType

	// Href is the URL of an @import rule.
	Href() string

	// Media is the media query list of an @import rule.
	Media() []string

	// StyleSheet is the sheet loaded by an @import rule, nil until loaded.
	StyleSheet() StyleSheet

	// Style is the declaration block of a style rule.
	Style() Style

	// CSSRules are the nested rules of a @media rule.
	CSSRules() ([]Rule, error)

	// ParentStyleSheet is the sheet that contains this rule.
	ParentStyleSheet() StyleSheet
}

// StyleFix is the prefix-free polyfill, which turns <link> elements into
// <style data-href> elements.
type StyleFix interface {
	Link(el Element)
}
