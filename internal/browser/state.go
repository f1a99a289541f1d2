package browser

import (
	"fmt"
	"strings"
)

// Element is one interactive element on the current page, addressed by Index.
type Element struct {
	Index       int    `json:"index"`
	Tag         string `json:"tag"`
	Type        string `json:"type,omitempty"`
	Text        string `json:"text,omitempty"`
	Href        string `json:"href,omitempty"`
	Placeholder string `json:"placeholder,omitempty"`
}

// PageState is a compact snapshot of the page handed to the language model.
type PageState struct {
	URL      string    `json:"url"`
	Title    string    `json:"title"`
	Elements []Element `json:"elements"`
	Text     string    `json:"text"`

	// Screenshot is a base64 JPEG, only captured when vision is enabled.
	Screenshot string `json:"-"`
}

// Format renders the state as plain text for the prompt.
func (s *PageState) Format() string {
	var b strings.Builder
	fmt.Fprintf(&b, "Current URL: %s\n", s.URL)
	fmt.Fprintf(&b, "Page title: %s\n", s.Title)

	b.WriteString("\nInteractive elements:\n")
	if len(s.Elements) == 0 {
		b.WriteString("(none)\n")
	}
	for _, el := range s.Elements {
		b.WriteString(el.describe())
		b.WriteByte('\n')
	}

	if s.Text != "" {
		b.WriteString("\nVisible text:\n")
		b.WriteString(s.Text)
		b.WriteByte('\n')
	}
	return b.String()
}

func (e Element) describe() string {
	var attrs []string
	if e.Type != "" {
		attrs = append(attrs, fmt.Sprintf("type=%q", e.Type))
	}
	if e.Href != "" {
		attrs = append(attrs, fmt.Sprintf("href=%q", Truncate(e.Href, 120)))
	}
	if e.Placeholder != "" {
		attrs = append(attrs, fmt.Sprintf("placeholder=%q", e.Placeholder))
	}

	attrStr := ""
	if len(attrs) > 0 {
		attrStr = " " + strings.Join(attrs, " ")
	}
	return fmt.Sprintf("[%d]<%s%s>%s</%s>", e.Index, e.Tag, attrStr, e.Text, e.Tag)
}

// Truncate shortens a string to maxLen runes, appending "..." if truncated.
func Truncate(s string, maxLen int) string {
	r := []rune(s)
	if len(r) <= maxLen {
		return s
	}
	return string(r[:maxLen]) + "..."
}

// stateJS tags visible interactive elements with data-bb-index and returns the
// page snapshot as a JSON string. The argument caps the element count.
const stateJS = `(max, maxText) => {
	document.querySelectorAll('[data-bb-index]').forEach(e => e.removeAttribute('data-bb-index'));
	const sel = 'a[href],button,input:not([type=hidden]),textarea,select,[role=button],[role=link],[role=tab],[onclick],[contenteditable=true]';
	const out = [];
	for (const el of document.querySelectorAll(sel)) {
		if (out.length >= max) break;
		const r = el.getBoundingClientRect();
		const st = window.getComputedStyle(el);
		if (r.width === 0 || r.height === 0 || st.visibility === 'hidden' || st.display === 'none') continue;
		const idx = out.length;
		el.setAttribute('data-bb-index', String(idx));
		const label = el.innerText || el.value || el.getAttribute('aria-label') || el.getAttribute('title') || '';
		out.push({
			index: idx,
			tag: el.tagName.toLowerCase(),
			type: el.getAttribute('type') || '',
			text: label.replace(/\s+/g, ' ').trim().slice(0, 80),
			href: el.getAttribute('href') || '',
			placeholder: el.getAttribute('placeholder') || ''
		});
	}
	const text = document.body ? document.body.innerText.replace(/\n{3,}/g, '\n\n').slice(0, maxText) : '';
	return JSON.stringify({url: location.href, title: document.title, elements: out, text: text});
}`

const textJS = `() => document.body ? document.body.innerText : ''`

const scrollJS = `(dy) => window.scrollBy(0, dy * window.innerHeight * 0.8)`

func elementSelector(index int) string {
	return fmt.Sprintf(`[data-bb-index="%d"]`, index)
}
