package printing

import (
	"fmt"
	"strings"
)

// Theme is the read-only visual configuration shared by every render.
// It is built once at start-up and passed to the renderer explicitly.
type Theme struct {
	FontFamily       string  `mapstructure:"font_family"`
	FontSizePt       float64 `mapstructure:"font_size_pt"`
	TextColor        string  `mapstructure:"text_color"`
	PrimaryColor     string  `mapstructure:"primary_color"`
	HeaderBackground string  `mapstructure:"header_background"`
	BorderColor      string  `mapstructure:"border_color"`
	StripeColor      string  `mapstructure:"stripe_color"`
	LogoURL          string  `mapstructure:"logo_url"`
	FooterText       string  `mapstructure:"footer_text"`
}

// DefaultTheme returns the built-in theme
func DefaultTheme() Theme {
	return Theme{
		FontFamily:       `"Helvetica Neue", Arial, sans-serif`,
		FontSizePt:       10,
		TextColor:        "#1f2933",
		PrimaryColor:     "#1565c0",
		HeaderBackground: "#e3f2fd",
		BorderColor:      "#cfd8dc",
		StripeColor:      "#f5f7fa",
	}
}

// WithDefaults fills empty fields from DefaultTheme
func (t Theme) WithDefaults() Theme {
	d := DefaultTheme()
	if t.FontFamily == "" {
		t.FontFamily = d.FontFamily
	}
	if t.FontSizePt <= 0 {
		t.FontSizePt = d.FontSizePt
	}
	if t.TextColor == "" {
		t.TextColor = d.TextColor
	}
	if t.PrimaryColor == "" {
		t.PrimaryColor = d.PrimaryColor
	}
	if t.HeaderBackground == "" {
		t.HeaderBackground = d.HeaderBackground
	}
	if t.BorderColor == "" {
		t.BorderColor = d.BorderColor
	}
	if t.StripeColor == "" {
		t.StripeColor = d.StripeColor
	}
	return t
}

// CSS returns the stylesheet shared by the themed template and the fallback.
// Both renderers emit the same class names so the output looks alike.
func (t Theme) CSS() string {
	t = t.WithDefaults()
	var b strings.Builder
	fmt.Fprintf(&b, ":root{--doc-text:%s;--doc-primary:%s;--doc-header-bg:%s;--doc-border:%s;--doc-stripe:%s;}",
		cssValue(t.TextColor), cssValue(t.PrimaryColor), cssValue(t.HeaderBackground),
		cssValue(t.BorderColor), cssValue(t.StripeColor))
	fmt.Fprintf(&b, "body{margin:0;font-family:%s;font-size:%.1fpt;color:var(--doc-text);}", cssValue(t.FontFamily), t.FontSizePt)
	b.WriteString(baseCSS)
	return b.String()
}

// cssValue drops characters that would let a configured value escape its declaration
func cssValue(v string) string {
	return strings.Map(func(r rune) rune {
		switch r {
		case ';', '{', '}', '<', '>':
			return -1
		}
		return r
	}, v)
}

const baseCSS = `
.doc{padding:8px 12px;}
.doc-header{display:flex;justify-content:space-between;align-items:flex-start;border-bottom:2px solid var(--doc-primary);padding-bottom:8px;margin-bottom:10px;}
.doc-title{font-size:1.6em;font-weight:700;color:var(--doc-primary);margin:0;}
.doc-meta{text-align:right;}
.doc-meta div{margin:2px 0;}
.doc-logo{max-height:48px;}
.doc-parties{display:flex;gap:16px;margin-bottom:10px;}
.doc-party{flex:1;border:1px solid var(--doc-border);padding:6px 8px;}
.doc-party h3{margin:0 0 4px;font-size:0.95em;color:var(--doc-primary);text-transform:uppercase;}
.doc-party div{margin:1px 0;}
table.doc-items{width:100%;border-collapse:collapse;}
table.doc-items th{background:var(--doc-header-bg);text-align:left;padding:4px 6px;border-bottom:1px solid var(--doc-border);}
table.doc-items td{padding:4px 6px;border-bottom:1px solid var(--doc-border);}
table.doc-items tr:nth-child(even) td{background:var(--doc-stripe);}
table.doc-items .num{text-align:right;white-space:nowrap;}
table.doc-items td.doc-empty{text-align:center;font-style:italic;padding:12px 6px;}
.doc-totals{margin-top:10px;margin-left:auto;width:45%;border-collapse:collapse;}
.doc-totals td{padding:3px 6px;}
.doc-totals td.num{text-align:right;}
.doc-totals tr.grand td{font-weight:700;border-top:2px solid var(--doc-primary);}
.doc-note{margin-top:12px;padding:6px 8px;border-left:3px solid var(--doc-primary);white-space:pre-wrap;}
.doc-footer{margin-top:16px;text-align:center;font-size:0.85em;}
.doc.receipt{padding:2px 4px;}
.doc.receipt .doc-header,.doc.receipt .doc-parties{display:block;}
.doc.receipt .doc-meta{text-align:left;}
.doc.receipt .doc-party{border:none;padding:2px 0;}
.doc.receipt .doc-totals{width:100%;}
`
