package css

import (
	"errors"
	"io"
	"strings"
)

// Parser represents a CSS parser
type Parser struct{}

// Rule represents a CSS rule
type Rule struct {
	Selectors    []string
	Declarations []*Declaration
}

// Declaration represents a CSS declaration (property-value pair)
type Declaration struct {
	Property  string
	Value     string
	Important bool
}

// Stylesheet represents a parsed CSS stylesheet
type Stylesheet struct {
	Rules []*Rule
}

// NewParser creates a new CSS parser
func NewParser() *Parser {
	return &Parser{}
}

// ParseString parses CSS from a string
func (p *Parser) ParseString(content string) (*Stylesheet, error) {
	return p.Parse(strings.NewReader(content))
}

// Parse parses CSS from an io.Reader. Invalid rules are skipped.
func (p *Parser) Parse(r io.Reader) (*Stylesheet, error) {
	content, err := io.ReadAll(r)
	if err != nil {
		return nil, err
	}

	stylesheet := &Stylesheet{}
	for _, ruleStr := range splitRules(removeComments(string(content))) {
		rule, err := parseRule(ruleStr)
		if err != nil {
			continue
		}
		stylesheet.Rules = append(stylesheet.Rules, rule)
	}
	return stylesheet, nil
}

// ParseDeclarations parses the body of a style attribute, e.g.
// "font-size: 14px; font-weight: bold".
func ParseDeclarations(block string) []*Declaration {
	parts := strings.Split(removeComments(block), ";")
	result := make([]*Declaration, 0, len(parts))

	for _, declStr := range parts {
		property, value, ok := strings.Cut(declStr, ":")
		if !ok {
			continue
		}
		property = strings.ToLower(strings.TrimSpace(property))
		value = strings.TrimSpace(value)
		if property == "" || value == "" {
			continue
		}

		important := false
		if strings.HasSuffix(value, "!important") {
			important = true
			value = strings.TrimSpace(strings.TrimSuffix(value, "!important"))
		}

		result = append(result, &Declaration{
			Property:  property,
			Value:     value,
			Important: important,
		})
	}

	return result
}

func parseRule(ruleStr string) (*Rule, error) {
	selectorStr, body, ok := strings.Cut(ruleStr, "{")
	if !ok {
		return nil, errors.New("invalid rule format")
	}

	var selectors []string
	for _, s := range strings.Split(selectorStr, ",") {
		if s = strings.TrimSpace(s); s != "" {
			selectors = append(selectors, s)
		}
	}
	if len(selectors) == 0 {
		return nil, errors.New("no selectors found")
	}

	return &Rule{
		Selectors:    selectors,
		Declarations: ParseDeclarations(strings.TrimSuffix(strings.TrimSpace(body), "}")),
	}, nil
}

// removeComments removes CSS comments
func removeComments(content string) string {
	var result strings.Builder
	for {
		start := strings.Index(content, "/*")
		if start < 0 {
			result.WriteString(content)
			break
		}
		result.WriteString(content[:start])
		end := strings.Index(content[start+2:], "*/")
		if end < 0 {
			break
		}
		content = content[start+2+end+2:]
	}
	return result.String()
}

// splitRules splits CSS content into top-level rules
func splitRules(content string) []string {
	var rules []string
	var current strings.Builder
	depth := 0

	for i := 0; i < len(content); i++ {
		char := content[i]
		switch char {
		case '{':
			depth++
		case '}':
			depth--
			if depth == 0 {
				current.WriteByte(char)
				rules = append(rules, current.String())
				current.Reset()
				continue
			}
		}
		if depth > 0 || current.Len() > 0 || !isWhitespace(char) {
			current.WriteByte(char)
		}
	}

	return rules
}

func isWhitespace(char byte) bool {
	return char == ' ' || char == '\t' || char == '\n' || char == '\r'
}
