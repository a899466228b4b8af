package workflow

import (
	"fmt"
	"strings"
)

// TemplateResolver substitutes {var} tokens in a template string from
// context. Implementations must leave unresolved tokens literal.
type TemplateResolver interface {
	Resolve(template string, context map[string]any) string
}

// SimpleTemplateResolver is a minimal reference TemplateResolver:
// {var} tokens are replaced by the natural string representation of
// context[var]; unresolved tokens are left as-is. This is the default
// supplied when an Engine is constructed without WithTemplateResolver —
// the kernel needs some resolver to exercise StandardNodeExecutor and
// StaticPlanner end to end, even though template substitution itself is
// an external collaborator's concern.
type SimpleTemplateResolver struct{}

// NewSimpleTemplateResolver constructs a SimpleTemplateResolver.
func NewSimpleTemplateResolver() *SimpleTemplateResolver {
	return &SimpleTemplateResolver{}
}

// Resolve implements TemplateResolver.
func (SimpleTemplateResolver) Resolve(template string, context map[string]any) string {
	return ResolveTemplate(template, context)
}

// ResolveTemplate performs {var} substitution against a plain map,
// shared by SimpleTemplateResolver and StaticPlanner's recursive
// placeholder resolution.
func ResolveTemplate(template string, context map[string]any) string {
	var b strings.Builder
	i := 0
	for i < len(template) {
		open := strings.IndexByte(template[i:], '{')
		if open < 0 {
			b.WriteString(template[i:])
			break
		}
		open += i
		b.WriteString(template[i:open])

		close := strings.IndexByte(template[open:], '}')
		if close < 0 {
			b.WriteString(template[open:])
			break
		}
		close += open

		key := template[open+1 : close]
		if v, ok := context[key]; ok {
			b.WriteString(stringify(v))
		} else {
			b.WriteString(template[open : close+1])
		}
		i = close + 1
	}
	return b.String()
}

func stringify(v any) string {
	switch t := v.(type) {
	case string:
		return t
	case fmt.Stringer:
		return t.String()
	default:
		return fmt.Sprint(v)
	}
}
