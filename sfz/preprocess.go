package sfz

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
)

// maxIncludeDepth bounds #include nesting; deeper chains are treated as cycles.
const maxIncludeDepth = 16

// line is one preprocessed source line together with its origin.
type line struct {
	file string
	num  int
	text string
}

// preprocessor expands #include and #define and strips comments.
type preprocessor struct {
	root    string // directory of the top-level instrument file
	defines map[string]string
	names   []string // define names, longest first
}

func newPreprocessor(root string) *preprocessor {
	return &preprocessor{
		root:    root,
		defines: make(map[string]string),
	}
}

func (p *preprocessor) file(path string, depth int) ([]line, error) {
	if depth > maxIncludeDepth {
		return nil, fmt.Errorf("%s: %w", path, ErrIncludeDepth)
	}

	raw, err := os.ReadFile(path) //nolint:gosec // instrument files are user supplied
	if err != nil {
		return nil, fmt.Errorf("reading instrument: %w", err)
	}

	text, err := stripComments(string(raw))
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}

	var out []line

	for i, src := range strings.Split(text, "\n") {
		num := i + 1
		src = strings.TrimSpace(src)

		switch {
		case src == "":
			continue

		case strings.HasPrefix(src, "#define"):
			if err := p.define(strings.TrimSpace(strings.TrimPrefix(src, "#define"))); err != nil {
				return nil, fmt.Errorf("%s:%d: %w", path, num, err)
			}

		case strings.HasPrefix(src, "#include"):
			target, err := includeTarget(strings.TrimSpace(strings.TrimPrefix(src, "#include")))
			if err != nil {
				return nil, fmt.Errorf("%s:%d: %w", path, num, err)
			}

			included, err := p.file(filepath.Join(p.root, target), depth+1)
			if err != nil {
				return nil, err
			}

			out = append(out, included...)

		default:
			out = append(out, line{file: path, num: num, text: p.expand(src)})
		}
	}

	return out, nil
}

func (p *preprocessor) define(rest string) error {
	name, value, _ := strings.Cut(rest, " ")
	if !strings.HasPrefix(name, "$") || len(name) < 2 {
		return fmt.Errorf("%w: bad #define %q", ErrSyntax, rest)
	}

	if _, exists := p.defines[name]; !exists {
		p.names = append(p.names, name)
		sort.SliceStable(p.names, func(i, j int) bool { return len(p.names[i]) > len(p.names[j]) })
	}

	p.defines[name] = strings.TrimSpace(value)

	return nil
}

func (p *preprocessor) expand(text string) string {
	if !strings.Contains(text, "$") {
		return text
	}

	for _, name := range p.names {
		text = strings.ReplaceAll(text, name, p.defines[name])
	}

	return text
}

func includeTarget(arg string) (string, error) {
	if len(arg) < 2 || arg[0] != '"' || arg[len(arg)-1] != '"' {
		return "", fmt.Errorf("%w: bad #include %q", ErrSyntax, arg)
	}

	return filepath.FromSlash(strings.ReplaceAll(arg[1:len(arg)-1], "\\", "/")), nil
}

// stripComments blanks // and /* */ comments in one pass, keeping newlines so line numbers stay valid.
// A /* inside a line comment does not open a block comment.
func stripComments(text string) (string, error) {
	var b strings.Builder

	b.Grow(len(text))

	inBlock := false

	for i := 0; i < len(text); i++ {
		c := text[i]

		switch {
		case inBlock:
			if c == '*' && i+1 < len(text) && text[i+1] == '/' {
				inBlock = false
				i++

				b.WriteByte(' ')
			} else if c == '\n' {
				b.WriteByte('\n')
			}
		case c == '/' && i+1 < len(text) && text[i+1] == '/':
			end := strings.IndexByte(text[i:], '\n')
			if end < 0 {
				return b.String(), nil
			}

			i += end - 1
		case c == '/' && i+1 < len(text) && text[i+1] == '*':
			inBlock = true
			i++
		default:
			b.WriteByte(c)
		}
	}

	if inBlock {
		return "", fmt.Errorf("%w: unterminated block comment", ErrSyntax)
	}

	return b.String(), nil
}
