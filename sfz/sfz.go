// Package sfz loads SFZ instrument files into regions with decoded samples.
//
// The loader understands the structure of the format (sections, opcode inheritance,
// #define and #include) and the opcodes needed to map notes to samples. Opcodes
// it does not implement are reported once through the logger and otherwise ignored.
package sfz

import (
	"errors"
	"fmt"
	"log/slog"
	"path/filepath"
	"regexp"
	"strings"

	"github.com/mycophonic/liquidsfz"
	"github.com/mycophonic/liquidsfz/audiofile"
)

var (
	// ErrSyntax is returned for malformed preprocessor directives and comments.
	ErrSyntax = errors.New("sfz syntax error")
	// ErrInvalidValue is returned when an opcode value cannot be parsed.
	ErrInvalidValue = errors.New("invalid opcode value")
	// ErrIncludeDepth is returned when #include nesting is too deep, usually a cycle.
	ErrIncludeDepth = errors.New("#include nesting too deep")
)

//nolint:gochecknoglobals
var (
	headerRE = regexp.MustCompile(`<(\w+)>`)
	opcodeRE = regexp.MustCompile(`(\w+)=`)
)

// Instrument is a parsed SFZ file.
type Instrument struct {
	Path    string
	Regions []*Region
	// Samples holds every decoded sample, keyed by resolved path.
	Samples map[string]*liquidsfz.Sample
}

// opcode is one name=value pair with the position it came from.
type opcode struct {
	name  string
	value string
	file  string
	line  int
}

// Loader parses SFZ files. The zero value is ready to use and logs to slog.Default().
type Loader struct {
	Logger *slog.Logger

	warned map[string]struct{}
}

// Load parses the SFZ file at path with a default Loader.
func Load(path string) (*Instrument, error) {
	return (&Loader{}).Load(path)
}

// Load parses the SFZ file at path and decodes every sample it references.
func (l *Loader) Load(path string) (*Instrument, error) {
	l.warned = make(map[string]struct{})

	root := filepath.Dir(path)

	lines, err := newPreprocessor(root).file(path, 0)
	if err != nil {
		return nil, err
	}

	control, regionOpcodes := l.sections(lines)

	defaultPath := ""

	for _, op := range control {
		switch op.name {
		case "default_path":
			defaultPath = filepath.FromSlash(strings.ReplaceAll(op.value, "\\", "/"))
		default:
			l.warn("unsupported control opcode", op)
		}
	}

	inst := &Instrument{
		Path:    path,
		Samples: make(map[string]*liquidsfz.Sample),
	}

	for _, ops := range regionOpcodes {
		region := newRegion()

		for _, op := range ops {
			known, err := region.apply(op.name, op.value)
			if err != nil {
				return nil, fmt.Errorf("%s:%d: %w", op.file, op.line, err)
			}

			if !known {
				l.warn("unsupported opcode", op)
			}
		}

		if region.Sample == "" {
			l.logger().Warn("skipping region without sample", "file", ops.lastFile(), "line", ops.lastLine())

			continue
		}

		if strings.HasPrefix(region.Sample, "*") {
			l.logger().Warn("skipping region with generated sample", "sample", region.Sample)

			continue
		}

		region.Sample = resolveSample(root, defaultPath, region.Sample)

		data, err := l.sample(inst, region.Sample)
		if err != nil {
			return nil, err
		}

		region.Data = data
		inst.Regions = append(inst.Regions, region)
	}

	l.logger().Debug("instrument loaded", "path", path, "regions", len(inst.Regions), "samples", len(inst.Samples))

	return inst, nil
}

// sections splits the source into control opcodes and the fully inherited opcode list of each region.
func (l *Loader) sections(lines []line) ([]opcode, []opcodeList) {
	var (
		control, global, master, group, current []opcode
		regions                                 []opcodeList
		section                                 = "none"
	)

	flush := func() {
		if section != "region" {
			return
		}

		ops := make(opcodeList, 0, len(global)+len(master)+len(group)+len(current))
		ops = append(ops, global...)
		ops = append(ops, master...)
		ops = append(ops, group...)
		ops = append(ops, current...)
		regions = append(regions, ops)
		current = nil
	}

	add := func(op opcode) {
		switch section {
		case "control":
			control = append(control, op)
		case "global":
			global = append(global, op)
		case "master":
			master = append(master, op)
		case "group":
			group = append(group, op)
		case "region":
			current = append(current, op)
		case "none":
			l.warn("opcode outside of any section", op)
		}
	}

	for _, src := range lines {
		text := src.text
		headers := headerRE.FindAllStringSubmatchIndex(text, -1)
		pos := 0

		for _, h := range headers {
			l.opcodes(text[pos:h[0]], src, add)

			flush()

			name := text[h[2]:h[3]]

			switch name {
			case "region":
			case "group":
				group = nil
			case "master":
				master, group = nil, nil
			case "global":
				global, master, group = nil, nil, nil
			case "control":
			default:
				l.warn("unsupported section", opcode{name: "<" + name + ">", file: src.file, line: src.num})

				name = "ignored"
			}

			section = name
			pos = h[1]
		}

		l.opcodes(text[pos:], src, add)
	}

	flush()

	return control, regions
}

// opcodes splits text into name=value pairs. A value runs until the next name=.
func (l *Loader) opcodes(text string, src line, add func(opcode)) {
	matches := opcodeRE.FindAllStringSubmatchIndex(text, -1)

	if len(matches) == 0 {
		if strings.TrimSpace(text) != "" {
			l.logger().Warn("ignoring text without opcode", "file", src.file, "line", src.num, "text", strings.TrimSpace(text))
		}

		return
	}

	for i, m := range matches {
		end := len(text)
		if i+1 < len(matches) {
			end = matches[i+1][0]
		}

		add(opcode{
			name:  text[m[2]:m[3]],
			value: strings.TrimSpace(text[m[1]:end]),
			file:  src.file,
			line:  src.num,
		})
	}
}

func (l *Loader) sample(inst *Instrument, path string) (*liquidsfz.Sample, error) {
	if data, ok := inst.Samples[path]; ok {
		return data, nil
	}

	data, err := audiofile.Load(path)
	if err != nil {
		return nil, fmt.Errorf("loading sample: %w", err)
	}

	inst.Samples[path] = data

	return data, nil
}

func (l *Loader) warn(msg string, op opcode) {
	if _, done := l.warned[msg+op.name]; done {
		return
	}

	l.warned[msg+op.name] = struct{}{}
	l.logger().Warn(msg, "opcode", op.name, "file", op.file, "line", op.line)
}

func (l *Loader) logger() *slog.Logger {
	if l.Logger == nil {
		return slog.Default()
	}

	return l.Logger
}

func resolveSample(root, defaultPath, sample string) string {
	sample = filepath.FromSlash(strings.ReplaceAll(sample, "\\", "/"))
	if filepath.IsAbs(sample) {
		return sample
	}

	return filepath.Join(root, defaultPath, sample)
}

type opcodeList []opcode

func (o opcodeList) lastFile() string {
	if len(o) == 0 {
		return ""
	}

	return o[len(o)-1].file
}

func (o opcodeList) lastLine() int {
	if len(o) == 0 {
		return 0
	}

	return o[len(o)-1].line
}
