// Package ifc parses IFC files (STEP physical file format, ISO 10303-21)
// and extracts product and relationship records for ingestion.
//
// The parser understands the subset of STEP needed for IFC 4.3 models:
// entity instances of the form "#12=IFCWALL('gid',#5,'name',...);" with
// string, enum, number, reference, list and typed arguments. Schema
// knowledge (which argument is Name, which entities are products) lives in
// the extractor, not here.
package ifc

import (
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/bimatlas/bimatlas/internal/types"
)

// ArgKind discriminates the decoded STEP argument variants.
type ArgKind int

const (
	ArgNull    ArgKind = iota // $
	ArgDerived                // *
	ArgString
	ArgNumber
	ArgEnum // .ELEMENT.
	ArgRef  // #123
	ArgList // ( ... )
	ArgTyped
)

// Arg is one decoded argument of an entity instance.
type Arg struct {
	Kind   ArgKind
	Str    string  // ArgString: decoded text; ArgEnum: bare enum name; ArgTyped: type name
	Num    float64 // ArgNumber
	Ref    int64   // ArgRef
	List   []Arg   // ArgList; ArgTyped: the wrapped arguments
}

// Entity is one parsed entity instance from the DATA section.
type Entity struct {
	ID   int64
	Type string // uppercase STEP name normalised to Ifc camel case, e.g. "IfcWall"
	Args []Arg
}

// String returns the string argument at index i, or "" when the argument is
// missing, null or not a string.
func (e *Entity) String(i int) string {
	if i < 0 || i >= len(e.Args) || e.Args[i].Kind != ArgString {
		return ""
	}
	return e.Args[i].Str
}

// RefAt returns the entity reference at index i, or 0 when absent.
func (e *Entity) RefAt(i int) int64 {
	if i < 0 || i >= len(e.Args) || e.Args[i].Kind != ArgRef {
		return 0
	}
	return e.Args[i].Ref
}

// FloatAt returns the numeric argument at index i. Typed wrappers such as
// IFCLENGTHMEASURE(2.5) unwrap to their inner number.
func (e *Entity) FloatAt(i int) (float64, bool) {
	if i < 0 || i >= len(e.Args) {
		return 0, false
	}
	a := e.Args[i]
	if a.Kind == ArgTyped && len(a.List) == 1 && a.List[0].Kind == ArgNumber {
		return a.List[0].Num, true
	}
	if a.Kind != ArgNumber {
		return 0, false
	}
	return a.Num, true
}

// ListAt returns the list argument at index i, or nil.
func (e *Entity) ListAt(i int) []Arg {
	if i < 0 || i >= len(e.Args) || e.Args[i].Kind != ArgList {
		return nil
	}
	return e.Args[i].List
}

// File is a parsed IFC model: entity instances indexed by id and by type.
type File struct {
	Path     string
	Schema   string // from FILE_SCHEMA, e.g. "IFC4X3"
	byID     map[int64]*Entity
	byType   map[string][]*Entity
	entities []*Entity
}

// ByID resolves an entity reference. Returns nil for dangling references.
func (f *File) ByID(id int64) *Entity {
	return f.byID[id]
}

// ByType returns all instances of the given entity type, in file order.
// The lookup is case-insensitive.
func (f *File) ByType(name string) []*Entity {
	return f.byType[strings.ToUpper(name)]
}

// Entities returns all instances in file order.
func (f *File) Entities() []*Entity {
	return f.entities
}

// Deref follows a reference argument to its entity, or nil.
func (f *File) Deref(a Arg) *Entity {
	if a.Kind != ArgRef {
		return nil
	}
	return f.byID[a.Ref]
}

// Open reads and parses an IFC file from disk.
func Open(path string) (*File, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("%w: open %s: %v", types.ErrExtraction, path, err)
	}
	f, err := Parse(data)
	if err != nil {
		return nil, err
	}
	f.Path = path
	return f, nil
}

// Parse parses IFC file contents.
func Parse(data []byte) (*File, error) {
	p := &parser{src: string(data)}
	f := &File{
		byID:   make(map[int64]*Entity),
		byType: make(map[string][]*Entity),
	}

	if !p.expectKeyword("ISO-10303-21") {
		return nil, fmt.Errorf("%w: not a STEP file (missing ISO-10303-21 header)", types.ErrExtraction)
	}

	for {
		p.skipSpace()
		if p.eof() {
			return nil, fmt.Errorf("%w: unexpected end of file before END-ISO-10303-21", types.ErrExtraction)
		}
		kw := p.readKeyword()
		switch {
		case kw == "END-ISO-10303-21":
			return f, nil
		case kw == "HEADER":
			if err := p.skipStatement(); err != nil {
				return nil, err
			}
			if err := p.parseHeader(f); err != nil {
				return nil, err
			}
		case kw == "DATA":
			if err := p.skipStatement(); err != nil {
				return nil, err
			}
			if err := p.parseData(f); err != nil {
				return nil, err
			}
		default:
			// Unknown top-level section; skip its statement terminator.
			if err := p.skipStatement(); err != nil {
				return nil, err
			}
		}
	}
}

type parser struct {
	src string
	pos int
}

func (p *parser) eof() bool { return p.pos >= len(p.src) }

func (p *parser) skipSpace() {
	for p.pos < len(p.src) {
		c := p.src[p.pos]
		if c == ' ' || c == '\t' || c == '\r' || c == '\n' {
			p.pos++
			continue
		}
		// Block comments.
		if c == '/' && p.pos+1 < len(p.src) && p.src[p.pos+1] == '*' {
			end := strings.Index(p.src[p.pos+2:], "*/")
			if end < 0 {
				p.pos = len(p.src)
				return
			}
			p.pos += 2 + end + 2
			continue
		}
		return
	}
}

func (p *parser) expectKeyword(kw string) bool {
	p.skipSpace()
	if !strings.HasPrefix(p.src[p.pos:], kw) {
		return false
	}
	p.pos += len(kw)
	p.skipSpace()
	if p.pos < len(p.src) && p.src[p.pos] == ';' {
		p.pos++
	}
	return true
}

// readKeyword reads an upper-case keyword (section or entity name).
func (p *parser) readKeyword() string {
	p.skipSpace()
	start := p.pos
	for p.pos < len(p.src) {
		c := p.src[p.pos]
		if (c >= 'A' && c <= 'Z') || (c >= '0' && c <= '9') || c == '_' || c == '-' {
			p.pos++
			continue
		}
		break
	}
	return p.src[start:p.pos]
}

// skipStatement consumes input up to and including the next ';' outside a
// string literal.
func (p *parser) skipStatement() error {
	inString := false
	for p.pos < len(p.src) {
		c := p.src[p.pos]
		if inString {
			if c == '\'' {
				if p.pos+1 < len(p.src) && p.src[p.pos+1] == '\'' {
					p.pos += 2
					continue
				}
				inString = false
			}
			p.pos++
			continue
		}
		switch c {
		case '\'':
			inString = true
			p.pos++
		case ';':
			p.pos++
			return nil
		default:
			p.pos++
		}
	}
	return fmt.Errorf("%w: unterminated statement", types.ErrExtraction)
}

// parseHeader scans header statements for FILE_SCHEMA and stops at ENDSEC.
func (p *parser) parseHeader(f *File) error {
	for {
		p.skipSpace()
		if p.eof() {
			return fmt.Errorf("%w: unterminated HEADER section", types.ErrExtraction)
		}
		kw := p.readKeyword()
		if kw == "ENDSEC" {
			return p.skipStatement()
		}
		if kw == "FILE_SCHEMA" {
			args, err := p.parseArgList()
			if err != nil {
				return err
			}
			if len(args) == 1 && args[0].Kind == ArgList && len(args[0].List) > 0 {
				f.Schema = args[0].List[0].Str
			}
			if err := p.skipStatement(); err != nil {
				return err
			}
			continue
		}
		if err := p.skipStatement(); err != nil {
			return err
		}
	}
}

// parseData parses entity instances until ENDSEC.
func (p *parser) parseData(f *File) error {
	for {
		p.skipSpace()
		if p.eof() {
			return fmt.Errorf("%w: unterminated DATA section", types.ErrExtraction)
		}
		if p.src[p.pos] != '#' {
			kw := p.readKeyword()
			if kw == "ENDSEC" {
				return p.skipStatement()
			}
			return fmt.Errorf("%w: unexpected token %q in DATA section", types.ErrExtraction, kw)
		}
		ent, err := p.parseInstance()
		if err != nil {
			return err
		}
		f.byID[ent.ID] = ent
		f.entities = append(f.entities, ent)
		key := strings.ToUpper(ent.Type)
		f.byType[key] = append(f.byType[key], ent)
	}
}

// parseInstance parses "#id = TYPE(args);".
func (p *parser) parseInstance() (*Entity, error) {
	p.pos++ // '#'
	id, err := p.readInt()
	if err != nil {
		return nil, err
	}
	p.skipSpace()
	if p.eof() || p.src[p.pos] != '=' {
		return nil, fmt.Errorf("%w: entity #%d: expected '='", types.ErrExtraction, id)
	}
	p.pos++
	p.skipSpace()
	name := p.readKeyword()
	if name == "" {
		return nil, fmt.Errorf("%w: entity #%d: missing type name", types.ErrExtraction, id)
	}
	args, err := p.parseArgList()
	if err != nil {
		return nil, fmt.Errorf("%w: entity #%d: %v", types.ErrExtraction, id, err)
	}
	p.skipSpace()
	if p.pos < len(p.src) && p.src[p.pos] == ';' {
		p.pos++
	}
	return &Entity{ID: id, Type: normalizeTypeName(name), Args: args}, nil
}

func (p *parser) readInt() (int64, error) {
	p.skipSpace()
	start := p.pos
	for p.pos < len(p.src) && p.src[p.pos] >= '0' && p.src[p.pos] <= '9' {
		p.pos++
	}
	if start == p.pos {
		return 0, fmt.Errorf("%w: expected integer at offset %d", types.ErrExtraction, p.pos)
	}
	return strconv.ParseInt(p.src[start:p.pos], 10, 64)
}

// parseArgList parses "( arg, arg, ... )".
func (p *parser) parseArgList() ([]Arg, error) {
	p.skipSpace()
	if p.eof() || p.src[p.pos] != '(' {
		return nil, fmt.Errorf("expected '(' at offset %d", p.pos)
	}
	p.pos++
	var args []Arg
	for {
		p.skipSpace()
		if p.eof() {
			return nil, fmt.Errorf("unterminated argument list")
		}
		if p.src[p.pos] == ')' {
			p.pos++
			return args, nil
		}
		a, err := p.parseArg()
		if err != nil {
			return nil, err
		}
		args = append(args, a)
		p.skipSpace()
		if !p.eof() && p.src[p.pos] == ',' {
			p.pos++
		}
	}
}

func (p *parser) parseArg() (Arg, error) {
	p.skipSpace()
	if p.eof() {
		return Arg{}, fmt.Errorf("unexpected end of input in argument")
	}
	switch c := p.src[p.pos]; {
	case c == '$':
		p.pos++
		return Arg{Kind: ArgNull}, nil
	case c == '*':
		p.pos++
		return Arg{Kind: ArgDerived}, nil
	case c == '\'':
		s, err := p.parseString()
		if err != nil {
			return Arg{}, err
		}
		return Arg{Kind: ArgString, Str: s}, nil
	case c == '.':
		return p.parseEnum()
	case c == '#':
		p.pos++
		id, err := p.readInt()
		if err != nil {
			return Arg{}, fmt.Errorf("bad entity reference")
		}
		return Arg{Kind: ArgRef, Ref: id}, nil
	case c == '(':
		list, err := p.parseArgList()
		if err != nil {
			return Arg{}, err
		}
		return Arg{Kind: ArgList, List: list}, nil
	case c == '-' || c == '+' || (c >= '0' && c <= '9'):
		return p.parseNumber()
	case c >= 'A' && c <= 'Z':
		// Typed argument: IFCLENGTHMEASURE(2.5)
		name := p.readKeyword()
		inner, err := p.parseArgList()
		if err != nil {
			return Arg{}, err
		}
		return Arg{Kind: ArgTyped, Str: normalizeTypeName(name), List: inner}, nil
	default:
		return Arg{}, fmt.Errorf("unexpected character %q at offset %d", c, p.pos)
	}
}

// parseString decodes a STEP string literal. Doubled quotes decode to a
// single quote; \\ decodes to a backslash. The \X\, \X2\ and \S\ code-page
// escapes are passed through verbatim.
func (p *parser) parseString() (string, error) {
	p.pos++ // opening quote
	var b strings.Builder
	for p.pos < len(p.src) {
		c := p.src[p.pos]
		if c == '\'' {
			if p.pos+1 < len(p.src) && p.src[p.pos+1] == '\'' {
				b.WriteByte('\'')
				p.pos += 2
				continue
			}
			p.pos++
			return b.String(), nil
		}
		if c == '\\' && p.pos+1 < len(p.src) && p.src[p.pos+1] == '\\' {
			b.WriteByte('\\')
			p.pos += 2
			continue
		}
		b.WriteByte(c)
		p.pos++
	}
	return "", fmt.Errorf("unterminated string literal")
}

func (p *parser) parseEnum() (Arg, error) {
	p.pos++ // leading '.'
	start := p.pos
	for p.pos < len(p.src) && p.src[p.pos] != '.' {
		p.pos++
	}
	if p.eof() {
		return Arg{}, fmt.Errorf("unterminated enum literal")
	}
	name := p.src[start:p.pos]
	p.pos++ // trailing '.'
	return Arg{Kind: ArgEnum, Str: name}, nil
}

func (p *parser) parseNumber() (Arg, error) {
	start := p.pos
	if p.src[p.pos] == '-' || p.src[p.pos] == '+' {
		p.pos++
	}
	for p.pos < len(p.src) {
		c := p.src[p.pos]
		if (c >= '0' && c <= '9') || c == '.' || c == 'E' || c == 'e' {
			p.pos++
			continue
		}
		if (c == '-' || c == '+') && (p.src[p.pos-1] == 'E' || p.src[p.pos-1] == 'e') {
			p.pos++
			continue
		}
		break
	}
	n, err := strconv.ParseFloat(p.src[start:p.pos], 64)
	if err != nil {
		return Arg{}, fmt.Errorf("bad number %q", p.src[start:p.pos])
	}
	return Arg{Kind: ArgNumber, Num: n}, nil
}

// normalizeTypeName converts a STEP all-caps entity name like "IFCWALL" to
// the schema spelling "IfcWall" using the known-class table; unknown names
// keep their "Ifc" prefix with the remainder title-cased as a best effort.
func normalizeTypeName(step string) string {
	if canonical, ok := canonicalClassNames[step]; ok {
		return canonical
	}
	if strings.HasPrefix(step, "IFC") && len(step) > 3 {
		rest := step[3:]
		return "Ifc" + rest[:1] + strings.ToLower(rest[1:])
	}
	return step
}
