package ifc

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"log"
	"strconv"
	"strings"
	"time"
)

var ErrMalformed = errors.New("malformed STEP data")

// ParseSTEP loads an ISO-10303-21 exchange file into a graph. The schema is
// detected from the header and must be one of the supported schemas.
func ParseSTEP(r io.Reader) (*Graph, error) {
	startTime := time.Now()

	data, err := io.ReadAll(r)
	if err != nil {
		return nil, fmt.Errorf("failed to read model: %w", err)
	}

	h, err := readHeader(data)
	if err != nil {
		return nil, err
	}
	schema, err := h.schema()
	if err != nil {
		return nil, err
	}
	if h.dataStart < 0 {
		return nil, fmt.Errorf("%w: no DATA section", ErrMalformed)
	}

	g := NewGraph(schema)
	p := &stepParser{src: data, pos: h.dataStart}
	if err := p.parseData(g); err != nil {
		return nil, err
	}

	log.Printf("Loaded %d entities (%s) in %v", g.Len(), schema, time.Since(startTime))
	return g, nil
}

type stepParser struct {
	src []byte
	pos int
}

func (p *stepParser) parseData(g *Graph) error {
	for {
		p.skipSpace()
		if p.pos >= len(p.src) {
			return fmt.Errorf("%w: unterminated DATA section", ErrMalformed)
		}
		if p.hasPrefix("ENDSEC") {
			return nil
		}
		e, err := p.parseRecord(g.schema)
		if err != nil {
			return err
		}
		if e != nil {
			g.Add(e)
		}
	}
}

// parseRecord parses "#id=TYPE(args);". Complex instances "#id=(A()B());"
// are skipped and yield a nil entity.
func (p *stepParser) parseRecord(schema string) (*Entity, error) {
	if !p.consume('#') {
		return nil, p.errorf("expected entity id")
	}
	id, err := p.parseInt()
	if err != nil {
		return nil, err
	}
	p.skipSpace()
	if !p.consume('=') {
		return nil, p.errorf("expected '=' after #%d", id)
	}
	p.skipSpace()

	if p.peek() == '(' {
		if err := p.skipBalanced(); err != nil {
			return nil, err
		}
		p.skipSpace()
		if !p.consume(';') {
			return nil, p.errorf("expected ';' after #%d", id)
		}
		return nil, nil
	}

	typeName := strings.ToUpper(p.parseIdent())
	if typeName == "" {
		return nil, p.errorf("expected type name in #%d", id)
	}
	p.skipSpace()
	args, err := p.parseList()
	if err != nil {
		return nil, fmt.Errorf("record #%d: %w", id, err)
	}
	p.skipSpace()
	if !p.consume(';') {
		return nil, p.errorf("expected ';' after #%d", id)
	}

	e := &Entity{ID: id, Type: typeName, Args: args, attrs: make(map[string]Value)}
	for i, name := range attributeNamesFor(schema, typeName) {
		if i >= len(args) {
			break
		}
		e.attrs[strings.ToLower(name)] = args[i]
	}
	return e, nil
}

func (p *stepParser) parseList() ([]Value, error) {
	if !p.consume('(') {
		return nil, p.errorf("expected '('")
	}
	var items []Value
	for {
		p.skipSpace()
		if p.consume(')') {
			return items, nil
		}
		v, err := p.parseValue()
		if err != nil {
			return nil, err
		}
		items = append(items, v)
		p.skipSpace()
		if p.consume(',') {
			continue
		}
		if p.consume(')') {
			return items, nil
		}
		return nil, p.errorf("expected ',' or ')'")
	}
}

func (p *stepParser) parseValue() (Value, error) {
	p.skipSpace()
	c := p.peek()
	switch {
	case c == '$' || c == '*':
		p.pos++
		return Null(), nil
	case c == '#':
		p.pos++
		id, err := p.parseInt()
		if err != nil {
			return Value{}, err
		}
		return Ref(id), nil
	case c == '\'':
		s, err := p.parseString()
		if err != nil {
			return Value{}, err
		}
		return Scalar(s), nil
	case c == '"':
		p.pos++
		end := bytes.IndexByte(p.src[p.pos:], '"')
		if end < 0 {
			return Value{}, p.errorf("unterminated binary")
		}
		s := string(p.src[p.pos : p.pos+end])
		p.pos += end + 1
		return Scalar(s), nil
	case c == '.':
		end := bytes.IndexByte(p.src[p.pos+1:], '.')
		if end < 0 {
			return Value{}, p.errorf("unterminated enumeration")
		}
		s := string(p.src[p.pos : p.pos+end+2])
		p.pos += end + 2
		return Scalar(s), nil
	case c == '(':
		items, err := p.parseList()
		if err != nil {
			return Value{}, err
		}
		return List(items...), nil
	case c == '-' || c == '+' || (c >= '0' && c <= '9'):
		start := p.pos
		for p.pos < len(p.src) && strings.IndexByte("0123456789.eE+-", p.src[p.pos]) >= 0 {
			p.pos++
		}
		return Scalar(string(p.src[start:p.pos])), nil
	case isIdentStart(c):
		// typed parameter, e.g. IFCLABEL('x') or IFCLENGTHMEASURE(2.5)
		p.parseIdent()
		p.skipSpace()
		items, err := p.parseList()
		if err != nil {
			return Value{}, err
		}
		if len(items) == 1 {
			return items[0], nil
		}
		return List(items...), nil
	}
	return Value{}, p.errorf("unexpected character %q", c)
}

func (p *stepParser) parseString() (string, error) {
	p.pos++ // opening quote
	var sb strings.Builder
	for p.pos < len(p.src) {
		c := p.src[p.pos]
		if c == '\'' {
			if p.pos+1 < len(p.src) && p.src[p.pos+1] == '\'' {
				sb.WriteByte('\'')
				p.pos += 2
				continue
			}
			p.pos++
			return sb.String(), nil
		}
		sb.WriteByte(c)
		p.pos++
	}
	return "", p.errorf("unterminated string")
}

func (p *stepParser) parseInt() (int, error) {
	start := p.pos
	for p.pos < len(p.src) && p.src[p.pos] >= '0' && p.src[p.pos] <= '9' {
		p.pos++
	}
	n, err := strconv.Atoi(string(p.src[start:p.pos]))
	if err != nil {
		return 0, p.errorf("expected integer")
	}
	return n, nil
}

func (p *stepParser) parseIdent() string {
	start := p.pos
	for p.pos < len(p.src) && (isIdentStart(p.src[p.pos]) || (p.src[p.pos] >= '0' && p.src[p.pos] <= '9')) {
		p.pos++
	}
	return string(p.src[start:p.pos])
}

// skipBalanced skips a parenthesised group, honouring strings
func (p *stepParser) skipBalanced() error {
	depth := 0
	for p.pos < len(p.src) {
		switch p.src[p.pos] {
		case '\'':
			if _, err := p.parseString(); err != nil {
				return err
			}
			continue
		case '(':
			depth++
		case ')':
			depth--
			if depth == 0 {
				p.pos++
				return nil
			}
		}
		p.pos++
	}
	return p.errorf("unbalanced parentheses")
}

func (p *stepParser) skipSpace() {
	for p.pos < len(p.src) {
		c := p.src[p.pos]
		if c == ' ' || c == '\t' || c == '\r' || c == '\n' {
			p.pos++
			continue
		}
		if c == '/' && p.pos+1 < len(p.src) && p.src[p.pos+1] == '*' {
			end := bytes.Index(p.src[p.pos+2:], []byte("*/"))
			if end < 0 {
				p.pos = len(p.src)
				return
			}
			p.pos += end + 4
			continue
		}
		return
	}
}

func (p *stepParser) peek() byte {
	if p.pos >= len(p.src) {
		return 0
	}
	return p.src[p.pos]
}

func (p *stepParser) consume(c byte) bool {
	if p.peek() == c {
		p.pos++
		return true
	}
	return false
}

// keyword consumes a section keyword and its terminating ';'
func (p *stepParser) keyword(name string) bool {
	if !p.hasPrefix(name) {
		return false
	}
	save := p.pos
	p.pos += len(name)
	p.skipSpace()
	if p.consume(';') {
		return true
	}
	p.pos = save
	return false
}

func (p *stepParser) hasPrefix(s string) bool {
	return bytes.HasPrefix(p.src[p.pos:], []byte(s))
}

func (p *stepParser) errorf(format string, args ...any) error {
	return fmt.Errorf("%w at offset %d: %s", ErrMalformed, p.pos, fmt.Sprintf(format, args...))
}

func isIdentStart(c byte) bool {
	return (c >= 'A' && c <= 'Z') || (c >= 'a' && c <= 'z') || c == '_'
}
