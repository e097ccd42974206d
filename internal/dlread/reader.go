// Package dlread implements a textual Datalog program reader: clauses
// terminated by '.', head/body separated by ':-', commas between
// premises, '='/'!=' for (dis)unification, 'not' prefixing a negated
// atom, '_' for the anonymous variable, uppercase-initial identifiers
// for variables and lowercase-initial for constants and predicate names,
// and queries ending in '?'.
package dlread

import (
	"fmt"
	"unicode"

	"github.com/gitrdm/godatalog/pkg/datalog"
)

// Reader parses a textual Datalog program against a single SymbolTable,
// so that identical source identifiers resolve to identical terms.
type Reader struct {
	syms *datalog.SymbolTable
	vars map[string]*datalog.Variable
}

// NewReader returns a Reader that interns terms into syms.
func NewReader(syms *datalog.SymbolTable) *Reader {
	return &Reader{syms: syms}
}

// ParseError reports a lexical or syntactic failure with its byte offset
// in the source.
type ParseError struct {
	Offset  int
	Message string
}

func (e *ParseError) Error() string {
	return fmt.Sprintf("dlread: %s (offset %d)", e.Message, e.Offset)
}

// Program is the result of reading a source document: the clauses (facts
// and rules) in source order, plus any bare queries (`p(...)?`).
type Program struct {
	Clauses []*datalog.Clause
	Queries []*datalog.Atom
}

// Read parses src into a Program. Each clause gets a fresh variable
// scope; constants and predicate symbols are shared across the whole
// call via the Reader's SymbolTable.
func (r *Reader) Read(src string) (*Program, error) {
	lex := newLexer(src)
	prog := &Program{}

	for {
		tok := lex.peek()
		if tok.kind == tokEOF {
			break
		}
		r.vars = make(map[string]*datalog.Variable)

		head, isQuery, err := r.parseAtomOrQueryHead(lex)
		if err != nil {
			return nil, err
		}
		if isQuery {
			prog.Queries = append(prog.Queries, head)
			continue
		}

		var body []datalog.Premise
		if lex.peek().kind == tokImplies {
			lex.next()
			body, err = r.parseBody(lex)
			if err != nil {
				return nil, err
			}
		}
		if err := lex.expect(tokDot); err != nil {
			return nil, err
		}
		prog.Clauses = append(prog.Clauses, &datalog.Clause{Head: head, Body: body})
	}

	return prog, nil
}

// parseAtomOrQueryHead parses a single atom, then checks whether it's
// immediately followed by '?' (a bare query) rather than ':-' or '.'.
func (r *Reader) parseAtomOrQueryHead(lex *lexer) (*datalog.Atom, bool, error) {
	atom, err := r.parseAtom(lex)
	if err != nil {
		return nil, false, err
	}
	if lex.peek().kind == tokQuery {
		lex.next()
		return atom, true, nil
	}
	return atom, false, nil
}

func (r *Reader) parseBody(lex *lexer) ([]datalog.Premise, error) {
	var body []datalog.Premise
	for {
		prem, err := r.parsePremise(lex)
		if err != nil {
			return nil, err
		}
		body = append(body, prem)
		if lex.peek().kind != tokComma {
			break
		}
		lex.next()
	}
	return body, nil
}

func (r *Reader) parsePremise(lex *lexer) (datalog.Premise, error) {
	if lex.peek().kind == tokNot {
		lex.next()
		atom, err := r.parseAtom(lex)
		if err != nil {
			return nil, err
		}
		return &datalog.NegatedAtom{Atom: atom}, nil
	}

	if lex.peek().kind == tokIdent {
		save := *lex
		first, err := r.parseTerm(lex)
		if err == nil {
			switch lex.peek().kind {
			case tokEq:
				lex.next()
				right, err := r.parseTerm(lex)
				if err != nil {
					return nil, err
				}
				return &datalog.Unification{Left: first, Right: right}, nil
			case tokNeq:
				lex.next()
				right, err := r.parseTerm(lex)
				if err != nil {
					return nil, err
				}
				return &datalog.Disunification{Left: first, Right: right}, nil
			}
		}
		*lex = save
	}

	return r.parseAtom(lex)
}

func (r *Reader) parseAtom(lex *lexer) (*datalog.Atom, error) {
	name := lex.peek()
	if name.kind != tokIdent || !startsLower(name.text) {
		return nil, lex.errorf(name, "expected a predicate name")
	}
	lex.next()

	var terms []datalog.Term
	if lex.peek().kind == tokLParen {
		lex.next()
		for {
			t, err := r.parseTerm(lex)
			if err != nil {
				return nil, err
			}
			terms = append(terms, t)
			if lex.peek().kind != tokComma {
				break
			}
			lex.next()
		}
		if err := lex.expect(tokRParen); err != nil {
			return nil, err
		}
	}

	pred := r.syms.InternPredicate(name.text, len(terms))
	return &datalog.Atom{Pred: pred, Terms: terms}, nil
}

func (r *Reader) parseTerm(lex *lexer) (datalog.Term, error) {
	tok := lex.peek()
	if tok.kind != tokIdent {
		return nil, lex.errorf(tok, "expected a term")
	}
	lex.next()

	if tok.text == "_" {
		return r.syms.Fresh(""), nil
	}
	if startsLower(tok.text) {
		return r.syms.Intern(tok.text), nil
	}
	if v, ok := r.vars[tok.text]; ok {
		return v, nil
	}
	v := r.syms.Fresh(tok.text)
	r.vars[tok.text] = v
	return v, nil
}

func startsLower(s string) bool {
	if s == "" {
		return false
	}
	r := []rune(s)[0]
	return unicode.IsLower(r)
}
