// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Seminary Management System Contributors

package roster

import (
	"strings"

	"github.com/alecthomas/participle/v2"
	"github.com/alecthomas/participle/v2/lexer"
	"github.com/gobwas/glob"
	"github.com/samber/oops"
)

// MaxNestingDepth is the maximum allowed depth of parenthesized groups.
const MaxNestingDepth = 32

// queryLexer defines the token types for the search DSL.
// It handles multi-character operators (>=, <=, !=) that the default
// text/scanner lexer would split into individual characters.
var queryLexer = lexer.MustSimple([]lexer.SimpleRule{
	{Name: "String", Pattern: `"[^"]*"`},
	{Name: "Number", Pattern: `\d+`},
	{Name: "OpGe", Pattern: `>=`},
	{Name: "OpLe", Pattern: `<=`},
	{Name: "OpNe", Pattern: `!=`},
	{Name: "OpEq", Pattern: `=`},
	{Name: "OpGt", Pattern: `>`},
	{Name: "OpLt", Pattern: `<`},
	{Name: "OpLike", Pattern: `~`},
	{Name: "Ident", Pattern: `[a-zA-Z_]\w*`},
	{Name: "Punct", Pattern: `[()]`},
	{Name: "whitespace", Pattern: `\s+`},
})

// Grammar: disjunction of conjunctions, "and" binding tighter than
// "or", with parentheses for explicit grouping.
//
//	query       = conjunction ("or" conjunction)*
//	conjunction = term ("and" term)*
//	term        = comparison | "(" query ")"
//	comparison  = field operator value
type queryNode struct {
	Or []*conjunctionNode `parser:"@@ ('or' @@)*"`
}

type conjunctionNode struct {
	Terms []*termNode `parser:"@@ ('and' @@)*"`
}

type termNode struct {
	Comparison *comparisonNode `parser:"  @@"`
	Group      *queryNode      `parser:"| '(' @@ ')'"`
}

type comparisonNode struct {
	Pos      lexer.Position `parser:""`
	Field    string         `parser:"@Ident"`
	Operator string         `parser:"@('>=' | '<=' | '!=' | '=' | '>' | '<' | '~')"`
	Value    *valueNode     `parser:"@@"`
}

type valueNode struct {
	Str    *string `parser:"  @String"`
	Number *int    `parser:"| @Number"`
}

var queryParser = participle.MustBuild[queryNode](
	participle.Lexer(queryLexer),
	participle.Unquote("String"),
)

// matchFunc evaluates one query node against a student.
type matchFunc func(*Student) bool

// CompiledQuery is a parsed, type-checked search query ready to
// evaluate against students.
type CompiledQuery struct {
	source string
	match  matchFunc
}

// Compile parses and type-checks a search query such as
//
//	name ~ "Nguyen*" and (diocese = "Ha Noi" or birth_year >= 1990)
//
// String fields (name, code, hometown, parish, diocese) support
// = and != (case-insensitive) and ~ (glob). birth_year supports the
// numeric comparators.
func Compile(input string) (*CompiledQuery, error) {
	if strings.TrimSpace(input) == "" {
		return nil, oops.Code("QUERY_PARSE_FAILED").Errorf("query cannot be empty")
	}

	node, err := queryParser.ParseString("", input)
	if err != nil {
		return nil, oops.Code("QUERY_PARSE_FAILED").
			With("query", input).
			Wrap(err)
	}

	match, err := compileQuery(node, 0)
	if err != nil {
		return nil, err
	}
	return &CompiledQuery{source: input, match: match}, nil
}

// Matches reports whether a student satisfies the query.
func (q *CompiledQuery) Matches(s *Student) bool {
	return q.match(s)
}

// String returns the original query text.
func (q *CompiledQuery) String() string {
	return q.source
}

func compileQuery(node *queryNode, depth int) (matchFunc, error) {
	if depth > MaxNestingDepth {
		return nil, oops.Code("QUERY_TOO_DEEP").
			Errorf("nesting depth exceeds maximum of %d", MaxNestingDepth)
	}

	conjunctions := make([]matchFunc, 0, len(node.Or))
	for _, c := range node.Or {
		m, err := compileConjunction(c, depth)
		if err != nil {
			return nil, err
		}
		conjunctions = append(conjunctions, m)
	}
	return func(s *Student) bool {
		for _, m := range conjunctions {
			if m(s) {
				return true
			}
		}
		return false
	}, nil
}

func compileConjunction(node *conjunctionNode, depth int) (matchFunc, error) {
	terms := make([]matchFunc, 0, len(node.Terms))
	for _, t := range node.Terms {
		m, err := compileTerm(t, depth)
		if err != nil {
			return nil, err
		}
		terms = append(terms, m)
	}
	return func(s *Student) bool {
		for _, m := range terms {
			if !m(s) {
				return false
			}
		}
		return true
	}, nil
}

func compileTerm(node *termNode, depth int) (matchFunc, error) {
	if node.Group != nil {
		return compileQuery(node.Group, depth+1)
	}
	return compileComparison(node.Comparison)
}

func compileComparison(node *comparisonNode) (matchFunc, error) {
	if get, ok := stringField(node.Field); ok {
		return compileStringComparison(node, get)
	}
	if node.Field == "birth_year" {
		return compileYearComparison(node)
	}
	return nil, oops.Code("QUERY_UNKNOWN_FIELD").
		With("field", node.Field).
		With("position", node.Pos.String()).
		Errorf("unknown field %q", node.Field)
}

// stringField maps a query field name to its student accessor.
func stringField(field string) (func(*Student) string, bool) {
	switch field {
	case "name":
		return func(s *Student) string { return s.FullName }, true
	case "code":
		return func(s *Student) string { return s.Code }, true
	case "hometown":
		return func(s *Student) string { return s.Hometown }, true
	case "parish":
		return func(s *Student) string { return s.Parish }, true
	case "diocese":
		return func(s *Student) string { return s.Diocese }, true
	}
	return nil, false
}

func compileStringComparison(node *comparisonNode, get func(*Student) string) (matchFunc, error) {
	if node.Value.Str == nil {
		return nil, oops.Code("QUERY_INVALID_VALUE").
			With("field", node.Field).
			Errorf("field %q requires a quoted string value", node.Field)
	}
	want := *node.Value.Str

	switch node.Operator {
	case "=":
		return func(s *Student) bool { return strings.EqualFold(get(s), want) }, nil
	case "!=":
		return func(s *Student) bool { return !strings.EqualFold(get(s), want) }, nil
	case "~":
		pattern, err := glob.Compile(strings.ToLower(want))
		if err != nil {
			return nil, oops.Code("QUERY_INVALID_PATTERN").
				With("field", node.Field).
				With("pattern", want).
				Wrap(err)
		}
		return func(s *Student) bool { return pattern.Match(strings.ToLower(get(s))) }, nil
	}
	return nil, oops.Code("QUERY_INVALID_OPERATOR").
		With("field", node.Field).
		With("operator", node.Operator).
		Errorf("operator %q does not apply to string field %q", node.Operator, node.Field)
}

func compileYearComparison(node *comparisonNode) (matchFunc, error) {
	if node.Value.Number == nil {
		return nil, oops.Code("QUERY_INVALID_VALUE").
			With("field", node.Field).
			Errorf("field %q requires a numeric value", node.Field)
	}
	want := *node.Value.Number

	switch node.Operator {
	case "=":
		return func(s *Student) bool { return s.BirthYear() == want }, nil
	case "!=":
		return func(s *Student) bool { return s.BirthYear() != want }, nil
	case ">":
		return func(s *Student) bool { return s.BirthYear() > want }, nil
	case ">=":
		return func(s *Student) bool { return s.BirthYear() >= want }, nil
	case "<":
		return func(s *Student) bool { return s.BirthYear() < want }, nil
	case "<=":
		return func(s *Student) bool { return s.BirthYear() <= want }, nil
	}
	return nil, oops.Code("QUERY_INVALID_OPERATOR").
		With("field", node.Field).
		With("operator", node.Operator).
		Errorf("operator %q does not apply to numeric field %q", node.Operator, node.Field)
}
