package grammar

import (
	"slices"

	"github.com/skaji/gql/internal/source"
)

// Rule kinds that the commands inspect.
const (
	KindDocument            = "Document"
	KindDefinition          = "Definition"
	KindDescription         = "Description"
	KindShortQuery          = "ShortQuery"
	KindQuery               = "Query"
	KindMutation            = "Mutation"
	KindSubscription        = "Subscription"
	KindVariableDefinitions = "VariableDefinitions"
	KindVariableDefinition  = "VariableDefinition"
	KindVariable            = "Variable"
	KindDefaultValue        = "DefaultValue"
	KindSelectionSet        = "SelectionSet"
	KindSelection           = "Selection"
	KindField               = "Field"
	KindAliasedField        = "AliasedField"
	KindArguments           = "Arguments"
	KindArgument            = "Argument"
	KindFragmentSpread      = "FragmentSpread"
	KindInlineFragment      = "InlineFragment"
	KindFragmentDefinition  = "FragmentDefinition"
	KindTypeCondition       = "TypeCondition"
	KindValue               = "Value"
	KindNumberValue         = "NumberValue"
	KindStringValue         = "StringValue"
	KindBooleanValue        = "BooleanValue"
	KindNullValue           = "NullValue"
	KindEnumValue           = "EnumValue"
	KindListValue           = "ListValue"
	KindObjectValue         = "ObjectValue"
	KindObjectField         = "ObjectField"
	KindType                = "Type"
	KindListType            = "ListType"
	KindNonNullType         = "NonNullType"
	KindNamedType           = "NamedType"
	KindDirective           = "Directive"
	KindDirectiveDef        = "DirectiveDef"
	KindDirectiveLocation   = "DirectiveLocation"
	KindSchemaDef           = "SchemaDef"
	KindOperationTypeDef    = "OperationTypeDef"
	KindScalarDef           = "ScalarDef"
	KindObjectTypeDef       = "ObjectTypeDef"
	KindInterfaceDef        = "InterfaceDef"
	KindImplements          = "Implements"
	KindFieldDef            = "FieldDef"
	KindArgumentsDef        = "ArgumentsDef"
	KindInputValueDef       = "InputValueDef"
	KindUnionDef            = "UnionDef"
	KindUnionMember         = "UnionMember"
	KindEnumDef             = "EnumDef"
	KindEnumValueDef        = "EnumValueDef"
	KindInputDef            = "InputDef"
	KindExtendDef           = "ExtendDef"
	KindExtensionDefinition = "ExtensionDefinition"
	KindInvalid             = "Invalid"
	KindComment             = "Comment"
)

type terminal struct {
	style  Style
	match  func(Lexeme) bool
	update func(*machine, Lexeme)
}

// step is one element of a rule. Exactly one of rule and term is set.
type step struct {
	rule      string
	term      *terminal
	optional  bool
	list      bool
	separator *step
}

// rule is either a sequence of steps or a fork that picks the rule to push
// from the first lexeme.
type rule struct {
	steps []step
	fork  func(Lexeme, *source.Stream) string
}

func seq(steps ...step) *rule { return &rule{steps: steps} }

func fork(f func(Lexeme, *source.Stream) string) *rule { return &rule{fork: f} }

func ref(kind string) step { return step{rule: kind} }

func opt(s step) step {
	s.optional = true
	return s
}

func list(s step, separator ...step) step {
	s.optional = true
	s.list = true
	if len(separator) > 0 {
		sep := separator[0]
		s.separator = &sep
	}
	return s
}

func p(value string, style ...Style) step {
	st := StylePunctuation
	if len(style) > 0 {
		st = style[0]
	}
	return step{term: &terminal{
		style: st,
		match: func(lx Lexeme) bool { return lx.Kind == LexPunctuation && lx.Value == value },
	}}
}

func t(kind LexKind, style Style) step {
	return step{term: &terminal{
		style: style,
		match: func(lx Lexeme) bool { return lx.Kind == kind },
	}}
}

func word(value string) step {
	return step{term: &terminal{
		style: StyleKeyword,
		match: func(lx Lexeme) bool { return lx.Kind == LexName && lx.Value == value },
	}}
}

func name(style Style) step {
	return step{term: &terminal{
		style:  style,
		match:  func(lx Lexeme) bool { return lx.Kind == LexName },
		update: func(m *machine, lx Lexeme) { m.top.Name = lx.Value },
	}}
}

// usedName is a name that is also recorded on the enclosing list frame, so
// completions can skip argument and input field names already written.
func usedName(style Style) step {
	return step{term: &terminal{
		style: style,
		match: func(lx Lexeme) bool { return lx.Kind == LexName },
		update: func(m *machine, lx Lexeme) {
			m.top.Name = lx.Value
			m.updateAncestor(1, func(s *State) {
				s.Used = append(slices.Clip(s.Used), lx.Value)
			})
		},
	}}
}

// typeName records the name on the grandparent as well. For a type condition
// that frame is the fragment, which is how selections below it learn their
// parent type.
func typeName(style Style) step {
	return step{term: &terminal{
		style: style,
		match: func(lx Lexeme) bool { return lx.Kind == LexName },
		update: func(m *machine, lx Lexeme) {
			if m.top.Prev == nil || m.top.Prev.Prev == nil {
				return
			}
			m.top.Name = lx.Value
			m.updateAncestor(2, func(s *State) { s.Type = lx.Value })
		},
	}}
}

func butNot(s step, exclusions ...step) step {
	inner := *s.term
	match := inner.match
	inner.match = func(lx Lexeme) bool {
		if !match(lx) {
			return false
		}
		for _, ex := range exclusions {
			if ex.term.match(lx) {
				return false
			}
		}
		return true
	}
	s.term = &inner
	return s
}

// lookahead reports whether the unread text, after insignificant runes,
// starts with one of the given prefixes. A word prefix must end at a name
// boundary.
func lookahead(s *source.Stream, prefixes ...string) bool {
	rest := s.Rest()
	i := 0
	for i < len(rest) && isIgnored(rest[i]) {
		i++
	}
	for _, prefix := range prefixes {
		pr := []rune(prefix)
		if len(rest)-i < len(pr) || !slices.Equal(rest[i:i+len(pr)], pr) {
			continue
		}
		if isNameStart(pr[0]) && i+len(pr) < len(rest) && isNameContinue(rest[i+len(pr)]) {
			continue
		}
		return true
	}
	return false
}

var specialRules = map[string]*rule{
	KindInvalid: seq(),
	KindComment: seq(),
}

var parseRules map[string]*rule

func init() {
	parseRules = map[string]*rule{
		KindDocument: seq(list(ref(KindDefinition))),
		KindDefinition: fork(func(lx Lexeme, _ *source.Stream) string {
			if lx.Kind == LexString {
				return KindDescription
			}
			switch lx.Value {
			case "{":
				return KindShortQuery
			case "query":
				return KindQuery
			case "mutation":
				return KindMutation
			case "subscription":
				return KindSubscription
			case "fragment":
				return KindFragmentDefinition
			case "schema":
				return KindSchemaDef
			case "scalar":
				return KindScalarDef
			case "type":
				return KindObjectTypeDef
			case "interface":
				return KindInterfaceDef
			case "union":
				return KindUnionDef
			case "enum":
				return KindEnumDef
			case "input":
				return KindInputDef
			case "extend":
				return KindExtendDef
			case "directive":
				return KindDirectiveDef
			}
			return ""
		}),
		KindDescription:         seq(t(LexString, StyleString)),
		KindShortQuery:          seq(ref(KindSelectionSet)),
		KindQuery:               operation("query"),
		KindMutation:            operation("mutation"),
		KindSubscription:        operation("subscription"),
		KindVariableDefinitions: seq(p("("), list(ref(KindVariableDefinition)), p(")")),
		KindVariableDefinition:  seq(ref(KindVariable), p(":"), ref(KindType), opt(ref(KindDefaultValue)), list(ref(KindDirective))),
		KindVariable:            seq(p("$", StyleVariable), name(StyleVariable)),
		KindDefaultValue:        seq(p("="), ref(KindValue)),
		KindSelectionSet:        seq(p("{"), list(ref(KindSelection)), p("}")),
		KindSelection: fork(func(lx Lexeme, s *source.Stream) string {
			if lx.Value == "..." {
				if lookahead(s, "on", "@", "{") {
					return KindInlineFragment
				}
				return KindFragmentSpread
			}
			if lookahead(s, ":") {
				return KindAliasedField
			}
			return KindField
		}),
		KindAliasedField:   seq(name(StyleProperty), p(":"), name(StyleQualifier), opt(ref(KindArguments)), list(ref(KindDirective)), opt(ref(KindSelectionSet))),
		KindField:          seq(name(StyleProperty), opt(ref(KindArguments)), list(ref(KindDirective)), opt(ref(KindSelectionSet))),
		KindArguments:      seq(p("("), list(ref(KindArgument)), p(")")),
		KindArgument:       seq(usedName(StyleAttribute), p(":"), ref(KindValue)),
		KindFragmentSpread: seq(p("..."), name(StyleDef), list(ref(KindDirective))),
		KindInlineFragment: seq(p("..."), opt(ref(KindTypeCondition)), list(ref(KindDirective)), ref(KindSelectionSet)),
		KindFragmentDefinition: seq(word("fragment"), opt(butNot(name(StyleDef), word("on"))), ref(KindTypeCondition),
			list(ref(KindDirective)), ref(KindSelectionSet)),
		KindTypeCondition: seq(word("on"), ref(KindNamedType)),
		KindValue: fork(func(lx Lexeme, _ *source.Stream) string {
			switch lx.Kind {
			case LexNumber:
				return KindNumberValue
			case LexString:
				return KindStringValue
			case LexPunctuation:
				switch lx.Value {
				case "[":
					return KindListValue
				case "{":
					return KindObjectValue
				case "$":
					return KindVariable
				}
			case LexName:
				switch lx.Value {
				case "true", "false":
					return KindBooleanValue
				case "null":
					return KindNullValue
				}
				return KindEnumValue
			}
			return ""
		}),
		KindNumberValue:  seq(t(LexNumber, StyleNumber)),
		KindStringValue:  seq(t(LexString, StyleString)),
		KindBooleanValue: seq(t(LexName, StyleBuiltin)),
		KindNullValue:    seq(t(LexName, StyleKeyword)),
		KindEnumValue:    seq(name(StyleEnum)),
		KindListValue:    seq(p("["), list(ref(KindValue)), p("]")),
		KindObjectValue:  seq(p("{"), list(ref(KindObjectField)), p("}")),
		KindObjectField:  seq(usedName(StyleAttribute), p(":"), ref(KindValue)),
		KindType: fork(func(lx Lexeme, _ *source.Stream) string {
			if lx.Value == "[" {
				return KindListType
			}
			return KindNonNullType
		}),
		KindListType:    seq(p("["), ref(KindType), p("]"), opt(p("!"))),
		KindNonNullType: seq(ref(KindNamedType), opt(p("!"))),
		KindNamedType:   seq(typeName(StyleAtom)),
		KindDirective:   seq(p("@", StyleMeta), name(StyleMeta), opt(ref(KindArguments))),

		KindDirectiveDef: seq(word("directive"), p("@", StyleMeta), name(StyleMeta), opt(ref(KindArgumentsDef)),
			opt(word("repeatable")), word("on"), list(ref(KindDirectiveLocation), p("|"))),
		KindDirectiveLocation: seq(name(StyleEnum)),
		KindSchemaDef:         seq(word("schema"), list(ref(KindDirective)), p("{"), list(ref(KindOperationTypeDef)), p("}")),
		KindOperationTypeDef:  seq(name(StyleKeyword), p(":"), ref(KindNamedType)),
		KindScalarDef:         seq(word("scalar"), name(StyleAtom), list(ref(KindDirective))),
		KindObjectTypeDef: seq(word("type"), name(StyleAtom), opt(ref(KindImplements)), list(ref(KindDirective)),
			opt(ref(KindFieldsBlock))),
		KindInterfaceDef: seq(word("interface"), name(StyleAtom), opt(ref(KindImplements)), list(ref(KindDirective)),
			opt(ref(KindFieldsBlock))),
		KindFieldsBlock:   seq(p("{"), list(ref(KindFieldDef)), p("}")),
		KindImplements:    seq(word("implements"), list(ref(KindNamedType), opt(p("&")))),
		KindFieldDef:      seq(opt(t(LexString, StyleString)), name(StyleProperty), opt(ref(KindArgumentsDef)), p(":"), ref(KindType), list(ref(KindDirective))),
		KindArgumentsDef:  seq(p("("), list(ref(KindInputValueDef)), p(")")),
		KindInputValueDef: seq(opt(t(LexString, StyleString)), name(StyleAttribute), p(":"), ref(KindType), opt(ref(KindDefaultValue)), list(ref(KindDirective))),
		KindUnionDef: seq(word("union"), name(StyleAtom), list(ref(KindDirective)), opt(p("=")), opt(p("|")),
			list(ref(KindUnionMember), p("|"))),
		KindUnionMember:  seq(ref(KindNamedType)),
		KindEnumDef:      seq(word("enum"), name(StyleAtom), list(ref(KindDirective)), opt(ref(KindEnumBlock))),
		KindEnumBlock:    seq(p("{"), list(ref(KindEnumValueDef)), p("}")),
		KindEnumValueDef: seq(opt(t(LexString, StyleString)), name(StyleEnum), list(ref(KindDirective))),
		KindInputDef:     seq(word("input"), name(StyleAtom), list(ref(KindDirective)), opt(ref(KindInputBlock))),
		KindInputBlock:   seq(p("{"), list(ref(KindInputValueDef)), p("}")),
		KindExtendDef:    seq(word("extend"), ref(KindExtensionDefinition)),
		KindExtensionDefinition: fork(func(lx Lexeme, _ *source.Stream) string {
			switch lx.Value {
			case "schema":
				return KindSchemaDef
			case "scalar":
				return KindScalarDef
			case "type":
				return KindObjectTypeDef
			case "interface":
				return KindInterfaceDef
			case "union":
				return KindUnionDef
			case "enum":
				return KindEnumDef
			case "input":
				return KindInputDef
			}
			return ""
		}),
	}
}

// Block kinds wrap the braces of type definitions so that bodies stay
// optional, as they are for extensions.
const (
	KindFieldsBlock = "FieldsBlock"
	KindEnumBlock   = "EnumBlock"
	KindInputBlock  = "InputBlock"
)

func operation(keyword string) *rule {
	return seq(word(keyword), opt(name(StyleDef)), opt(ref(KindVariableDefinitions)), list(ref(KindDirective)),
		ref(KindSelectionSet))
}
