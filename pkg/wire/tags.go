package wire

// Command tags understood by the compiler. Each has a fixed argument arity.
const (
	// TagLoadFile loads a source file: (filename).
	TagLoadFile = "load-file"
	// TagInterpret evaluates an interpreter expression: (expr). The session
	// uses it for directory changes (":cd <dir>").
	TagInterpret = "interpret"
	// TagTypeOf reports the type of a name: (name).
	TagTypeOf = "type-of"
	// TagCaseSplit splits the pattern variable at (line, name).
	TagCaseSplit = "case-split"
	// TagAddClause produces an initial clause for the declaration at (line, name).
	TagAddClause = "add-clause"
	// TagAddProofClause is the proof-mode variant of add-clause: (line, name).
	TagAddProofClause = "add-proof-clause"
	// TagAddMissing produces clauses for missing cases: (line, name).
	TagAddMissing = "add-missing"
	// TagMakeWith rewrites the clause at (line, name) into a with-block.
	TagMakeWith = "make-with"
	// TagProofSearch attempts to fill the hole at (line, name, hints...).
	TagProofSearch = "proof-search"
	// TagReplCompletions lists completion candidates for a prefix: (prefix).
	TagReplCompletions = "repl-completions"

	// Metavariable refinement round tags.
	TagCompatibleIdents          = "compatible-identifiers"
	TagCompleteCompatibleIdents  = "complete-compatible-identifiers"
	TagCompatibleIdentsRecursive = "compatible-identifiers-recursive"
	TagChooseIdent               = "choose-identifier"
	TagMakeRefined               = "make-refined-expression"
)

// Head atoms of tagged refinement replies.
const (
	TagMore  = "more"
	TagFinal = "final"
)

// Notification channels carried by inbound messages with ID 0.
const (
	ChannelWarning = "warning"
	ChannelOutput  = "output"
)
