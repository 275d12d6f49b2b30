// Package rules is the entry point to the rule engine.
//
// A rule is a boolean expression over named record attributes:
//
//	age > 30 AND department = 'Sales'
//
// The engine turns rule strings into immutable trees (CreateRule), merges
// several rules with AND (CombineRules), evaluates a tree against a record
// (EvaluateRule), and converts trees to and from the canonical nested record
// form used for storage and transport (SerializeAST, DeserializeAST).
//
// The package-level functions use default settings. An Engine carries a
// logger, a nesting limit and an optional redactor for callers that need
// them:
//
//	engine := rules.NewEngine(logger).WithMaxDepth(cfg.Engine.MaxDepth)
//	node, err := engine.CreateRule("salary >= 50000 OR experience > 5")
//	ok, err := engine.Evaluate(node, map[string]interface{}{"salary": 60000, "experience": 2})
//
// Every failure is one of the typed errors in the errors subpackage; use
// errors.KindOf to classify it.
//
// Subpackages:
//   - lexer: rule string to tokens
//   - parser: tokens to tree, AND binds tighter than OR
//   - ast: tree types, combination, canonical record codec
//   - evaluator: tree plus record to boolean
//   - errors: typed failures shared by all of the above
package rules
