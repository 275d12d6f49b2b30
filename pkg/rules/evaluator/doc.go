// Package evaluator decides whether a data record satisfies a rule tree.
//
// Operand leaves look up their attribute in the record and compare the value
// with the leaf's literal:
//
//   - numbers use the usual total ordering; any Go integer or float type and
//     json.Number are accepted and compared as float64
//   - strings compare lexicographically by byte
//   - booleans support only = and !=
//
// Values are never coerced across types. Comparing a string field with a
// number literal, or ordering two booleans, yields *errors.TypeMismatchError.
// A missing attribute yields *errors.EvaluationError with a spelling
// suggestion drawn from the record's keys.
//
// Operator nodes evaluate both children before combining the results, so
// errors on either side surface regardless of connective or child order.
// When both children fail the left error is returned.
//
// Evaluation never mutates the tree or the record, and an Evaluator holds no
// per-call state, so one tree can be evaluated against many records
// concurrently.
package evaluator
