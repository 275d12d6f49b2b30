// Ruler parses, combines and evaluates attribute rules such as
//
//	(age > 30 AND department = 'Sales') OR (salary >= 50000)
//
// and serves them over an HTTP JSON API with a persistent rule store and a
// hot-reloaded catalog of named rules.
//
// Usage:
//
//	# Start the API server
//	ruler serve --config ruler.yaml
//
//	# Print the canonical tree of a rule
//	ruler parse "age > 30 AND department = 'Sales'"
//
//	# Evaluate a rule against a record
//	ruler eval --rule "age > 30" --data '{"age": 35}'
//
//	# Validate catalog files
//	ruler lint --dir rules/
package main

import "os"

func main() {
	os.Exit(Execute())
}
