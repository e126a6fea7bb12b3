// Package suite loads declarative check suites from YAML or CUE files and
// builds them into checks.
//
// A suite is a list of checks, each with a level and a list of
// constraints:
//
//	name: orders
//	checks:
//	  - description: order ids
//	    level: error
//	    constraints:
//	      - type: is_complete
//	        column: id
//	      - type: has_completeness
//	        column: email
//	        assert: value >= 0.9
//	        where: country = 'DE'
//
// The assert field is a CUE boolean expression over the metric value,
// compiled once when the suite is built. Types that default to "value is
// one" (is_complete, has_pattern, satisfies, ...) accept it as an override.
//
// YAML suites are decoded strictly: unknown fields are rejected. CUE suites
// are unified with the embedded #Suite definition, which is closed, so the
// same typos fail there too.
package suite
