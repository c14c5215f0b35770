// Package expand turns a semantic view definition and a query request into
// a single deterministic SQL statement.
//
// The generated statement wraps the base table, the required joins and all
// filters in a "_base" common table expression, then selects the requested
// dimensions and metrics from it:
//
//	WITH "_base" AS (
//	    SELECT *
//	    FROM "orders"
//	    WHERE (status = 'active')
//	)
//	SELECT
//	    region AS "region",
//	    sum(amount) AS "revenue"
//	FROM "_base"
//	GROUP BY
//	    region
//
// Name lookups are ASCII case-insensitive. Unknown names produce errors that
// list the declared names and, when one is close enough, a suggestion.
package expand
