// Package algebra defines the meaning of relational query plans.
//
// A plan is a tree of RelationalExpression nodes. Leaves are RelationalValues
// wrapping the schema of a base relation; internal nodes are operations:
//
//	Projection          π  keep named columns
//	ExtendedProjection     compute columns from expressions
//	Selection           σ  filter rows by a predicate (shape preserving)
//	Rename              ρ  relabel relation and columns
//	ThetaJoin           ⋈  join on a predicate; see NewCrossJoin, NewEquiJoin, NewNaturalJoin
//	AggregationOperation 𝒢 group and reduce
//
// Every operation derives its output schema from its inputs when it is
// constructed, so an invalid plan is rejected by the constructor that would
// build it, with an error from package algebra/errors.
//
// The package does not iterate rows. A row driver (see package exec) pulls
// rows from sources and applies the per-node functions exposed here:
// Transform for streamable unary operations, Matches for selections,
// Match and Call for joins, CreateAggregations/Update/Emit for aggregation.
// Joins only define matched pairs; padding unmatched rows for outer joins is
// the driver's job.
package algebra
