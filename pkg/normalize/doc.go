// Package normalize maps raw admin API records to fixed-shape rows.
//
// Each output field is declared as a rule: candidate JSON paths (the first
// present one wins) and a typed default. Missing keys at any depth, nulls and
// wrongly typed values all fall back to the default, so normalization never
// fails. Reference IDs are passed through a Resolver, which returns the ID
// unchanged when it cannot name it.
//
//	conn := normalize.NormalizeConnection(record, cache.ForEnvironment("qa"))
//	client := normalize.NormalizeClient(record, cache.ForEnvironment("qa"))
package normalize
