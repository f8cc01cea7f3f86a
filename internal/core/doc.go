// Package core provides the staged record import pipeline for user CSV files.
//
// This package contains all domain logic independent of any transport. The web
// API, the gRPC service and the CLI all drive it without modification.
//
// # Stages
//
// An upload moves through three pure stages:
//
//  1. [CheckUpload] rejects files by extension and size before any parsing.
//  2. [ParseUsers] turns the text into ordered [User] records. Structural
//     problems are returned as a [ParseError] and no partial batch is produced.
//  3. [Pipeline.Validate] and [Pipeline.Import] report per-row outcomes in an
//     [ImportResult]. Import is all or nothing: a single failing record means
//     no record receives an id.
//
// The position of a record in the parsed slice is its row number for every
// later stage, so a failure at row 3 always refers to the third data line that
// was not blank.
//
// # Validation Rules
//
// A [Validator] runs a fixed sequence of field rules and collects every
// defect. Two rule sets exist: [RulesStrict] checks optional fields only when
// they are present, while [RulesLenient] also requires phone number, address
// and birth date.
//
//	v := core.NewValidator(core.WithRuleSet(core.RulesLenient))
//	p := core.NewPipeline(v)
//	result := p.Validate(users)
//
// # Error Handling
//
// Technical errors are mapped to user-friendly messages using [MapError].
// Each error category has a unique code for support reference:
//
//   - FILE001-FILE005: upload and parse rejections
//   - VAL001: validation failures
//   - RPC000-RPC003: backend transport errors
//   - SES001-SES006: import session errors
//   - UPL002-UPL005: request limits, cancellation and timeouts
package core
