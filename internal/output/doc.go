// Package output turns raw model text into validated Go values.
//
// Models asked for JSON still wrap it in markdown fences, add trailing
// commas or surround it with prose. RepairJSON and ExtractJSON clean up
// those habits; Validate then decodes the document and checks it against
// the validate struct tags of the target type. Cleanup never stands in for
// validation: a document that decodes but breaks the schema is rejected with
// a *ValidationError listing every offending field.
package output
