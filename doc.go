// Package platelog records what a user eats by photographing meals.
//
// A meal entry goes through a CaptureSession: an image is acquired from a
// Source, an Analyzer recognises the food and estimates its nutrients for a
// default portion, the user adjusts the portion, and the resulting candidate
// is committed to a DailyLedger or discarded.
//
// The main pieces are:
//   - CaptureSession: the state machine of a single meal entry, from capture
//     to commit or discard, resilient to late analysis responses.
//   - DailyLedger: one day of committed meals and their running totals, kept
//     consistent with a Store of record.
//   - Rescale: linear, exact rescaling of nutrients from the analysis
//     baseline to the adjusted portion.
//   - Encoding: meals are persisted as JSON Lines (see EncodeMeals), human
//     readable and easy to version.
//
// Analyzer and Store implementations live in the analysis and store
// sub-packages; the platelog command wires them together.
package platelog
