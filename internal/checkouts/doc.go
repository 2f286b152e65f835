// Package checkouts holds the rules for editing pilot checkouts and base
// attachments: who may edit them, how a submitted selection is turned into
// changes, and what the user is told about each change.
//
// Nothing here keeps global state. Each call receives a Request carrying the
// acting user, a request scoped logger for audit lines, and the message sink
// the user facing outcome is written to.
//
// Edits are read-diff-write cycles without a guard against concurrent
// editors: two simultaneous edits of the same base race per attach or detach
// call, last write wins.
package checkouts
