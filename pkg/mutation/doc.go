// Package mutation reconciles externally sourced node edits with the
// observation model.
//
// External mutation sources (a DOM mutation observer inside a hosted web
// view, a remote editor, a test recorder) report edits after they have
// committed, asynchronously and in batches. A batch may describe one logical
// edit twice: editing text inside an editable node can update a text node and
// then replace it, yielding one record with the real old value and one with
// an empty old value. Coalesce merges such duplicates before delivery.
//
// # Delivery
//
// Bind subscribes a Sink to a Source. Every delivered batch is coalesced and
// translated into changed-only notifications; there is no changing phase
// because the source reports edits that already happened. Batches are
// drained one at a time: a batch is fully delivered before the next one is
// processed.
//
// # Keys
//
// Attribute records are keyed by attribute name, text records by
// KeyCharacterData and structural records by KeyChildList.
package mutation
