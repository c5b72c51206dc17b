// Package gallery manages the user's rendered videos.
//
// Cache holds an optimistic local copy of the service-side gallery. Rename
// and Delete change the cache immediately, then push the change through the
// retry executor; a mutation that exhausts its attempts is rolled back to
// the item's original position. Saved is a thin client for the auth
// service's saved-video records.
package gallery
