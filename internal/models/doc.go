// Package models defines the domain records shared by the admin client and the
// reference backend.
//
// # Client records
//
// The admin client works on snapshots fetched from the backend:
//   - Person: an annotator (id, name, email)
//   - Group: a named, ordered list of members; a person is in at most one group
//   - ImageItem: an image with the set of groups it belongs to and its tags
//   - Tag: a tag name with the agreement percentage and annotator count
//   - User: the principal of the current session
//
// All ids are strings on the client, whatever the backend's native id type is.
//
// # Backend records
//
// Account, ImageRecord and Annotation are only used by the reference backend
// (cmd/devserver) and its storage layer.
//
// # Design Principles
//
// 1. **Value semantics**: records are plain structs; Clone helpers return deep copies
// 2. **Ids, not pointers**: relationships use id strings
// 3. **Replace, don't merge**: refetched records replace local ones wholesale, except
// for GroupIDs and Tags which the client edits in place
package models
