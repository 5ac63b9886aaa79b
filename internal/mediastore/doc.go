// Package mediastore moves media between the shared object store and the
// worker's local work directory.
//
// Locators are slash separated keys relative to the store root or bucket.
// Two backends exist: Local, which treats a directory as the bucket, and S3,
// which speaks to any S3 compatible endpoint through minio-go.
package mediastore
