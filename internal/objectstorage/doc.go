// Package objectstorage wraps S3 for the three shapes spec.md §6
// requires: presigned PUT URLs for source-file upload, presigned GET URLs
// for downloads, and multipart upload for export objects (5 MiB parts,
// concurrency 4). Grounded on internal/storage.AWSStorage's S3 client
// construction, extended with the presign and manager features the
// teacher's go.mod already carries.
package objectstorage
