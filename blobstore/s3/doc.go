// Package s3 provides an S3 implementation of the blobstore.BlobStore interface.
//
// # Usage
//
//	cfg, err := config.LoadDefaultConfig(ctx)
//	store := s3.NewStore(awss3.NewFromConfig(cfg), "my-bucket", "semview/backups/")
//	err = db.Backup(ctx, "nightly.smvw", store)
//
// Uploads go through the S3 transfer manager and carry a CRC32-C checksum.
package s3
