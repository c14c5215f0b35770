// Package minio provides a blobstore.BlobStore backed by MinIO or any
// S3-compatible server reachable through minio-go.
//
//	client, _ := minio.New("localhost:9000", &minio.Options{
//		Creds: credentials.NewStaticV4("minioadmin", "minioadmin", ""),
//	})
//	store := miniostore.NewStore(client, "backups", "semview/")
package minio
