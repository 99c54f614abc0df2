package snapshot

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"path"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/sirupsen/logrus"

	"github.com/ethpandaops/regressoor/pkg/benchmark"
	"github.com/ethpandaops/regressoor/pkg/config"
)

// snapshotKey is the object name of the exported history document.
const snapshotKey = "history.json"

// Compile-time interface check.
var _ Writer = (*s3Writer)(nil)

type s3Writer struct {
	log    logrus.FieldLogger
	client *s3.Client
	cfg    *config.S3SnapshotConfig
}

// newS3Writer creates a Writer backed by S3-compatible storage.
func newS3Writer(
	log logrus.FieldLogger,
	cfg *config.S3SnapshotConfig,
) Writer {
	return &s3Writer{
		log:    log.WithField("component", "snapshot_s3"),
		client: newS3Client(cfg),
		cfg:    cfg,
	}
}

// Write uploads the document to {prefix}/history.json in the
// configured bucket.
func (w *s3Writer) Write(
	ctx context.Context, doc *benchmark.Document,
) (string, error) {
	data, err := json.Marshal(doc)
	if err != nil {
		return "", fmt.Errorf("marshaling history document: %w", err)
	}

	key := snapshotKey
	if w.cfg.Prefix != "" {
		key = path.Join(w.cfg.Prefix, snapshotKey)
	}

	_, err = w.client.PutObject(ctx, &s3.PutObjectInput{
		Bucket:      aws.String(w.cfg.Bucket),
		Key:         aws.String(key),
		Body:        bytes.NewReader(data),
		ContentType: aws.String("application/json"),
	})
	if err != nil {
		return "", fmt.Errorf("uploading snapshot to s3: %w", err)
	}

	dest := "s3://" + w.cfg.Bucket + "/" + key

	w.log.WithFields(logrus.Fields{
		"destination": dest,
		"suites":      len(doc.Suites),
		"bytes":       len(data),
	}).Info("History snapshot uploaded")

	return dest, nil
}

func newS3Client(cfg *config.S3SnapshotConfig) *s3.Client {
	opts := []func(*s3.Options){
		func(o *s3.Options) {
			if cfg.Region != "" {
				o.Region = cfg.Region
			} else {
				o.Region = "us-east-1"
			}

			if cfg.EndpointURL != "" {
				o.BaseEndpoint = aws.String(cfg.EndpointURL)
			}

			if cfg.ForcePathStyle {
				o.UsePathStyle = true
			}

			if cfg.AccessKeyID != "" && cfg.SecretAccessKey != "" {
				o.Credentials = credentials.NewStaticCredentialsProvider(
					cfg.AccessKeyID, cfg.SecretAccessKey, "",
				)
			}
		},
	}

	return s3.New(s3.Options{}, opts...)
}
