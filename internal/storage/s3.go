package storage

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"mime"
	"path"
	"strings"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/s3"

	"github.com/minhacidade/backend/internal/config"
)

type s3API interface {
	PutObject(ctx context.Context, params *s3.PutObjectInput, optFns ...func(*s3.Options)) (*s3.PutObjectOutput, error)
	DeleteObject(ctx context.Context, params *s3.DeleteObjectInput, optFns ...func(*s3.Options)) (*s3.DeleteObjectOutput, error)
}

// S3Store grava anexos num bucket S3 (ou compatível, via S3_ENDPOINT).
type S3Store struct {
	client    s3API
	bucket    string
	region    string
	publicURL string
}

// NewS3Store carrega credenciais pela cadeia padrão da AWS.
func NewS3Store(ctx context.Context, cfg config.StorageConfig) (*S3Store, error) {
	if strings.TrimSpace(cfg.S3Bucket) == "" {
		return nil, errors.New("storage: S3_BUCKET obrigatório")
	}
	awsCfg, err := awsconfig.LoadDefaultConfig(ctx, awsconfig.WithRegion(cfg.S3Region))
	if err != nil {
		return nil, fmt.Errorf("storage: carregar configuração aws: %w", err)
	}

	client := s3.NewFromConfig(awsCfg, func(o *s3.Options) {
		if endpoint := strings.TrimSpace(cfg.S3Endpoint); endpoint != "" {
			o.BaseEndpoint = aws.String(endpoint)
			o.UsePathStyle = true
		}
	})

	return &S3Store{
		client:    client,
		bucket:    cfg.S3Bucket,
		region:    cfg.S3Region,
		publicURL: strings.TrimRight(cfg.S3PublicURL, "/"),
	}, nil
}

// Put lê o corpo (já limitado por quem chama) e envia com tamanho conhecido.
// Nada é gravado no bucket se a leitura falhar.
func (s *S3Store) Put(ctx context.Context, in PutInput) (*Object, error) {
	if !validKey(in.Key) {
		return nil, ErrInvalidKey
	}
	data, err := io.ReadAll(in.Body)
	if err != nil {
		return nil, err
	}

	contentType := strings.TrimSpace(in.ContentType)
	if contentType == "" {
		contentType = mime.TypeByExtension(path.Ext(in.Key))
	}
	if contentType == "" {
		contentType = "application/octet-stream"
	}

	_, err = s.client.PutObject(ctx, &s3.PutObjectInput{
		Bucket:        aws.String(s.bucket),
		Key:           aws.String(in.Key),
		Body:          bytes.NewReader(data),
		ContentLength: aws.Int64(int64(len(data))),
		ContentType:   aws.String(contentType),
	})
	if err != nil {
		return nil, fmt.Errorf("storage: s3 put: %w", err)
	}
	return &Object{Key: in.Key, URL: s.URL(in.Key), Size: int64(len(data))}, nil
}

// Delete remove o objeto.
func (s *S3Store) Delete(ctx context.Context, key string) error {
	if !validKey(key) {
		return ErrInvalidKey
	}
	_, err := s.client.DeleteObject(ctx, &s3.DeleteObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(key),
	})
	if err != nil {
		return fmt.Errorf("storage: s3 delete: %w", err)
	}
	return nil
}

// URL devolve a URL pública do objeto.
func (s *S3Store) URL(key string) string {
	if s.publicURL != "" {
		return s.publicURL + "/" + key
	}
	return fmt.Sprintf("https://%s.s3.%s.amazonaws.com/%s", s.bucket, s.region, key)
}
