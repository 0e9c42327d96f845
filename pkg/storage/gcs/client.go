package gcs

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"os"
	"strings"
	"time"

	"cloud.google.com/go/storage"
	"google.golang.org/api/option"

	"github.com/angelmondragon/railexchange-backend/pkg/config"
	"github.com/angelmondragon/railexchange-backend/pkg/logger"
)

const pingTimeout = 5 * time.Second

var errNotInitialized = errors.New("gcs client not initialized")

// Client issues signed upload targets against a single bucket. Object bytes
// never pass through this service.
type Client struct {
	storage       *storage.Client
	defaultBucket string
	signer        *serviceAccountSigner
	now           func() time.Time
}

type serviceAccountSigner struct {
	email      string
	privateKey []byte
}

func NewClient(ctx context.Context, cfg config.GCSConfig, gcp config.GCPConfig, logg *logger.Logger) (*Client, error) {
	if cfg.BucketName == "" {
		return nil, errors.New("gcs bucket name is required")
	}

	credsJSON, err := credentialsJSON(gcp)
	if err != nil {
		return nil, err
	}

	var opts []option.ClientOption
	var signer *serviceAccountSigner
	if len(credsJSON) > 0 {
		opts = append(opts, option.WithCredentialsJSON(credsJSON))
		signer, err = parseServiceAccount(credsJSON)
		if err != nil {
			return nil, err
		}
	}

	sc, err := storage.NewClient(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("creating storage client: %w", err)
	}

	client := &Client{
		storage:       sc,
		defaultBucket: cfg.BucketName,
		signer:        signer,
		now:           time.Now,
	}
	if signer == nil && cfg.SignerEmail != "" {
		client.signer = &serviceAccountSigner{email: cfg.SignerEmail}
	}

	if err := client.Ping(ctx); err != nil {
		_ = sc.Close()
		return nil, fmt.Errorf("gcs health check failed: %w", err)
	}

	if logg != nil {
		logg.Info(logg.WithField(ctx, "bucket", cfg.BucketName), "gcs.ready")
	}
	return client, nil
}

func credentialsJSON(gcp config.GCPConfig) ([]byte, error) {
	switch {
	case gcp.CredentialsJSON != "":
		return []byte(gcp.CredentialsJSON), nil
	case gcp.ApplicationCredentials != "":
		data, err := os.ReadFile(gcp.ApplicationCredentials)
		if err != nil {
			return nil, fmt.Errorf("reading credentials file: %w", err)
		}
		return data, nil
	default:
		return nil, nil
	}
}

func parseServiceAccount(data []byte) (*serviceAccountSigner, error) {
	var creds struct {
		ClientEmail string `json:"client_email"`
		PrivateKey  string `json:"private_key"`
	}
	if err := json.Unmarshal(data, &creds); err != nil {
		return nil, fmt.Errorf("parsing service account credentials: %w", err)
	}
	if creds.ClientEmail == "" || creds.PrivateKey == "" {
		return nil, errors.New("invalid service account credentials")
	}
	return &serviceAccountSigner{email: creds.ClientEmail, privateKey: []byte(creds.PrivateKey)}, nil
}

func (c *Client) DefaultBucket() string {
	if c == nil {
		return ""
	}
	return c.defaultBucket
}

// SignedUploadURL returns a V4 signed PUT URL for object in the default bucket.
// The content type is signed too, so the uploader must send the same header.
func (c *Client) SignedUploadURL(ctx context.Context, object, contentType string, ttl time.Duration) (string, error) {
	return c.sign(http.MethodPut, object, contentType, ttl)
}

// SignedDownloadURL returns a short-lived GET URL a reviewer can open.
func (c *Client) SignedDownloadURL(ctx context.Context, object string, ttl time.Duration) (string, error) {
	return c.sign(http.MethodGet, object, "", ttl)
}

func (c *Client) sign(method, object, contentType string, ttl time.Duration) (string, error) {
	if c == nil {
		return "", errNotInitialized
	}
	object = strings.TrimPrefix(object, "/")
	switch {
	case object == "":
		return "", errors.New("object name is required")
	case ttl <= 0:
		return "", errors.New("ttl must be positive")
	}

	opts := &storage.SignedURLOptions{
		Scheme:      storage.SigningSchemeV4,
		Method:      method,
		ContentType: contentType,
		Expires:     c.now().Add(ttl),
	}
	if c.signer != nil {
		opts.GoogleAccessID = c.signer.email
		if len(c.signer.privateKey) > 0 {
			opts.PrivateKey = c.signer.privateKey
			return storage.SignedURL(c.defaultBucket, object, opts)
		}
	}
	// Without a key, the bucket handle signs through IAM credentials.
	if c.storage == nil {
		return "", errors.New("no signer configured")
	}
	return c.storage.Bucket(c.defaultBucket).SignedURL(object, opts)
}

// Ping reads the bucket's attributes, which also proves the credentials
// can see it.
func (c *Client) Ping(ctx context.Context) error {
	if c == nil || c.storage == nil {
		return errNotInitialized
	}
	ctx, cancel := context.WithTimeout(ctx, pingTimeout)
	defer cancel()
	_, err := c.storage.Bucket(c.defaultBucket).Attrs(ctx)
	return err
}

func (c *Client) Close() error {
	if c == nil || c.storage == nil {
		return nil
	}
	return c.storage.Close()
}
