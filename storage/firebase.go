package storage

import (
	"context"
	"errors"
	"fmt"
	"io"
	"mime"
	"path"
	"path/filepath"
	"strings"

	"storefront-backend/config"
	"storefront-backend/logger"

	gcs "cloud.google.com/go/storage"
	firebase "firebase.google.com/go/v4"
	"google.golang.org/api/option"
)

const publicURLPrefix = "https://storage.googleapis.com/"

var errForeignURL = errors.New("url does not belong to this bucket")

type bucket interface {
	NewWriter(ctx context.Context, object, contentType string) io.WriteCloser
	MakePublic(ctx context.Context, object string) error
	Delete(ctx context.Context, object string) error
}

type gcsBucket struct {
	handle *gcs.BucketHandle
}

func (b gcsBucket) NewWriter(ctx context.Context, object, contentType string) io.WriteCloser {
	w := b.handle.Object(object).NewWriter(ctx)
	w.ContentType = contentType
	return w
}

func (b gcsBucket) MakePublic(ctx context.Context, object string) error {
	return b.handle.Object(object).ACL().Set(ctx, gcs.AllUsers, gcs.RoleReader)
}

func (b gcsBucket) Delete(ctx context.Context, object string) error {
	return b.handle.Object(object).Delete(ctx)
}

// FirebaseStorage keeps files in a Cloud Storage bucket through the Firebase Admin SDK.
type FirebaseStorage struct {
	bucket     bucket
	bucketName string
	log        *logger.Logger
}

func NewFirebaseStorage(ctx context.Context, cfg config.StorageConfig, logg *logger.Logger) (*FirebaseStorage, error) {
	if cfg.FirebaseBucket == "" {
		return nil, fmt.Errorf("FIREBASE_STORAGE_BUCKET not set")
	}

	var opts []option.ClientOption
	switch creds := cfg.Credentials; {
	case strings.HasPrefix(creds, "{"):
		logg.Info(ctx, "using firebase credentials from environment variable")
		opts = append(opts, option.WithCredentialsJSON([]byte(creds)))
	case creds != "":
		logg.Info(logg.WithField(ctx, "path", creds), "using firebase credentials from file")
		opts = append(opts, option.WithCredentialsFile(creds))
	default:
		logg.Warn(ctx, "GOOGLE_APPLICATION_CREDENTIALS not set, using default credentials")
	}

	app, err := firebase.NewApp(ctx, &firebase.Config{StorageBucket: cfg.FirebaseBucket}, opts...)
	if err != nil {
		return nil, fmt.Errorf("firebase init: %w", err)
	}
	client, err := app.Storage(ctx)
	if err != nil {
		return nil, fmt.Errorf("firebase storage client: %w", err)
	}
	handle, err := client.Bucket(cfg.FirebaseBucket)
	if err != nil {
		return nil, fmt.Errorf("firebase bucket %s: %w", cfg.FirebaseBucket, err)
	}

	return &FirebaseStorage{bucket: gcsBucket{handle: handle}, bucketName: cfg.FirebaseBucket, log: logg}, nil
}

func (f *FirebaseStorage) SaveFile(ctx context.Context, r io.Reader, filename, folder string) (string, error) {
	name := objectName(filename)
	objectPath := path.Join(normalizeFolder(folder), name)
	contentType := mime.TypeByExtension(filepath.Ext(name))
	if contentType == "" {
		contentType = "application/octet-stream"
	}

	wc := f.bucket.NewWriter(ctx, objectPath, contentType)
	if _, err := io.Copy(wc, r); err != nil {
		wc.Close()
		return "", fmt.Errorf("uploading %s: %w", objectPath, err)
	}
	if err := wc.Close(); err != nil {
		return "", fmt.Errorf("failed to finalize upload: %w", err)
	}

	// Public so the URL works without authentication.
	if err := f.bucket.MakePublic(ctx, objectPath); err != nil {
		f.log.Error(f.log.WithField(ctx, "object", objectPath), "failed to set public ACL", err)
	}

	return publicURLPrefix + f.bucketName + "/" + objectPath, nil
}

func (f *FirebaseStorage) DeleteFile(ctx context.Context, url string) error {
	if strings.TrimSpace(url) == "" {
		return nil
	}
	objectPath, err := f.objectPath(url)
	if err != nil {
		return fmt.Errorf("deleting %s: %w", url, err)
	}
	if err := f.bucket.Delete(ctx, objectPath); err != nil && !errors.Is(err, gcs.ErrObjectNotExist) {
		return fmt.Errorf("failed to delete object %s: %w", objectPath, err)
	}
	return nil
}

// objectPath maps a public URL issued by SaveFile back to its object name.
func (f *FirebaseStorage) objectPath(url string) (string, error) {
	rest, ok := strings.CutPrefix(url, publicURLPrefix+f.bucketName+"/")
	if !ok || rest == "" {
		return "", errForeignURL
	}
	return rest, nil
}
