package attachment

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"strings"
	"time"

	"github.com/example/task-lifecycle/domain/task"
	fsjetstream "github.com/go-monolith/mono/plugin/fs-jetstream"
	"github.com/google/uuid"
)

const defaultContentType = "application/octet-stream"

// URLPrefix is the public path under which attachments are served.
const URLPrefix = "/api/v1/attachments/"

// File is a downloaded attachment.
type File struct {
	ID          string
	TaskID      string
	Name        string
	ContentType string
	Size        int64
	Data        []byte
}

// Service stores task attachments in the object store under "<fileID>/<name>".
type Service struct {
	bucket fsjetstream.FileStoragePort
	now    func() time.Time
}

// NewService creates a new attachment service over the given bucket.
func NewService(bucket fsjetstream.FileStoragePort) *Service {
	return &Service{bucket: bucket, now: time.Now}
}

// Upload stores the file and returns the attachment to append to the task.
func (s *Service) Upload(ctx context.Context, taskID, fileName string, data []byte, contentType string) (task.Attachment, error) {
	if len(data) == 0 {
		return task.Attachment{}, ErrEmptyFile
	}
	if contentType == "" {
		contentType = defaultContentType
	}

	safeName := sanitizeFilename(fileName)
	fileID := uuid.New().String()
	uploadedAt := s.now().UTC()

	_, err := s.bucket.Put(ctx, fileID+"/"+safeName, data,
		fsjetstream.WithDescription(fmt.Sprintf("Attachment of task %s", taskID)),
		fsjetstream.WithHeaders(map[string]string{
			"Content-Type":  contentType,
			"Original-Name": safeName,
			"File-ID":       fileID,
			"Task-ID":       taskID,
			"Uploaded-At":   uploadedAt.Format(time.RFC3339),
		}),
	)
	if err != nil {
		return task.Attachment{}, fmt.Errorf("failed to store attachment: %w", err)
	}

	return task.Attachment{
		ID:         fileID,
		FileName:   safeName,
		FileURL:    URLPrefix + fileID,
		FileType:   contentType,
		UploadDate: uploadedAt,
	}, nil
}

// Download returns the attachment content and metadata.
func (s *Service) Download(_ context.Context, fileID string) (*File, error) {
	obj, err := s.find(fileID)
	if err != nil {
		return nil, err
	}
	data, err := s.bucket.Get(obj.Name)
	if err != nil {
		return nil, fmt.Errorf("failed to read attachment: %w", err)
	}
	return &File{
		ID:          fileID,
		TaskID:      obj.Headers["Task-ID"],
		Name:        strings.TrimPrefix(obj.Name, fileID+"/"),
		ContentType: contentTypeOf(obj.Headers),
		Size:        int64(obj.Size),
		Data:        data,
	}, nil
}

// Remove deletes an attachment. A missing file is not an error.
func (s *Service) Remove(_ context.Context, fileID string) error {
	obj, err := s.find(fileID)
	if err != nil {
		if errors.Is(err, ErrFileNotFound) {
			return nil
		}
		return err
	}
	if err := s.bucket.Delete(obj.Name); err != nil {
		return fmt.Errorf("failed to delete attachment: %w", err)
	}
	return nil
}

func (s *Service) find(fileID string) (*fsjetstream.ObjectInfo, error) {
	if err := validateFileID(fileID); err != nil {
		return nil, err
	}
	objs, err := s.bucket.List(fsjetstream.WithPrefix(fileID + "/"))
	if err != nil {
		return nil, fmt.Errorf("failed to list attachments: %w", err)
	}
	if len(objs) == 0 {
		return nil, ErrFileNotFound
	}
	return &objs[0], nil
}

// sanitizeFilename strips directory components and path separators.
func sanitizeFilename(name string) string {
	clean := filepath.Base(filepath.Clean(name))
	clean = strings.ReplaceAll(clean, "/", "_")
	clean = strings.ReplaceAll(clean, "\\", "_")
	if clean == "." || clean == ".." || clean == "" {
		return "unnamed"
	}
	return clean
}

func validateFileID(fileID string) error {
	if _, err := uuid.Parse(fileID); err != nil {
		return fmt.Errorf("%w: %q", ErrInvalidFileID, fileID)
	}
	return nil
}

func contentTypeOf(headers map[string]string) string {
	if ct, ok := headers["Content-Type"]; ok && ct != "" {
		return ct
	}
	return defaultContentType
}
