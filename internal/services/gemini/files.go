package gemini

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"mime/multipart"
	"net/http"
	"net/textproto"
	"strings"

	"subforge/internal/services"
)

// File states reported by the Files API.
const (
	FileStateProcessing = "PROCESSING"
	FileStateActive     = "ACTIVE"
	FileStateFailed     = "FAILED"
)

// ErrFileProcessingFailed reports that Gemini rejected an uploaded file.
var ErrFileProcessingFailed = errors.New("file processing failed")

// File describes an uploaded file resource.
type File struct {
	Name        string `json:"name"`
	DisplayName string `json:"displayName,omitempty"`
	MimeType    string `json:"mimeType"`
	SizeBytes   string `json:"sizeBytes,omitempty"`
	URI         string `json:"uri"`
	State       string `json:"state"`
	Error       *struct {
		Message string `json:"message"`
	} `json:"error,omitempty"`
}

type uploadResponse struct {
	File File `json:"file"`
}

// UploadFile sends data as a multipart upload and returns the created file.
func (c *Client) UploadFile(ctx context.Context, data []byte, displayName, mimeType string) (File, error) {
	const op = "gemini upload"
	if len(data) == 0 {
		return File{}, fmt.Errorf("%s: empty file", op)
	}
	displayName = strings.TrimSpace(displayName)
	if displayName == "" {
		displayName = "audio_file"
	}
	endpoint, err := c.endpoint("upload", "v1beta", "files")
	if err != nil {
		return File{}, fmt.Errorf("%s: build url: %w", op, err)
	}
	payload, contentType, err := encodeUpload(data, displayName, mimeType)
	if err != nil {
		return File{}, fmt.Errorf("%s: %w", op, err)
	}

	body, err := c.doWithRetry(ctx, op, func(ctx context.Context) (*http.Request, error) {
		req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(payload))
		if err != nil {
			return nil, err
		}
		req.Header.Set("Content-Type", contentType)
		req.Header.Set("X-Goog-Upload-Protocol", "multipart")
		return req, nil
	})
	if err != nil {
		return File{}, err
	}
	var parsed uploadResponse
	if err := json.Unmarshal(body, &parsed); err != nil {
		return File{}, fmt.Errorf("%s: decode response: %w (payload snippet: %s)", op, err, summarizePayloadSnippet(string(body)))
	}
	if parsed.File.Name == "" {
		return File{}, fmt.Errorf("%s: response missing file name", op)
	}
	return parsed.File, nil
}

func encodeUpload(data []byte, displayName, mimeType string) ([]byte, string, error) {
	var buf bytes.Buffer
	writer := multipart.NewWriter(&buf)

	metadata, err := json.Marshal(map[string]any{
		"file": map[string]string{"displayName": displayName},
	})
	if err != nil {
		return nil, "", fmt.Errorf("encode metadata: %w", err)
	}
	metaHeader := textproto.MIMEHeader{}
	metaHeader.Set("Content-Disposition", `form-data; name="metadata"`)
	metaHeader.Set("Content-Type", "application/json; charset=utf-8")
	metaPart, err := writer.CreatePart(metaHeader)
	if err != nil {
		return nil, "", fmt.Errorf("create metadata part: %w", err)
	}
	if _, err := metaPart.Write(metadata); err != nil {
		return nil, "", fmt.Errorf("write metadata part: %w", err)
	}

	dataHeader := textproto.MIMEHeader{}
	dataHeader.Set("Content-Disposition", fmt.Sprintf(`form-data; name="data"; filename=%q`, displayName))
	dataHeader.Set("Content-Type", mimeType)
	dataPart, err := writer.CreatePart(dataHeader)
	if err != nil {
		return nil, "", fmt.Errorf("create data part: %w", err)
	}
	if _, err := dataPart.Write(data); err != nil {
		return nil, "", fmt.Errorf("write data part: %w", err)
	}
	if err := writer.Close(); err != nil {
		return nil, "", fmt.Errorf("close multipart: %w", err)
	}
	return buf.Bytes(), writer.FormDataContentType(), nil
}

// GetFile fetches the current metadata of an uploaded file such as "files/abc".
func (c *Client) GetFile(ctx context.Context, name string) (File, error) {
	const op = "gemini get file"
	name = strings.Trim(strings.TrimSpace(name), "/")
	if name == "" {
		return File{}, fmt.Errorf("%s: file name required", op)
	}
	endpoint, err := c.endpoint("v1beta", name)
	if err != nil {
		return File{}, fmt.Errorf("%s: build url: %w", op, err)
	}
	body, err := c.doWithRetry(ctx, op, func(ctx context.Context) (*http.Request, error) {
		return http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	})
	if err != nil {
		return File{}, err
	}
	var file File
	if err := json.Unmarshal(body, &file); err != nil {
		return File{}, fmt.Errorf("%s: decode response: %w", op, err)
	}
	return file, nil
}

// WaitForActive polls the file until it becomes ACTIVE. A FAILED state or
// running out of poll attempts is an error.
func (c *Client) WaitForActive(ctx context.Context, name string) (File, error) {
	attempts := c.cfg.FilePollAttempts
	for attempt := 1; attempt <= attempts; attempt++ {
		file, err := c.GetFile(ctx, name)
		if err != nil {
			return File{}, err
		}
		switch strings.ToUpper(file.State) {
		case FileStateActive:
			return file, nil
		case FileStateFailed:
			reason := "no detail"
			if file.Error != nil && strings.TrimSpace(file.Error.Message) != "" {
				reason = strings.TrimSpace(file.Error.Message)
			}
			return File{}, fmt.Errorf("gemini wait: %s: %w: %s", name, ErrFileProcessingFailed, reason)
		}
		if attempt == attempts {
			break
		}
		if err := c.sleep(ctx, c.cfg.FilePollInterval); err != nil {
			return File{}, err
		}
	}
	return File{}, services.Wrap(services.ErrTimeout, "gemini", "wait",
		fmt.Sprintf("file %s not active after %d checks", name, attempts), nil)
}
