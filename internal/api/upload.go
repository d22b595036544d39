package api

import (
	"encoding/json"
	"errors"
	"mime"
	"net/http"
	"path/filepath"
	"strconv"
	"strings"

	"subforge/internal/fileutil"
	"subforge/internal/logging"
	"subforge/internal/services"
	"subforge/internal/textutil"
)

const (
	uploadFileField     = "file"
	uploadSettingsField = "settings"
	uploadStartField    = "start"
	multipartMemory     = 32 << 20
)

func isMultipart(r *http.Request) bool {
	mediaType, _, err := mime.ParseMediaType(r.Header.Get("Content-Type"))
	return err == nil && mediaType == "multipart/form-data"
}

// receiveUpload stores the multipart "file" part under the upload directory
// and returns an add request pointing at the stored copy. An optional
// "settings" field carries Settings as JSON.
func (s *Server) receiveUpload(w http.ResponseWriter, r *http.Request) (AddJobRequest, error) {
	var req AddJobRequest
	if strings.TrimSpace(s.opts.UploadDir) == "" {
		return req, services.Wrap(services.ErrConfiguration, "api", "upload", "uploads are not enabled", nil)
	}
	r.Body = http.MaxBytesReader(w, r.Body, s.opts.MaxUploadBytes)
	if err := r.ParseMultipartForm(multipartMemory); err != nil {
		var maxErr *http.MaxBytesError
		if errors.As(err, &maxErr) {
			return req, maxErr
		}
		return req, services.Wrap(services.ErrValidation, "api", "upload", "invalid multipart form", err)
	}
	defer r.MultipartForm.RemoveAll()

	if raw := strings.TrimSpace(r.FormValue(uploadSettingsField)); raw != "" {
		var settings Settings
		if err := json.Unmarshal([]byte(raw), &settings); err != nil {
			return req, services.Wrap(services.ErrValidation, "api", "upload", "invalid settings field", err)
		}
		req.Settings = &settings
	}
	if raw := strings.TrimSpace(r.FormValue(uploadStartField)); raw != "" {
		start, err := strconv.ParseBool(raw)
		if err != nil {
			return req, services.Wrap(services.ErrValidation, "api", "upload", "invalid start field", err)
		}
		req.Start = start
	}

	file, header, err := r.FormFile(uploadFileField)
	if err != nil {
		return req, services.Wrap(services.ErrValidation, "api", "upload", "missing file part", err)
	}
	defer file.Close()

	name := textutil.SanitizeFileName(filepath.Base(header.Filename))
	if name == "" {
		return req, services.Wrap(services.ErrValidation, "api", "upload", "file name required", nil)
	}
	dst := fileutil.UniquePath(s.opts.UploadDir, name)
	size, digest, err := fileutil.CopyToFile(file, dst, 0o644)
	if err != nil {
		return req, services.Wrap(services.ErrTransient, "api", "upload", "store uploaded file", err)
	}
	logging.WithContext(r.Context(), s.logger).Info("audio uploaded",
		logging.String(logging.FieldEventType, "audio_uploaded"),
		logging.String("path", dst),
		logging.Int64("bytes", size),
		logging.String("sha256", digest),
	)
	req.Path = dst
	return req, nil
}
