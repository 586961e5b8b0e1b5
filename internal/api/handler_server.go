package api

import (
	"encoding/json"
	"errors"
	"net/http"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

// settingsFile persists the free-form server settings object.
type settingsFile struct {
	mu   sync.Mutex
	path string
}

func (s *settingsFile) load() (map[string]interface{}, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	settings := map[string]interface{}{}
	b, err := os.ReadFile(s.path)
	if errors.Is(err, os.ErrNotExist) {
		return settings, nil
	}
	if err != nil {
		return nil, err
	}
	if len(b) == 0 {
		return settings, nil
	}
	if err := json.Unmarshal(b, &settings); err != nil {
		return nil, err
	}
	return settings, nil
}

func (s *settingsFile) save(settings map[string]interface{}) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	b, err := json.MarshalIndent(settings, "", "  ")
	if err != nil {
		return err
	}
	if dir := filepath.Dir(s.path); dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return err
		}
	}
	tmp := s.path + ".tmp"
	if err := os.WriteFile(tmp, b, 0o644); err != nil {
		return err
	}
	return os.Rename(tmp, s.path)
}

// GetSettings handles GET /server/settings.
func (h *Handler) GetSettings(c *gin.Context) {
	settings, err := h.settings.load()
	if err != nil {
		h.log.Error("Failed to load server settings", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to load settings"})
		return
	}
	c.JSON(http.StatusOK, settings)
}

// SaveSettings handles POST /server/settings. The body replaces the stored object.
func (h *Handler) SaveSettings(c *gin.Context) {
	var settings map[string]interface{}
	if err := c.ShouldBindJSON(&settings); err != nil || settings == nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid format, expected a JSON object"})
		return
	}
	if err := h.settings.save(settings); err != nil {
		h.log.Error("Failed to save server settings", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to save settings"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": "success", "message": "Settings saved."})
}

type shareEntry struct {
	Name string `json:"name"`
	Type string `json:"type"`
	Size int64  `json:"size"`
}

func (h *Handler) sharePath(c *gin.Context, param string) (string, bool) {
	return confine(h.Storage.ShareDir, strings.TrimPrefix(c.Param(param), "/"))
}

// ListShareFiles handles GET /server/files/*subpath.
func (h *Handler) ListShareFiles(c *gin.Context) {
	dir, ok := h.sharePath(c, "subpath")
	if !ok {
		c.JSON(http.StatusNotFound, gin.H{"error": "Invalid or inaccessible path"})
		return
	}
	entries, err := os.ReadDir(dir)
	if err != nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "Invalid or inaccessible path"})
		return
	}

	files := make([]shareEntry, 0, len(entries))
	for _, e := range entries {
		info, err := e.Info()
		if err != nil {
			continue
		}
		entry := shareEntry{Name: e.Name(), Type: "file", Size: info.Size()}
		if e.IsDir() {
			entry.Type, entry.Size = "dir", 0
		}
		files = append(files, entry)
	}
	sort.Slice(files, func(i, j int) bool { return files[i].Name < files[j].Name })
	c.JSON(http.StatusOK, files)
}

// UploadShareFile handles POST /server/upload/*subpath.
func (h *Handler) UploadShareFile(c *gin.Context) {
	dir, ok := h.sharePath(c, "subpath")
	if info, err := os.Stat(dir); !ok || err != nil || !info.IsDir() {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid destination"})
		return
	}
	fh, data, err := h.readUpload(c, "file")
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": uploadErrorMessage(err, "No file part")})
		return
	}

	name := safeUploadName(fh.Filename)
	if err := writeFile(filepath.Join(dir, name), data); err != nil {
		h.log.Error("Failed to store shared file", zap.String("dir", dir), zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to save file"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": "success", "message": "File '" + name + "' uploaded."})
}

// DownloadShareFile handles GET /server/download/*filepath.
func (h *Handler) DownloadShareFile(c *gin.Context) {
	path, ok := h.sharePath(c, "filepath")
	if info, err := os.Stat(path); !ok || err != nil || info.IsDir() {
		c.JSON(http.StatusNotFound, gin.H{"error": "File not found"})
		return
	}
	c.FileAttachment(path, filepath.Base(path))
}
