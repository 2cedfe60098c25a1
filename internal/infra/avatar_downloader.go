package infra

import (
	"fmt"
	"net/http"
	"os"
	"path/filepath"
	"runtime"
	"strings"
	"time"

	"github.com/disintegration/imaging"
)

// AvatarDownloader handles downloading and caching tipper avatar images
type AvatarDownloader struct {
	basePath string
	client   *http.Client
}

// NewAvatarDownloader creates a downloader caching under the user config dir
func NewAvatarDownloader() (*AvatarDownloader, error) {
	path, err := getAvatarsPath()
	if err != nil {
		return nil, fmt.Errorf("failed to resolve avatars path: %w", err)
	}
	return NewAvatarDownloaderAt(path)
}

// NewAvatarDownloaderAt creates a downloader caching under the given directory
func NewAvatarDownloaderAt(path string) (*AvatarDownloader, error) {
	// Ensure directory exists
	if err := os.MkdirAll(path, 0755); err != nil {
		return nil, fmt.Errorf("failed to create avatars directory: %w", err)
	}

	// Optimize HTTP Transport to prevent connection leaks
	transport := http.DefaultTransport.(*http.Transport).Clone()
	transport.MaxIdleConns = 100
	transport.MaxConnsPerHost = 10
	transport.IdleConnTimeout = 30 * time.Second

	return &AvatarDownloader{
		basePath: path,
		client: &http.Client{
			Timeout:   10 * time.Second,
			Transport: transport,
		},
	}, nil
}

// DownloadAvatar downloads the avatar for a user if it isn't cached yet.
// Returns the local file path on success.
// Images are resized to 64x64 pixels for consistent display.
func (d *AvatarDownloader) DownloadAvatar(userID, url string) (string, error) {
	// Security: Sanitize the ID to prevent path traversal
	safeID := sanitizeID(userID)
	if safeID == "" {
		return "", fmt.Errorf("invalid user id: %s", userID)
	}
	if url == "" {
		return "", fmt.Errorf("no avatar url for user %s", userID)
	}

	fileName := strings.ToLower(safeID) + ".png"
	filePath := filepath.Join(d.basePath, fileName)

	// Check if exists
	if _, err := os.Stat(filePath); err == nil {
		return filePath, nil // Already exists (Cache Hit)
	}

	resp, err := d.client.Get(url)
	if err != nil {
		return "", err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("bad status: %s", resp.Status)
	}

	// Decode the image
	srcImg, err := imaging.Decode(resp.Body)
	if err != nil {
		return "", fmt.Errorf("failed to decode image: %w", err)
	}

	// Resize to 64x64 with high-quality Lanczos filter
	resizedImg := imaging.Resize(srcImg, 64, 64, imaging.Lanczos)

	if err := imaging.Save(resizedImg, filePath); err != nil {
		return "", fmt.Errorf("failed to save resized image: %w", err)
	}

	return filePath, nil
}

// GetAvatarPath returns the local path for a user's cached avatar
func (d *AvatarDownloader) GetAvatarPath(userID string) string {
	return filepath.Join(d.basePath, strings.ToLower(sanitizeID(userID))+".png")
}

func getAvatarsPath() (string, error) {
	var configDir string
	var err error

	if runtime.GOOS == "windows" {
		configDir = os.Getenv("LOCALAPPDATA")
		if configDir == "" {
			configDir, err = os.UserConfigDir()
		}
	} else {
		configDir, err = os.UserConfigDir()
	}

	if err != nil {
		return "", err
	}

	return filepath.Join(configDir, "Lightsats", "assets", "avatars"), nil
}

func sanitizeID(id string) string {
	res := make([]rune, 0, len(id))
	for _, r := range id {
		if (r >= 'a' && r <= 'z') || (r >= 'A' && r <= 'Z') || (r >= '0' && r <= '9') || r == '-' {
			res = append(res, r)
		}
	}
	return string(res)
}
