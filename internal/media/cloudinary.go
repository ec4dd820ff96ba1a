// internal/media/cloudinary.go
package media

import (
	"bytes"
	"context"
	"crypto/sha1"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"net/url"
	"path"
	"sort"
	"strconv"
	"strings"
	"time"

	"perch/internal/utils"
)

// Cloudinary talks to the Cloudinary upload API with signed requests.
type Cloudinary struct {
	cloudName string
	apiKey    string
	apiSecret string
	folder    string
	client    *http.Client
}

func NewCloudinary(cloudName, apiKey, apiSecret, folder string) *Cloudinary {
	return &Cloudinary{
		cloudName: cloudName,
		apiKey:    apiKey,
		apiSecret: apiSecret,
		folder:    folder,
		client:    &http.Client{Timeout: 30 * time.Second},
	}
}

// sign builds the SHA-1 request signature Cloudinary expects: the sorted
// params serialized as a query string with the API secret appended.
func (c *Cloudinary) sign(params map[string]string) string {
	keys := make([]string, 0, len(params))
	for k := range params {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	var parts []string
	for _, k := range keys {
		parts = append(parts, k+"="+params[k])
	}
	sum := sha1.Sum([]byte(strings.Join(parts, "&") + c.apiSecret))
	return hex.EncodeToString(sum[:])
}

type uploadResponse struct {
	SecureURL string `json:"secure_url"`
	PublicID  string `json:"public_id"`
	Error     struct {
		Message string `json:"message"`
	} `json:"error"`
}

func (c *Cloudinary) Upload(ctx context.Context, r io.Reader, filename string) (*UploadResult, error) {
	timestamp := strconv.FormatInt(time.Now().Unix(), 10)
	params := map[string]string{
		"folder":    c.folder,
		"timestamp": timestamp,
	}
	signature := c.sign(params)

	var body bytes.Buffer
	writer := multipart.NewWriter(&body)
	part, err := writer.CreateFormFile("file", filename)
	if err != nil {
		return nil, err
	}
	if _, err := io.Copy(part, r); err != nil {
		return nil, err
	}
	writer.WriteField("api_key", c.apiKey)
	writer.WriteField("timestamp", timestamp)
	writer.WriteField("folder", c.folder)
	writer.WriteField("signature", signature)
	if err := writer.Close(); err != nil {
		return nil, err
	}

	endpoint := fmt.Sprintf("https://api.cloudinary.com/v1_1/%s/image/upload", c.cloudName)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, &body)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", writer.FormDataContentType())

	resp, err := c.client.Do(req)
	if err != nil {
		return nil, utils.NewAppError(utils.ErrUpstream, "Image upload failed", err)
	}
	defer resp.Body.Close()

	var uploaded uploadResponse
	if err := json.NewDecoder(resp.Body).Decode(&uploaded); err != nil {
		return nil, utils.NewAppError(utils.ErrUpstream, "Image upload failed", err)
	}
	if resp.StatusCode != http.StatusOK {
		return nil, utils.NewAppError(utils.ErrUpstream,
			fmt.Sprintf("Image upload failed: %s", uploaded.Error.Message), nil)
	}

	return &UploadResult{URL: uploaded.SecureURL, PublicID: uploaded.PublicID}, nil
}

func (c *Cloudinary) Delete(ctx context.Context, publicID string) error {
	timestamp := strconv.FormatInt(time.Now().Unix(), 10)
	params := map[string]string{
		"public_id": publicID,
		"timestamp": timestamp,
	}
	signature := c.sign(params)

	form := url.Values{}
	form.Set("public_id", publicID)
	form.Set("api_key", c.apiKey)
	form.Set("timestamp", timestamp)
	form.Set("signature", signature)

	endpoint := fmt.Sprintf("https://api.cloudinary.com/v1_1/%s/image/destroy", c.cloudName)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint,
		strings.NewReader(form.Encode()))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	resp, err := c.client.Do(req)
	if err != nil {
		return utils.NewAppError(utils.ErrUpstream, "Image delete failed", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return utils.NewAppError(utils.ErrUpstream,
			fmt.Sprintf("Image delete failed with status %d", resp.StatusCode), nil)
	}
	return nil
}

// PublicIDFromURL recovers the Cloudinary public id from a hosted asset URL,
// e.g. .../upload/v123/user_profiles/abc.jpg -> user_profiles/abc. Returns
// an empty string for URLs that are not Cloudinary uploads, such as the
// default profile image.
func PublicIDFromURL(rawURL string) string {
	parsed, err := url.Parse(rawURL)
	if err != nil {
		return ""
	}
	segments := strings.Split(strings.Trim(parsed.Path, "/"), "/")

	uploadIdx := -1
	for i, seg := range segments {
		if seg == "upload" {
			uploadIdx = i
			break
		}
	}
	if uploadIdx < 0 || uploadIdx+1 >= len(segments) {
		return ""
	}

	rest := segments[uploadIdx+1:]
	// Skip the version segment (v<digits>) when present.
	if len(rest) > 0 && strings.HasPrefix(rest[0], "v") {
		if _, err := strconv.Atoi(rest[0][1:]); err == nil {
			rest = rest[1:]
		}
	}
	if len(rest) == 0 {
		return ""
	}

	joined := strings.Join(rest, "/")
	ext := path.Ext(joined)
	return strings.TrimSuffix(joined, ext)
}
