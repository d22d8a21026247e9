package storage

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"os"
	"path"
	"path/filepath"
	"strings"
	"time"

	json "github.com/goccy/go-json"

	"github.com/semmidev/dbkeeper/internal/config"
	"github.com/semmidev/dbkeeper/internal/domain"
)

const (
	defaultYandexBaseURL = "https://cloud-api.yandex.net/v1/disk"
	defaultYandexRoot    = "app:/"
	yandexPageSize       = 100
)

// YandexDisk talks to the Yandex Disk REST API with an OAuth token.
type YandexDisk struct {
	client  *http.Client
	baseURL string
	token   string
	root    string
	folder  string
}

type yandexLink struct {
	Href   string `json:"href"`
	Method string `json:"method"`
}

type yandexResource struct {
	Name     string `json:"name"`
	Path     string `json:"path"`
	Type     string `json:"type"`
	Modified string `json:"modified"`
	Size     int64  `json:"size"`
	Embedded *struct {
		Items  []yandexResource `json:"items"`
		Total  int              `json:"total"`
		Limit  int              `json:"limit"`
		Offset int              `json:"offset"`
	} `json:"_embedded"`
}

type yandexError struct {
	Error       string `json:"error"`
	Description string `json:"description"`
}

func NewYandexDisk(cfg *config.RemoteConfig) (*YandexDisk, error) {
	if cfg.Yandex.Token == "" {
		return nil, fmt.Errorf("yandex token is required")
	}
	baseURL := cfg.Yandex.BaseURL
	if baseURL == "" {
		baseURL = defaultYandexBaseURL
	}
	root := cfg.Yandex.Root
	if root == "" {
		root = defaultYandexRoot
	}
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 10 * time.Minute
	}

	return &YandexDisk{
		client:  &http.Client{Timeout: timeout},
		baseURL: strings.TrimRight(baseURL, "/"),
		token:   cfg.Yandex.Token,
		root:    root,
		folder:  joinFolder(root, cfg.Folder),
	}, nil
}

func joinFolder(root, folder string) string {
	folder = strings.Trim(folder, "/")
	if !strings.HasSuffix(root, "/") {
		root += "/"
	}
	return root + folder
}

func (y *YandexDisk) remotePath(name string) string {
	return y.folder + "/" + name
}

func (y *YandexDisk) newRequest(ctx context.Context, method, endpoint string, query url.Values) (*http.Request, error) {
	u := y.baseURL + endpoint
	if len(query) > 0 {
		u += "?" + query.Encode()
	}
	req, err := http.NewRequestWithContext(ctx, method, u, nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Authorization", "OAuth "+y.token)
	req.Header.Set("Accept", "application/json")
	return req, nil
}

// do sends req and decodes a JSON body into out when out is non-nil. Statuses
// outside 2xx become errors carrying the API's description.
func (y *YandexDisk) do(req *http.Request, out interface{}) (int, error) {
	resp, err := y.client.Do(req)
	if err != nil {
		return 0, err
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		var apiErr yandexError
		if json.Unmarshal(body, &apiErr) == nil && apiErr.Error != "" {
			return resp.StatusCode, fmt.Errorf("yandex disk %s %s: %d %s: %s",
				req.Method, req.URL.Path, resp.StatusCode, apiErr.Error, apiErr.Description)
		}
		return resp.StatusCode, fmt.Errorf("yandex disk %s %s: %d %s",
			req.Method, req.URL.Path, resp.StatusCode, strings.TrimSpace(string(body)))
	}

	if out != nil {
		if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
			return resp.StatusCode, fmt.Errorf("failed to decode response: %w", err)
		}
	}
	return resp.StatusCode, nil
}

func (y *YandexDisk) exists(ctx context.Context, p string) (bool, error) {
	req, err := y.newRequest(ctx, http.MethodGet, "/resources", url.Values{"path": {p}, "fields": {"name"}})
	if err != nil {
		return false, err
	}
	status, err := y.do(req, nil)
	if status == http.StatusNotFound {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return true, nil
}

// EnsureFolder creates the folder and any missing parents. Paths without a
// "scheme:/" prefix are resolved under the configured root.
func (y *YandexDisk) EnsureFolder(ctx context.Context, p string) error {
	target := p
	if !strings.Contains(p, ":/") {
		target = joinFolder(y.root, p)
	}

	current := ""
	rest := target
	if scheme, tail, found := strings.Cut(target, ":/"); found {
		current = scheme + ":"
		rest = tail
	}

	for _, part := range strings.Split(strings.Trim(rest, "/"), "/") {
		if part == "" {
			continue
		}
		current += "/" + part

		ok, err := y.exists(ctx, current)
		if err != nil {
			return fmt.Errorf("failed to check folder %s: %w", current, err)
		}
		if ok {
			continue
		}

		req, err := y.newRequest(ctx, http.MethodPut, "/resources", url.Values{"path": {current}})
		if err != nil {
			return err
		}
		// 409 means a concurrent creator won the race.
		if status, err := y.do(req, nil); err != nil && status != http.StatusConflict {
			return fmt.Errorf("failed to create folder %s: %w", current, err)
		}
	}
	return nil
}

func (y *YandexDisk) Upload(ctx context.Context, localPath string) (string, error) {
	remote := y.remotePath(filepath.Base(localPath))

	file, err := os.Open(localPath)
	if err != nil {
		return "", domain.NewError(domain.KindUploadFailed, "open file", localPath, err)
	}
	defer file.Close()

	info, err := file.Stat()
	if err != nil {
		return "", domain.NewError(domain.KindUploadFailed, "stat file", localPath, err)
	}

	req, err := y.newRequest(ctx, http.MethodGet, "/resources/upload",
		url.Values{"path": {remote}, "overwrite": {"true"}})
	if err != nil {
		return "", domain.NewError(domain.KindUploadFailed, "build upload request", localPath, err)
	}
	var link yandexLink
	if _, err := y.do(req, &link); err != nil {
		return "", domain.NewError(domain.KindUploadFailed, "request upload link", localPath, err)
	}

	method := link.Method
	if method == "" {
		method = http.MethodPut
	}
	put, err := http.NewRequestWithContext(ctx, method, link.Href, file)
	if err != nil {
		return "", domain.NewError(domain.KindUploadFailed, "build upload", localPath, err)
	}
	put.ContentLength = info.Size()

	if _, err := y.do(put, nil); err != nil {
		return "", domain.NewError(domain.KindUploadFailed, "upload "+remote, localPath, err)
	}

	return remote, nil
}

func (y *YandexDisk) ListAll(ctx context.Context) ([]domain.RemoteObject, error) {
	objects := make([]domain.RemoteObject, 0)

	for offset := 0; ; {
		req, err := y.newRequest(ctx, http.MethodGet, "/resources", url.Values{
			"path":   {y.folder},
			"limit":  {fmt.Sprint(yandexPageSize)},
			"offset": {fmt.Sprint(offset)},
		})
		if err != nil {
			return nil, err
		}

		var res yandexResource
		if _, err := y.do(req, &res); err != nil {
			return nil, fmt.Errorf("failed to list %s: %w", y.folder, err)
		}
		if res.Embedded == nil {
			return objects, nil
		}

		for _, item := range res.Embedded.Items {
			if item.Type == "dir" {
				continue
			}
			modified, err := parseRemoteTime(item.Modified)
			if err != nil {
				return nil, fmt.Errorf("object %s: %w", item.Name, err)
			}
			objects = append(objects, domain.RemoteObject{
				Name:       item.Name,
				ModifiedAt: modified,
				RemotePath: y.remotePath(item.Name),
			})
		}

		offset += len(res.Embedded.Items)
		if len(res.Embedded.Items) == 0 || offset >= res.Embedded.Total {
			return objects, nil
		}
	}
}

func (y *YandexDisk) Download(ctx context.Context, remoteName, localPath string) error {
	remote := y.remotePath(path.Base(remoteName))

	req, err := y.newRequest(ctx, http.MethodGet, "/resources/download", url.Values{"path": {remote}})
	if err != nil {
		return domain.NewError(domain.KindDownloadFailed, "build download request", localPath, err)
	}
	var link yandexLink
	if _, err := y.do(req, &link); err != nil {
		return domain.NewError(domain.KindDownloadFailed, "request download link for "+remote, localPath, err)
	}

	err = saveFile(localPath, func(f *os.File) error {
		get, err := http.NewRequestWithContext(ctx, http.MethodGet, link.Href, nil)
		if err != nil {
			return err
		}
		resp, err := y.client.Do(get)
		if err != nil {
			return err
		}
		defer resp.Body.Close()
		if resp.StatusCode != http.StatusOK {
			return fmt.Errorf("unexpected status %d", resp.StatusCode)
		}
		_, err = io.Copy(f, resp.Body)
		return err
	})
	if err != nil {
		return domain.NewError(domain.KindDownloadFailed, "download "+remote, localPath, err)
	}
	return nil
}

func (y *YandexDisk) Delete(ctx context.Context, remoteName string) error {
	remote := y.remotePath(path.Base(remoteName))

	req, err := y.newRequest(ctx, http.MethodDelete, "/resources",
		url.Values{"path": {remote}, "permanently": {"true"}})
	if err != nil {
		return err
	}
	if _, err := y.do(req, nil); err != nil {
		return fmt.Errorf("failed to delete %s: %w", remote, err)
	}
	return nil
}
