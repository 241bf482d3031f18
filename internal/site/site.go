package site

import (
	"embed"
	"html/template"
	"io"
	"mime"
	"net/url"
	"os"
	"path"
	"path/filepath"
	"sort"
	"strings"

	"github.com/pkg/errors"
)

//go:embed templates/*.html
var templateFiles embed.FS

var (
	// ErrNotFound は対象が存在しないことを示す
	ErrNotFound = errors.New("not found")
	// ErrOutsideRoot は対象がルート外を指すことを示す
	ErrOutsideRoot = errors.New("path escapes site root")
)

var (
	indexTemplate = template.Must(template.ParseFS(templateFiles, "templates/index.html"))
	notFoundPage  = mustRead("templates/404.html")
)

func mustRead(name string) []byte {
	data, err := templateFiles.ReadFile(name)
	if err != nil {
		panic(err)
	}
	return data
}

// NotFoundPage は404レスポンスの本文を返す
func NotFoundPage() []byte {
	return notFoundPage
}

// Site は配信対象のディレクトリ
type Site struct {
	root string
}

// Entry は解決済みのファイルまたはディレクトリ
type Entry struct {
	Path  string // 絶対パス
	URL   string // ルートからのURLパス
	IsDir bool
	Size  int64
}

// File はディレクトリ一覧の1項目
type File struct {
	Path  string
	Name  string
	IsDir bool
}

// New はrootを配信するSiteを作成する
func New(root string) (*Site, error) {
	abs, err := filepath.Abs(root)
	if err != nil {
		return nil, errors.Wrapf(err, "resolve root %q", root)
	}
	info, err := os.Stat(abs)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, errors.Wrapf(ErrNotFound, "root %q", root)
		}
		return nil, errors.Wrapf(err, "stat root %q", root)
	}
	if !info.IsDir() {
		return nil, errors.Errorf("root %q is not a directory", root)
	}
	return &Site{root: abs}, nil
}

// Root はルートの絶対パスを返す
func (s *Site) Root() string {
	return s.root
}

// Resolve はリクエストターゲットをルート配下のエントリに解決する
func (s *Site) Resolve(target string) (Entry, error) {
	if i := strings.IndexAny(target, "?#"); i >= 0 {
		target = target[:i]
	}
	decoded, err := url.PathUnescape(target)
	if err != nil {
		return Entry{}, errors.Wrapf(err, "decode %q", target)
	}
	if strings.ContainsRune(decoded, 0) {
		return Entry{}, errors.Wrapf(ErrOutsideRoot, "%q", target)
	}

	for _, seg := range strings.Split(decoded, "/") {
		if seg == ".." {
			return Entry{}, errors.Wrapf(ErrOutsideRoot, "%q", target)
		}
	}
	urlPath := path.Clean("/" + decoded)

	abs := filepath.Join(s.root, filepath.FromSlash(urlPath))
	if !s.contains(abs) {
		return Entry{}, errors.Wrapf(ErrOutsideRoot, "%q", target)
	}

	info, err := os.Stat(abs)
	if err != nil {
		if os.IsNotExist(err) {
			return Entry{}, errors.Wrapf(ErrNotFound, "%q", urlPath)
		}
		return Entry{}, errors.Wrapf(err, "stat %q", urlPath)
	}

	return Entry{
		Path:  abs,
		URL:   urlPath,
		IsDir: info.IsDir(),
		Size:  info.Size(),
	}, nil
}

func (s *Site) contains(abs string) bool {
	rel, err := filepath.Rel(s.root, abs)
	if err != nil {
		return false
	}
	return rel == "." || (rel != ".." && !strings.HasPrefix(rel, ".."+string(filepath.Separator)))
}

// Listing はディレクトリの項目を名前順で返す
func (s *Site) Listing(dir string) ([]File, error) {
	if !s.contains(dir) {
		return nil, errors.Wrapf(ErrOutsideRoot, "%q", dir)
	}
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, errors.Wrapf(err, "read directory %q", dir)
	}

	files := make([]File, 0, len(entries))
	for _, e := range entries {
		full := filepath.Join(dir, e.Name())
		files = append(files, File{
			Path:  s.urlFor(full),
			Name:  e.Name(),
			IsDir: e.IsDir(),
		})
	}
	sort.Slice(files, func(i, j int) bool {
		return files[i].Name < files[j].Name
	})
	return files, nil
}

// urlFor はルート配下の絶対パスをエスケープ済みURLパスに変換する
func (s *Site) urlFor(abs string) string {
	rel, err := filepath.Rel(s.root, abs)
	if err != nil || rel == "." {
		return "/"
	}
	segs := strings.Split(filepath.ToSlash(rel), "/")
	for i, seg := range segs {
		segs[i] = url.PathEscape(seg)
	}
	return "/" + strings.Join(segs, "/")
}

type indexData struct {
	Dir    string
	Parent string
	Files  []File
}

// RenderIndex はディレクトリ一覧のHTMLを書き出す
func (s *Site) RenderIndex(w io.Writer, dir string) error {
	files, err := s.Listing(dir)
	if err != nil {
		return err
	}

	data := indexData{
		Dir:   s.urlFor(dir),
		Files: files,
	}
	if data.Dir != "/" {
		data.Parent = s.urlFor(filepath.Dir(dir))
	}

	if err := indexTemplate.Execute(w, data); err != nil {
		return errors.Wrap(err, "render index")
	}
	return nil
}

// ContentType は拡張子からContent-Typeを返す
func ContentType(name string) string {
	if ct := mime.TypeByExtension(filepath.Ext(name)); ct != "" {
		return ct
	}
	return "application/octet-stream"
}
